/*
Copyright The Helm Authors.
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package values implements the layered deep-merge of YAML/JSON value
// trees with dotted-path access, grounded on the merge rule Helm applies
// when composing a chart's own values.yaml with user-supplied overrides
// (helm.sh/helm/v4/pkg/chart/loader.MergeMaps), generalised to the
// "overlay wins, no concatenation" invariant named in the data model.
package values

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Values is a JSON-like tree: map[string]interface{}, []interface{}, and
// scalars (string, bool, float64/int64, nil).
type Values map[string]interface{}

// Merge deep-merges overlay into base: mappings merge recursively; scalars
// and arrays in overlay replace the corresponding base value wholesale.
// base is never mutated; a new tree is returned. A nil base behaves as an
// empty map, so Merge(nil, b) is structurally equal to a deep copy of b.
func Merge(base, overlay map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = deepCopy(v)
	}
	for k, v := range overlay {
		if ov, ok := v.(map[string]interface{}); ok {
			if bv, ok := out[k].(map[string]interface{}); ok {
				out[k] = Merge(bv, ov)
				continue
			}
		}
		out[k] = deepCopy(v)
	}
	return out
}

// MergeAll left-folds Merge over trees in order: trees[0] is the base,
// each subsequent tree overlays the accumulated result. Later trees win.
func MergeAll(trees ...map[string]interface{}) map[string]interface{} {
	var acc map[string]interface{}
	for _, t := range trees {
		acc = Merge(acc, t)
	}
	return acc
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}

// ErrUndefinedPath is returned by GetPath when the path is not present in
// the tree (GetBool reports such a path as false); callers that must treat absence as false (condition
// evaluation, §4.3 rule 3) should special-case this error.
var ErrUndefinedPath = errors.New("values: undefined path")

// GetPath resolves a dotted path (e.g. "subchart1.enabled") against a
// values tree, returning ErrUndefinedPath if any segment is missing or not
// a map while more segments remain.
func GetPath(tree map[string]interface{}, path string) (interface{}, error) {
	if path == "" {
		return nil, errors.New("values: empty path")
	}
	segs := strings.Split(path, ".")
	var cur interface{} = map[string]interface{}(tree)
	for i, seg := range segs {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, ErrUndefinedPath
		}
		v, ok := m[seg]
		if !ok {
			return nil, ErrUndefinedPath
		}
		if i == len(segs)-1 {
			return v, nil
		}
		cur = v
	}
	return nil, ErrUndefinedPath
}

// GetBool resolves path and coerces a truthy result to bool. Undefined
// paths count as false, matching the dependency condition-evaluation rule.
func GetBool(tree map[string]interface{}, path string) bool {
	v, err := GetPath(tree, path)
	if err != nil {
		return false
	}
	return Truthy(v)
}

// Truthy applies the engine's notion of truthiness to an arbitrary decoded
// YAML/JSON value: booleans by value, numbers are true unless zero, strings
// are true unless empty, collections are true unless zero-length, nil/
// undefined is false.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	default:
		return true
	}
}

// SetPath writes value at a dotted path, creating intermediate maps as
// needed. Used by --set-style overrides and import-values projection.
func SetPath(tree map[string]interface{}, path string, value interface{}) error {
	segs := strings.Split(path, ".")
	cur := tree
	for i, seg := range segs {
		if i == len(segs)-1 {
			cur[seg] = value
			return nil
		}
		next, ok := cur[seg]
		if !ok {
			nm := map[string]interface{}{}
			cur[seg] = nm
			cur = nm
			continue
		}
		nm, ok := next.(map[string]interface{})
		if !ok {
			return errors.Errorf("values: cannot descend into non-map at %q", strings.Join(segs[:i+1], "."))
		}
		cur = nm
	}
	return nil
}

// Scope builds the child values tree for a subchart's effective name,
// implementing the pure value-tree transform described in the design notes
// ("scopeValues(parent, effectiveName)"): the child's own defaults,
// overlaid with whatever the parent scoped under parentValues[effectiveName].
func Scope(childDefaults map[string]interface{}, parentValues map[string]interface{}, effectiveName string) map[string]interface{} {
	var scoped map[string]interface{}
	if raw, ok := parentValues[effectiveName]; ok {
		if m, ok := raw.(map[string]interface{}); ok {
			scoped = m
		}
	}
	return Merge(childDefaults, scoped)
}

// ImportValues copies values from a child pack's rendered tree up into the
// parent under the parent keys named by each import-values entry, matching
// Dependency.ImportValues' "string or {child,parent}" shapes.
func ImportValues(parent map[string]interface{}, child map[string]interface{}, imports []interface{}) (map[string]interface{}, error) {
	out := Merge(parent, nil)
	for _, imp := range imports {
		switch spec := imp.(type) {
		case string:
			v, err := GetPath(child, spec)
			if err != nil {
				continue
			}
			if err := SetPath(out, spec, v); err != nil {
				return nil, err
			}
		case map[string]interface{}:
			childPath, _ := spec["child"].(string)
			parentPath, _ := spec["parent"].(string)
			if childPath == "" || parentPath == "" {
				return nil, errors.New("values: import-values entry requires both child and parent")
			}
			v, err := GetPath(child, childPath)
			if err != nil {
				continue
			}
			if err := SetPath(out, parentPath, v); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("values: unsupported import-values entry %T", imp)
		}
	}
	return out, nil
}

// ParseScalar coerces a raw string (as seen on a --set style flag) into the
// narrowest scalar type: bool, int64, float64, or string.
func ParseScalar(raw string) interface{} {
	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
