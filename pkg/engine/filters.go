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

package engine

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"sigs.k8s.io/yaml"

	"github.com/alegeay/Sherpack-sub001/pkg/values"
)

type filterFunc func(target interface{}, args []interface{}) (interface{}, error)

// filters holds every `| name(...)` pipeline stage recognized by the
// renderer. Names are lower_snake_case to match Jinja2 convention.
var filters = map[string]filterFunc{
	"toyaml":        filterToYAML,
	"tojson":        filterToJSON,
	"tojson_pretty": filterToJSONPretty,
	"b64encode":     filterB64Encode,
	"b64decode":     filterB64Decode,
	"quote":         filterQuote,
	"squote":        filterSquote,
	"indent":        filterIndent,
	"nindent":       filterNindent,
	"required":      filterRequired,
	"empty":         filterEmpty,
	"haskey":        filterHasKey,
	"keys":          filterKeys,
	"merge":         filterMerge,
	"sha256":        filterSHA256,
	"trunc":         filterTrunc,
	"trimprefix":    filterTrimPrefix,
	"trimsuffix":    filterTrimSuffix,
	"snakecase":     filterSnakeCase,
	"kebabcase":     filterKebabCase,
	"upper":         filterUpper,
	"lower":         filterLower,
	"default":       filterDefault,
}

func filterNames() []string {
	out := make([]string, 0, len(filters))
	for n := range filters {
		out = append(out, n)
	}
	return out
}

func filterToYAML(target interface{}, _ []interface{}) (interface{}, error) {
	b, err := yaml.Marshal(target)
	if err != nil {
		return nil, &RenderError{Kind: KindTypeError, Message: "toyaml: " + err.Error()}
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func filterToJSON(target interface{}, _ []interface{}) (interface{}, error) {
	b, err := json.Marshal(target)
	if err != nil {
		return nil, &RenderError{Kind: KindTypeError, Message: "tojson: " + err.Error()}
	}
	return string(b), nil
}

func filterToJSONPretty(target interface{}, _ []interface{}) (interface{}, error) {
	b, err := json.MarshalIndent(target, "", "  ")
	if err != nil {
		return nil, &RenderError{Kind: KindTypeError, Message: "tojson_pretty: " + err.Error()}
	}
	return string(b), nil
}

func filterB64Encode(target interface{}, _ []interface{}) (interface{}, error) {
	if b, ok := target.([]byte); ok {
		return base64.StdEncoding.EncodeToString(b), nil
	}
	return base64.StdEncoding.EncodeToString([]byte(toDisplayString(target))), nil
}

func filterB64Decode(target interface{}, _ []interface{}) (interface{}, error) {
	b, err := base64.StdEncoding.DecodeString(toDisplayString(target))
	if err != nil {
		return nil, &RenderError{Kind: KindInvalidOperation, Message: "b64decode: " + err.Error()}
	}
	return string(b), nil
}

func filterQuote(target interface{}, _ []interface{}) (interface{}, error) {
	return fmt.Sprintf("%q", toDisplayString(target)), nil
}

func filterSquote(target interface{}, _ []interface{}) (interface{}, error) {
	s := toDisplayString(target)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'", nil
}

func indentLines(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}

func filterIndent(target interface{}, args []interface{}) (interface{}, error) {
	n, ok := toFloat(argAt(args, 0))
	if !ok {
		return nil, &RenderError{Kind: KindTypeError, Message: "indent: expected numeric width"}
	}
	return indentLines(toDisplayString(target), int(n)), nil
}

func filterNindent(target interface{}, args []interface{}) (interface{}, error) {
	n, ok := toFloat(argAt(args, 0))
	if !ok {
		return nil, &RenderError{Kind: KindTypeError, Message: "nindent: expected numeric width"}
	}
	return "\n" + indentLines(toDisplayString(target), int(n)), nil
}

func filterRequired(target interface{}, args []interface{}) (interface{}, error) {
	if !values.Truthy(target) {
		msg := "value is required"
		if len(args) > 0 {
			msg = toDisplayString(args[0])
		}
		return nil, &RenderError{Kind: KindInvalidOperation, Message: msg}
	}
	return target, nil
}

func filterEmpty(target interface{}, _ []interface{}) (interface{}, error) {
	return !values.Truthy(target), nil
}

func filterHasKey(target interface{}, args []interface{}) (interface{}, error) {
	m, ok := target.(map[string]interface{})
	if !ok {
		return false, nil
	}
	key := toDisplayString(argAt(args, 0))
	_, found := m[key]
	return found, nil
}

func filterKeys(target interface{}, _ []interface{}) (interface{}, error) {
	m, ok := target.(map[string]interface{})
	if !ok {
		return nil, &RenderError{Kind: KindTypeError, Message: "keys: expected a mapping"}
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	ifs := make([]interface{}, len(out))
	for i, k := range out {
		ifs[i] = k
	}
	return ifs, nil
}

func filterMerge(target interface{}, args []interface{}) (interface{}, error) {
	base, ok := target.(map[string]interface{})
	if !ok {
		return nil, &RenderError{Kind: KindTypeError, Message: "merge: expected a mapping"}
	}
	overlay, ok := argAt(args, 0).(map[string]interface{})
	if !ok {
		return nil, &RenderError{Kind: KindTypeError, Message: "merge: argument must be a mapping"}
	}
	return values.Merge(base, overlay), nil
}

func filterSHA256(target interface{}, _ []interface{}) (interface{}, error) {
	sum := sha256.Sum256([]byte(toDisplayString(target)))
	return fmt.Sprintf("%x", sum), nil
}

func filterTrunc(target interface{}, args []interface{}) (interface{}, error) {
	n, ok := toFloat(argAt(args, 0))
	if !ok {
		return nil, &RenderError{Kind: KindTypeError, Message: "trunc: expected numeric length"}
	}
	s := norm.NFC.String(toDisplayString(target))
	r := []rune(s)
	limit := int(n)
	if limit < 0 {
		if -limit >= len(r) {
			return "", nil
		}
		return string(r[-limit:]), nil
	}
	if limit >= len(r) {
		return s, nil
	}
	return string(r[:limit]), nil
}

func filterTrimPrefix(target interface{}, args []interface{}) (interface{}, error) {
	return strings.TrimPrefix(toDisplayString(target), toDisplayString(argAt(args, 0))), nil
}

func filterTrimSuffix(target interface{}, args []interface{}) (interface{}, error) {
	return strings.TrimSuffix(toDisplayString(target), toDisplayString(argAt(args, 0))), nil
}

func filterSnakeCase(target interface{}, _ []interface{}) (interface{}, error) {
	return toSeparatedCase(toDisplayString(target), '_'), nil
}

func filterKebabCase(target interface{}, _ []interface{}) (interface{}, error) {
	return toSeparatedCase(toDisplayString(target), '-'), nil
}

func filterUpper(target interface{}, _ []interface{}) (interface{}, error) {
	return strings.ToUpper(toDisplayString(target)), nil
}

func filterLower(target interface{}, _ []interface{}) (interface{}, error) {
	return strings.ToLower(toDisplayString(target)), nil
}

func filterDefault(target interface{}, args []interface{}) (interface{}, error) {
	if values.Truthy(target) {
		return target, nil
	}
	return argAt(args, 0), nil
}

func toSeparatedCase(s string, sep rune) string {
	var sb strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && runes[i-1] != sep && runes[i-1] != ' ' && runes[i-1] != '-' && runes[i-1] != '_' {
				sb.WriteRune(sep)
			}
			sb.WriteRune(r - 'A' + 'a')
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			sb.WriteRune(sep)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func argAt(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return nil
}

type testFunc func(target interface{}, args []interface{}) (bool, error)

var tests = map[string]testFunc{
	"defined": func(target interface{}, _ []interface{}) (bool, error) {
		return target != nil, nil
	},
	"none": func(target interface{}, _ []interface{}) (bool, error) {
		return target == nil, nil
	},
	"string": func(target interface{}, _ []interface{}) (bool, error) {
		_, ok := target.(string)
		return ok, nil
	},
	"number": func(target interface{}, _ []interface{}) (bool, error) {
		_, ok := toFloat(target)
		return ok, nil
	},
	"mapping": func(target interface{}, _ []interface{}) (bool, error) {
		_, ok := target.(map[string]interface{})
		return ok, nil
	},
	"sequence": func(target interface{}, _ []interface{}) (bool, error) {
		_, ok := target.([]interface{})
		return ok, nil
	},
	"iterable": func(target interface{}, _ []interface{}) (bool, error) {
		switch target.(type) {
		case []interface{}, map[string]interface{}, string:
			return true, nil
		}
		return false, nil
	},
}
