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

// Package schema validates a values tree against the values.schema.(yaml|json)
// dialect named in the external interfaces section: type, required,
// properties, items, enum, min/max, minLength/maxLength, pattern, default.
// Validation is delegated to santhosh-tekuri/jsonschema/v6, the same
// library helm.sh/helm/v4/pkg/chart/*/util/jsonschema.go uses; default
// extraction has no counterpart in that library and is implemented here by
// walking the decoded schema document directly.
package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"sigs.k8s.io/yaml"
)

// ValidationError wraps the underlying jsonschema library error with the
// noisy internal resource URL stripped, matching the teacher's presentation
// convention for schema errors surfaced to a user.
type ValidationError struct {
	cause error
}

func (e *ValidationError) Error() string {
	s := e.cause.Error()
	s = strings.TrimPrefix(s, "jsonschema validation failed with 'file:///values.schema.json#'\n")
	s = strings.ReplaceAll(s, "- at '':", "- at '/':")
	return s
}

func (e *ValidationError) Unwrap() error { return e.cause }

// Validate checks values (already-decoded YAML/JSON tree) against a single
// raw schema document (YAML or JSON — both are accepted since Pack.yaml may
// carry either values.schema.yaml or values.schema.json).
func Validate(values map[string]interface{}, rawSchema []byte) (reterr error) {
	if len(bytes.TrimSpace(rawSchema)) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			reterr = errors.Errorf("unable to validate schema: %v", r)
		}
	}()

	schemaJSON, err := yaml.YAMLToJSON(rawSchema)
	if err != nil {
		return errors.Wrap(err, "cannot parse values schema")
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("file:///values.schema.json", doc); err != nil {
		return err
	}
	validator, err := compiler.Compile("file:///values.schema.json")
	if err != nil {
		return err
	}

	valuesJSON, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if bytes.Equal(valuesJSON, []byte("null")) {
		valuesJSON = []byte("{}")
	}
	valuesObj, err := jsonschema.UnmarshalJSON(bytes.NewReader(valuesJSON))
	if err != nil {
		return err
	}

	if err := validator.Validate(valuesObj); err != nil {
		return &ValidationError{cause: err}
	}
	return nil
}

// ExtractDefaults walks the decoded schema document collecting every
// "default" keyword encountered under "properties", nested under the
// property names that lead to it, and returns them as a values tree suitable for use as the lowest
// layer of a Merge chain (pack defaults below schema defaults below
// user overrides would be backwards; schema defaults are the pack's
// fallback of last resort below values.yaml, so callers merge
// ExtractDefaults beneath the pack's values.yaml layer).
func ExtractDefaults(rawSchema []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(rawSchema)) == 0 {
		return map[string]interface{}{}, nil
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(rawSchema, &doc); err != nil {
		return nil, errors.Wrap(err, "cannot parse values schema")
	}
	out := map[string]interface{}{}
	walkDefaults(doc, out)
	return out, nil
}

func walkDefaults(node map[string]interface{}, out map[string]interface{}) {
	props, ok := node["properties"].(map[string]interface{})
	if !ok {
		return
	}
	for name, raw := range props {
		propSchema, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if def, ok := propSchema["default"]; ok {
			out[name] = def
		}
		if _, hasProps := propSchema["properties"]; hasProps {
			child := map[string]interface{}{}
			walkDefaults(propSchema, child)
			if len(child) > 0 {
				if existing, ok := out[name].(map[string]interface{}); ok {
					for k, v := range child {
						existing[k] = v
					}
				} else {
					out[name] = child
				}
			}
		}
	}
}
