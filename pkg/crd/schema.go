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

// Package crd gives CustomResourceDefinitions the install/upgrade treatment
// templates/ resources get everywhere else: they are detected wherever they
// appear in a rendered pack, parsed into a comparable schema, classified by
// upgrade safety against whatever is already on the cluster, and gated by a
// pluggable strategy instead of being silently skipped on every upgrade.
package crd

import (
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

// Scope is a CRD's resource scope.
type Scope string

const (
	ScopeNamespaced Scope = "Namespaced"
	ScopeCluster    Scope = "Cluster"
)

// Names is the CRD's spec.names block.
type Names struct {
	Kind       string
	Plural     string
	Singular   string
	ShortNames []string
	ListKind   string
	Categories []string
}

// PropertyType is an OpenAPI v3 schema type.
type PropertyType string

const (
	TypeString  PropertyType = "string"
	TypeInteger PropertyType = "integer"
	TypeNumber  PropertyType = "number"
	TypeBoolean PropertyType = "boolean"
	TypeArray   PropertyType = "array"
	TypeObject  PropertyType = "object"
)

// ParsePropertyType normalizes a raw OpenAPI "type" value, keeping anything
// unrecognized (lower-cased) so IsCompatibleWith can still reject it.
func ParsePropertyType(s string) PropertyType {
	switch strings.ToLower(s) {
	case "string", "integer", "number", "boolean", "array", "object":
		return PropertyType(strings.ToLower(s))
	case "":
		return TypeObject
	default:
		return PropertyType(strings.ToLower(s))
	}
}

// IsCompatibleWith reports whether values valid under type t still satisfy a
// schema that now declares type other — the only accepted widening is
// integer to number, mirroring Kubernetes' own acceptance of that pair.
func (t PropertyType) IsCompatibleWith(other PropertyType) bool {
	if t == other {
		return true
	}
	return t == TypeInteger && other == TypeNumber
}

// Property is a single OpenAPI v3 schema node, simplified to the fields that
// matter for upgrade-safety comparison rather than full validation.
type Property struct {
	Type            PropertyType
	Default         interface{}
	HasDefault      bool
	Pattern         string
	Enum            []interface{}
	Minimum         *float64
	Maximum         *float64
	MinLength       *int64
	MaxLength       *int64
	Nullable        bool
	Properties      map[string]*Property
	Required        []string
	Items           *Property
	PreserveUnknown bool
}

// IsRequired reports whether name is listed in this property's required set.
func (p *Property) IsRequired(name string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Get returns a direct child property, or nil if p has no such field.
func (p *Property) Get(name string) *Property {
	if p == nil || p.Properties == nil {
		return nil
	}
	return p.Properties[name]
}

// PrinterColumn is an additionalPrinterColumns entry.
type PrinterColumn struct {
	Name     string
	Type     string
	JSONPath string
	Priority int32
}

// Subresources is a version's subresources block.
type Subresources struct {
	Status bool
	Scale  bool
}

// Version is a single spec.versions entry.
type Version struct {
	Name               string
	Served             bool
	Storage            bool
	Deprecated         bool
	DeprecationWarning string
	Schema             *Property
	PrinterColumns     []PrinterColumn
	Subresources       Subresources
}

// SpecSchema returns the root "spec" property, or nil if absent.
func (v *Version) SpecSchema() *Property {
	if v.Schema == nil {
		return nil
	}
	return v.Schema.Get("spec")
}

// Definition is a parsed CustomResourceDefinition ready for comparison.
type Definition struct {
	Name     string
	Group    string
	Scope    Scope
	Names    Names
	Versions []Version
}

// StorageVersion returns the version flagged storage: true, or nil.
func (d *Definition) StorageVersion() *Version {
	for i := range d.Versions {
		if d.Versions[i].Storage {
			return &d.Versions[i]
		}
	}
	return nil
}

// ServedVersions returns every version flagged served: true.
func (d *Definition) ServedVersions() []Version {
	var out []Version
	for _, v := range d.Versions {
		if v.Served {
			out = append(out, v)
		}
	}
	return out
}

// HasVersion reports whether name is one of d's declared versions.
func (d *Definition) HasVersion(name string) bool {
	for _, v := range d.Versions {
		if v.Name == name {
			return true
		}
	}
	return false
}

// Version looks up a version by name, or returns nil.
func (d *Definition) Version(name string) *Version {
	for i := range d.Versions {
		if d.Versions[i].Name == name {
			return &d.Versions[i]
		}
	}
	return nil
}

// Parse decodes a single CustomResourceDefinition manifest into a Definition.
// Only the fields comparison cares about are extracted; everything else in
// the manifest is ignored.
func Parse(manifest string) (*Definition, error) {
	var raw struct {
		Kind     string `json:"kind"`
		Metadata struct {
			Name        string            `json:"name"`
			Annotations map[string]string `json:"annotations"`
		} `json:"metadata"`
		Spec struct {
			Group string `json:"group"`
			Scope string `json:"scope"`
			Names struct {
				Kind       string   `json:"kind"`
				Plural     string   `json:"plural"`
				Singular   string   `json:"singular"`
				ShortNames []string `json:"shortNames"`
				ListKind   string   `json:"listKind"`
				Categories []string `json:"categories"`
			} `json:"names"`
			Versions []rawVersion `json:"versions"`
		} `json:"spec"`
	}
	if err := yaml.Unmarshal([]byte(manifest), &raw); err != nil {
		return nil, err
	}

	def := &Definition{
		Name:  raw.Metadata.Name,
		Group: raw.Spec.Group,
		Scope: ScopeNamespaced,
		Names: Names{
			Kind:       raw.Spec.Names.Kind,
			Plural:     raw.Spec.Names.Plural,
			Singular:   raw.Spec.Names.Singular,
			ShortNames: raw.Spec.Names.ShortNames,
			ListKind:   raw.Spec.Names.ListKind,
			Categories: raw.Spec.Names.Categories,
		},
	}
	if raw.Spec.Scope == string(ScopeCluster) {
		def.Scope = ScopeCluster
	}
	for _, rv := range raw.Spec.Versions {
		def.Versions = append(def.Versions, rv.toVersion())
	}
	sort.SliceStable(def.Versions, func(i, j int) bool { return def.Versions[i].Name < def.Versions[j].Name })
	return def, nil
}

type rawVersion struct {
	Name               string `json:"name"`
	Served             bool   `json:"served"`
	Storage            bool   `json:"storage"`
	Deprecated         bool   `json:"deprecated"`
	DeprecationWarning string `json:"deprecationWarning"`
	Schema             struct {
		OpenAPIV3Schema map[string]interface{} `json:"openAPIV3Schema"`
	} `json:"schema"`
	AdditionalPrinterColumns []struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		JSONPath string `json:"jsonPath"`
		Priority int32  `json:"priority"`
	} `json:"additionalPrinterColumns"`
	Subresources struct {
		Status map[string]interface{} `json:"status"`
		Scale  map[string]interface{} `json:"scale"`
	} `json:"subresources"`
}

func (rv rawVersion) toVersion() Version {
	v := Version{
		Name:               rv.Name,
		Served:             rv.Served,
		Storage:            rv.Storage,
		Deprecated:         rv.Deprecated,
		DeprecationWarning: rv.DeprecationWarning,
		Subresources: Subresources{
			Status: rv.Subresources.Status != nil,
			Scale:  rv.Subresources.Scale != nil,
		},
	}
	if rv.Schema.OpenAPIV3Schema != nil {
		v.Schema = parseProperty(rv.Schema.OpenAPIV3Schema)
	}
	for _, pc := range rv.AdditionalPrinterColumns {
		v.PrinterColumns = append(v.PrinterColumns, PrinterColumn{
			Name: pc.Name, Type: pc.Type, JSONPath: pc.JSONPath, Priority: pc.Priority,
		})
	}
	return v
}

func parseProperty(node map[string]interface{}) *Property {
	p := &Property{Type: TypeObject}
	if t, ok := node["type"].(string); ok {
		p.Type = ParsePropertyType(t)
	}
	if def, ok := node["default"]; ok {
		p.Default = def
		p.HasDefault = true
	}
	if pat, ok := node["pattern"].(string); ok {
		p.Pattern = pat
	}
	if enum, ok := node["enum"].([]interface{}); ok {
		p.Enum = enum
	}
	if min, ok := numeric(node["minimum"]); ok {
		p.Minimum = &min
	}
	if max, ok := numeric(node["maximum"]); ok {
		p.Maximum = &max
	}
	if minLen, ok := integer(node["minLength"]); ok {
		p.MinLength = &minLen
	}
	if maxLen, ok := integer(node["maxLength"]); ok {
		p.MaxLength = &maxLen
	}
	if nullable, ok := node["nullable"].(bool); ok {
		p.Nullable = nullable
	}
	if preserve, ok := node["x-kubernetes-preserve-unknown-fields"].(bool); ok {
		p.PreserveUnknown = preserve
	}
	if required, ok := node["required"].([]interface{}); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				p.Required = append(p.Required, s)
			}
		}
	}
	if props, ok := node["properties"].(map[string]interface{}); ok {
		p.Properties = make(map[string]*Property, len(props))
		for name, child := range props {
			if childMap, ok := child.(map[string]interface{}); ok {
				p.Properties[name] = parseProperty(childMap)
			}
		}
	}
	if items, ok := node["items"].(map[string]interface{}); ok {
		p.Items = parseProperty(items)
	}
	return p
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func integer(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
