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

package pack

// ResolvePolicy governs whether a dependency is considered during
// resolution regardless of its condition.
type ResolvePolicy string

const (
	ResolveAlways      ResolvePolicy = "always"
	ResolveWhenEnabled ResolvePolicy = "when-enabled"
	ResolveNever       ResolvePolicy = "never"
)

// Dependency describes a pack upon which another pack depends.
type Dependency struct {
	Name         string        `json:"name" yaml:"name"`
	Version      string        `json:"version,omitempty" yaml:"version,omitempty"`
	Repository   string        `json:"repository" yaml:"repository"`
	Condition    string        `json:"condition,omitempty" yaml:"condition,omitempty"`
	Tags         []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Alias        string        `json:"alias,omitempty" yaml:"alias,omitempty"`
	ImportValues []interface{} `json:"import-values,omitempty" yaml:"import-values,omitempty"`
	Resolve      ResolvePolicy `json:"resolve,omitempty" yaml:"resolve,omitempty"`
	Enabled      *bool         `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// EffectiveName returns the alias if set, else the name, per the data
// model's "charts/<effectiveName>" materialisation rule.
func (d *Dependency) EffectiveName() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.Name
}

// EffectiveResolve normalises the zero value to the documented default.
func (d *Dependency) EffectiveResolve() ResolvePolicy {
	if d.Resolve == "" {
		return ResolveWhenEnabled
	}
	return d.Resolve
}

// IsEnabled reports the dependency's enabled flag, defaulting to true when
// unset (absence of the field must not disable a dependency).
func (d *Dependency) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Validate checks the invariant that an alias, if present, is a DNS label.
func (d *Dependency) Validate() error {
	if d == nil {
		return ValidationError("dependencies must not contain empty or null nodes")
	}
	if d.Alias != "" && !aliasNameFormat.MatchString(d.Alias) {
		return ValidationErrorf("dependency %q has disallowed characters in the alias", d.Name)
	}
	switch d.Resolve {
	case "", ResolveAlways, ResolveWhenEnabled, ResolveNever:
	default:
		return ValidationErrorf("dependency %q has unknown resolve policy %q", d.Name, d.Resolve)
	}
	return nil
}
