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

// Package pack models the on-disk and in-memory representation of a pack:
// Pack.yaml metadata, its dependency declarations, and the directory layout
// that carries values, schema, templates, CRDs and materialised subpacks.
package pack

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
)

// aliasNameFormat matches a DNS label: lowercase alphanumerics and hyphens,
// must not start or end with a hyphen.
var aliasNameFormat = regexp.MustCompile("^[a-z0-9]([-a-z0-9]*[a-z0-9])?$")

// Maintainer describes a person or organization responsible for a pack.
type Maintainer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

// CRDConfig captures Pack.yaml's optional crd{} block controlling how CRD
// changes are applied and whether they are removed on uninstall.
type CRDConfig struct {
	Upgrade   string `json:"upgrade,omitempty"`
	Uninstall string `json:"uninstall,omitempty"`
}

// EngineConfig is the engine{} block of Pack.yaml.
type EngineConfig struct {
	Strict bool `json:"strict,omitempty"`
}

// Metadata models Pack.yaml. Unknown top-level keys are preserved by the
// loader but ignored by the core, per the external-interface contract.
type Metadata struct {
	APIVersion  string            `json:"apiVersion,omitempty"`
	Kind        string            `json:"kind,omitempty"`
	Name        string            `json:"name,omitempty"`
	Version     string            `json:"version,omitempty"`
	AppVersion  string            `json:"appVersion,omitempty"`
	Description string            `json:"description,omitempty"`
	Home        string            `json:"home,omitempty"`
	Icon        string            `json:"icon,omitempty"`
	Sources     []string          `json:"sources,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
	Maintainers []*Maintainer     `json:"maintainers,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`

	Dependencies []*Dependency `json:"dependencies,omitempty"`
	Engine       EngineConfig  `json:"engine,omitempty"`
	CRD          *CRDConfig    `json:"crd,omitempty"`
}

// Validate checks Pack.yaml for the required fields and invariants named in
// the data model: apiVersion/name/version present, kind constrained, semver
// well-formed, dependency aliases well-formed and unique when unaliased.
func (md *Metadata) Validate() error {
	if md == nil {
		return ErrMissingMetadata
	}
	if md.APIVersion == "" {
		return ErrMissingAPIVersion
	}
	if md.Name == "" {
		return ErrMissingName
	}
	if md.Version == "" {
		return ErrMissingVersion
	}
	if _, err := semver.StrictNewVersion(md.Version); err != nil {
		return ErrInvalidVersion
	}
	if !isValidKind(md.Kind) {
		return ErrInvalidKind
	}

	seen := map[string]bool{}
	for _, dep := range md.Dependencies {
		if err := dep.Validate(); err != nil {
			return err
		}
		effective := dep.EffectiveName()
		if seen[effective] {
			return ValidationErrorf("dependency name %q is used more than once; alias one of them", effective)
		}
		seen[effective] = true
	}
	return nil
}

func isValidKind(k string) bool {
	switch k {
	case "", "application", "library":
		return true
	}
	return false
}
