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

import "strings"

// File is a single named byte blob inside a pack directory. Path is relative
// to the pack root and always uses forward slashes.
type File struct {
	Path string
	Data []byte
}

// Pack is the in-memory, immutable representation of a loaded pack
// directory or archive. Once loaded, a Pack and its subpacks are never
// mutated: values handed to the renderer are built fresh per operation.
type Pack struct {
	Metadata *Metadata

	// Values holds the pack's own values.yaml tree, or nil if absent.
	Values map[string]interface{}

	// Schema is the raw values.schema.(yaml|json) content, or nil if absent.
	Schema []byte

	// Templates are files under templates/, including partials
	// (leading-underscore names) which the renderer skips for emission but
	// which may still be {% include %}'d.
	Templates []*File

	// CRDs are files under crds/. They may contain template syntax and are
	// rendered before detection treats them as CustomResourceDefinitions.
	CRDs []*File

	// Files are arbitrary files under files/, exposed read-only through the
	// sandboxed Files API during rendering.
	Files []*File

	// Dependencies holds materialised subpacks found under charts/<name>,
	// keyed by their effective name (alias or name) at load time. Not every
	// declared Metadata.Dependencies entry need be present here; the
	// resolver/build step is what populates charts/.
	Dependencies []*Pack

	// raw Pack.yaml bytes, preserved so a SHA-256 digest of the literal
	// source can be taken for the lock file's packYamlDigest.
	RawMetadata []byte
}

// IsRoot reports whether this pack has no parent materialisation path, i.e.
// is the one being installed directly rather than a subpack.
func (p *Pack) IsRoot() bool {
	return p.Metadata != nil && p.Metadata.Annotations["sherpack.io/root"] != "false"
}

// IsLibrary reports whether the pack is kind: library (no manifests of its
// own, values/templates only for composition by dependents).
func (p *Pack) IsLibrary() bool {
	return p.Metadata != nil && p.Metadata.Kind == "library"
}

// Name returns the pack's declared name, or empty string if Metadata is nil.
func (p *Pack) Name() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata.Name
}

// Dependency returns the materialised subpack with the given effective
// name, or nil if not present under charts/.
func (p *Pack) Dependency(effectiveName string) *Pack {
	for _, d := range p.Dependencies {
		if d.Name() == effectiveName || aliasOf(p, d) == effectiveName {
			return d
		}
	}
	return nil
}

func aliasOf(parent *Pack, child *Pack) string {
	if parent.Metadata == nil {
		return ""
	}
	for _, dep := range parent.Metadata.Dependencies {
		if dep.Name == child.Name() {
			return dep.EffectiveName()
		}
	}
	return ""
}

// Validate validates Metadata. Template, CRD and file entries are not
// checked.
func (p *Pack) Validate() error {
	if err := p.Metadata.Validate(); err != nil {
		return err
	}
	return nil
}

// IsPartial reports whether a templates/ entry is a partial (not emitted by
// the renderer): its base filename begins with an underscore.
func IsPartial(path string) bool {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	return strings.HasPrefix(base, "_")
}
