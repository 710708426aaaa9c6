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

import "testing"

func validMetadata() *Metadata {
	return &Metadata{
		APIVersion: "sherpack/v1",
		Name:       "echo",
		Version:    "1.0.0",
		Kind:       "application",
	}
}

func TestMetadataValidate(t *testing.T) {
	if err := validMetadata().Validate(); err != nil {
		t.Fatalf("expected valid metadata, got %v", err)
	}
}

func TestMetadataValidateMissingFields(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Metadata)
		want error
	}{
		{"apiVersion", func(m *Metadata) { m.APIVersion = "" }, ErrMissingAPIVersion},
		{"name", func(m *Metadata) { m.Name = "" }, ErrMissingName},
		{"version", func(m *Metadata) { m.Version = "" }, ErrMissingVersion},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := validMetadata()
			c.mut(m)
			if err := m.Validate(); err != c.want {
				t.Fatalf("want %v, got %v", c.want, err)
			}
		})
	}
}

func TestMetadataValidateBadSemver(t *testing.T) {
	m := validMetadata()
	m.Version = "not-a-version"
	if err := m.Validate(); err != ErrInvalidVersion {
		t.Fatalf("want ErrInvalidVersion, got %v", err)
	}
}

func TestMetadataValidateBadKind(t *testing.T) {
	m := validMetadata()
	m.Kind = "daemon"
	if err := m.Validate(); err != ErrInvalidKind {
		t.Fatalf("want ErrInvalidKind, got %v", err)
	}
}

func TestMetadataValidateDuplicateDependencyName(t *testing.T) {
	m := validMetadata()
	m.Dependencies = []*Dependency{
		{Name: "common", Repository: "https://example.com"},
		{Name: "common", Repository: "https://example.com"},
	}
	if err := m.Validate(); err == nil {
		t.Fatal("expected duplicate dependency name to fail validation")
	}
}

func TestMetadataValidateAliasedDuplicateOK(t *testing.T) {
	m := validMetadata()
	m.Dependencies = []*Dependency{
		{Name: "common", Repository: "https://example.com"},
		{Name: "common", Alias: "common2", Repository: "https://example.com"},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("expected aliased duplicate to be valid, got %v", err)
	}
}

func TestMetadataValidateBadAlias(t *testing.T) {
	m := validMetadata()
	m.Dependencies = []*Dependency{
		{Name: "common", Alias: "Not_Valid!", Repository: "https://example.com"},
	}
	if err := m.Validate(); err == nil {
		t.Fatal("expected bad alias to fail validation")
	}
}

func TestDependencyEffectiveNameAndResolve(t *testing.T) {
	d := &Dependency{Name: "nginx"}
	if d.EffectiveName() != "nginx" {
		t.Fatalf("want nginx, got %s", d.EffectiveName())
	}
	if d.EffectiveResolve() != ResolveWhenEnabled {
		t.Fatalf("want when-enabled default, got %s", d.EffectiveResolve())
	}
	d.Alias = "web"
	if d.EffectiveName() != "web" {
		t.Fatalf("want web, got %s", d.EffectiveName())
	}
	if !d.IsEnabled() {
		t.Fatal("expected default enabled true")
	}
	f := false
	d.Enabled = &f
	if d.IsEnabled() {
		t.Fatal("expected disabled")
	}
}
