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

package crd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, manifest string) *Definition {
	t.Helper()
	def, err := Parse(manifest)
	require.NoError(t, err)
	return def
}

const baseCRD = `
kind: CustomResourceDefinition
metadata:
  name: widgets.example.com
spec:
  group: example.com
  scope: Namespaced
  names: {kind: Widget, plural: widgets}
  versions:
    - name: v1
      served: true
      storage: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                size:
                  type: integer
`

func TestAnalyzeNewCRDHasNoChanges(t *testing.T) {
	def := mustParse(t, baseCRD)
	analysis := Analyze(nil, def)
	assert.True(t, analysis.IsNew)
	assert.Empty(t, analysis.Changes)
}

func TestAnalyzeDetectsScopeChange(t *testing.T) {
	old := mustParse(t, baseCRD)
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  scope: Cluster
  names: {kind: Widget, plural: widgets}
  versions: [{name: v1, served: true, storage: true}]
`
	new := mustParse(t, newManifest)
	analysis := Analyze(old, new)
	require.NotEmpty(t, analysis.Changes)
	assert.True(t, analysis.HasDangerousChanges())
}

func TestAnalyzeDetectsRemovedVersion(t *testing.T) {
	old := mustParse(t, baseCRD)
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  names: {kind: Widget, plural: widgets}
  versions: []
`
	new := mustParse(t, newManifest)
	analysis := Analyze(old, new)
	found := false
	for _, c := range analysis.Changes {
		if c.Kind == ChangeRemoveVersion {
			found = true
			assert.Equal(t, SeverityDangerous, c.Severity())
		}
	}
	assert.True(t, found)
}

func TestAnalyzeDetectsAddedOptionalField(t *testing.T) {
	old := mustParse(t, baseCRD)
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  names: {kind: Widget, plural: widgets}
  versions:
    - name: v1
      served: true
      storage: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                size: {type: integer}
                color: {type: string}
`
	new := mustParse(t, newManifest)
	analysis := Analyze(old, new)
	var kinds []ChangeKind
	for _, c := range analysis.Changes {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, ChangeAddOptionalField)
	assert.False(t, analysis.HasDangerousChanges())
}

func TestAnalyzeDetectsRequiredFieldAddedAsWarning(t *testing.T) {
	old := mustParse(t, baseCRD)
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  names: {kind: Widget, plural: widgets}
  versions:
    - name: v1
      served: true
      storage: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              required: ["size", "color"]
              properties:
                size: {type: integer}
                color: {type: string}
`
	new := mustParse(t, newManifest)
	analysis := Analyze(old, new)
	var found *Change
	for i, c := range analysis.Changes {
		if c.Kind == ChangeAddRequiredField {
			found = &analysis.Changes[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, SeverityWarning, found.Severity())
}

func TestAnalyzeDetectsFieldRemoval(t *testing.T) {
	old := mustParse(t, baseCRD)
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  names: {kind: Widget, plural: widgets}
  versions:
    - name: v1
      served: true
      storage: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
`
	new := mustParse(t, newManifest)
	analysis := Analyze(old, new)
	assert.True(t, analysis.HasDangerousChanges())
}

func TestAnalyzeIntegerToNumberWideningIsSafe(t *testing.T) {
	old := mustParse(t, baseCRD)
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  names: {kind: Widget, plural: widgets}
  versions:
    - name: v1
      served: true
      storage: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                size: {type: number}
`
	new := mustParse(t, newManifest)
	analysis := Analyze(old, new)
	assert.False(t, analysis.HasDangerousChanges())
}

func TestAnalyzeStringToIntegerIsDangerous(t *testing.T) {
	old := mustParse(t, baseCRD)
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  names: {kind: Widget, plural: widgets}
  versions:
    - name: v1
      served: true
      storage: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                size: {type: string}
`
	new := mustParse(t, newManifest)
	analysis := Analyze(old, new)
	assert.True(t, analysis.HasDangerousChanges())
}
