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

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

func TestScanCrdsDirectoryClassifiesFiles(t *testing.T) {
	files := []*pack.File{
		{Path: "crds/widget.yaml", Data: []byte("kind: CustomResourceDefinition\nmetadata:\n  name: widgets.example.com\n")},
		{Path: "crds/gadget.yaml", Data: []byte("kind: CustomResourceDefinition\nmetadata:\n  name: {{ .Values.name }}\n")},
		{Path: "crds/README.md", Data: []byte("kind: Deployment\nmetadata:\n  name: not-a-crd\n")},
	}
	result := ScanCrdsDirectory(files)
	assert.Len(t, result.Static, 1)
	assert.Equal(t, "widgets.example.com", result.Static[0].Name)
	assert.Len(t, result.Templated, 1)
	assert.Equal(t, "crds/gadget.yaml", result.Templated[0].Path)
	assert.Len(t, result.NonCRD, 1)
	assert.Equal(t, "Deployment", result.NonCRD[0].Kind)
}

func TestScanCrdsDirectoryEmpty(t *testing.T) {
	result := ScanCrdsDirectory(nil)
	assert.Empty(t, result.Static)
	assert.Empty(t, result.Templated)
	assert.Empty(t, result.NonCRD)
}

func TestScanCrdsDirectoryUnparseableNonCRDGetsUnknownKind(t *testing.T) {
	files := []*pack.File{
		{Path: "crds/broken.yaml", Data: []byte("not: valid: yaml: [")},
	}
	result := ScanCrdsDirectory(files)
	require_ := assert.New(t)
	require_.Len(result.NonCRD, 1)
	require_.Equal("unknown", result.NonCRD[0].Kind)
}
