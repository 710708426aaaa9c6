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

package loader

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basePackYaml() []byte {
	return []byte("apiVersion: sherpack/v1\nkind: application\nname: echo\nversion: 1.0.0\n")
}

func TestLoadFilesBasic(t *testing.T) {
	files := []*BufferedFile{
		{Name: "Pack.yaml", Data: basePackYaml()},
		{Name: "values.yaml", Data: []byte("replicas: 1\n")},
		{Name: "templates/cm.yaml", Data: []byte("kind: ConfigMap\n")},
		{Name: "templates/_helpers.tpl", Data: []byte("{{/* a partial */}}")},
		{Name: "crds/foo.yaml", Data: []byte("kind: CustomResourceDefinition\n")},
		{Name: "files/data.txt", Data: []byte("hello")},
	}
	p, err := LoadFiles(files)
	require.NoError(t, err)
	assert.Equal(t, "echo", p.Name())
	assert.Equal(t, 1, len(p.CRDs))
	assert.Equal(t, 2, len(p.Templates))
	assert.Equal(t, 1, len(p.Files))
	assert.Equal(t, float64(1), toFloat(p.Values["replicas"]))
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}

func TestLoadFilesMissingPackYaml(t *testing.T) {
	_, err := LoadFiles([]*BufferedFile{{Name: "values.yaml", Data: []byte("a: 1")}})
	assert.Error(t, err)
}

func TestLoadFilesWithSubpack(t *testing.T) {
	files := []*BufferedFile{
		{Name: "Pack.yaml", Data: basePackYaml()},
		{Name: "charts/common/Pack.yaml", Data: []byte("apiVersion: sherpack/v1\nkind: library\nname: common\nversion: 0.1.0\n")},
		{Name: "charts/common/templates/_lib.tpl", Data: []byte("{{/* lib */}}")},
	}
	p, err := LoadFiles(files)
	require.NoError(t, err)
	require.Len(t, p.Dependencies, 1)
	assert.Equal(t, "common", p.Dependencies[0].Name())
	assert.True(t, p.Dependencies[0].IsLibrary())
}

func TestLoadValuesMergesMultipleDocuments(t *testing.T) {
	r := []byte("a: 1\n---\nb: 2\n")
	v, err := LoadValues(bytes.NewReader(r))
	require.NoError(t, err)
	assert.EqualValues(t, 1, v["a"])
	assert.EqualValues(t, 2, v["b"])
}
