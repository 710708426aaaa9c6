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

package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

func testPack() *pack.Pack {
	return &pack.Pack{
		Metadata: &pack.Metadata{
			APIVersion: "v1",
			Name:       "demo",
			Version:    "1.0.0",
		},
		RawMetadata: []byte("apiVersion: v1\nname: demo\nversion: 1.0.0\n"),
		Values:      map[string]interface{}{"replicaCount": float64(1)},
		Templates: []*pack.File{
			{Path: "templates/deployment.yaml", Data: []byte("kind: Deployment\n")},
			{Path: "templates/_helpers.tpl", Data: []byte("{% macro x() %}{% endmacro %}")},
		},
		CRDs: []*pack.File{
			{Path: "crds/widgets.yaml", Data: []byte("kind: CustomResourceDefinition\n")},
		},
		Files: []*pack.File{
			{Path: "files/config.ini", Data: []byte("[section]\n")},
		},
		Dependencies: []*pack.Pack{
			{
				Metadata:    &pack.Metadata{APIVersion: "v1", Name: "sub", Version: "0.1.0"},
				RawMetadata: []byte("apiVersion: v1\nname: sub\nversion: 0.1.0\n"),
				Templates: []*pack.File{
					{Path: "templates/service.yaml", Data: []byte("kind: Service\n")},
				},
			},
		},
	}
}

func TestFlattenIncludesSubpackPaths(t *testing.T) {
	contents, err := Flatten(testPack())
	require.NoError(t, err)

	assert.Contains(t, contents, "Pack.yaml")
	assert.Contains(t, contents, "values.yaml")
	assert.Contains(t, contents, "templates/deployment.yaml")
	assert.Contains(t, contents, "crds/widgets.yaml")
	assert.Contains(t, contents, "files/config.ini")
	assert.Contains(t, contents, "charts/sub/Pack.yaml")
	assert.Contains(t, contents, "charts/sub/templates/service.yaml")
}

func TestSaveProducesVerifiableArchive(t *testing.T) {
	dir := t.TempDir()
	path, err := Save(testPack(), dir)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	extracted := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		// strip the leading "demo/" root directory component.
		extracted[hdr.Name[len("demo/"):]] = data
	}

	require.Contains(t, extracted, "MANIFEST")
	require.Contains(t, extracted, "charts/sub/templates/service.yaml")

	result, err := Verify(extracted)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Mismatched)
	assert.Empty(t, result.Missing)
}

func TestVerifyDetectsTampering(t *testing.T) {
	contents, err := Flatten(testPack())
	require.NoError(t, err)
	manifest := GenerateManifest("demo", "1.0.0", contents)
	contents["MANIFEST"] = []byte(manifest.String())

	contents["templates/deployment.yaml"] = []byte("kind: Tampered\n")

	result, err := Verify(contents)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Mismatched, 1)
	assert.Equal(t, "templates/deployment.yaml", result.Mismatched[0].Path)
}

func TestVerifyDetectsMissingFile(t *testing.T) {
	contents, err := Flatten(testPack())
	require.NoError(t, err)
	manifest := GenerateManifest("demo", "1.0.0", contents)
	contents["MANIFEST"] = []byte(manifest.String())

	delete(contents, "crds/widgets.yaml")

	result, err := Verify(contents)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Missing, "crds/widgets.yaml")
}
