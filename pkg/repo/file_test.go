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

package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackendListAndDownload(t *testing.T) {
	dir := t.TempDir()
	archive := []byte("local-archive-bytes")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo-1.0.0.tgz"), archive, 0o644))

	indexYAML := `
apiVersion: v1
generated: "2024-01-01T00:00:00Z"
entries:
  demo:
    - name: demo
      version: "1.0.0"
      urls:
        - demo-1.0.0.tgz
      digest: "` + computeDigest(archive) + `"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.yaml"), []byte(indexYAML), 0o644))

	repo := &Repository{Name: "local", URL: "file://" + dir, Kind: KindFile}
	backend := NewFileBackend(repo)

	entries, err := backend.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := backend.Download(context.Background(), entries[0])
	require.NoError(t, err)
	assert.Equal(t, archive, data)
}

func TestFileBackendDownloadRejectsTamperedArchive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo-1.0.0.tgz"), []byte("tampered"), 0o644))

	repo := &Repository{Name: "local", URL: "file://" + dir, Kind: KindFile}
	backend := NewFileBackend(repo)

	entry := &PackEntry{
		Name:    "demo",
		Version: "1.0.0",
		URLs:    []string{"demo-1.0.0.tgz"},
		Digest:  computeDigest([]byte("original")),
	}
	_, err := backend.Download(context.Background(), entry)
	assert.ErrorIs(t, err, ErrIntegrityCheckFailed)
}
