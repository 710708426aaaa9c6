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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendDispatchesByKind(t *testing.T) {
	httpRepo, err := NewRepository("bitnami", "https://charts.bitnami.com/bitnami")
	require.NoError(t, err)
	b, err := NewBackend(httpRepo, nil)
	require.NoError(t, err)
	_, ok := b.(*HTTPBackend)
	assert.True(t, ok)

	ociRepo, err := NewRepository("ghcr", "oci://ghcr.io/myorg/charts")
	require.NoError(t, err)
	b, err = NewBackend(ociRepo, nil)
	require.NoError(t, err)
	_, ok = b.(*OCIBackend)
	assert.True(t, ok)

	fileRepo, err := NewRepository("local", "/tmp/repo")
	require.NoError(t, err)
	b, err = NewBackend(fileRepo, nil)
	require.NoError(t, err)
	_, ok = b.(*FileBackend)
	assert.True(t, ok)
}

func TestDetectKindRejectsUnknownScheme(t *testing.T) {
	_, err := DetectKind("ftp://example.com/repo")
	assert.Error(t, err)
}

func TestConfigAddGetRemove(t *testing.T) {
	cfg := NewConfig()
	repo, err := NewRepository("bitnami", "https://charts.bitnami.com/bitnami")
	require.NoError(t, err)

	cfg.Add(repo)
	assert.Equal(t, repo, cfg.Get("bitnami"))
	assert.Equal(t, []string{"bitnami"}, cfg.Names())

	assert.True(t, cfg.Remove("bitnami"))
	assert.Nil(t, cfg.Get("bitnami"))
	assert.False(t, cfg.Remove("bitnami"))
}
