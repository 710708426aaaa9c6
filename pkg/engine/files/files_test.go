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

package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAPI() *API {
	return New(map[string][]byte{
		"config/app.yaml": []byte("key: value\nother: data"),
		"config/db.yaml":  []byte("host: localhost"),
		"scripts/init.sh": []byte("#!/bin/bash\necho hello"),
	})
}

func TestGet(t *testing.T) {
	a := testAPI()
	s, err := a.Get("config/app.yaml")
	require.NoError(t, err)
	assert.Equal(t, "key: value\nother: data", s)
}

func TestGetNotFound(t *testing.T) {
	a := testAPI()
	_, err := a.Get("nonexistent.txt")
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	a := testAPI()
	assert.True(t, a.Exists("config/app.yaml"))
	assert.False(t, a.Exists("missing.yaml"))
}

func TestGlobSorted(t *testing.T) {
	a := testAPI()
	entries, err := a.Glob("config/*.yaml")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "app.yaml", first["name"])
}

func TestLines(t *testing.T) {
	a := testAPI()
	lines, err := a.Lines("scripts/init.sh")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"#!/bin/bash", "echo hello"}, lines)
}

func TestNewFromDirRejectsSymlinkEscape(t *testing.T) {
	dir := t.TempDir()
	filesDir := filepath.Join(dir, "files")
	require.NoError(t, os.MkdirAll(filesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(filesDir, "a.txt"), []byte("hello"), 0o644))

	outside := filepath.Join(dir, "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(filesDir, "escape.txt")))

	_, err := NewFromDir(filesDir)
	assert.Error(t, err)
}

func TestNewFromDirLoadsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))

	a, err := NewFromDir(dir)
	require.NoError(t, err)
	assert.True(t, a.Exists("a.txt"))
}
