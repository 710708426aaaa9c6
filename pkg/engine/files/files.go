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

// Package files implements the sandboxed "files" object exposed to pack
// templates: files.get, files.get_bytes, files.exists, files.glob, and
// files.lines, all scoped to a pack's files/ directory. Method names on
// API, called from template source as snake_case (e.g. files.get_bytes),
// are resolved by the engine package's reflection-based method call
// support, so every exported method here uses Go's CamelCase convention
// with the snake_case spelling as its mechanical translation.
package files

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"

	"github.com/alegeay/Sherpack-sub001/internal/sympath"
)

// ErrNotFound is returned by Get/GetBytes/Lines when the requested path is
// not present in the sandbox.
var ErrNotFound = errors.New("files: file not found")

// Entry names the {path, name, content, size} shape templates iterate over.
// Glob itself returns each result as a map[string]interface{} with these
// keys (size as a float64), not as an Entry.
type Entry struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

// API is the sandboxed, in-memory view of a pack's files/ directory handed
// to the template engine as the "files" global.
type API struct {
	contents map[string][]byte
}

// New builds an API from an explicit path -> content map, as produced by
// the pack loader's files/ partitioning.
func New(contents map[string][]byte) *API {
	cp := make(map[string][]byte, len(contents))
	for k, v := range contents {
		cp[normalize(k)] = v
	}
	return &API{contents: cp}
}

// NewFromDir builds an API by walking an on-disk files/ directory,
// rejecting any entry whose path (after symlink resolution) escapes root.
// This is the entry point used outside of a loaded archive, e.g. by `pack
// lint` operating directly on a working directory.
func NewFromDir(root string) (*API, error) {
	contents := map[string][]byte{}
	err := sympath.WalkSandboxed(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		safe, err := securejoin.SecureJoin(root, rel)
		if err != nil {
			return errors.Wrapf(err, "files: resolving %s", rel)
		}
		data, err := os.ReadFile(safe)
		if err != nil {
			return errors.Wrapf(err, "files: reading %s", rel)
		}
		contents[normalize(rel)] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &API{contents: contents}, nil
}

func normalize(p string) string {
	return filepath.ToSlash(strings.TrimPrefix(p, "./"))
}

// Get returns a file's contents decoded as UTF-8 text.
func (a *API) Get(name string) (string, error) {
	b, err := a.GetBytes(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetBytes returns a file's raw contents.
func (a *API) GetBytes(name string) ([]byte, error) {
	b, ok := a.contents[normalize(name)]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return b, nil
}

// Exists reports whether name is present in the sandbox.
func (a *API) Exists(name string) bool {
	_, ok := a.contents[normalize(name)]
	return ok
}

// Glob returns every file whose path matches pattern (a path.Match shell
// glob), sorted by path for deterministic output.
func (a *API) Glob(pattern string) ([]interface{}, error) {
	pattern = normalize(pattern)
	var names []string
	for name := range a.contents {
		ok, err := path.Match(pattern, name)
		if err != nil {
			return nil, errors.Wrapf(err, "files: invalid glob pattern %q", pattern)
		}
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]interface{}, 0, len(names))
	for _, name := range names {
		content := a.contents[name]
		out = append(out, map[string]interface{}{
			"path":    name,
			"name":    path.Base(name),
			"content": string(content),
			"size":    float64(len(content)),
		})
	}
	return out, nil
}

// Lines returns a file's contents split into lines, with a trailing blank
// line from a final newline omitted.
func (a *API) Lines(name string) ([]interface{}, error) {
	b, err := a.GetBytes(name)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	scanner := bufio.NewScanner(strings.NewReader(string(b)))
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out, nil
}
