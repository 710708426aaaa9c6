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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alegeay/Sherpack-sub001/internal/sympath"
	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

// MaxDecompressedFileSize bounds any single file read from a pack
// directory or archive.
const MaxDecompressedFileSize = 5 * 1024 * 1024

// DirLoader loads a pack from an on-disk directory.
type DirLoader string

// Load implements Loader.
func (l DirLoader) Load() (*pack.Pack, error) {
	return LoadDir(string(l))
}

// LoadDir walks dir and loads every regular file into a Pack, recursing
// into charts/ for subpacks.
func LoadDir(dir string) (*pack.Pack, error) {
	topdir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	topdir += string(filepath.Separator)

	var files []*BufferedFile
	walk := func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		n := strings.TrimPrefix(name, topdir)
		if n == "" {
			return nil
		}
		n = filepath.ToSlash(n)
		if fi.IsDir() {
			return nil
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("cannot load irregular file %s", name)
		}
		if fi.Size() > MaxDecompressedFileSize {
			return fmt.Errorf("pack file %q exceeds the maximum file size %d", n, MaxDecompressedFileSize)
		}
		data, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", n, err)
		}
		data = bytes.TrimPrefix(data, utf8bom)
		files = append(files, &BufferedFile{Name: n, Data: data})
		return nil
	}
	if err := sympath.Walk(topdir, walk); err != nil {
		return nil, err
	}
	return LoadFiles(files)
}
