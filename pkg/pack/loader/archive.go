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
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

// MaxDecompressedPackSize bounds the total decompressed size of an archive.
const MaxDecompressedPackSize = 100 * 1024 * 1024

// ArchiveLoader loads a pack from a tar+gzip archive file path.
type ArchiveLoader string

// Load implements Loader.
func (l ArchiveLoader) Load() (*pack.Pack, error) {
	return LoadFile(string(l))
}

// LoadFile opens name, verifies it looks like a gzip archive, and loads it.
func LoadFile(name string) (*pack.Pack, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, errors.New("cannot load a directory as an archive")
	}
	raw, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer raw.Close()
	return LoadArchive(raw)
}

// LoadArchive reads a tar+gzip stream into a Pack. Every entry is read into
// memory once (single-pass, per the archive contract), then partitioned.
func LoadArchive(in io.Reader) (*pack.Pack, error) {
	files, err := LoadArchiveFiles(in)
	if err != nil {
		return nil, err
	}
	return LoadFiles(files)
}

// LoadArchiveFiles extracts every regular entry from a tar+gzip stream,
// stripping the single leading path component (the archive's own pack-name
// directory) and rejecting any entry that would escape the archive root.
func LoadArchiveFiles(in io.Reader) ([]*BufferedFile, error) {
	gz, err := gzip.NewReader(in)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var files []*BufferedFile
	remaining := int64(MaxDecompressedPackSize)
	tr := tar.NewReader(gz)
	for {
		hd, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hd.FileInfo().IsDir() {
			continue
		}
		switch hd.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			continue
		}

		delimiter := "/"
		if strings.ContainsRune(hd.Name, '\\') {
			delimiter = "\\"
		}
		parts := strings.Split(hd.Name, delimiter)
		n := strings.Join(parts[1:], delimiter)
		n = strings.ReplaceAll(n, delimiter, "/")

		if path.IsAbs(n) {
			return nil, errors.New("pack archive illegally contains absolute paths")
		}
		n = path.Clean(n)
		if n == "." || strings.HasPrefix(n, "..") {
			return nil, fmt.Errorf("pack archive illegally contains content outside the base directory: %q", hd.Name)
		}

		if hd.Size > remaining || hd.Size > MaxDecompressedFileSize {
			return nil, fmt.Errorf("decompressed pack exceeds the maximum size %d bytes", MaxDecompressedPackSize)
		}

		var buf bytes.Buffer
		written, err := io.Copy(&buf, io.LimitReader(tr, remaining))
		if err != nil {
			return nil, err
		}
		remaining -= written
		if written < hd.Size {
			return nil, fmt.Errorf("decompressed pack exceeds the maximum size %d bytes", MaxDecompressedPackSize)
		}

		data := bytes.TrimPrefix(buf.Bytes(), utf8bom)
		files = append(files, &BufferedFile{Name: n, Data: data})
	}

	if len(files) == 0 {
		return nil, errors.New("no files in pack archive")
	}
	return files, nil
}
