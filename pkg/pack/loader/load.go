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

// Package loader loads a Pack from a directory or a tar+gzip archive into
// the in-memory pack.Pack representation, recursing into charts/ for
// materialised subpacks.
package loader

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

var utf8bom = []byte{0xEF, 0xBB, 0xBF}

// Loader loads a pack from some source.
type Loader interface {
	Load() (*pack.Pack, error)
}

// Load discovers whether name is a directory or archive and dispatches to
// the matching loader.
func Load(name string) (*pack.Pack, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return LoadDir(name)
	}
	return LoadFile(name)
}

// BufferedFile is a path/content pair staged for partitioning by LoadFiles.
type BufferedFile struct {
	Name string
	Data []byte
}

// LoadFiles partitions a flat file list (already archive-relative, without
// a leading pack-root directory component) into a *pack.Pack, recursing
// into "charts/<name>/..." entries as materialised subpacks.
func LoadFiles(files []*BufferedFile) (*pack.Pack, error) {
	p := &pack.Pack{}
	subpacks := make(map[string][]*BufferedFile)

	for _, f := range files {
		if f.Name == "Pack.yaml" {
			p.RawMetadata = f.Data
			p.Metadata = new(pack.Metadata)
			if err := yaml.Unmarshal(f.Data, p.Metadata); err != nil {
				return p, errors.Wrap(err, "cannot load Pack.yaml")
			}
		}
	}
	if p.Metadata == nil {
		return p, errors.New("Pack.yaml is missing")
	}

	for _, f := range files {
		switch {
		case f.Name == "Pack.yaml":
			continue
		case f.Name == "values.yaml":
			values, err := LoadValues(bytes.NewReader(f.Data))
			if err != nil {
				return p, errors.Wrap(err, "cannot load values.yaml")
			}
			p.Values = values
		case f.Name == "values.schema.yaml" || f.Name == "values.schema.json":
			p.Schema = f.Data
		case strings.HasPrefix(f.Name, "templates/"):
			p.Templates = append(p.Templates, &pack.File{Path: f.Name, Data: f.Data})
		case strings.HasPrefix(f.Name, "crds/"):
			p.CRDs = append(p.CRDs, &pack.File{Path: f.Name, Data: f.Data})
		case strings.HasPrefix(f.Name, "charts/"):
			fname := strings.TrimPrefix(f.Name, "charts/")
			if fname == "" {
				continue
			}
			cname := strings.SplitN(fname, "/", 2)[0]
			subpacks[cname] = append(subpacks[cname], &BufferedFile{Name: fname, Data: f.Data})
		default:
			p.Files = append(p.Files, &pack.File{Path: f.Name, Data: f.Data})
		}
	}

	if err := p.Validate(); err != nil {
		return p, err
	}

	for name, sfiles := range subpacks {
		if strings.IndexAny(name, "_.") == 0 {
			continue
		}
		var sub *pack.Pack
		var err error
		if filepath.Ext(name) == ".tgz" && len(sfiles) == 1 {
			sub, err = LoadArchive(bytes.NewBuffer(sfiles[0].Data))
		} else {
			trimmed := make([]*BufferedFile, 0, len(sfiles))
			for _, f := range sfiles {
				parts := strings.SplitN(f.Name, "/", 2)
				if len(parts) < 2 {
					continue
				}
				trimmed = append(trimmed, &BufferedFile{Name: parts[1], Data: f.Data})
			}
			sub, err = LoadFiles(trimmed)
		}
		if err != nil {
			return p, errors.Wrapf(err, "error loading subpack %q in %s", name, p.Name())
		}
		p.Dependencies = append(p.Dependencies, sub)
	}

	return p, nil
}

// LoadValues loads values from a reader that may contain one or more
// concatenated YAML documents; documents are deep-merged in order.
func LoadValues(r io.Reader) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	reader := utilyaml.NewYAMLReader(bufio.NewReader(r))
	for {
		current := map[string]interface{}{}
		raw, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrap(err, "error reading yaml document")
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		if err := yaml.Unmarshal(raw, &current); err != nil {
			return nil, errors.Wrap(err, "cannot unmarshal yaml document")
		}
		values = mergeShallow(values, current)
	}
	return values, nil
}

// mergeShallow recursively merges b over a for the purpose of concatenating
// multiple values.yaml documents. The richer deep-merge semantics for
// values-over-values layering (scalars/arrays replace wholesale) live in
// package values; this helper exists only to combine documents within a
// single file.
func mergeShallow(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if bv, ok := v.(map[string]interface{}); ok {
			if av, ok := out[k].(map[string]interface{}); ok {
				out[k] = mergeShallow(av, bv)
				continue
			}
		}
		out[k] = v
	}
	return out
}
