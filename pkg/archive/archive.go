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
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

// manifestName is the archive member holding the checksum manifest, written
// alongside Pack.yaml at the root of every archive.
const manifestName = "MANIFEST"

// Flatten walks p and its Dependencies into a flat path->content map
// rooted at the pack's own directory, e.g. "charts/<dep>/templates/x.yaml"
// for a subpack's template. This is the shared representation Save (tar
// writer) and GenerateManifest (checksum table) both operate over.
func Flatten(p *pack.Pack) (map[string][]byte, error) {
	out := map[string][]byte{}
	if err := flattenInto(p, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(p *pack.Pack, prefix string, out map[string][]byte) error {
	join := func(name string) string {
		if prefix == "" {
			return name
		}
		return path.Join(prefix, name)
	}

	if p.RawMetadata == nil {
		return errors.Errorf("pack %q has no Pack.yaml content to archive", p.Name())
	}
	out[join("Pack.yaml")] = p.RawMetadata

	if len(p.Values) > 0 {
		b, err := yaml.Marshal(p.Values)
		if err != nil {
			return errors.Wrapf(err, "marshaling values.yaml for %q", p.Name())
		}
		out[join("values.yaml")] = b
	}
	if len(p.Schema) > 0 {
		out[join("values.schema.yaml")] = p.Schema
	}
	for _, f := range p.Templates {
		out[join(f.Path)] = f.Data
	}
	for _, f := range p.CRDs {
		out[join(f.Path)] = f.Data
	}
	for _, f := range p.Files {
		out[join(f.Path)] = f.Data
	}
	for _, dep := range p.Dependencies {
		if err := flattenInto(dep, join(path.Join("charts", dep.Name())), out); err != nil {
			return err
		}
	}
	return nil
}

// Save writes p as a deterministic tar+gzip archive named
// "<name>-<version>.tgz" inside outDir, embedding a MANIFEST computed over
// every member. Returns the archive path (outDir joined with the file name).
func Save(p *pack.Pack, outDir string) (string, error) {
	fi, err := os.Stat(outDir)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return "", errors.Errorf("archive: %s is not a directory", outDir)
	}
	if err := p.Validate(); err != nil {
		return "", err
	}

	contents, err := Flatten(p)
	if err != nil {
		return "", err
	}
	manifest := GenerateManifest(p.Name(), p.Metadata.Version, contents)
	contents[manifestName] = []byte(manifest.String())

	filename := filepath.Join(outDir, fmt.Sprintf("%s-%s.tgz", p.Name(), p.Metadata.Version))
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := writeTarGz(f, p.Name(), contents); err != nil {
		os.Remove(filename)
		return "", err
	}
	return filename, nil
}

// archiveOrder returns paths in the fixed member order archives must use
// for reproducibility: MANIFEST, then Pack.yaml, values.yaml, the values
// schema (if any), then everything else (crds/, files/, templates/,
// charts/...) in lexicographic order.
func archiveOrder(contents map[string][]byte) []string {
	leading := []string{manifestName, "Pack.yaml", "values.yaml", "values.schema.yaml", "values.schema.json"}
	seen := make(map[string]bool, len(contents))
	ordered := make([]string, 0, len(contents))
	for _, p := range leading {
		if _, ok := contents[p]; ok {
			ordered = append(ordered, p)
			seen[p] = true
		}
	}

	rest := make([]string, 0, len(contents))
	for p := range contents {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// writeTarGz streams contents into w as gzip-compressed tar, every member
// name prefixed with "<rootName>/", in archiveOrder, with every header
// field that could vary between builds pinned (mtime=Unix epoch, uid/gid=0,
// mode=0o644, regular files only) so two builds of identical pack content
// produce byte-identical archives.
func writeTarGz(w io.Writer, rootName string, contents map[string][]byte) error {
	gz, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
	if err != nil {
		return err
	}
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, p := range archiveOrder(contents) {
		data := contents[p]
		hdr := &tar.Header{
			Name:     path.Join(rootName, p),
			Mode:     0o644,
			Size:     int64(len(data)),
			Typeflag: tar.TypeReg,
			ModTime:  time.Unix(0, 0),
			Uid:      0,
			Gid:      0,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return errors.Wrapf(err, "writing tar header for %s", p)
		}
		if _, err := tw.Write(data); err != nil {
			return errors.Wrapf(err, "writing tar content for %s", p)
		}
	}
	return nil
}

// Verify checks an already-loaded archive's contents against its embedded
// MANIFEST. contents must include the MANIFEST entry itself.
func Verify(contents map[string][]byte) (*VerificationResult, error) {
	raw, ok := contents[manifestName]
	if !ok {
		return nil, errors.New("archive: no MANIFEST present")
	}
	manifest, err := ParseManifest(string(raw))
	if err != nil {
		return nil, errors.Wrap(err, "archive: invalid MANIFEST")
	}
	return manifest.VerifyFiles(func(p string) ([]byte, error) {
		b, ok := contents[p]
		if !ok {
			return nil, errors.Errorf("%s: not found", p)
		}
		return b, nil
	}), nil
}
