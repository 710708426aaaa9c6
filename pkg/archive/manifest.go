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

// Package archive builds and verifies the deterministic tar+gzip packages
// a pack is distributed as, including the MANIFEST file every archive
// carries for integrity verification independent of the outer gzip/tar
// container.
package archive

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ManifestVersion is the current MANIFEST format version this package
// writes and the minimum it accepts on read.
const ManifestVersion = 1

// FileEntry is one checksummed file recorded in a Manifest.
type FileEntry struct {
	Path   string
	SHA256 string
}

// Manifest is the parsed form of the MANIFEST file embedded in every
// archive: pack identity, a per-file SHA256 checksum table (sorted by
// path), and an overall digest computed over that table.
type Manifest struct {
	Version     int
	Name        string
	PackVersion string
	Created     time.Time
	Files       []FileEntry
	Digest      string
}

// MismatchedFile is a file whose content no longer matches its recorded
// checksum.
type MismatchedFile struct {
	Path     string
	Expected string
	Actual   string
}

// VerificationResult is the outcome of checking an archive's contents
// against its Manifest.
type VerificationResult struct {
	Valid      bool
	Mismatched []MismatchedFile
	Missing    []string
}

// GenerateManifest builds a Manifest from a fully-materialized set of
// archive member paths and their raw contents.
func GenerateManifest(name, packVersion string, contents map[string][]byte) *Manifest {
	paths := make([]string, 0, len(contents))
	for p := range contents {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]FileEntry, 0, len(paths))
	for _, p := range paths {
		files = append(files, FileEntry{Path: p, SHA256: hashBytes(contents[p])})
	}

	return &Manifest{
		Version:     ManifestVersion,
		Name:        name,
		PackVersion: packVersion,
		Created:     time.Now().UTC(),
		Files:       files,
		Digest:      calculateDigest(files),
	}
}

// String renders the manifest in its on-disk text form: a header section,
// a [files] section of "path sha256:HASH" lines, and a [digest] section.
func (m *Manifest) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "sherpack-manifest-version: %d\n", m.Version)
	fmt.Fprintf(&sb, "name: %s\n", m.Name)
	fmt.Fprintf(&sb, "version: %s\n", m.PackVersion)
	fmt.Fprintf(&sb, "created: %s\n\n", m.Created.Format(time.RFC3339))
	sb.WriteString("[files]\n")
	for _, f := range m.Files {
		fmt.Fprintf(&sb, "%s sha256:%s\n", f.Path, f.SHA256)
	}
	sb.WriteString("\n[digest]\n")
	fmt.Fprintf(&sb, "sha256:%s", m.Digest)
	return sb.String()
}

// ParseManifest parses the text form written by Manifest.String.
func ParseManifest(content string) (*Manifest, error) {
	var (
		version     int
		versionSet  bool
		name        string
		packVersion string
		created     time.Time
		createdSet  bool
		files       []FileEntry
		digest      string
	)

	inFiles, inDigest := false, false
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch line {
		case "[files]":
			inFiles, inDigest = true, false
			continue
		case "[digest]":
			inFiles, inDigest = false, true
			continue
		}
		switch {
		case inDigest:
			if h, ok := strings.CutPrefix(line, "sha256:"); ok {
				digest = h
			}
		case inFiles:
			idx := strings.LastIndex(line, " ")
			if idx < 0 {
				continue
			}
			path, hashPart := line[:idx], line[idx+1:]
			if h, ok := strings.CutPrefix(hashPart, "sha256:"); ok {
				files = append(files, FileEntry{Path: path, SHA256: h})
			}
		default:
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			switch key {
			case "sherpack-manifest-version":
				if v, err := strconv.Atoi(value); err == nil {
					version, versionSet = v, true
				}
			case "name":
				name = value
			case "version":
				packVersion = value
			case "created":
				if t, err := time.Parse(time.RFC3339, value); err == nil {
					created, createdSet = t, true
				}
			}
		}
	}

	if !versionSet {
		return nil, errors.New("manifest: missing sherpack-manifest-version")
	}
	if version < ManifestVersion {
		return nil, errors.Errorf("manifest: unsupported sherpack-manifest-version %d", version)
	}
	if name == "" {
		return nil, errors.New("manifest: missing name")
	}
	if packVersion == "" {
		return nil, errors.New("manifest: missing or invalid version")
	}
	if !createdSet {
		return nil, errors.New("manifest: missing or invalid created timestamp")
	}
	if digest == "" {
		return nil, errors.New("manifest: missing digest")
	}

	return &Manifest{
		Version:     version,
		Name:        name,
		PackVersion: packVersion,
		Created:     created,
		Files:       files,
		Digest:      digest,
	}, nil
}

// VerifyFiles checks every recorded file against readFile and recomputes
// the overall digest, reporting mismatches and missing files.
func (m *Manifest) VerifyFiles(readFile func(path string) ([]byte, error)) *VerificationResult {
	result := &VerificationResult{Valid: true}
	for _, entry := range m.Files {
		content, err := readFile(entry.Path)
		if err != nil {
			result.Valid = false
			result.Missing = append(result.Missing, entry.Path)
			continue
		}
		actual := hashBytes(content)
		if actual != entry.SHA256 {
			result.Valid = false
			result.Mismatched = append(result.Mismatched, MismatchedFile{
				Path: entry.Path, Expected: entry.SHA256, Actual: actual,
			})
		}
	}
	if calculateDigest(m.Files) != m.Digest {
		result.Valid = false
	}
	return result
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

func calculateDigest(files []FileEntry) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.Path))
		h.Write([]byte(":"))
		h.Write([]byte(f.SHA256))
		h.Write([]byte("\n"))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
