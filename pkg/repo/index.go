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
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// Maintainer is a pack maintainer as recorded in an index entry.
type Maintainer struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

// IndexDependency is a dependency reference as recorded in an index entry,
// mirroring the subset of Pack.yaml dependency fields a consumer needs
// without fetching the full archive.
type IndexDependency struct {
	Name       string   `json:"name" yaml:"name"`
	Version    string   `json:"version" yaml:"version"`
	Repository string   `json:"repository,omitempty" yaml:"repository,omitempty"`
	Condition  string   `json:"condition,omitempty" yaml:"condition,omitempty"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Alias      string   `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// PackEntry describes one pack version within a repository index.
type PackEntry struct {
	Name         string            `json:"name" yaml:"name"`
	Version      string            `json:"version" yaml:"version"`
	AppVersion   string            `json:"appVersion,omitempty" yaml:"appVersion,omitempty"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Home         string            `json:"home,omitempty" yaml:"home,omitempty"`
	Icon         string            `json:"icon,omitempty" yaml:"icon,omitempty"`
	Sources      []string          `json:"sources,omitempty" yaml:"sources,omitempty"`
	Keywords     []string          `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Maintainers  []Maintainer      `json:"maintainers,omitempty" yaml:"maintainers,omitempty"`
	URLs         []string          `json:"urls,omitempty" yaml:"urls,omitempty"`
	Digest       string            `json:"digest,omitempty" yaml:"digest,omitempty"`
	Created      *time.Time        `json:"created,omitempty" yaml:"created,omitempty"`
	Deprecated   bool              `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Dependencies []IndexDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Annotations  map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	APIVersion   string            `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
	Type         string            `json:"type,omitempty" yaml:"type,omitempty"`
}

// DownloadURL returns the primary archive URL for this entry, if any.
func (e *PackEntry) DownloadURL() string {
	if len(e.URLs) == 0 {
		return ""
	}
	return e.URLs[0]
}

// ParsedVersion parses Version as semver, returning nil if malformed.
func (e *PackEntry) ParsedVersion() *semver.Version {
	v, err := semver.NewVersion(e.Version)
	if err != nil {
		return nil
	}
	return v
}

// Index is a Helm-compatible repository index: packs keyed by name, each
// with every available version.
type Index struct {
	APIVersion string                  `json:"apiVersion" yaml:"apiVersion"`
	Generated  time.Time               `json:"generated" yaml:"generated"`
	Entries    map[string][]*PackEntry `json:"entries" yaml:"entries"`
}

// NewIndex returns an empty index with the default API version.
func NewIndex() *Index {
	return &Index{APIVersion: "v1", Entries: map[string][]*PackEntry{}}
}

// ParseIndex parses an index.yaml document.
func ParseIndex(data []byte) (*Index, error) {
	idx := &Index{}
	if err := yaml.Unmarshal(data, idx); err != nil {
		return nil, errors.Wrap(err, "repo: parsing index")
	}
	if idx.APIVersion == "" {
		idx.APIVersion = "v1"
	}
	if idx.Entries == nil {
		idx.Entries = map[string][]*PackEntry{}
	}
	return idx, nil
}

// Get returns every known version of name.
func (idx *Index) Get(name string) []*PackEntry {
	return idx.Entries[name]
}

// GetLatest returns the highest-semver version of name.
func (idx *Index) GetLatest(name string) (*PackEntry, error) {
	versions := idx.Entries[name]
	if len(versions) == 0 {
		return nil, errors.Wrapf(ErrPackNotFound, "%s", name)
	}
	best := versions[0]
	bestVer := best.ParsedVersion()
	for _, e := range versions[1:] {
		v := e.ParsedVersion()
		if versionGreater(v, bestVer, e.Version, best.Version) {
			best, bestVer = e, v
		}
	}
	return best, nil
}

// GetVersion returns the exact version match, if present.
func (idx *Index) GetVersion(name, version string) (*PackEntry, error) {
	for _, e := range idx.Entries[name] {
		if e.Version == version {
			return e, nil
		}
	}
	return nil, errors.Wrapf(ErrVersionNotFound, "%s@%s", name, version)
}

// FindMatching returns every version of name satisfying constraint.
func (idx *Index) FindMatching(name, constraint string) ([]*PackEntry, error) {
	versions, ok := idx.Entries[name]
	if !ok {
		return nil, errors.Wrapf(ErrPackNotFound, "%s", name)
	}
	req, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, errors.Wrapf(err, "repo: invalid version constraint %q", constraint)
	}
	var matching []*PackEntry
	for _, e := range versions {
		v := e.ParsedVersion()
		if v != nil && req.Check(v) {
			matching = append(matching, e)
		}
	}
	return matching, nil
}

// FindBestMatch returns the highest version of name satisfying constraint.
func (idx *Index) FindBestMatch(name, constraint string) (*PackEntry, error) {
	matching, err := idx.FindMatching(name, constraint)
	if err != nil {
		return nil, err
	}
	if len(matching) == 0 {
		available := make([]string, 0, len(idx.Entries[name]))
		for _, e := range idx.Entries[name] {
			available = append(available, e.Version)
		}
		return nil, errors.Wrapf(ErrUnsatisfiable, "%s requires %s, available: %s", name, constraint, strings.Join(available, ", "))
	}
	best := matching[0]
	bestVer := best.ParsedVersion()
	for _, e := range matching[1:] {
		v := e.ParsedVersion()
		if versionGreater(v, bestVer, e.Version, best.Version) {
			best, bestVer = e, v
		}
	}
	return best, nil
}

// Search finds entries whose name, description, or keywords contain query
// (case-insensitive), with exact name matches sorted first.
func (idx *Index) Search(query string) []*PackEntry {
	q := strings.ToLower(query)
	type scored struct {
		exact bool
		entry *PackEntry
	}
	var results []scored
	for name, versions := range idx.Entries {
		latest, err := idx.GetLatest(name)
		if err != nil {
			continue
		}
		nameMatches := strings.Contains(strings.ToLower(name), q)
		descMatches := strings.Contains(strings.ToLower(latest.Description), q)
		keywordMatches := false
		for _, k := range latest.Keywords {
			if strings.Contains(strings.ToLower(k), q) {
				keywordMatches = true
				break
			}
		}
		if nameMatches || descMatches || keywordMatches {
			results = append(results, scored{exact: nameMatches, entry: latest})
		}
		_ = versions
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].exact != results[j].exact {
			return results[i].exact
		}
		return results[i].entry.Name < results[j].entry.Name
	})
	out := make([]*PackEntry, len(results))
	for i, r := range results {
		out[i] = r.entry
	}
	return out
}

// Names lists every pack name in the index.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.Entries))
	for name := range idx.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddEntry appends entry under its own name.
func (idx *Index) AddEntry(entry *PackEntry) {
	if idx.Entries == nil {
		idx.Entries = map[string][]*PackEntry{}
	}
	idx.Entries[entry.Name] = append(idx.Entries[entry.Name], entry)
}

// Merge folds other's entries into idx and refreshes Generated.
func (idx *Index) Merge(other *Index) {
	if idx.Entries == nil {
		idx.Entries = map[string][]*PackEntry{}
	}
	for name, entries := range other.Entries {
		idx.Entries[name] = append(idx.Entries[name], entries...)
	}
	idx.Generated = time.Now()
}

// versionGreater reports whether candidate should replace current as the
// running maximum, falling back to lexicographic comparison of the raw
// version strings when either side fails to parse as semver (unparsed
// always loses to parsed).
func versionGreater(candidate, current *semver.Version, candidateRaw, currentRaw string) bool {
	switch {
	case candidate != nil && current != nil:
		return candidate.GreaterThan(current)
	case candidate != nil:
		return true
	case current != nil:
		return false
	default:
		return candidateRaw > currentRaw
	}
}
