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

package lifecycle

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

// ChangeType classifies a single resource's change between two manifests.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ResourceChange describes how one Kubernetes resource differs between the
// old and new side of a diff.
type ResourceChange struct {
	Kind       string
	Name       string
	Namespace  string
	ChangeType ChangeType
	Diff       string
	IsDrift    bool
}

// DisplayName renders a change's resource identity for human-facing output.
func (c ResourceChange) DisplayName() string {
	if c.Namespace != "" {
		return fmt.Sprintf("%s/%s/%s", c.Namespace, c.Kind, c.Name)
	}
	return fmt.Sprintf("%s/%s", c.Kind, c.Name)
}

// DiffResult is the outcome of comparing two manifests, or a manifest
// against live cluster state.
type DiffResult struct {
	OldRevision int
	NewRevision int
	Changes     []ResourceChange
	HasDrift    bool
}

func (r DiffResult) HasChanges() bool { return len(r.Changes) > 0 }

func (r DiffResult) ChangesByType(t ChangeType) []ResourceChange {
	var out []ResourceChange
	for _, c := range r.Changes {
		if c.ChangeType == t {
			out = append(out, c)
		}
	}
	return out
}

func (r DiffResult) DriftChanges() []ResourceChange {
	var out []ResourceChange
	for _, c := range r.Changes {
		if c.IsDrift {
			out = append(out, c)
		}
	}
	return out
}

// Summary renders a one-line human-readable change count, e.g.
// "2 added, 1 modified".
func (r DiffResult) Summary() string {
	var parts []string
	if n := len(r.ChangesByType(ChangeAdded)); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(r.ChangesByType(ChangeModified)); n > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", n))
	}
	if n := len(r.ChangesByType(ChangeRemoved)); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(r.DriftChanges()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d drifted", n))
	}
	if len(parts) == 0 {
		return "No changes"
	}
	return strings.Join(parts, ", ")
}

// DiffEngine compares two rendered manifests, or a stored release against
// the live cluster, and reports resource-level adds/modifies/removes.
type DiffEngine struct {
	ContextLines int
}

func NewDiffEngine() *DiffEngine { return &DiffEngine{ContextLines: 3} }

func (e *DiffEngine) WithContext(lines int) *DiffEngine {
	e.ContextLines = lines
	return e
}

type resourceKey struct {
	kind, name, namespace string
}

func parseManifestResources(manifest string) map[resourceKey]string {
	out := map[resourceKey]string{}
	for _, doc := range strings.Split(manifest, "---") {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		r, ok := parseResource(doc)
		if !ok {
			continue
		}
		out[resourceKey{kind: r.Kind, name: r.Name, namespace: r.Namespace}] = doc
	}
	return out
}

// DiffRevisions compares the manifests of two stored releases (e.g. the
// current and previous revision) and reports additions, modifications, and
// removals between them.
func (e *DiffEngine) DiffRevisions(old, new *release.Release) DiffResult {
	oldResources := map[resourceKey]string{}
	if old != nil {
		oldResources = parseManifestResources(old.Manifest)
	}
	newResources := parseManifestResources(new.Manifest)

	var changes []ResourceChange
	for key, newContent := range newResources {
		oldContent, existed := oldResources[key]
		switch {
		case !existed:
			changes = append(changes, ResourceChange{
				Kind: key.kind, Name: key.name, Namespace: key.namespace,
				ChangeType: ChangeAdded, Diff: e.unifiedDiff("", newContent),
			})
		case oldContent != newContent:
			changes = append(changes, ResourceChange{
				Kind: key.kind, Name: key.name, Namespace: key.namespace,
				ChangeType: ChangeModified, Diff: e.unifiedDiff(oldContent, newContent),
			})
		}
	}
	for key, oldContent := range oldResources {
		if _, stillPresent := newResources[key]; !stillPresent {
			changes = append(changes, ResourceChange{
				Kind: key.kind, Name: key.name, Namespace: key.namespace,
				ChangeType: ChangeRemoved, Diff: e.unifiedDiff(oldContent, ""),
			})
		}
	}

	oldRev := 0
	if old != nil {
		oldRev = old.Revision
	}
	return DiffResult{OldRevision: oldRev, NewRevision: new.Revision, Changes: changes}
}

// DiffAgainstLive compares a release's stored manifest against the live
// state of the cluster, as read through the given Reader, flagging
// differences as drift.
func (e *DiffEngine) DiffAgainstLive(rel *release.Release, live LiveReader) (DiffResult, error) {
	storedResources := parseManifestResources(rel.Manifest)

	var changes []ResourceChange
	for key, storedContent := range storedResources {
		liveContent, found, err := live.Read(key.kind, key.namespace, key.name)
		if err != nil {
			return DiffResult{}, err
		}
		if !found {
			changes = append(changes, ResourceChange{
				Kind: key.kind, Name: key.name, Namespace: key.namespace,
				ChangeType: ChangeRemoved, Diff: e.unifiedDiff(storedContent, ""), IsDrift: true,
			})
			continue
		}
		if liveContent != storedContent {
			changes = append(changes, ResourceChange{
				Kind: key.kind, Name: key.name, Namespace: key.namespace,
				ChangeType: ChangeModified, Diff: e.unifiedDiff(storedContent, liveContent), IsDrift: true,
			})
		}
	}

	return DiffResult{OldRevision: rel.Revision, NewRevision: rel.Revision, Changes: changes, HasDrift: len(changes) > 0}, nil
}

// LiveReader reads the current state of a single resource from the cluster,
// returning found=false when it does not exist.
type LiveReader interface {
	Read(kind, namespace, name string) (content string, found bool, err error)
}

func (e *DiffEngine) unifiedDiff(old, new string) string {
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: "old",
		ToFile:   "new",
		Context:  e.ContextLines,
	}
	text, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return ""
	}
	return text
}
