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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

func TestDiffRevisionsDetectsAddition(t *testing.T) {
	old := &release.Release{Revision: 1, Manifest: "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm1"}
	new := &release.Release{Revision: 2, Manifest: old.Manifest + "\n---\napiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm2"}

	result := NewDiffEngine().DiffRevisions(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeAdded, result.Changes[0].ChangeType)
	assert.Equal(t, "cm2", result.Changes[0].Name)
}

func TestDiffRevisionsDetectsRemoval(t *testing.T) {
	old := &release.Release{Revision: 1, Manifest: "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm1\n---\napiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm2"}
	new := &release.Release{Revision: 2, Manifest: "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm1"}

	result := NewDiffEngine().DiffRevisions(old, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeRemoved, result.Changes[0].ChangeType)
	assert.Equal(t, "cm2", result.Changes[0].Name)
}

func TestDiffRevisionsNilOldTreatsEverythingAsAdded(t *testing.T) {
	new := &release.Release{Revision: 1, Manifest: "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm1"}
	result := NewDiffEngine().DiffRevisions(nil, new)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeAdded, result.Changes[0].ChangeType)
}

func TestDiffResultSummary(t *testing.T) {
	result := DiffResult{Changes: []ResourceChange{
		{ChangeType: ChangeAdded},
		{ChangeType: ChangeModified},
	}}
	summary := result.Summary()
	assert.Contains(t, summary, "1 added")
	assert.Contains(t, summary, "1 modified")
}

func TestDiffResultSummaryNoChanges(t *testing.T) {
	assert.Equal(t, "No changes", DiffResult{}.Summary())
}

type fakeLiveReader map[string]string

func (f fakeLiveReader) Read(kind, namespace, name string) (string, bool, error) {
	content, ok := f[kind+"/"+name]
	return content, ok, nil
}

func TestDiffAgainstLiveFlagsDrift(t *testing.T) {
	rel := &release.Release{Revision: 1, Manifest: "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm1\ndata:\n  k: v1"}
	live := fakeLiveReader{"ConfigMap/cm1": "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm1\ndata:\n  k: v2"}

	result, err := NewDiffEngine().DiffAgainstLive(rel, live)
	require.NoError(t, err)
	assert.True(t, result.HasDrift)
	require.Len(t, result.DriftChanges(), 1)
}

func TestDiffAgainstLiveNoDriftWhenMatching(t *testing.T) {
	manifest := "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cm1"
	rel := &release.Release{Revision: 1, Manifest: manifest}
	live := fakeLiveReader{"ConfigMap/cm1": manifest}

	result, err := NewDiffEngine().DiffAgainstLive(rel, live)
	require.NoError(t, err)
	assert.False(t, result.HasDrift)
}
