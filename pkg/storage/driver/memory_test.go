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

package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
	"github.com/alegeay/Sherpack-sub001/pkg/storage"
)

func fixtureReleases() []*release.Release {
	return []*release.Release{
		{Name: "rls-a", Namespace: "default", Revision: 1, Status: release.StatusSuperseded},
		{Name: "rls-a", Namespace: "default", Revision: 2, Status: release.StatusSuperseded},
		{Name: "rls-a", Namespace: "default", Revision: 3, Status: release.StatusDeployed},
		{Name: "rls-b", Namespace: "default", Revision: 1, Status: release.StatusDeployed},
		{Name: "rls-a", Namespace: "other", Revision: 1, Status: release.StatusDeployed},
	}
}

func newFixtureMemory(t *testing.T) *Memory {
	t.Helper()
	mem := NewMemory()
	for _, rel := range fixtureReleases() {
		require.NoError(t, mem.Create(rel))
	}
	return mem
}

func TestMemoryName(t *testing.T) {
	assert.Equal(t, MemoryDriverName, NewMemory().Name())
}

func TestMemoryCreateRejectsDuplicate(t *testing.T) {
	mem := newFixtureMemory(t)
	err := mem.Create(&release.Release{Name: "rls-a", Namespace: "default", Revision: 3})
	assert.ErrorIs(t, err, storage.ErrReleaseExists)
}

func TestMemoryGet(t *testing.T) {
	mem := newFixtureMemory(t)
	rel, err := mem.Get("default", "rls-a", 2)
	require.NoError(t, err)
	assert.Equal(t, release.StatusSuperseded, rel.Status)

	_, err = mem.Get("default", "rls-a", 99)
	assert.ErrorIs(t, err, storage.ErrReleaseNotFound)
}

func TestMemoryGetLatest(t *testing.T) {
	mem := newFixtureMemory(t)
	rel, err := mem.GetLatest("default", "rls-a")
	require.NoError(t, err)
	assert.Equal(t, 3, rel.Revision)
}

func TestMemoryListExcludesSupersededByDefault(t *testing.T) {
	mem := newFixtureMemory(t)
	out, err := mem.List("default", "rls-a", false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].Revision)
}

func TestMemoryListIncludesSupersededWhenAsked(t *testing.T) {
	mem := newFixtureMemory(t)
	out, err := mem.List("default", "rls-a", true)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestMemoryListIsolatesByNamespace(t *testing.T) {
	mem := newFixtureMemory(t)
	out, err := mem.List("other", "rls-a", true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "other", out[0].Namespace)
}

func TestMemoryHistoryNewestFirst(t *testing.T) {
	mem := newFixtureMemory(t)
	out, err := mem.History("default", "rls-a")
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{out[0].Revision, out[1].Revision, out[2].Revision})
}

func TestMemoryUpdate(t *testing.T) {
	mem := newFixtureMemory(t)
	rel, err := mem.Get("default", "rls-a", 3)
	require.NoError(t, err)
	rel.Status = release.StatusFailed
	require.NoError(t, mem.Update(rel))

	got, err := mem.Get("default", "rls-a", 3)
	require.NoError(t, err)
	assert.Equal(t, release.StatusFailed, got.Status)
}

func TestMemoryUpdateMissingFails(t *testing.T) {
	mem := newFixtureMemory(t)
	err := mem.Update(&release.Release{Name: "ghost", Namespace: "default", Revision: 1})
	assert.ErrorIs(t, err, storage.ErrReleaseNotFound)
}

func TestMemoryDelete(t *testing.T) {
	mem := newFixtureMemory(t)
	rel, err := mem.Delete("default", "rls-b", 1)
	require.NoError(t, err)
	assert.Equal(t, "rls-b", rel.Name)

	_, err = mem.Get("default", "rls-b", 1)
	assert.ErrorIs(t, err, storage.ErrReleaseNotFound)
}

func TestMemoryDeleteAll(t *testing.T) {
	mem := newFixtureMemory(t)
	deleted, err := mem.DeleteAll("default", "rls-a")
	require.NoError(t, err)
	assert.Len(t, deleted, 3)

	out, err := mem.History("default", "rls-a")
	require.NoError(t, err)
	assert.Empty(t, out)
}
