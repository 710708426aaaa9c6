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

package storage

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

// memoryDriver is a minimal in-package Driver stub so storage_test.go
// doesn't need to import pkg/storage/driver (which itself imports
// pkg/storage) and create a cycle.
type memoryDriver struct {
	records map[string]*release.Release
}

func newMemoryDriver() *memoryDriver { return &memoryDriver{records: map[string]*release.Release{}} }

func (m *memoryDriver) key(ns, name string, rev int) string {
	return ns + "/" + name + "#" + strconv.Itoa(rev)
}
func (m *memoryDriver) Name() string { return "stub" }
func (m *memoryDriver) Get(ns, name string, rev int) (*release.Release, error) {
	rel, ok := m.records[m.key(ns, name, rev)]
	if !ok {
		return nil, ErrReleaseNotFound
	}
	return rel, nil
}
func (m *memoryDriver) GetLatest(ns, name string) (*release.Release, error) {
	var latest *release.Release
	for _, rel := range m.records {
		if rel.Namespace != ns || rel.Name != name {
			continue
		}
		if latest == nil || rel.Revision > latest.Revision {
			latest = rel
		}
	}
	if latest == nil {
		return nil, ErrReleaseNotFound
	}
	return latest, nil
}
func (m *memoryDriver) List(ns, name string, includeSuperseded bool) ([]*release.Release, error) {
	return m.History(ns, name)
}
func (m *memoryDriver) History(ns, name string) ([]*release.Release, error) {
	var out []*release.Release
	for _, rel := range m.records {
		if rel.Namespace == ns && rel.Name == name {
			out = append(out, rel)
		}
	}
	return out, nil
}
func (m *memoryDriver) Create(rel *release.Release) error {
	m.records[m.key(rel.Namespace, rel.Name, rel.Revision)] = rel
	return nil
}
func (m *memoryDriver) Update(rel *release.Release) error {
	m.records[m.key(rel.Namespace, rel.Name, rel.Revision)] = rel
	return nil
}
func (m *memoryDriver) Delete(ns, name string, rev int) (*release.Release, error) {
	key := m.key(ns, name, rev)
	rel, ok := m.records[key]
	if !ok {
		return nil, ErrReleaseNotFound
	}
	delete(m.records, key)
	return rel, nil
}
func (m *memoryDriver) DeleteAll(ns, name string) ([]*release.Release, error) {
	all, _ := m.History(ns, name)
	for _, rel := range all {
		delete(m.records, m.key(ns, name, rel.Revision))
	}
	return all, nil
}

func TestStorageNextRevisionStartsAtOne(t *testing.T) {
	s := Init(newMemoryDriver())
	rev, err := s.NextRevision("default", "myapp")
	require.NoError(t, err)
	assert.Equal(t, 1, rev)
}

func TestStorageNextRevisionIncrements(t *testing.T) {
	s := Init(newMemoryDriver())
	require.NoError(t, s.Create(&release.Release{Name: "myapp", Namespace: "default", Revision: 1, Status: release.StatusDeployed}))

	rev, err := s.NextRevision("default", "myapp")
	require.NoError(t, err)
	assert.Equal(t, 2, rev)
}

func TestStorageSupersede(t *testing.T) {
	s := Init(newMemoryDriver())
	require.NoError(t, s.Create(&release.Release{Name: "myapp", Namespace: "default", Revision: 1, Status: release.StatusDeployed}))

	require.NoError(t, s.Supersede("default", "myapp"))

	rel, err := s.Get("default", "myapp", 1)
	require.NoError(t, err)
	assert.Equal(t, release.StatusSuperseded, rel.Status)
}

func TestStorageSupersedeNoOpWhenNoneDeployed(t *testing.T) {
	s := Init(newMemoryDriver())
	assert.NoError(t, s.Supersede("default", "myapp"))
}
