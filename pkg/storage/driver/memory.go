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

// Package driver holds the concrete storage.Driver implementations: an
// in-memory map for tests and one-shot tooling (operations like `template`
// or `lint` that never touch a cluster), and a Kubernetes Secret-backed
// driver for real deployments.
package driver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
	"github.com/alegeay/Sherpack-sub001/pkg/storage"
)

// MemoryDriverName is the name Memory reports via Name().
const MemoryDriverName = "Memory"

// Memory is an in-process, non-persistent Driver. Useful for dry-run
// operations and tests; state vanishes when the process exits.
type Memory struct {
	mu       sync.RWMutex
	releases map[string]*release.Release
}

// NewMemory constructs an empty Memory driver.
func NewMemory() *Memory {
	return &Memory{releases: map[string]*release.Release{}}
}

// Name returns MemoryDriverName.
func (m *Memory) Name() string { return MemoryDriverName }

func memKey(namespace, name string, revision int) string {
	return fmt.Sprintf("%s/%s.v%d", namespace, name, revision)
}

// Get implements storage.Driver.
func (m *Memory) Get(namespace, name string, revision int) (*release.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rel, ok := m.releases[memKey(namespace, name, revision)]
	if !ok {
		return nil, storage.ErrReleaseNotFound
	}
	return rel, nil
}

// GetLatest implements storage.Driver.
func (m *Memory) GetLatest(namespace, name string) (*release.Release, error) {
	all, err := m.History(namespace, name)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, storage.ErrReleaseNotFound
	}
	return all[0], nil
}

// List implements storage.Driver.
func (m *Memory) List(namespace, name string, includeSuperseded bool) ([]*release.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*release.Release
	for _, rel := range m.releases {
		if namespace != "" && rel.Namespace != namespace {
			continue
		}
		if name != "" && rel.Name != name {
			continue
		}
		if !includeSuperseded && rel.Status == release.StatusSuperseded {
			continue
		}
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Revision > out[j].Revision
	})
	return out, nil
}

// History implements storage.Driver.
func (m *Memory) History(namespace, name string) ([]*release.Release, error) {
	return m.List(namespace, name, true)
}

// Create implements storage.Driver.
func (m *Memory) Create(rel *release.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(rel.Namespace, rel.Name, rel.Revision)
	if _, exists := m.releases[key]; exists {
		return errors.Wrapf(storage.ErrReleaseExists, "%s/%s.v%d", rel.Namespace, rel.Name, rel.Revision)
	}
	m.releases[key] = rel
	return nil
}

// Update implements storage.Driver.
func (m *Memory) Update(rel *release.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(rel.Namespace, rel.Name, rel.Revision)
	if _, exists := m.releases[key]; !exists {
		return errors.Wrapf(storage.ErrReleaseNotFound, "%s/%s.v%d", rel.Namespace, rel.Name, rel.Revision)
	}
	m.releases[key] = rel
	return nil
}

// Delete implements storage.Driver.
func (m *Memory) Delete(namespace, name string, revision int) (*release.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(namespace, name, revision)
	rel, ok := m.releases[key]
	if !ok {
		return nil, storage.ErrReleaseNotFound
	}
	delete(m.releases, key)
	return rel, nil
}

// DeleteAll implements storage.Driver.
func (m *Memory) DeleteAll(namespace, name string) ([]*release.Release, error) {
	all, err := m.History(namespace, name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rel := range all {
		delete(m.releases, memKey(rel.Namespace, rel.Name, rel.Revision))
	}
	return all, nil
}
