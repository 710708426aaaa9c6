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

// Package storage persists release revisions behind a pluggable Driver,
// the way the teacher persists helm.sh/helm/v3/pkg/release.Release behind
// storage/driver.Driver — an in-cluster Secret or ConfigMap per revision,
// or an in-memory map for tests.
package storage

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

// ErrReleaseNotFound is returned when no record matches the requested
// namespace/name/revision.
var ErrReleaseNotFound = errors.New("storage: release not found")

// ErrReleaseExists is returned by Create when a record already exists at
// the same namespace/name/revision.
var ErrReleaseExists = errors.New("storage: release already exists")

// Driver is the storage backend contract. Every method is namespace-aware:
// two releases with the same name in different namespaces are distinct.
// The core assumes a driver preserves ordering by revision within a
// name — History and List both rely on it.
type Driver interface {
	Name() string
	Get(namespace, name string, revision int) (*release.Release, error)
	GetLatest(namespace, name string) (*release.Release, error)
	List(namespace, name string, includeSuperseded bool) ([]*release.Release, error)
	History(namespace, name string) ([]*release.Release, error)
	Create(rel *release.Release) error
	Update(rel *release.Release) error
	Delete(namespace, name string, revision int) (*release.Release, error)
	DeleteAll(namespace, name string) ([]*release.Release, error)
}

// Storage is the release-facing entry point wrapping a Driver; it adds the
// revision bookkeeping (computing the next revision number, marking the
// previous Deployed revision Superseded) that every driver would otherwise
// have to reimplement.
type Storage struct {
	driver Driver
}

// Init wraps driver in a Storage.
func Init(driver Driver) *Storage {
	return &Storage{driver: driver}
}

// Get returns one revision of name in namespace.
func (s *Storage) Get(namespace, name string, revision int) (*release.Release, error) {
	return s.driver.Get(namespace, name, revision)
}

// GetLatest returns the highest-revision record for name in namespace,
// regardless of status.
func (s *Storage) GetLatest(namespace, name string) (*release.Release, error) {
	return s.driver.GetLatest(namespace, name)
}

// List returns every revision of name in namespace, newest first. When
// name is empty, every release name in namespace is included. When
// namespace is empty, every namespace is included.
func (s *Storage) List(namespace, name string, includeSuperseded bool) ([]*release.Release, error) {
	return s.driver.List(namespace, name, includeSuperseded)
}

// History returns every revision of name in namespace, newest first.
func (s *Storage) History(namespace, name string) ([]*release.Release, error) {
	records, err := s.driver.History(namespace, name)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Revision > records[j].Revision })
	return records, nil
}

// NextRevision returns the revision number a new record for name in
// namespace should use: one past the highest existing revision, or 1 if
// none exist.
func (s *Storage) NextRevision(namespace, name string) (int, error) {
	latest, err := s.driver.GetLatest(namespace, name)
	if errors.Is(err, ErrReleaseNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.Revision + 1, nil
}

// Create persists a new release record. Callers are expected to have
// already superseded the previous Deployed revision, if any, via
// Supersede.
func (s *Storage) Create(rel *release.Release) error {
	return s.driver.Create(rel)
}

// Update persists changes to an existing release record.
func (s *Storage) Update(rel *release.Release) error {
	return s.driver.Update(rel)
}

// Supersede marks namespace/name's current Deployed revision (if any) as
// Superseded, ahead of installing a new Deployed revision.
func (s *Storage) Supersede(namespace, name string) error {
	latest, err := s.driver.GetLatest(namespace, name)
	if errors.Is(err, ErrReleaseNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if latest.Status != release.StatusDeployed {
		return nil
	}
	latest.Status = release.StatusSuperseded
	return s.driver.Update(latest)
}

// Delete removes one revision and returns the record that was deleted.
func (s *Storage) Delete(namespace, name string, revision int) (*release.Release, error) {
	return s.driver.Delete(namespace, name, revision)
}

// DeleteAll removes every revision of name in namespace.
func (s *Storage) DeleteAll(namespace, name string) ([]*release.Release, error) {
	return s.driver.DeleteAll(namespace, name)
}
