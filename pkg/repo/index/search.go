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

package index

import (
	"context"

	"github.com/pkg/errors"

	"github.com/alegeay/Sherpack-sub001/pkg/repo"
)

// MultiIndex is the resolver/CLI-facing entry point across every
// configured repository: search answers from the cache alone, and
// RefreshAll is the only path that talks to the network.
type MultiIndex struct {
	cache    *Cache
	backends map[string]repo.Backend
}

// NewMultiIndex pairs a cache with the set of named backends it indexes.
func NewMultiIndex(cache *Cache, backends map[string]repo.Backend) *MultiIndex {
	return &MultiIndex{cache: cache, backends: backends}
}

// Search answers from the cache only; callers must RefreshAll first (or
// periodically) to keep results current. This is the "consulted before
// any network call" search path.
func (m *MultiIndex) Search(ctx context.Context, query string) ([]*CachedPack, error) {
	return m.cache.Search(ctx, query)
}

// Get returns cached versions of name, optionally restricted to one
// repository.
func (m *MultiIndex) Get(ctx context.Context, repoName, name string) ([]*CachedPack, error) {
	return m.cache.Get(ctx, repoName, name)
}

// RefreshAll re-fetches every backend's index and repopulates the cache.
// Backends with no listable index (OCI registries) are skipped; their
// packs are reached directly through Backend.GetVersion/Download instead
// of through search.
func (m *MultiIndex) RefreshAll(ctx context.Context) error {
	var errs []error
	for name, b := range m.backends {
		if err := b.Refresh(ctx); err != nil {
			errs = append(errs, errors.Wrapf(err, "refreshing %s", name))
			continue
		}
		entries, err := b.List(ctx)
		if errors.Is(err, repo.ErrUnsupported) {
			continue
		}
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "listing %s", name))
			continue
		}
		idx := repo.NewIndex()
		for _, e := range entries {
			idx.AddEntry(e)
		}
		if err := m.cache.Put(ctx, name, idx); err != nil {
			errs = append(errs, errors.Wrapf(err, "caching %s", name))
		}
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return errors.New(msg)
}
