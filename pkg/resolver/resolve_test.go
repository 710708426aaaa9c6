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

package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
	"github.com/alegeay/Sherpack-sub001/pkg/repo"
)

func TestResolveSimpleChain(t *testing.T) {
	catalog := map[string]*repo.PackEntry{
		"nginx": {Name: "nginx", Version: "15.0.0", Digest: "sha256:nginx15",
			Dependencies: []repo.IndexDependency{{Name: "common", Version: "^2.0.0", Repository: "https://charts.bitnami.com/bitnami"}}},
		"common": {Name: "common", Version: "2.1.0", Digest: "sha256:common21"},
	}
	fetch := func(_ context.Context, _, name, _ string) (*repo.PackEntry, error) {
		return catalog[name], nil
	}

	r := New(fetch)
	deps := []*pack.Dependency{{Name: "nginx", Version: "^15.0.0", Repository: "https://charts.bitnami.com/bitnami"}}
	g, err := r.Resolve(context.Background(), deps)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	nginx, ok := g.Get("nginx")
	require.True(t, ok)
	assert.Equal(t, "15.0.0", nginx.Version)
	assert.Equal(t, []string{"common"}, nginx.Dependencies)

	common, ok := g.Get("common")
	require.True(t, ok)
	assert.Equal(t, "2.1.0", common.Version)
}

func TestResolveDetectsDiamondConflict(t *testing.T) {
	catalog := map[string]*repo.PackEntry{
		"a": {Name: "a", Version: "1.0.0", Dependencies: []repo.IndexDependency{{Name: "shared", Version: "1.0.0"}}},
		"b": {Name: "b", Version: "1.0.0", Dependencies: []repo.IndexDependency{{Name: "shared", Version: "2.0.0"}}},
	}
	shared := map[string]string{"1.0.0": "1.0.0", "2.0.0": "2.0.0"}
	fetch := func(_ context.Context, _, name, constraint string) (*repo.PackEntry, error) {
		if name == "shared" {
			return &repo.PackEntry{Name: "shared", Version: shared[constraint]}, nil
		}
		return catalog[name], nil
	}

	r := New(fetch)
	deps := []*pack.Dependency{{Name: "a", Version: "1.0.0"}, {Name: "b", Version: "1.0.0"}}
	_, err := r.Resolve(context.Background(), deps)
	require.Error(t, err)
	var diamond *DiamondConflictError
	assert.ErrorAs(t, err, &diamond)
	assert.Equal(t, "shared", diamond.Name)
}

func TestResolveDetectsCircularDependency(t *testing.T) {
	catalog := map[string]*repo.PackEntry{
		"a": {Name: "a", Version: "1.0.0", Dependencies: []repo.IndexDependency{{Name: "b", Version: "1.0.0"}}},
		"b": {Name: "b", Version: "1.0.0", Dependencies: []repo.IndexDependency{{Name: "a", Version: "1.0.0"}}},
	}
	fetch := func(_ context.Context, _, name, _ string) (*repo.PackEntry, error) {
		return catalog[name], nil
	}

	r := New(fetch)
	deps := []*pack.Dependency{{Name: "a", Version: "1.0.0"}}
	_, err := r.Resolve(context.Background(), deps)
	require.Error(t, err)
	var circular *CircularDependencyError
	assert.ErrorAs(t, err, &circular)
}

func TestResolveAliasAllowsSameNameTwice(t *testing.T) {
	catalog := map[string]*repo.PackEntry{
		"mysql": {Name: "mysql", Version: "9.0.0"},
	}
	fetch := func(_ context.Context, _, name, _ string) (*repo.PackEntry, error) {
		return catalog[name], nil
	}

	r := New(fetch)
	deps := []*pack.Dependency{
		{Name: "mysql", Version: "9.0.0", Alias: "primary"},
		{Name: "mysql", Version: "9.0.0", Alias: "replica"},
	}
	g, err := r.Resolve(context.Background(), deps)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	_, ok := g.Get("primary")
	assert.True(t, ok)
	_, ok = g.Get("replica")
	assert.True(t, ok)
}

func TestGraphToLockFile(t *testing.T) {
	catalog := map[string]*repo.PackEntry{
		"nginx": {Name: "nginx", Version: "15.0.0", Digest: "sha256:nginx15"},
	}
	fetch := func(_ context.Context, _, name, _ string) (*repo.PackEntry, error) {
		return catalog[name], nil
	}
	r := New(fetch)
	deps := []*pack.Dependency{{Name: "nginx", Version: "^15.0.0", Repository: "https://charts.bitnami.com/bitnami"}}
	g, err := r.Resolve(context.Background(), deps)
	require.NoError(t, err)

	lock := g.ToLockFile([]byte("Pack.yaml contents"))
	require.Len(t, lock.Dependencies, 1)
	assert.Equal(t, "15.0.0", lock.Dependencies[0].Version)
	assert.Equal(t, "sha256:nginx15", lock.Dependencies[0].Digest)
}

func TestResolveFromLockRebuildsGraphOffline(t *testing.T) {
	lock := NewLockFile([]byte("test"))
	lock.Add(LockedDependency{Name: "nginx", Version: "15.0.0", Dependencies: []string{"common"}})
	lock.Add(LockedDependency{Name: "common", Version: "2.1.0"})

	g := ResolveFromLock(lock)
	assert.Equal(t, 2, g.Len())
	nginx, ok := g.Get("nginx")
	require.True(t, ok)
	assert.Equal(t, []string{"common"}, nginx.Dependencies)
}
