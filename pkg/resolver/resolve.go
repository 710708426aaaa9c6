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

	"github.com/pkg/errors"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
	"github.com/alegeay/Sherpack-sub001/pkg/repo"
)

// Fetcher resolves one dependency constraint against its declared
// repository, returning the best matching index entry. Repository is a
// URL or a configured repository alias; the caller decides which.
type Fetcher func(ctx context.Context, repository, name, constraint string) (*repo.PackEntry, error)

// ResolvedDependency is one node of the resolved dependency DAG: an exact
// version chosen for a given effective name, plus the chain of ancestor
// names that pulled it in (for diamond-conflict reporting) and the list of
// its own transitive dependencies by effective name.
type ResolvedDependency struct {
	Name         string
	Version      string
	Repository   string
	Digest       string
	Constraint   string
	Alias        string
	Path         []string
	Dependencies []string
}

// EffectiveName returns the alias if set, else Name.
func (r *ResolvedDependency) EffectiveName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// Graph is the resolved, conflict-free dependency DAG produced by Resolve.
// Nodes are keyed by effective name; order is resolution order (depth-first,
// each node added after its own dependencies, so children come before the
// parent that pulled them in).
type Graph struct {
	nodes  []*ResolvedDependency
	byName map[string]*ResolvedDependency
}

// Len returns the number of resolved dependencies.
func (g *Graph) Len() int { return len(g.nodes) }

// Iter returns the resolved dependencies in resolution order.
func (g *Graph) Iter() []*ResolvedDependency { return g.nodes }

// Get looks up a resolved dependency by effective name.
func (g *Graph) Get(name string) (*ResolvedDependency, bool) {
	d, ok := g.byName[name]
	return d, ok
}

// ToLockFile converts the resolved graph into a LockFile whose
// packYamlDigest is computed over packYAML.
func (g *Graph) ToLockFile(packYAML []byte) *LockFile {
	lock := NewLockFile(packYAML)
	for _, d := range g.nodes {
		lock.Add(LockedDependency{
			Name:         d.Name,
			Version:      d.Version,
			Repository:   d.Repository,
			Digest:       d.Digest,
			Constraint:   d.Constraint,
			Alias:        d.Alias,
			Dependencies: d.Dependencies,
		})
	}
	return lock
}

// Resolver walks a root dependency list depth-first, calling fetch to pick
// a concrete version for each constraint, recursing into the chosen
// version's own declared dependencies.
//
// This generalizes the chart-tarball-and-index-file walk in Helm's own
// internal dependency resolver: instead of reading a vendored charts/
// directory and a locally cached repository/index file, every lookup goes
// through a Fetcher so the same algorithm works across HTTP, OCI, and file
// repository backends.
type Resolver struct {
	fetch Fetcher
}

// New builds a Resolver around fetch.
func New(fetch Fetcher) *Resolver {
	return &Resolver{fetch: fetch}
}

// Resolve resolves deps (already filtered by FilterDependencies) into a
// conflict-free Graph.
func (r *Resolver) Resolve(ctx context.Context, deps []*pack.Dependency) (*Graph, error) {
	g := &Graph{byName: map[string]*ResolvedDependency{}}
	visiting := map[string]bool{}
	seenVersion := map[string]string{}
	var missing []error

	var walk func(dep *pack.Dependency, ancestors []string) error
	walk = func(dep *pack.Dependency, ancestors []string) error {
		name := dep.EffectiveName()

		for _, a := range ancestors {
			if a == name {
				return &CircularDependencyError{Cycle: append(append([]string{}, ancestors...), name)}
			}
		}
		if visiting[name] {
			return &CircularDependencyError{Cycle: append(append([]string{}, ancestors...), name)}
		}
		visiting[name] = true
		defer delete(visiting, name)

		entry, err := r.fetch(ctx, dep.Repository, dep.Name, dep.Version)
		if err != nil {
			missing = append(missing, errors.Wrapf(err, "resolving %s", name))
			return nil
		}

		if existing, ok := seenVersion[name]; ok && existing != entry.Version {
			return &DiamondConflictError{
				Name: name,
				Chains: []ConflictChain{
					{Path: g.byName[name].Path, Version: existing, Constraint: g.byName[name].Constraint},
					{Path: append(append([]string{}, ancestors...), name), Version: entry.Version, Constraint: dep.Version},
				},
			}
		}
		seenVersion[name] = entry.Version

		node := &ResolvedDependency{
			Name:       dep.Name,
			Version:    entry.Version,
			Repository: dep.Repository,
			Digest:     entry.Digest,
			Constraint: dep.Version,
			Alias:      dep.Alias,
			Path:       append(append([]string{}, ancestors...), name),
		}
		childAncestors := append(append([]string{}, ancestors...), name)

		for _, childDep := range entry.Dependencies {
			child := &pack.Dependency{
				Name:       childDep.Name,
				Version:    childDep.Version,
				Repository: childDep.Repository,
			}
			if err := walk(child, childAncestors); err != nil {
				return err
			}
			node.Dependencies = append(node.Dependencies, child.EffectiveName())
		}

		g.byName[name] = node
		g.nodes = append(g.nodes, node)
		return nil
	}

	for _, dep := range deps {
		if err := walk(dep, nil); err != nil {
			return nil, err
		}
	}
	if len(missing) > 0 {
		msg := missing[0].Error()
		for _, e := range missing[1:] {
			msg += "; " + e.Error()
		}
		return nil, errors.New("resolver: failed to resolve dependencies: " + msg)
	}
	return g, nil
}

// ResolveFromLock rebuilds a Graph directly from a lock file, with no
// network access, for read-only operations like rendering a dependency
// tree.
func ResolveFromLock(lock *LockFile) *Graph {
	g := &Graph{byName: map[string]*ResolvedDependency{}}
	for _, d := range lock.Dependencies {
		node := &ResolvedDependency{
			Name:         d.Name,
			Version:      d.Version,
			Repository:   d.Repository,
			Digest:       d.Digest,
			Constraint:   d.Constraint,
			Alias:        d.Alias,
			Dependencies: d.Dependencies,
		}
		g.byName[node.EffectiveName()] = node
		g.nodes = append(g.nodes, node)
	}
	return g
}
