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

// Package resolver walks a pack's dependency tree depth-first against a
// repository-backed fetch callback, builds a conflict-free dependency DAG,
// and reads/writes the Pack.lock.yaml that makes that resolution
// reproducible across machines.
package resolver

import "github.com/pkg/errors"

// Sentinel errors a caller can match with errors.Is.
var (
	ErrLockFileNotFound    = errors.New("resolver: lock file not found")
	ErrLockOutdated        = errors.New("resolver: lock file is outdated, run update")
	ErrDependencyNotLocked = errors.New("resolver: dependency not present in lock file")
)

// DiamondConflictError reports two ancestor chains that demanded
// irreconcilable exact versions of the same effective name.
type DiamondConflictError struct {
	Name   string
	Chains []ConflictChain
}

// ConflictChain is one of the ancestor paths that led to a conflicting
// version demand.
type ConflictChain struct {
	Path       []string
	Version    string
	Constraint string
}

func (e *DiamondConflictError) Error() string {
	msg := "diamond dependency conflict for " + e.Name + ":\n"
	for _, c := range e.Chains {
		msg += "  " + joinPath(c.Path) + " wants " + c.Version + " (constraint " + c.Constraint + ")\n"
	}
	return msg
}

// CircularDependencyError names the cycle discovered during resolution.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency detected: " + joinPath(e.Cycle)
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}
