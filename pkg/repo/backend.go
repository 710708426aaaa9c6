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

package repo

import "context"

// Backend is the uniform interface every repository kind (HTTP, OCI, local
// file) satisfies, so the dependency resolver and CLI commands don't need
// to branch on repository type.
type Backend interface {
	// Refresh re-fetches the repository's index, if it has one.
	Refresh(ctx context.Context) error
	// List returns the latest version of every known pack.
	List(ctx context.Context) ([]*PackEntry, error)
	// Search returns entries matching a free-text query.
	Search(ctx context.Context, query string) ([]*PackEntry, error)
	// GetLatest returns the highest version of name.
	GetLatest(ctx context.Context, name string) (*PackEntry, error)
	// GetVersion returns an exact version of name.
	GetVersion(ctx context.Context, name, version string) (*PackEntry, error)
	// FindBestMatch returns the highest version of name satisfying constraint.
	FindBestMatch(ctx context.Context, name, constraint string) (*PackEntry, error)
	// Download fetches and returns entry's archive bytes.
	Download(ctx context.Context, entry *PackEntry) ([]byte, error)
}

// NewBackend builds the Backend implementation appropriate for repo.Kind.
func NewBackend(repo *Repository, creds *Credentials) (Backend, error) {
	switch repo.Kind {
	case KindHTTP, "":
		return NewHTTPBackend(repo, creds), nil
	case KindOCI:
		return NewOCIBackend(repo, creds)
	case KindFile:
		return NewFileBackend(repo), nil
	default:
		return nil, errInvalidURL(repo.URL)
	}
}
