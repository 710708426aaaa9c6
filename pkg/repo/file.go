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

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FileBackend reads a repository index and pack archives from a local
// directory. Intended for development and testing, not for distribution.
type FileBackend struct {
	repo *Repository
	dir  string
	idx  *Index
}

// NewFileBackend builds a FileBackend rooted at repo.URL, which may carry a
// file:// prefix.
func NewFileBackend(repo *Repository) *FileBackend {
	dir := strings.TrimPrefix(repo.URL, "file://")
	return &FileBackend{repo: repo, dir: dir}
}

// Name returns the repository's configured name.
func (b *FileBackend) Name() string { return b.repo.Name }

// Refresh reads index.yaml from the backing directory.
func (b *FileBackend) Refresh(ctx context.Context) error {
	data, err := os.ReadFile(filepath.Join(b.dir, "index.yaml"))
	if err != nil {
		return errors.Wrap(err, "repo: reading local index")
	}
	idx, err := ParseIndex(data)
	if err != nil {
		return err
	}
	b.idx = idx
	return nil
}

func (b *FileBackend) ensureIndex(ctx context.Context) (*Index, error) {
	if b.idx != nil {
		return b.idx, nil
	}
	if err := b.Refresh(ctx); err != nil {
		return nil, err
	}
	return b.idx, nil
}

func (b *FileBackend) List(ctx context.Context) ([]*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	var out []*PackEntry
	for _, name := range idx.Names() {
		if latest, err := idx.GetLatest(name); err == nil {
			out = append(out, latest)
		}
	}
	return out, nil
}

func (b *FileBackend) Search(ctx context.Context, query string) ([]*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Search(query), nil
}

func (b *FileBackend) GetLatest(ctx context.Context, name string) (*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.GetLatest(name)
}

func (b *FileBackend) GetVersion(ctx context.Context, name, version string) (*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.GetVersion(name, version)
}

func (b *FileBackend) FindBestMatch(ctx context.Context, name, constraint string) (*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.FindBestMatch(name, constraint)
}

// Download reads entry's archive from the local directory, resolving its
// download URL relative to that directory the same way the HTTP backend
// resolves one relative to a repository base URL.
func (b *FileBackend) Download(ctx context.Context, entry *PackEntry) ([]byte, error) {
	url := entry.DownloadURL()
	if url == "" {
		return nil, errors.Wrapf(ErrPackNotFound, "%s has no download location", entry.Name)
	}
	path := url
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.dir, filepath.Base(url))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "repo: reading local archive")
	}
	if entry.Digest != "" {
		if actual := computeDigest(data); !digestsMatch(entry.Digest, actual) {
			return nil, errors.Wrapf(ErrIntegrityCheckFailed, "%s: expected %s, got %s", entry.Name, entry.Digest, actual)
		}
	}
	return data, nil
}
