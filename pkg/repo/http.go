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
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// HTTPBackend talks to a traditional Helm-style repository: an index.yaml
// listing pack versions, each downloadable from an absolute or
// repo-relative URL.
type HTTPBackend struct {
	repo   *Repository
	client *http.Client
	index  *Index
}

// NewHTTPBackend builds an HTTPBackend for repo, scoping creds to repo's
// own host so they are never replayed after a cross-origin redirect.
func NewHTTPBackend(repo *Repository, creds *Credentials) *HTTPBackend {
	scoped := NewScopedCredentials()
	if creds != nil {
		scoped.Add(repo.URL, creds)
	}
	return &HTTPBackend{repo: repo, client: newSecureClient(scoped)}
}

// Name returns the repository's configured name.
func (b *HTTPBackend) Name() string { return b.repo.Name }

// Refresh fetches the index, using the repository's stored ETag for a
// conditional GET. A 304 response keeps the previously cached index.
func (b *HTTPBackend) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.repo.IndexURL(), nil)
	if err != nil {
		return errors.Wrap(err, "repo: building index request")
	}
	if b.repo.ETag != "" {
		req.Header.Set("If-None-Match", b.repo.ETag)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "repo: fetching index")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if b.index == nil {
			return errors.Wrap(ErrIndexNotFound, "received 304 but no cached index")
		}
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("repo: fetching index: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "repo: reading index body")
	}
	idx, err := ParseIndex(data)
	if err != nil {
		return err
	}
	b.index = idx
	b.repo.ETag = resp.Header.Get("ETag")
	return nil
}

func (b *HTTPBackend) ensureIndex(ctx context.Context) (*Index, error) {
	if b.index != nil {
		return b.index, nil
	}
	if err := b.Refresh(ctx); err != nil {
		return nil, err
	}
	return b.index, nil
}

// List returns the latest version of every pack in the index.
func (b *HTTPBackend) List(ctx context.Context) ([]*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	var out []*PackEntry
	for _, name := range idx.Names() {
		latest, err := idx.GetLatest(name)
		if err == nil {
			out = append(out, latest)
		}
	}
	return out, nil
}

// Search returns index entries matching query.
func (b *HTTPBackend) Search(ctx context.Context, query string) ([]*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Search(query), nil
}

// GetLatest returns the highest version of name.
func (b *HTTPBackend) GetLatest(ctx context.Context, name string) (*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.GetLatest(name)
}

// GetVersion returns an exact version of name.
func (b *HTTPBackend) GetVersion(ctx context.Context, name, version string) (*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.GetVersion(name, version)
}

// FindBestMatch returns the highest version of name satisfying constraint.
func (b *HTTPBackend) FindBestMatch(ctx context.Context, name, constraint string) (*PackEntry, error) {
	idx, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return idx.FindBestMatch(name, constraint)
}

// Download fetches entry's archive and verifies its digest, if one is
// recorded in the index.
func (b *HTTPBackend) Download(ctx context.Context, entry *PackEntry) ([]byte, error) {
	url := entry.DownloadURL()
	if url == "" {
		return nil, errors.Wrapf(ErrPackNotFound, "%s has no download url", entry.Name)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = strings.TrimRight(b.repo.URL, "/") + "/" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "repo: building download request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "repo: downloading archive")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("repo: downloading %s: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "repo: reading archive body")
	}

	if entry.Digest != "" {
		actual := computeDigest(data)
		if !digestsMatch(entry.Digest, actual) {
			return nil, errors.Wrapf(ErrIntegrityCheckFailed, "%s: expected %s, got %s", entry.Name, entry.Digest, actual)
		}
	}
	return data, nil
}

func computeDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// digestsMatch compares two digests after stripping any sha256:/sha256-
// prefix and normalizing case, so "sha256:ABC" and "abc" are equal.
func digestsMatch(expected, actual string) bool {
	normalize := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.TrimPrefix(s, "sha256:")
		s = strings.TrimPrefix(s, "sha256-")
		return s
	}
	return normalize(expected) == normalize(actual)
}
