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
	"bytes"
	"context"
	"encoding/json"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
)

func unmarshalManifest(data []byte, m *ocispec.Manifest) error {
	return json.Unmarshal(data, m)
}

// OCIReference is a parsed oci:// pack reference: registry/repository[:tag][@digest].
type OCIReference struct {
	Registry   string
	Repository string
	Tag        string
	Digest     string
}

// ParseOCIReference parses a string of the form
// "oci://registry/repo:tag", "registry/repo:tag@digest", etc.
func ParseOCIReference(s string) (*OCIReference, error) {
	clean := strings.TrimPrefix(s, "oci://")
	clean = strings.TrimPrefix(clean, "https://")
	clean = strings.TrimPrefix(clean, "http://")

	registry, rest, ok := strings.Cut(clean, "/")
	if !ok {
		return nil, errors.Wrapf(&InvalidRepositoryURLError{URL: s}, "missing repository path")
	}

	ref := &OCIReference{Registry: registry}
	if repoTag, digest, ok := strings.Cut(rest, "@"); ok {
		ref.Digest = digest
		rest = repoTag
	}
	if repository, tag, ok := cutLast(rest, ':'); ok {
		ref.Repository, ref.Tag = repository, tag
	} else {
		ref.Repository = rest
	}
	return ref, nil
}

// String renders r back into oci reference form.
func (r *OCIReference) String() string {
	s := r.Registry + "/" + r.Repository
	if r.Tag != "" {
		s += ":" + r.Tag
	}
	if r.Digest != "" {
		s += "@" + r.Digest
	}
	return s
}

func cutLast(s string, sep byte) (before, after string, found bool) {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// Media types used for pack archives stored in an OCI registry, matching
// the convention Helm charts use so the same registries and UIs work for
// both.
const (
	MediaTypeConfig  = "application/vnd.cncf.helm.config.v1+json"
	MediaTypeContent = "application/vnd.cncf.helm.chart.content.v1.tar+gzip"
)

// OCIBackend pushes and pulls pack archives from an OCI-compliant
// registry. List and Search are unsupported: there is no catalog API that
// works consistently across registries.
type OCIBackend struct {
	repo *Repository
	host string
	base string // repository path prefix, e.g. "myorg/charts"
	auth *auth.Client
}

// NewOCIBackend builds an OCIBackend for repo, whose URL has the form
// oci://host/path.
func NewOCIBackend(repo *Repository, creds *Credentials) (*OCIBackend, error) {
	ref := strings.TrimPrefix(repo.URL, "oci://")
	ref = strings.TrimRight(ref, "/")
	host, base, ok := strings.Cut(ref, "/")
	if !ok {
		return nil, errors.Wrapf(&InvalidRepositoryURLError{URL: repo.URL}, "missing repository path")
	}

	client := &auth.Client{}
	if creds != nil {
		cred := auth.Credential{}
		switch {
		case creds.Basic != nil:
			cred.Username = creds.Basic.Username
			cred.Password = creds.Basic.Password
		case creds.Bearer != "":
			cred.Password = creds.Bearer
		}
		client.Credential = auth.StaticCredential(host, cred)
	}

	return &OCIBackend{repo: repo, host: host, base: base, auth: client}, nil
}

// Name returns the repository's configured name.
func (b *OCIBackend) Name() string { return b.repo.Name }

func (b *OCIBackend) reference(name, tag string) string {
	return b.host + "/" + b.base + "/" + name + ":" + tag
}

func (b *OCIBackend) remoteRepository(name string) (*remote.Repository, error) {
	r, err := remote.NewRepository(b.host + "/" + b.base + "/" + name)
	if err != nil {
		return nil, errors.Wrap(err, "repo: resolving oci reference")
	}
	r.Client = b.auth
	r.PlainHTTP = b.repo.InsecureSkipTLS
	return r, nil
}

// Refresh is a no-op: OCI registries have no index to cache.
func (b *OCIBackend) Refresh(ctx context.Context) error { return nil }

// List is unsupported for OCI registries.
func (b *OCIBackend) List(ctx context.Context) ([]*PackEntry, error) {
	return nil, errors.Wrap(ErrUnsupported, "oci registries do not expose a catalog")
}

// Search is unsupported for OCI registries.
func (b *OCIBackend) Search(ctx context.Context, query string) ([]*PackEntry, error) {
	return nil, errors.Wrap(ErrUnsupported, "oci registries do not support search")
}

// GetLatest is unsupported: without a catalog there is no version listing
// to pick a latest tag from. Callers must know the version they want.
func (b *OCIBackend) GetLatest(ctx context.Context, name string) (*PackEntry, error) {
	return nil, errors.Wrap(ErrUnsupported, "oci registries do not support latest-version lookup")
}

// GetVersion returns a synthetic PackEntry pointing at name:version; the
// actual manifest is only checked on Download.
func (b *OCIBackend) GetVersion(ctx context.Context, name, version string) (*PackEntry, error) {
	return &PackEntry{Name: name, Version: version, URLs: []string{b.reference(name, version)}}, nil
}

// FindBestMatch is unsupported for the same reason as GetLatest.
func (b *OCIBackend) FindBestMatch(ctx context.Context, name, constraint string) (*PackEntry, error) {
	return nil, errors.Wrap(ErrUnsupported, "oci registries do not support constraint resolution without a catalog")
}

// Download pulls name:version from the registry and returns the archive
// layer's bytes.
func (b *OCIBackend) Download(ctx context.Context, entry *PackEntry) ([]byte, error) {
	src, err := b.remoteRepository(entry.Name)
	if err != nil {
		return nil, err
	}

	dst := memory.New()
	desc, err := oras.Copy(ctx, src, entry.Version, dst, entry.Version, oras.DefaultCopyOptions)
	if err != nil {
		return nil, errors.Wrap(err, "repo: pulling oci manifest")
	}

	manifestBytes, err := content.FetchAll(ctx, dst, desc)
	if err != nil {
		return nil, errors.Wrap(err, "repo: fetching oci manifest")
	}
	var manifest ocispec.Manifest
	if err := unmarshalManifest(manifestBytes, &manifest); err != nil {
		return nil, errors.Wrap(err, "repo: parsing oci manifest")
	}

	for _, layer := range manifest.Layers {
		if layer.MediaType == MediaTypeContent {
			data, err := content.FetchAll(ctx, dst, layer)
			if err != nil {
				return nil, errors.Wrap(err, "repo: fetching chart content layer")
			}
			return data, nil
		}
	}
	return nil, errors.New("repo: no chart content layer found in oci manifest")
}

// Push uploads an archive to the registry under name:tag and returns the
// pushed manifest's digest.
func (b *OCIBackend) Push(ctx context.Context, name, tag string, archive []byte) (string, error) {
	store := memory.New()

	layerDesc := content.NewDescriptorFromBytes(MediaTypeContent, archive)
	if err := store.Push(ctx, layerDesc, bytes.NewReader(archive)); err != nil {
		return "", errors.Wrap(err, "repo: staging chart content layer")
	}

	manifestDesc, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, MediaTypeConfig, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layerDesc},
	})
	if err != nil {
		return "", errors.Wrap(err, "repo: packing oci manifest")
	}
	if err := store.Tag(ctx, manifestDesc, tag); err != nil {
		return "", errors.Wrap(err, "repo: tagging oci manifest")
	}

	dst, err := b.remoteRepository(name)
	if err != nil {
		return "", err
	}
	if _, err := oras.Copy(ctx, store, tag, dst, tag, oras.DefaultCopyOptions); err != nil {
		return "", errors.Wrap(err, "repo: pushing to registry")
	}
	return manifestDesc.Digest.String(), nil
}
