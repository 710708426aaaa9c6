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

import "strings"

// Kind identifies which backend a Repository talks to.
type Kind string

const (
	KindHTTP Kind = "http"
	KindOCI  Kind = "oci"
	KindFile Kind = "file"
)

// DetectKind infers a Repository's Kind from its URL scheme.
func DetectKind(url string) (Kind, error) {
	switch {
	case strings.HasPrefix(url, "oci://"):
		return KindOCI, nil
	case strings.HasPrefix(url, "file://"), strings.HasPrefix(url, "/"):
		return KindFile, nil
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return KindHTTP, nil
	default:
		return "", errInvalidURL(url)
	}
}

func errInvalidURL(url string) error {
	return &InvalidRepositoryURLError{URL: url}
}

// InvalidRepositoryURLError reports a repository URL with no recognized scheme.
type InvalidRepositoryURLError struct {
	URL string
}

func (e *InvalidRepositoryURLError) Error() string {
	return "repo: invalid repository url " + e.URL + ": must start with http://, https://, oci://, file://, or /"
}

// Repository is a single named, configured pack repository.
type Repository struct {
	Name            string            `json:"name" yaml:"name"`
	URL             string            `json:"url" yaml:"url"`
	Kind            Kind              `json:"type,omitempty" yaml:"type,omitempty"`
	InsecureSkipTLS bool              `json:"insecureSkipTls,omitempty" yaml:"insecureSkipTls,omitempty"`
	CredentialRef   string            `json:"credentialRef,omitempty" yaml:"credentialRef,omitempty"`
	ETag            string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// NewRepository builds a Repository, auto-detecting its Kind from url.
func NewRepository(name, url string) (*Repository, error) {
	kind, err := DetectKind(url)
	if err != nil {
		return nil, err
	}
	return &Repository{Name: name, URL: url, Kind: kind}, nil
}

// IndexURL returns the location of this repository's index document.
func (r *Repository) IndexURL() string {
	switch r.Kind {
	case KindHTTP:
		return strings.TrimRight(r.URL, "/") + "/index.yaml"
	default:
		return r.URL
	}
}

func (r *Repository) IsOCI() bool  { return r.Kind == KindOCI }
func (r *Repository) IsHTTP() bool { return r.Kind == KindHTTP }
func (r *Repository) IsFile() bool { return r.Kind == KindFile }

// Config is the on-disk list of configured repositories, equivalent to
// Helm's repositories.yaml.
type Config struct {
	APIVersion   string        `json:"apiVersion" yaml:"apiVersion"`
	Repositories []*Repository `json:"repositories" yaml:"repositories"`
}

const defaultAPIVersion = "sherpack.io/v1"

// NewConfig returns an empty, initialized Config.
func NewConfig() *Config {
	return &Config{APIVersion: defaultAPIVersion}
}

// Get returns the repository named name, or nil if none is configured.
func (c *Config) Get(name string) *Repository {
	for _, r := range c.Repositories {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Add registers repo, replacing any existing entry with the same name.
func (c *Config) Add(repo *Repository) {
	for i, r := range c.Repositories {
		if r.Name == repo.Name {
			c.Repositories[i] = repo
			return
		}
	}
	c.Repositories = append(c.Repositories, repo)
}

// Remove deletes the repository named name. It reports whether one was found.
func (c *Config) Remove(name string) bool {
	for i, r := range c.Repositories {
		if r.Name == name {
			c.Repositories = append(c.Repositories[:i], c.Repositories[i+1:]...)
			return true
		}
	}
	return false
}

// Names lists configured repository names.
func (c *Config) Names() []string {
	names := make([]string, len(c.Repositories))
	for i, r := range c.Repositories {
		names[i] = r.Name
	}
	return names
}
