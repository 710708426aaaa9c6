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

// Package repo talks to pack repositories: traditional HTTP repos serving a
// Helm-compatible index.yaml, OCI registries, and plain local directories.
// All three implement the same Backend interface so callers (the dependency
// resolver, the CLI) don't need to know which kind of repository they're
// talking to.
package repo

import "github.com/pkg/errors"

// Sentinel errors a caller can match with errors.Is.
var (
	ErrPackNotFound         = errors.New("repo: pack not found")
	ErrVersionNotFound      = errors.New("repo: version not found")
	ErrNoVersionsAvailable  = errors.New("repo: no versions available")
	ErrUnsatisfiable        = errors.New("repo: no version satisfies constraint")
	ErrIndexNotFound        = errors.New("repo: index not found")
	ErrIntegrityCheckFailed = errors.New("repo: integrity check failed")
	ErrUnsupported          = errors.New("repo: operation not supported by this backend")
	ErrNotModified          = errors.New("repo: index not modified")
)
