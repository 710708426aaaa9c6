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
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// LockPolicy controls how strictly a downloaded archive's digest is
// checked against the value captured in the lock file.
type LockPolicy string

const (
	// PolicyStrict requires a byte-exact digest match.
	PolicyStrict LockPolicy = "strict"
	// PolicyVersion (the default) only requires the version to match; a
	// digest mismatch is reported but not fatal (the pack was republished).
	PolicyVersion LockPolicy = "version"
	// PolicySemverPatch allows the resolved version to drift within its
	// locked patch band; the digest is re-captured on each build.
	PolicySemverPatch LockPolicy = "semver-patch"
	// PolicySemverMinor allows drift within the locked minor band.
	PolicySemverMinor LockPolicy = "semver-minor"
)

// LockedDependency is one dependency as pinned by a prior resolution: an
// exact version and digest, plus enough provenance to re-verify or explain
// it later.
type LockedDependency struct {
	Name         string   `json:"name" yaml:"name"`
	Version      string   `json:"version" yaml:"version"`
	Repository   string   `json:"repository" yaml:"repository"`
	Digest       string   `json:"digest" yaml:"digest"`
	Constraint   string   `json:"constraint" yaml:"constraint"`
	Alias        string   `json:"alias,omitempty" yaml:"alias,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// EffectiveName returns the alias if set, else Name.
func (d *LockedDependency) EffectiveName() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.Name
}

// LockFile is the contents of Pack.lock.yaml: the durable, authoritative
// manifest that `dependency build` downloads from.
type LockFile struct {
	Version        int                `json:"version" yaml:"version"`
	Generated      time.Time          `json:"generated" yaml:"generated"`
	PackYAMLDigest string             `json:"packYamlDigest" yaml:"packYamlDigest"`
	Policy         LockPolicy         `json:"policy,omitempty" yaml:"policy,omitempty"`
	Dependencies   []LockedDependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// NewLockFile starts an empty lock file whose digest is taken over
// packYAML's current bytes and whose policy defaults to PolicyVersion.
func NewLockFile(packYAML []byte) *LockFile {
	return &LockFile{
		Version:        1,
		Generated:      time.Now().UTC(),
		PackYAMLDigest: Sha256Digest(packYAML),
		Policy:         PolicyVersion,
	}
}

// LoadLockFile reads and parses Pack.lock.yaml from path.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrLockFileNotFound, "%s", path)
		}
		return nil, errors.Wrap(err, "resolver: reading lock file")
	}
	lock := &LockFile{}
	if err := yaml.Unmarshal(data, lock); err != nil {
		return nil, errors.Wrap(err, "resolver: parsing lock file")
	}
	if lock.Version == 0 {
		lock.Version = 1
	}
	if lock.Policy == "" {
		lock.Policy = PolicyVersion
	}
	return lock, nil
}

// Save writes the lock file to path, creating parent directories as needed.
func (l *LockFile) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "resolver: creating lock file directory")
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return errors.Wrap(err, "resolver: encoding lock file")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "resolver: writing lock file")
}

// IsOutdated reports whether packYAML's current bytes no longer match the
// digest captured at lock time, meaning Pack.yaml changed since `update`.
func (l *LockFile) IsOutdated(packYAML []byte) bool {
	return l.PackYAMLDigest != Sha256Digest(packYAML)
}

// Add inserts dep, replacing any existing entry with the same effective
// name.
func (l *LockFile) Add(dep LockedDependency) {
	out := l.Dependencies[:0]
	for _, d := range l.Dependencies {
		if d.EffectiveName() != dep.EffectiveName() {
			out = append(out, d)
		}
	}
	l.Dependencies = append(out, dep)
}

// Get returns the locked dependency with the given effective name, if any.
func (l *LockFile) Get(name string) *LockedDependency {
	for i := range l.Dependencies {
		if l.Dependencies[i].EffectiveName() == name {
			return &l.Dependencies[i]
		}
	}
	return nil
}

// VerifyResult is the outcome of checking a downloaded archive's digest
// against the lock file.
type VerifyResult int

const (
	// VerifyMatch means the digest matched exactly (or the policy doesn't
	// require a digest check).
	VerifyMatch VerifyResult = iota
	// VerifyDigestChanged means the version matched but the digest did
	// not; under PolicyVersion this is a notice, not a failure.
	VerifyDigestChanged
)

// Verify checks archive data downloaded for name against the lock file's
// recorded digest, applying the lock's policy.
func (l *LockFile) Verify(name string, data []byte) (VerifyResult, error) {
	locked := l.Get(name)
	if locked == nil {
		return 0, errors.Wrapf(ErrDependencyNotLocked, "%s", name)
	}
	actual := Sha256Digest(data)

	switch l.Policy {
	case PolicyStrict:
		if locked.Digest != actual {
			return 0, errors.Errorf("resolver: integrity check failed for %s: expected %s, got %s",
				name, locked.Digest, actual)
		}
		return VerifyMatch, nil
	case PolicySemverPatch, PolicySemverMinor:
		// The caller has already confirmed the resolved version stays
		// within the locked band; only presence of data is required here.
		return VerifyMatch, nil
	default: // PolicyVersion
		if locked.Digest != actual {
			return VerifyDigestChanged, nil
		}
		return VerifyMatch, nil
	}
}

// Sha256Digest returns data's digest in the "sha256:<hex>" form used
// throughout lock files and repository indexes.
func Sha256Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
