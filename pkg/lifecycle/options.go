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

package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

// ImmutableStrategy governs what happens when an upgrade or rollback tries
// to change a field Kubernetes treats as immutable.
type ImmutableStrategy string

const (
	ImmutableFail     ImmutableStrategy = "fail"
	ImmutableRecreate ImmutableStrategy = "recreate"
	ImmutableSkip     ImmutableStrategy = "skip"
)

func (s ImmutableStrategy) String() string { return string(s) }

func ParseImmutableStrategy(s string) (ImmutableStrategy, error) {
	switch strings.ToLower(s) {
	case "fail", "":
		return ImmutableFail, nil
	case "recreate":
		return ImmutableRecreate, nil
	case "skip":
		return ImmutableSkip, nil
	default:
		return "", fmt.Errorf("unknown immutable strategy: %s", s)
	}
}

// PvcStrategy governs how rollback treats PersistentVolumeClaims, which
// Sherpack never deletes or recreates implicitly.
type PvcStrategy string

const (
	PvcPreserve        PvcStrategy = "preserve"
	PvcWarnAndPreserve PvcStrategy = "warn-and-preserve"
)

func (s PvcStrategy) String() string { return string(s) }

// DeletionCascade governs how an uninstall propagates to owned resources.
type DeletionCascade string

const (
	CascadeBackground DeletionCascade = "background"
	CascadeForeground DeletionCascade = "foreground"
	CascadeOrphan     DeletionCascade = "orphan"
)

func (c DeletionCascade) String() string { return string(c) }

// InstallOptions configures a fresh release install.
type InstallOptions struct {
	Name                 string
	Namespace            string
	Wait                 bool
	Timeout              time.Duration
	Atomic               bool
	CreateNamespace      bool
	SkipSchemaValidation bool
	DryRun               bool
	ShowDiff             bool
	Labels               map[string]string
	Description          string
}

// WithWait enables waiting for resources to become ready.
func (o InstallOptions) WithWait(timeout time.Duration) InstallOptions {
	o.Wait = true
	o.Timeout = timeout
	return o
}

// WithAtomic enables wait plus automatic rollback (uninstall) on failure.
func (o InstallOptions) WithAtomic(timeout time.Duration) InstallOptions {
	o.Wait = true
	o.Atomic = true
	o.Timeout = timeout
	return o
}

// UpgradeOptions configures an upgrade of an existing release.
type UpgradeOptions struct {
	Name                 string
	Namespace            string
	Wait                 bool
	Timeout              time.Duration
	Atomic               bool
	Install              bool
	Force                bool
	ImmutableStrategy    ImmutableStrategy
	SkipSchemaValidation bool
	ResetValues          bool
	ReuseValues          bool
	DryRun               bool
	ShowDiff             bool
	NoHooks              bool
	MaxHistory           int
	Labels               map[string]string
	Description          string
}

func (o UpgradeOptions) WithAtomic(timeout time.Duration) UpgradeOptions {
	o.Wait = true
	o.Atomic = true
	o.Timeout = timeout
	return o
}

// UninstallOptions configures removal of a release.
type UninstallOptions struct {
	Name        string
	Namespace   string
	Wait        bool
	Timeout     time.Duration
	KeepHistory bool
	NoHooks     bool
	DryRun      bool
	Cascade     DeletionCascade
	Description string
}

func NewUninstallOptions(name, namespace string) UninstallOptions {
	return UninstallOptions{Name: name, Namespace: namespace, Cascade: CascadeBackground}
}

// RollbackOptions configures reverting a release to a prior revision.
type RollbackOptions struct {
	Name              string
	Namespace         string
	Revision          int // 0 means "the revision before the current one"
	Wait              bool
	Timeout           time.Duration
	Force             bool
	ImmutableStrategy ImmutableStrategy
	PvcStrategy       PvcStrategy
	NoHooks           bool
	DryRun            bool
	ShowDiff          bool
	RecreatePods      bool
	MaxHistory        int
	Description       string
}

func (o RollbackOptions) ToRevision(rev int) RollbackOptions {
	o.Revision = rev
	return o
}
