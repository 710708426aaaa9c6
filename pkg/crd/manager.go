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

package crd

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Applier is the cluster-interaction seam CRD management needs: applying a
// single CustomResourceDefinition and waiting for the API server to report
// it Established. A caller wires this to whatever client the rest of the
// install/upgrade pipeline uses.
type Applier interface {
	Apply(ctx context.Context, manifest string) error
	WaitEstablished(ctx context.Context, name string, timeout time.Duration) error
	Delete(ctx context.Context, name string) error
}

// DefaultEstablishTimeout bounds how long InstallAll/Upgrade wait for a CRD
// to become Established before giving up.
const DefaultEstablishTimeout = 60 * time.Second

// Manager orchestrates CRD lifecycle: installing before any custom resource
// of that kind can be applied, deciding whether an upgrade's changes are
// safe enough to apply, and refusing to delete anything this release
// doesn't own.
type Manager struct {
	Applier  Applier
	Strategy Strategy
}

// NewManager builds a Manager with the given strategy (SafeStrategy{} is the
// sensible default when the caller has no CLI flag to honor).
func NewManager(applier Applier, strategy Strategy) *Manager {
	if strategy == nil {
		strategy = SafeStrategy{}
	}
	return &Manager{Applier: applier, Strategy: strategy}
}

// CategorizeManifest splits a rendered, "---"-joined manifest into its
// CustomResourceDefinition documents and everything else. CRDs must be
// applied — and Established — before any custom resource of their kind can
// be created, so callers apply the CRD slice first.
func CategorizeManifest(manifest string) (crds, rest []string) {
	for _, doc := range strings.Split(manifest, "---") {
		trimmed := strings.TrimSpace(doc)
		if trimmed == "" {
			continue
		}
		if IsCRDManifest(trimmed) {
			crds = append(crds, doc)
		} else {
			rest = append(rest, doc)
		}
	}
	return crds, rest
}

// InstallAll applies every CRD in manifests unconditionally (there is
// nothing to compare a brand-new install against) and waits for each to
// report Established before returning.
func (m *Manager) InstallAll(ctx context.Context, manifests []string, timeout time.Duration) error {
	if timeout == 0 {
		timeout = DefaultEstablishTimeout
	}
	for _, manifest := range manifests {
		def, err := Parse(manifest)
		if err != nil {
			return errors.Wrap(err, "parsing CRD manifest")
		}
		if err := m.Applier.Apply(ctx, manifest); err != nil {
			return errors.Wrapf(err, "applying CRD %s", def.Name)
		}
		if err := m.Applier.WaitEstablished(ctx, def.Name, timeout); err != nil {
			return errors.Wrapf(err, "waiting for CRD %s to become established", def.Name)
		}
	}
	return nil
}

// Upgrade analyzes newManifest against the CRD currently on the cluster
// (oldManifest, empty if none), consults the Manager's Strategy, and applies
// the change only if the strategy allows it. It returns the Decision either
// way so a caller can report skipped or rejected changes to the user.
func (m *Manager) Upgrade(ctx context.Context, oldManifest, newManifest string, timeout time.Duration) (Decision, error) {
	if timeout == 0 {
		timeout = DefaultEstablishTimeout
	}

	newDef, err := Parse(newManifest)
	if err != nil {
		return Decision{}, errors.Wrap(err, "parsing CRD manifest")
	}

	var oldDef *Definition
	if strings.TrimSpace(oldManifest) != "" {
		oldDef, err = Parse(oldManifest)
		if err != nil {
			return Decision{}, errors.Wrap(err, "parsing existing CRD manifest")
		}
	}

	analysis := Analyze(oldDef, newDef)
	decision := m.Strategy.Decide(analysis)
	if !decision.AllowsApply() {
		return decision, nil
	}

	if err := m.Applier.Apply(ctx, newManifest); err != nil {
		return decision, errors.Wrapf(err, "applying CRD %s", newDef.Name)
	}
	if err := m.Applier.WaitEstablished(ctx, newDef.Name, timeout); err != nil {
		return decision, errors.Wrapf(err, "waiting for CRD %s to become established", newDef.Name)
	}
	return decision, nil
}

// Uninstall deletes a CRD only if ownership permits it: the release must
// own the CRD, the policy must allow deletion at all (PolicyShared and
// PolicyExternal never allow it, regardless of force), and a
// PolicyManaged CRD additionally requires force — mirroring
// --delete-crds/--confirm-crd-deletion gating a CRD deletion that would
// otherwise destroy every custom resource instance along with it.
func (m *Manager) Uninstall(ctx context.Context, owned Ownership, detected Detected, releaseName, namespace string, force bool) error {
	if !owned.CanManage(releaseName, namespace) {
		return errors.Errorf("release %s/%s does not own CRD %s", namespace, releaseName, owned.CRDName)
	}
	if !owned.Policy.AllowsDelete() {
		return errors.Errorf("CRD %s is %s; refusing to delete", owned.CRDName, owned.Policy.description())
	}
	if detected.HasKeepAnnotation {
		return errors.Errorf("CRD %s carries %s: keep; refusing to delete", owned.CRDName, HelmResourcePolicyAnnotation)
	}
	if !force {
		return errors.Errorf("CRD %s is protected; retry with force to confirm deletion", owned.CRDName)
	}
	return m.Applier.Delete(ctx, owned.CRDName)
}

func (p Policy) description() string {
	switch p {
	case PolicyManaged:
		return "owned by this release"
	case PolicyShared:
		return "shared between releases"
	case PolicyExternal:
		return "managed externally"
	default:
		return string(p)
	}
}
