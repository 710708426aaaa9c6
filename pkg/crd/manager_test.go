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
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeApplier records every call the Manager makes against the cluster and
// optionally fails applying a named CRD to exercise error paths.
type fakeApplier struct {
	mu          sync.Mutex
	applied     []string
	established []string
	deleted     []string
	failApply   string
}

func (f *fakeApplier) Apply(ctx context.Context, manifest string) error {
	def, err := Parse(manifest)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if def.Name == f.failApply {
		return errors.Errorf("apply failed for %s", def.Name)
	}
	f.applied = append(f.applied, def.Name)
	return nil
}

func (f *fakeApplier) WaitEstablished(ctx context.Context, name string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.established = append(f.established, name)
	return nil
}

func (f *fakeApplier) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

func TestManagerInstallAllAppliesAndWaits(t *testing.T) {
	applier := &fakeApplier{}
	m := NewManager(applier, nil)
	err := m.InstallAll(context.Background(), []string{baseCRD}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets.example.com"}, applier.applied)
	assert.Equal(t, []string{"widgets.example.com"}, applier.established)
}

func TestManagerInstallAllPropagatesApplyFailure(t *testing.T) {
	applier := &fakeApplier{failApply: "widgets.example.com"}
	m := NewManager(applier, nil)
	err := m.InstallAll(context.Background(), []string{baseCRD}, time.Second)
	assert.Error(t, err)
}

func TestManagerUpgradeAppliesUnderSafeStrategyForSafeChange(t *testing.T) {
	applier := &fakeApplier{}
	m := NewManager(applier, SafeStrategy{})
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  names: {kind: Widget, plural: widgets}
  versions:
    - name: v1
      served: true
      storage: true
      schema:
        openAPIV3Schema:
          type: object
          properties:
            spec:
              type: object
              properties:
                size: {type: integer}
                color: {type: string}
`
	decision, err := m.Upgrade(context.Background(), baseCRD, newManifest, time.Second)
	require.NoError(t, err)
	assert.True(t, decision.AllowsApply())
	assert.Equal(t, []string{"widgets.example.com"}, applier.applied)
}

func TestManagerUpgradeRejectsDangerousUnderSafeStrategy(t *testing.T) {
	applier := &fakeApplier{}
	m := NewManager(applier, SafeStrategy{})
	newManifest := `
kind: CustomResourceDefinition
metadata: {name: widgets.example.com}
spec:
  group: example.com
  scope: Cluster
  names: {kind: Widget, plural: widgets}
  versions: [{name: v1, served: true, storage: true}]
`
	decision, err := m.Upgrade(context.Background(), baseCRD, newManifest, time.Second)
	require.NoError(t, err)
	assert.True(t, decision.IsRejected())
	assert.Empty(t, applier.applied)
}

func TestManagerUpgradeWithNoPriorManifestTreatsAsNew(t *testing.T) {
	applier := &fakeApplier{}
	m := NewManager(applier, SafeStrategy{})
	decision, err := m.Upgrade(context.Background(), "", baseCRD, time.Second)
	require.NoError(t, err)
	assert.True(t, decision.AllowsApply())
	assert.Equal(t, []string{"widgets.example.com"}, applier.applied)
}

func TestManagerUninstallRequiresOwnership(t *testing.T) {
	applier := &fakeApplier{}
	m := NewManager(applier, nil)
	owned := Ownership{CRDName: "widgets.example.com", OwningRelease: "my-release", ReleaseNamespace: "default", Policy: PolicyManaged}
	detected := Detected{Name: "widgets.example.com", Policy: PolicyManaged}

	err := m.Uninstall(context.Background(), owned, detected, "other-release", "default", true)
	assert.Error(t, err)
	assert.Empty(t, applier.deleted)
}

func TestManagerUninstallBlocksSharedAndExternalRegardlessOfForce(t *testing.T) {
	applier := &fakeApplier{}
	m := NewManager(applier, nil)
	owned := Ownership{CRDName: "widgets.example.com", OwningRelease: "my-release", ReleaseNamespace: "default", Policy: PolicyShared}
	detected := Detected{Name: "widgets.example.com", Policy: PolicyShared}

	err := m.Uninstall(context.Background(), owned, detected, "my-release", "default", true)
	assert.Error(t, err)
	assert.Empty(t, applier.deleted)
}

func TestManagerUninstallBlocksKeepAnnotationRegardlessOfForce(t *testing.T) {
	applier := &fakeApplier{}
	m := NewManager(applier, nil)
	owned := Ownership{CRDName: "widgets.example.com", OwningRelease: "my-release", ReleaseNamespace: "default", Policy: PolicyManaged}
	detected := Detected{Name: "widgets.example.com", Policy: PolicyManaged, HasKeepAnnotation: true}

	err := m.Uninstall(context.Background(), owned, detected, "my-release", "default", true)
	assert.Error(t, err)
	assert.Empty(t, applier.deleted)
}

func TestManagerUninstallManagedRequiresForce(t *testing.T) {
	applier := &fakeApplier{}
	m := NewManager(applier, nil)
	owned := Ownership{CRDName: "widgets.example.com", OwningRelease: "my-release", ReleaseNamespace: "default", Policy: PolicyManaged}
	detected := Detected{Name: "widgets.example.com", Policy: PolicyManaged}

	err := m.Uninstall(context.Background(), owned, detected, "my-release", "default", false)
	assert.Error(t, err)
	assert.Empty(t, applier.deleted)

	err = m.Uninstall(context.Background(), owned, detected, "my-release", "default", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets.example.com"}, applier.deleted)
}

func TestCategorizeManifestSplitsCRDsFromRest(t *testing.T) {
	manifest := baseCRD + "\n---\nkind: Deployment\nmetadata:\n  name: app\n"
	crds, rest := CategorizeManifest(manifest)
	assert.Len(t, crds, 1)
	assert.Len(t, rest, 1)
}
