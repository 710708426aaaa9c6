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
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/alegeay/Sherpack-sub001/pkg/crd"
	"github.com/alegeay/Sherpack-sub001/pkg/pack"
	"github.com/alegeay/Sherpack-sub001/pkg/release"
	"github.com/alegeay/Sherpack-sub001/pkg/storage"
)

// Applier performs the actual cluster operations the engine needs: applying
// and deleting individual resources, waiting for a set of resources to
// become ready, and running a hook to completion. A real implementation
// wraps a dynamic client; tests supply a fake.
type Applier interface {
	Apply(ctx context.Context, namespace string, resource Resource) error
	Delete(ctx context.Context, namespace string, ref ResourceRef) error
	Wait(ctx context.Context, namespace string, refs []ResourceRef, timeout time.Duration) error
	RunHook(ctx context.Context, namespace string, hook *release.Hook) error
	DeleteHook(ctx context.Context, namespace string, hook *release.Hook) error
}

// MaxWaveParallelism bounds how many resources within a single wave are
// applied concurrently.
const MaxWaveParallelism = 8

// Engine orchestrates install/upgrade/rollback/uninstall against a storage
// backend and a cluster Applier, enforcing the release status state machine
// and wave/hook ordering.
type Engine struct {
	Storage *storage.Storage
	Applier Applier

	// CRDStrategy governs how a pack's CustomResourceDefinitions are
	// upgraded (defaults to crd.SafeStrategy{} when nil). It has no effect
	// on Install, where every CRD is new.
	CRDStrategy crd.Strategy
}

func New(store *storage.Storage, applier Applier) *Engine {
	return &Engine{Storage: store, Applier: applier}
}

// Install renders a new release at revision 1 and applies it wave by wave,
// running pre/post-install hooks around the apply. Atomic installs uninstall
// the half-applied release on any failure.
func (e *Engine) Install(ctx context.Context, opts InstallOptions, manifest string, metadata *pack.Metadata, values map[string]interface{}) (*release.Release, error) {
	crdDocs, rest := splitCRDs(manifest)

	plan, err := BuildExecutionPlan(rest)
	if err != nil {
		return nil, errors.Wrap(err, "building execution plan")
	}

	rel := &release.Release{
		Name:      opts.Name,
		Namespace: opts.Namespace,
		Revision:  1,
		Status:    release.StatusPendingInstall,
		Manifest:  manifest,
		Values:    values,
		Info: &release.Info{
			FirstDeployed: now(),
			Description:   opts.Description,
		},
	}
	rel.Pack = metadata

	if opts.DryRun {
		rel.Status = release.StatusDeployed
		return rel, nil
	}

	if err := e.installCRDs(ctx, rel.Namespace, crdDocs, opts.Timeout); err != nil {
		return nil, errors.Wrap(err, "installing custom resource definitions")
	}

	if err := e.Storage.Create(rel); err != nil {
		return nil, errors.Wrap(err, "recording pending install")
	}

	if err := e.runHooks(ctx, rel, plan, release.HookPreInstall); err != nil {
		return e.failInstall(ctx, rel, plan, opts.Atomic, err)
	}

	if err := e.applyWaves(ctx, rel.Namespace, plan, opts.Wait, opts.Timeout); err != nil {
		return e.failInstall(ctx, rel, plan, opts.Atomic, err)
	}

	if err := e.runHooks(ctx, rel, plan, release.HookPostInstall); err != nil {
		return e.failInstall(ctx, rel, plan, opts.Atomic, err)
	}

	rel.Status = release.StatusDeployed
	rel.Info.LastDeployed = now()
	if err := e.Storage.Update(rel); err != nil {
		return nil, errors.Wrap(err, "recording deployed status")
	}
	return rel, nil
}

func (e *Engine) failInstall(ctx context.Context, rel *release.Release, plan *ExecutionPlan, atomic bool, cause error) (*release.Release, error) {
	rel.Status = release.StatusFailed
	_ = e.Storage.Update(rel)
	if atomic {
		_, _ = e.Uninstall(ctx, NewUninstallOptions(rel.Name, rel.Namespace))
		// The store may hand Uninstall this same record; the install's
		// outcome reported to the caller stays Failed.
		rel.Status = release.StatusFailed
	}
	return rel, errors.Wrap(cause, "install failed")
}

// Upgrade renders a new revision of an existing release, supersedes the
// currently deployed one, and applies the diff wave by wave. Atomic upgrades
// roll back to the previous deployed revision on failure.
func (e *Engine) Upgrade(ctx context.Context, opts UpgradeOptions, manifest string, metadata *pack.Metadata, values map[string]interface{}) (*release.Release, error) {
	current, err := e.Storage.GetLatest(opts.Namespace, opts.Name)
	if err != nil {
		if opts.Install {
			return e.Install(ctx, InstallOptions{
				Name: opts.Name, Namespace: opts.Namespace, Wait: opts.Wait,
				Timeout: opts.Timeout, Atomic: opts.Atomic, Description: opts.Description,
			}, manifest, metadata, values)
		}
		return nil, errors.Wrap(err, "loading current release")
	}

	crdDocs, rest := splitCRDs(manifest)

	plan, err := BuildExecutionPlan(rest)
	if err != nil {
		return nil, errors.Wrap(err, "building execution plan")
	}

	next, err := e.Storage.NextRevision(opts.Namespace, opts.Name)
	if err != nil {
		return nil, errors.Wrap(err, "allocating next revision")
	}

	rel := &release.Release{
		Name:      opts.Name,
		Namespace: opts.Namespace,
		Revision:  next,
		Status:    release.StatusPendingUpgrade,
		Manifest:  manifest,
		Values:    values,
		Info: &release.Info{
			FirstDeployed: current.Info.FirstDeployed,
			Description:   opts.Description,
		},
	}
	rel.Pack = metadata

	if opts.DryRun {
		rel.Status = release.StatusDeployed
		return rel, nil
	}

	if err := e.upgradeCRDs(ctx, rel.Namespace, current.Manifest, crdDocs, opts.Timeout); err != nil {
		return nil, errors.Wrap(err, "applying custom resource definitions")
	}

	// Supersede the currently Deployed revision before recording the new
	// pending one, so GetLatest still resolves to it while we look.
	if err := e.Storage.Supersede(opts.Namespace, opts.Name); err != nil {
		return nil, errors.Wrap(err, "superseding current revision")
	}

	if err := e.Storage.Create(rel); err != nil {
		return nil, errors.Wrap(err, "recording pending upgrade")
	}

	if !opts.NoHooks {
		if err := e.runHooks(ctx, rel, plan, release.HookPreUpgrade); err != nil {
			return e.failUpgrade(ctx, rel, current, opts, err)
		}
	}

	if err := e.applyWaves(ctx, rel.Namespace, plan, opts.Wait, opts.Timeout); err != nil {
		return e.failUpgrade(ctx, rel, current, opts, err)
	}

	if !opts.NoHooks {
		if err := e.runHooks(ctx, rel, plan, release.HookPostUpgrade); err != nil {
			return e.failUpgrade(ctx, rel, current, opts, err)
		}
	}

	rel.Status = release.StatusDeployed
	rel.Info.LastDeployed = now()
	if err := e.Storage.Update(rel); err != nil {
		return nil, errors.Wrap(err, "recording deployed status")
	}
	return rel, nil
}

func (e *Engine) failUpgrade(ctx context.Context, rel, previous *release.Release, opts UpgradeOptions, cause error) (*release.Release, error) {
	rel.Status = release.StatusFailed
	_ = e.Storage.Update(rel)
	if opts.Atomic {
		_, rbErr := e.Rollback(ctx, RollbackOptions{
			Name: rel.Name, Namespace: rel.Namespace, Revision: previous.Revision,
			Wait: opts.Wait, Timeout: opts.Timeout,
		})
		if rbErr != nil {
			return rel, errors.Wrap(cause, fmt.Sprintf("upgrade failed and rollback also failed: %v", rbErr))
		}
	}
	return rel, errors.Wrap(cause, "upgrade failed")
}

// Rollback reapplies a previous revision's manifest as a new revision,
// leaving release history intact (rollback never rewrites past revisions).
func (e *Engine) Rollback(ctx context.Context, opts RollbackOptions) (*release.Release, error) {
	current, err := e.Storage.GetLatest(opts.Namespace, opts.Name)
	if err != nil {
		return nil, errors.Wrap(err, "loading current release")
	}

	target := opts.Revision
	if target == 0 {
		target = current.Revision - 1
	}
	if target < 1 {
		return nil, errors.New("no earlier revision to roll back to")
	}

	previous, err := e.Storage.Get(opts.Namespace, opts.Name, target)
	if err != nil {
		return nil, errors.Wrapf(err, "loading revision %d", target)
	}

	crdDocs, rest := splitCRDs(previous.Manifest)

	plan, err := BuildExecutionPlan(rest)
	if err != nil {
		return nil, errors.Wrap(err, "building execution plan")
	}

	next, err := e.Storage.NextRevision(opts.Namespace, opts.Name)
	if err != nil {
		return nil, errors.Wrap(err, "allocating next revision")
	}

	rel := &release.Release{
		Name:      opts.Name,
		Namespace: opts.Namespace,
		Revision:  next,
		Status:    release.StatusPendingRollback,
		Manifest:  previous.Manifest,
		Values:    previous.Values,
		Pack:      previous.Pack,
		Info: &release.Info{
			FirstDeployed: previous.Info.FirstDeployed,
			Description:   opts.Description,
		},
	}

	if opts.DryRun {
		rel.Status = release.StatusDeployed
		return rel, nil
	}

	if err := e.upgradeCRDs(ctx, rel.Namespace, current.Manifest, crdDocs, opts.Timeout); err != nil {
		return nil, errors.Wrap(err, "applying custom resource definitions")
	}

	if err := e.Storage.Supersede(opts.Namespace, opts.Name); err != nil {
		return nil, errors.Wrap(err, "superseding current revision")
	}

	if err := e.Storage.Create(rel); err != nil {
		return nil, errors.Wrap(err, "recording pending rollback")
	}

	if !opts.NoHooks {
		if err := e.runHooks(ctx, rel, plan, release.HookPreRollback); err != nil {
			rel.Status = release.StatusFailed
			_ = e.Storage.Update(rel)
			return rel, errors.Wrap(err, "rollback failed")
		}
	}

	if err := e.applyWaves(ctx, rel.Namespace, plan, opts.Wait, opts.Timeout); err != nil {
		rel.Status = release.StatusFailed
		_ = e.Storage.Update(rel)
		return rel, errors.Wrap(err, "rollback failed")
	}

	if !opts.NoHooks {
		if err := e.runHooks(ctx, rel, plan, release.HookPostRollback); err != nil {
			rel.Status = release.StatusFailed
			_ = e.Storage.Update(rel)
			return rel, errors.Wrap(err, "rollback failed")
		}
	}

	rel.Status = release.StatusDeployed
	rel.Info.LastDeployed = now()
	if err := e.Storage.Update(rel); err != nil {
		return nil, errors.Wrap(err, "recording deployed status")
	}
	return rel, nil
}

// Uninstall deletes a release's resources (in reverse wave order) and marks
// it uninstalled, or removes its history entirely unless KeepHistory is set.
func (e *Engine) Uninstall(ctx context.Context, opts UninstallOptions) (*release.Release, error) {
	rel, err := e.Storage.GetLatest(opts.Namespace, opts.Name)
	if err != nil {
		return nil, errors.Wrap(err, "loading release")
	}

	plan, err := BuildExecutionPlan(rel.Manifest)
	if err != nil {
		return nil, errors.Wrap(err, "building execution plan")
	}

	if opts.DryRun {
		return rel, nil
	}

	rel.Status = release.StatusPendingUninstall
	if err := e.Storage.Update(rel); err != nil {
		return nil, errors.Wrap(err, "recording pending uninstall")
	}

	if !opts.NoHooks {
		_ = e.runHooks(ctx, rel, plan, release.HookPreDelete)
	}

	for i := len(plan.Waves) - 1; i >= 0; i-- {
		for _, r := range plan.Waves[i].Resources {
			if err := e.Applier.Delete(ctx, rel.Namespace, r.AsRef()); err != nil {
				return rel, errors.Wrapf(err, "deleting %s", r.Key())
			}
		}
	}

	if !opts.NoHooks {
		_ = e.runHooks(ctx, rel, plan, release.HookPostDelete)
	}

	rel.Status = release.StatusUninstalled
	rel.Info.Deleted = now()

	if opts.KeepHistory {
		if err := e.Storage.Update(rel); err != nil {
			return nil, errors.Wrap(err, "recording uninstalled status")
		}
		return rel, nil
	}
	if _, err := e.Storage.DeleteAll(opts.Namespace, opts.Name); err != nil {
		return nil, errors.Wrap(err, "deleting release history")
	}
	return rel, nil
}

// applyWaves walks a plan's waves in ascending order, applying every
// resource in a wave concurrently (bounded by MaxWaveParallelism) and, when
// wait is requested, blocking until the wave is ready before the next one
// starts.
func (e *Engine) applyWaves(ctx context.Context, namespace string, plan *ExecutionPlan, wait bool, timeout time.Duration) error {
	for _, wave := range plan.Waves {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(MaxWaveParallelism)

		for _, r := range wave.Resources {
			r := r
			g.Go(func() error {
				return e.Applier.Apply(gctx, namespace, r)
			})
		}
		if err := g.Wait(); err != nil {
			return errors.Wrapf(err, "applying wave %d", wave.Number)
		}

		if !wait {
			continue
		}
		var refs []ResourceRef
		for _, r := range wave.Resources {
			if !r.SkipWait {
				refs = append(refs, r.AsRef())
			}
		}
		if len(refs) == 0 {
			continue
		}
		if err := e.Applier.Wait(ctx, namespace, refs, timeout); err != nil {
			return errors.Wrapf(err, "waiting for wave %d", wave.Number)
		}
	}
	return nil
}

// runHooks executes every hook registered for a phase, in ascending weight
// order, honoring each hook's delete and failure policy. A retry(n) hook is
// run up to n more times before it counts as failed; a rollback policy
// fails the phase the same way fail does.
func (e *Engine) runHooks(ctx context.Context, rel *release.Release, plan *ExecutionPlan, phase release.HookEvent) error {
	for _, hook := range plan.HooksForPhase(phase) {
		if hook.HasDeletePolicy(release.HookBeforeHookCreation) {
			_ = e.Applier.DeleteHook(ctx, rel.Namespace, hook)
		}

		hookCtx, cancel := context.WithTimeout(ctx, hook.EffectiveTimeout())
		err := e.Applier.RunHook(hookCtx, rel.Namespace, hook)
		cancel()
		for attempt := 0; err != nil && hook.EffectiveFailurePolicy() == release.FailurePolicyRetryPrefix && attempt < hook.RetryCount; attempt++ {
			hookCtx, cancel = context.WithTimeout(ctx, hook.EffectiveTimeout())
			err = e.Applier.RunHook(hookCtx, rel.Namespace, hook)
			cancel()
		}

		if err == nil {
			hook.LastRun = release.Execution{Phase: release.HookPhaseSucceeded, CompletedAt: now()}
			rel.Hooks = append(rel.Hooks, hook)
			if hook.HasDeletePolicy(release.HookSucceeded) {
				_ = e.Applier.DeleteHook(ctx, rel.Namespace, hook)
			}
			continue
		}

		hook.LastRun = release.Execution{Phase: release.HookPhaseFailed, CompletedAt: now()}
		rel.Hooks = append(rel.Hooks, hook)
		if hook.HasDeletePolicy(release.HookFailed) {
			_ = e.Applier.DeleteHook(ctx, rel.Namespace, hook)
		}

		switch hook.EffectiveFailurePolicy() {
		case release.FailurePolicyContinue:
			continue
		default:
			return errors.Wrapf(err, "hook %s (%s) failed", hook.Name, phase)
		}
	}
	return nil
}

// RecoverStale promotes any release stuck in a Pending* status (e.g. from a
// crashed controller) to Failed, marking it recoverable and bumping its
// recovery count, so a subsequent upgrade or rollback can proceed instead of
// being blocked by a half-finished operation.
func (e *Engine) RecoverStale(namespace, name string) (*release.Release, error) {
	rel, err := e.Storage.GetLatest(namespace, name)
	if err != nil {
		return nil, err
	}
	if !rel.Status.IsPending() {
		return rel, nil
	}

	rel.Status = release.StatusFailed
	rel.Info.Recoverable = true
	rel.Info.RecoveryCount++
	if err := e.Storage.Update(rel); err != nil {
		return nil, errors.Wrap(err, "recording recovered status")
	}
	return rel, nil
}

var nowFunc = time.Now

func now() time.Time { return nowFunc() }
