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

package release

import "time"

// Annotation keys the lifecycle engine reads off rendered resources.
// sherpack.io/* is the native form; helm.sh/hook is recognized for
// compatibility with charts carrying Helm's own hook annotations.
const (
	AnnotationHook              = "sherpack.io/hook"
	AnnotationHookCompat        = "helm.sh/hook"
	AnnotationHookWeight        = "sherpack.io/hook-weight"
	AnnotationHookDeletePolicy  = "sherpack.io/hook-delete-policy"
	AnnotationHookFailurePolicy = "sherpack.io/hook-failure-policy"
	AnnotationHookTimeout       = "sherpack.io/hook-timeout"
	AnnotationSyncWave          = "sherpack.io/sync-wave"
	AnnotationWaitFor           = "sherpack.io/wait-for"
	AnnotationSkipWait          = "sherpack.io/skip-wait"
	AnnotationCRDPolicy         = "sherpack.io/crd-policy"
)

// DefaultHookTimeout is applied when a hook carries no explicit
// hook-timeout annotation.
const DefaultHookTimeout = 5 * time.Minute

// HookEvent is a lifecycle phase boundary a hook can run at.
type HookEvent string

const (
	HookPreInstall   HookEvent = "pre-install"
	HookPostInstall  HookEvent = "post-install"
	HookPreUpgrade   HookEvent = "pre-upgrade"
	HookPostUpgrade  HookEvent = "post-upgrade"
	HookPreRollback  HookEvent = "pre-rollback"
	HookPostRollback HookEvent = "post-rollback"
	HookPreDelete    HookEvent = "pre-delete"
	HookPostDelete   HookEvent = "post-delete"
	HookTest         HookEvent = "test"
)

// HookPhase is the last-observed state of a single hook execution.
type HookPhase string

const (
	HookPhaseUnknown   HookPhase = "unknown"
	HookPhaseRunning   HookPhase = "running"
	HookPhaseSucceeded HookPhase = "succeeded"
	HookPhaseFailed    HookPhase = "failed"
)

// DeletePolicy governs when a hook resource is removed relative to its
// execution.
type DeletePolicy string

const (
	HookBeforeHookCreation DeletePolicy = "before-hook-creation"
	HookSucceeded          DeletePolicy = "hook-succeeded"
	HookFailed             DeletePolicy = "hook-failed"
)

// FailurePolicy governs what the lifecycle engine does when a hook fails.
type FailurePolicy string

const (
	FailurePolicyFail     FailurePolicy = "fail"
	FailurePolicyContinue FailurePolicy = "continue"
	FailurePolicyRollback FailurePolicy = "rollback"
	// FailurePolicyRetryPrefix is followed by a retry count, e.g.
	// "retry(3)"; the lifecycle package's parseFailurePolicy splits the two
	// apart.
	FailurePolicyRetryPrefix = "retry"
)

// Execution records one run of a hook.
type Execution struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Phase       HookPhase
}

// Hook is one hook resource extracted from a rendered manifest, along with
// the policy annotations that govern when it runs and how it's cleaned up.
type Hook struct {
	Name           string
	Kind           string
	Path           string
	Manifest       string
	Events         []HookEvent
	Weight         int
	Timeout        time.Duration
	DeletePolicies []DeletePolicy
	FailurePolicy  FailurePolicy
	RetryCount     int
	LastRun        Execution
}

// EffectiveDeletePolicies returns h's delete policies, defaulting to
// before-hook-creation when unset.
func (h *Hook) EffectiveDeletePolicies() []DeletePolicy {
	if len(h.DeletePolicies) == 0 {
		return []DeletePolicy{HookBeforeHookCreation}
	}
	return h.DeletePolicies
}

// EffectiveTimeout returns h's timeout, defaulting to DefaultHookTimeout.
func (h *Hook) EffectiveTimeout() time.Duration {
	if h.Timeout <= 0 {
		return DefaultHookTimeout
	}
	return h.Timeout
}

// EffectiveFailurePolicy returns h's failure policy, defaulting to fail.
func (h *Hook) EffectiveFailurePolicy() FailurePolicy {
	if h.FailurePolicy == "" {
		return FailurePolicyFail
	}
	return h.FailurePolicy
}

// HasDeletePolicy reports whether h is configured to delete on p.
func (h *Hook) HasDeletePolicy(p DeletePolicy) bool {
	for _, dp := range h.EffectiveDeletePolicies() {
		if dp == p {
			return true
		}
	}
	return false
}

// ByWeight sorts hooks ascending by weight, then by name for stability
// among equal weights (mirroring the teacher's hookByWeight comparator).
type ByWeight []*Hook

func (b ByWeight) Len() int      { return len(b) }
func (b ByWeight) Swap(i, j int) { b[i], b[j] = b[j], b[i] }
func (b ByWeight) Less(i, j int) bool {
	if b[i].Weight != b[j].Weight {
		return b[i].Weight < b[j].Weight
	}
	return b[i].Name < b[j].Name
}
