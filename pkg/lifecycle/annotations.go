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

// Package lifecycle orchestrates install, upgrade, rollback, and uninstall
// operations: building a wave-ordered execution plan from a rendered
// manifest, running hooks at the right phases, detecting drift against the
// live cluster, and rolling a release back to its previous good revision
// when an atomic operation fails.
package lifecycle

import (
	"strconv"
	"strings"
	"time"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

// ResourceRef is a "Kind/Name" reference used by wait-for annotations.
type ResourceRef struct {
	Kind string
	Name string
}

func (r ResourceRef) String() string {
	return r.Kind + "/" + r.Name
}

func getAnnotation(annotations map[string]string, sherpackKey, helmKey string) (string, bool) {
	if v, ok := annotations[sherpackKey]; ok {
		return v, true
	}
	if helmKey != "" {
		if v, ok := annotations[helmKey]; ok {
			return v, true
		}
	}
	return "", false
}

// parseHookPhases splits a comma-separated hook annotation value into events.
func parseHookPhases(value string) []release.HookEvent {
	var events []release.HookEvent
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			events = append(events, release.HookEvent(part))
		}
	}
	return events
}

func parseSyncWave(annotations map[string]string) int {
	v, ok := annotations[release.AnnotationSyncWave]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func parseWaitFor(annotations map[string]string) []ResourceRef {
	v, ok := annotations[release.AnnotationWaitFor]
	if !ok || v == "" {
		return nil
	}
	var refs []ResourceRef
	for _, dep := range strings.Split(v, ",") {
		dep = strings.TrimSpace(dep)
		parts := strings.SplitN(dep, "/", 2)
		if len(parts) == 2 {
			refs = append(refs, ResourceRef{Kind: parts[0], Name: parts[1]})
		}
	}
	return refs
}

func shouldSkipWait(annotations map[string]string) bool {
	v, ok := annotations[release.AnnotationSkipWait]
	if !ok {
		return false
	}
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1"
}

func parseDuration(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, true
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

func parseHookTimeout(annotations map[string]string) time.Duration {
	v, ok := getAnnotation(annotations, release.AnnotationHookTimeout, "")
	if !ok {
		return release.DefaultHookTimeout
	}
	d, ok := parseDuration(v)
	if !ok {
		return release.DefaultHookTimeout
	}
	return d
}

func parseHookWeight(annotations map[string]string) int {
	v, ok := getAnnotation(annotations, release.AnnotationHookWeight, "")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func parseDeletePolicies(annotations map[string]string) []release.DeletePolicy {
	v, ok := getAnnotation(annotations, release.AnnotationHookDeletePolicy, "helm.sh/hook-delete-policy")
	if !ok {
		return []release.DeletePolicy{release.HookBeforeHookCreation}
	}
	var policies []release.DeletePolicy
	for _, p := range strings.Split(v, ",") {
		switch strings.TrimSpace(p) {
		case "before-hook-creation":
			policies = append(policies, release.HookBeforeHookCreation)
		case "hook-succeeded":
			policies = append(policies, release.HookSucceeded)
		case "hook-failed":
			policies = append(policies, release.HookFailed)
		}
	}
	if len(policies) == 0 {
		return []release.DeletePolicy{release.HookBeforeHookCreation}
	}
	return policies
}

func parseFailurePolicy(annotations map[string]string) (release.FailurePolicy, int) {
	v, ok := annotations[release.AnnotationHookFailurePolicy]
	if !ok {
		return release.FailurePolicyFail, 0
	}
	lower := strings.ToLower(strings.TrimSpace(v))
	switch {
	case lower == "continue":
		return release.FailurePolicyContinue, 0
	case lower == "rollback":
		return release.FailurePolicyRollback, 0
	case lower == "fail" || lower == "abort":
		return release.FailurePolicyFail, 0
	case strings.HasPrefix(lower, release.FailurePolicyRetryPrefix):
		rest := strings.TrimPrefix(lower, release.FailurePolicyRetryPrefix)
		rest = strings.Trim(rest, "(): ")
		count, err := strconv.Atoi(rest)
		if err != nil {
			count = 3
		}
		return release.FailurePolicy(release.FailurePolicyRetryPrefix), count
	default:
		return release.FailurePolicyFail, 0
	}
}
