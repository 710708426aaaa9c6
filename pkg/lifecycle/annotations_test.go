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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

func TestGetAnnotationPrefersSherpack(t *testing.T) {
	annotations := map[string]string{
		release.AnnotationHook:       "pre-install",
		release.AnnotationHookCompat: "post-install",
	}
	v, ok := getAnnotation(annotations, release.AnnotationHook, release.AnnotationHookCompat)
	assert.True(t, ok)
	assert.Equal(t, "pre-install", v)
}

func TestGetAnnotationFallsBackToHelm(t *testing.T) {
	annotations := map[string]string{release.AnnotationHookCompat: "post-install"}
	v, ok := getAnnotation(annotations, release.AnnotationHook, release.AnnotationHookCompat)
	assert.True(t, ok)
	assert.Equal(t, "post-install", v)
}

func TestParseSyncWaveDefaultsToZero(t *testing.T) {
	assert.Equal(t, 0, parseSyncWave(nil))
	assert.Equal(t, 2, parseSyncWave(map[string]string{release.AnnotationSyncWave: "2"}))
	assert.Equal(t, -1, parseSyncWave(map[string]string{release.AnnotationSyncWave: "-1"}))
}

func TestParseWaitForMultiple(t *testing.T) {
	refs := parseWaitFor(map[string]string{release.AnnotationWaitFor: "Deployment/db, Service/cache"})
	assert.Len(t, refs, 2)
	assert.Equal(t, "Deployment", refs[0].Kind)
	assert.Equal(t, "Service", refs[1].Kind)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"5m":    5 * time.Minute,
		"30s":   30 * time.Second,
		"1h":    time.Hour,
		"100ms": 100 * time.Millisecond,
		"60":    60 * time.Second,
	}
	for in, want := range cases {
		got, ok := parseDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := parseDuration("")
	assert.False(t, ok)
}

func TestParseDeletePolicyCombinations(t *testing.T) {
	policies := parseDeletePolicies(map[string]string{"helm.sh/hook-delete-policy": "hook-succeeded"})
	assert.Equal(t, []release.DeletePolicy{release.HookSucceeded}, policies)

	policies = parseDeletePolicies(map[string]string{"helm.sh/hook-delete-policy": "hook-succeeded,hook-failed"})
	assert.ElementsMatch(t, []release.DeletePolicy{release.HookSucceeded, release.HookFailed}, policies)

	policies = parseDeletePolicies(nil)
	assert.Equal(t, []release.DeletePolicy{release.HookBeforeHookCreation}, policies)
}

func TestParseFailurePolicyRetry(t *testing.T) {
	policy, count := parseFailurePolicy(map[string]string{release.AnnotationHookFailurePolicy: "retry(5)"})
	assert.EqualValues(t, "retry", policy)
	assert.Equal(t, 5, count)

	policy, count = parseFailurePolicy(map[string]string{release.AnnotationHookFailurePolicy: "continue"})
	assert.Equal(t, release.FailurePolicyContinue, policy)
	assert.Equal(t, 0, count)
}
