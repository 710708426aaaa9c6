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

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHookEffectiveDeletePoliciesDefaultsToBeforeHookCreation(t *testing.T) {
	h := &Hook{Name: "job"}
	assert.Equal(t, []DeletePolicy{HookBeforeHookCreation}, h.EffectiveDeletePolicies())

	h.DeletePolicies = []DeletePolicy{HookSucceeded}
	assert.Equal(t, []DeletePolicy{HookSucceeded}, h.EffectiveDeletePolicies())
}

func TestHookEffectiveTimeoutDefault(t *testing.T) {
	h := &Hook{}
	assert.Equal(t, DefaultHookTimeout, h.EffectiveTimeout())

	h.Timeout = 2 * time.Minute
	assert.Equal(t, 2*time.Minute, h.EffectiveTimeout())
}

func TestHookEffectiveFailurePolicyDefault(t *testing.T) {
	h := &Hook{}
	assert.Equal(t, FailurePolicyFail, h.EffectiveFailurePolicy())

	h.FailurePolicy = FailurePolicyRollback
	assert.Equal(t, FailurePolicyRollback, h.EffectiveFailurePolicy())
}

func TestHookHasDeletePolicy(t *testing.T) {
	h := &Hook{DeletePolicies: []DeletePolicy{HookSucceeded, HookFailed}}
	assert.True(t, h.HasDeletePolicy(HookSucceeded))
	assert.False(t, h.HasDeletePolicy(HookBeforeHookCreation))
}

func TestByWeightSortsAscendingThenByName(t *testing.T) {
	hooks := []*Hook{
		{Name: "z", Weight: 0},
		{Name: "a", Weight: 5},
		{Name: "b", Weight: 0},
	}
	sort.Stable(ByWeight(hooks))
	assert.Equal(t, []string{"b", "z", "a"}, []string{hooks[0].Name, hooks[1].Name, hooks[2].Name})
}
