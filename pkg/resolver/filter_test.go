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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

func boolPtr(b bool) *bool { return &b }

func TestFilterDependenciesSkipsDisabled(t *testing.T) {
	deps := []*pack.Dependency{
		{Name: "nginx", Enabled: boolPtr(false)},
	}
	result := FilterDependencies(deps, nil)
	assert.Empty(t, result.ToResolve)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "disabled", result.Skipped[0].Reason)
}

func TestFilterDependenciesSkipsResolveNever(t *testing.T) {
	deps := []*pack.Dependency{
		{Name: "nginx", Resolve: pack.ResolveNever},
	}
	result := FilterDependencies(deps, nil)
	assert.Empty(t, result.ToResolve)
	assert.Equal(t, "resolve: never", result.Skipped[0].Reason)
}

func TestFilterDependenciesEvaluatesCondition(t *testing.T) {
	tree := map[string]interface{}{
		"nginx": map[string]interface{}{"enabled": false},
	}
	deps := []*pack.Dependency{
		{Name: "nginx", Condition: "nginx.enabled"},
	}
	result := FilterDependencies(deps, tree)
	assert.Empty(t, result.ToResolve)
	assert.Contains(t, result.Skipped[0].Reason, "false")
}

func TestFilterDependenciesUndefinedConditionIsFalse(t *testing.T) {
	deps := []*pack.Dependency{
		{Name: "nginx", Condition: "nginx.enabled"},
	}
	result := FilterDependencies(deps, map[string]interface{}{})
	assert.Empty(t, result.ToResolve)
}

func TestFilterDependenciesAlwaysIgnoresCondition(t *testing.T) {
	tree := map[string]interface{}{
		"nginx": map[string]interface{}{"enabled": false},
	}
	deps := []*pack.Dependency{
		{Name: "nginx", Condition: "nginx.enabled", Resolve: pack.ResolveAlways},
	}
	result := FilterDependencies(deps, tree)
	require.Len(t, result.ToResolve, 1)
	assert.Empty(t, result.Skipped)
}

func TestFilterDependenciesKeepsEnabledWithTrueCondition(t *testing.T) {
	tree := map[string]interface{}{
		"nginx": map[string]interface{}{"enabled": true},
	}
	deps := []*pack.Dependency{
		{Name: "nginx", Condition: "nginx.enabled"},
	}
	result := FilterDependencies(deps, tree)
	require.Len(t, result.ToResolve, 1)
	assert.False(t, result.HasSkipped())
}
