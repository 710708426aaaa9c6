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
	"fmt"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
	"github.com/alegeay/Sherpack-sub001/pkg/values"
)

// SkippedDependency records why a dependency was excluded from resolution.
type SkippedDependency struct {
	Dependency *pack.Dependency
	Reason     string
}

// FilterResult splits a pack's declared dependencies into the ones that
// should be resolved and the ones skipped, with the reason for each skip.
type FilterResult struct {
	ToResolve []*pack.Dependency
	Skipped   []SkippedDependency
}

// HasSkipped reports whether any dependency was excluded.
func (r *FilterResult) HasSkipped() bool {
	return len(r.Skipped) > 0
}

// SkippedSummary renders one "name: reason" line per skipped dependency.
func (r *FilterResult) SkippedSummary() string {
	out := ""
	for i, s := range r.Skipped {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("  %s: %s", s.Dependency.EffectiveName(), s.Reason)
	}
	return out
}

// FilterDependencies applies the three filtering rules in order: disabled,
// resolve==never, then condition truthiness against tree (when resolve is
// the default when-enabled). resolve==always skips the condition check.
func FilterDependencies(deps []*pack.Dependency, tree map[string]interface{}) *FilterResult {
	result := &FilterResult{}
	for _, dep := range deps {
		if !dep.IsEnabled() {
			result.Skipped = append(result.Skipped, SkippedDependency{dep, "disabled"})
			continue
		}
		if dep.EffectiveResolve() == pack.ResolveNever {
			result.Skipped = append(result.Skipped, SkippedDependency{dep, "resolve: never"})
			continue
		}
		if dep.EffectiveResolve() != pack.ResolveAlways && dep.Condition != "" {
			if !values.GetBool(tree, dep.Condition) {
				result.Skipped = append(result.Skipped, SkippedDependency{
					dep, fmt.Sprintf("condition %q is false", dep.Condition),
				})
				continue
			}
		}
		result.ToResolve = append(result.ToResolve, dep)
	}
	return result
}
