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
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

// Resource is one Kubernetes object extracted from a rendered manifest,
// annotated with the sync-wave metadata that controls apply order.
type Resource struct {
	YAML         string
	Kind         string
	Name         string
	Namespace    string
	Wave         int
	Dependencies []ResourceRef
	IsHook       bool
	HookPhases   []release.HookEvent
	SkipWait     bool
}

// Key uniquely identifies a resource within a single release by kind/name.
func (r Resource) Key() string { return r.Kind + "/" + r.Name }

func (r Resource) AsRef() ResourceRef { return ResourceRef{Kind: r.Kind, Name: r.Name} }

type manifestMeta struct {
	Kind     string `json:"kind"`
	Metadata struct {
		Name        string            `json:"name"`
		Namespace   string            `json:"namespace"`
		Annotations map[string]string `json:"annotations"`
	} `json:"metadata"`
}

// parseResource parses a single YAML document into a Resource, returning
// false if it is not a valid, named Kubernetes object.
func parseResource(doc string) (Resource, bool) {
	var meta manifestMeta
	if err := yaml.Unmarshal([]byte(doc), &meta); err != nil {
		return Resource{}, false
	}
	if meta.Metadata.Name == "" {
		return Resource{}, false
	}

	annotations := meta.Metadata.Annotations
	hookValue, isHook := getAnnotation(annotations, release.AnnotationHook, release.AnnotationHookCompat)

	r := Resource{
		YAML:         doc,
		Kind:         meta.Kind,
		Name:         meta.Metadata.Name,
		Namespace:    meta.Metadata.Namespace,
		Wave:         parseSyncWave(annotations),
		Dependencies: parseWaitFor(annotations),
		IsHook:       isHook,
		SkipWait:     shouldSkipWait(annotations),
	}
	if isHook {
		r.HookPhases = parseHookPhases(hookValue)
	}
	return r, true
}

// HookFromResource builds a release.Hook from a parsed manifest Resource
// that carries a hook annotation.
func HookFromResource(r Resource) *release.Hook {
	var meta manifestMeta
	_ = yaml.Unmarshal([]byte(r.YAML), &meta)
	annotations := meta.Metadata.Annotations

	failurePolicy, retries := parseFailurePolicy(annotations)
	return &release.Hook{
		Name:           r.Name,
		Kind:           r.Kind,
		Manifest:       r.YAML,
		Events:         r.HookPhases,
		Weight:         parseHookWeight(annotations),
		Timeout:        parseHookTimeout(annotations),
		DeletePolicies: parseDeletePolicies(annotations),
		FailurePolicy:  failurePolicy,
		RetryCount:     retries,
	}
}

// Wave is a group of non-hook resources applied together and waited on as a
// unit before the next wave proceeds.
type Wave struct {
	Number    int
	Resources []Resource
}

func (w Wave) IsEmpty() bool { return len(w.Resources) == 0 }

func (w Wave) ResourceKeys() []string {
	keys := make([]string, len(w.Resources))
	for i, r := range w.Resources {
		keys[i] = r.Key()
	}
	return keys
}

// ExecutionPlan is the wave- and hook-organized view of a rendered manifest
// that the engine walks to apply a release.
type ExecutionPlan struct {
	Waves        []Wave
	Hooks        map[release.HookEvent][]*release.Hook
	Dependencies map[string][]ResourceRef

	index map[string]Resource
}

// BuildExecutionPlan parses a rendered, "---"-joined manifest into an
// ExecutionPlan: resources are grouped into ascending-order waves, hooks are
// grouped and weight-sorted by phase, and explicit wait-for edges are
// recorded for dependency checking during apply.
func BuildExecutionPlan(manifest string) (*ExecutionPlan, error) {
	wavesByNumber := map[int][]Resource{}
	hooksByPhase := map[release.HookEvent][]*release.Hook{}
	dependencies := map[string][]ResourceRef{}
	index := map[string]Resource{}

	for _, doc := range strings.Split(manifest, "---") {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		resource, ok := parseResource(doc)
		if !ok {
			continue
		}

		key := resource.Key()
		if len(resource.Dependencies) > 0 {
			dependencies[key] = resource.Dependencies
		}
		index[key] = resource

		if resource.IsHook {
			hook := HookFromResource(resource)
			for _, phase := range resource.HookPhases {
				hooksByPhase[phase] = append(hooksByPhase[phase], hook)
			}
			continue
		}
		wavesByNumber[resource.Wave] = append(wavesByNumber[resource.Wave], resource)
	}

	for phase, hooks := range hooksByPhase {
		sort.Stable(release.ByWeight(hooks))
		hooksByPhase[phase] = hooks
	}

	numbers := make([]int, 0, len(wavesByNumber))
	for n := range wavesByNumber {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	waves := make([]Wave, 0, len(numbers))
	for _, n := range numbers {
		waves = append(waves, Wave{Number: n, Resources: wavesByNumber[n]})
	}

	return &ExecutionPlan{
		Waves:        waves,
		Hooks:        hooksByPhase,
		Dependencies: dependencies,
		index:        index,
	}, nil
}

// AllResources returns every non-hook resource across all waves, in wave
// order.
func (p *ExecutionPlan) AllResources() []Resource {
	var out []Resource
	for _, w := range p.Waves {
		out = append(out, w.Resources...)
	}
	return out
}

func (p *ExecutionPlan) HooksForPhase(phase release.HookEvent) []*release.Hook {
	return p.Hooks[phase]
}

func (p *ExecutionPlan) GetResource(key string) (Resource, bool) {
	r, ok := p.index[key]
	return r, ok
}

// DependenciesSatisfied reports whether every wait-for reference of the
// resource identified by key appears in ready.
func (p *ExecutionPlan) DependenciesSatisfied(key string, ready map[string]bool) bool {
	deps, ok := p.Dependencies[key]
	if !ok {
		return true
	}
	for _, dep := range deps {
		if !ready[dep.String()] {
			return false
		}
	}
	return true
}

func (p *ExecutionPlan) WaveCount() int { return len(p.Waves) }

func (p *ExecutionPlan) ResourceCount() int {
	n := 0
	for _, w := range p.Waves {
		n += len(w.Resources)
	}
	return n
}

func (p *ExecutionPlan) HookCount(phase release.HookEvent) int { return len(p.Hooks[phase]) }

// Summary renders a human-readable description of the plan, used by dry-run
// and plan-inspection output.
func (p *ExecutionPlan) Summary() string {
	lines := []string{fmt.Sprintf("Execution Plan: %d resources in %d waves", p.ResourceCount(), p.WaveCount())}
	for _, w := range p.Waves {
		lines = append(lines, fmt.Sprintf("  Wave %d: %d resources", w.Number, len(w.Resources)))
		for _, r := range w.Resources {
			lines = append(lines, "    - "+r.Key())
		}
	}
	if len(p.Hooks) > 0 {
		lines = append(lines, "  Hooks:")
		for phase, hooks := range p.Hooks {
			lines = append(lines, fmt.Sprintf("    - %s: %d hooks", phase, len(hooks)))
		}
	}
	return strings.Join(lines, "\n")
}
