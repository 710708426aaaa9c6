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

// Package render applies the template engine (package engine) across every
// non-partial file under a pack's templates/, recursing into enabled
// subpacks the way the teacher's own chart/common/util.ToRenderValues
// composes the Chart/Release/Capabilities/Values top-level context, but
// generalised to this module's pack tree and its strict-undefined Jinja2
// engine.
package render

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"sigs.k8s.io/yaml"

	"github.com/alegeay/Sherpack-sub001/pkg/engine"
	"github.com/alegeay/Sherpack-sub001/pkg/engine/files"
	"github.com/alegeay/Sherpack-sub001/pkg/pack"
	"github.com/alegeay/Sherpack-sub001/pkg/values"
)

// notesFile is the template (partial or not) whose rendered output is
// surfaced as Report.Notes instead of as a manifest entry.
const notesFile = "templates/NOTES.txt"

// defaultMaxDepth is the subchart recursion ceiling named in the data
// model; exceeding it is always a fatal error regardless of Mode.
const defaultMaxDepth = 10

// Mode selects how a render tolerates per-template failures.
type Mode int

const (
	// FailFast stops at the first template error.
	FailFast Mode = iota
	// CollectErrors continues past failures, recording each in the
	// Report so a caller (e.g. lint) can see every failure at once.
	CollectErrors
)

// ReleaseOptions is the caller-supplied half of TemplateContext.release;
// Service is always fixed to "Sherpack".
type ReleaseOptions struct {
	Name      string
	Namespace string
	Revision  int
	IsInstall bool
	IsUpgrade bool
}

// Options configures a single Render call.
type Options struct {
	Mode Mode
	// MaxDepth overrides defaultMaxDepth when non-zero.
	MaxDepth int
	// Strict, when true, turns a missing subchart for an enabled
	// dependency into an error instead of a warning.
	Strict bool
	// Secrets, when set, is an existing engine state to resume (e.g. a
	// seeded secret store carried over from a prior release revision).
	// A nil value starts a fresh, empty store.
	Secrets *engine.Engine
}

// TemplateError is one template's fatal render failure, recorded instead
// of raised in CollectErrors mode.
type TemplateError struct {
	Path string
	Err  *engine.RenderError
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err.Error())
}

// YamlError is a rendered file that failed to parse as multi-document
// YAML during output post-processing. It is always recorded rather than
// raised, independent of Mode, because lint needs to see every malformed
// document in one pass.
type YamlError struct {
	Path string
	Err  error
}

func (e *YamlError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Err.Error())
}

// RenderedFile is one emitted manifest, keyed by its path within the
// render (e.g. "deployment.yaml" or "charts/redis/templates/service.yaml").
type RenderedFile struct {
	Path    string
	Content string
}

// Report is a render's full result: an insertion-ordered file list (so
// callers that care about manifest ordering, like `sherpack template`,
// see templates in a stable, deterministic order), the root pack's notes,
// and every non-fatal issue collected along the way.
type Report struct {
	Files          []RenderedFile
	Notes          string
	TemplateErrors []*TemplateError
	YamlErrors     []*YamlError
	Warnings       []string
}

// Map returns Files as a plain path->content map for callers that don't
// need ordering.
func (r *Report) Map() map[string]string {
	out := make(map[string]string, len(r.Files))
	for _, f := range r.Files {
		out[f.Path] = f.Content
	}
	return out
}

// OK reports whether the render produced no fatal template errors. A
// non-empty YamlErrors list does not affect OK: YAML post-processing
// failures are informational, not render failures.
func (r *Report) OK() bool {
	return len(r.TemplateErrors) == 0
}

func (r *Report) addFile(path, content string) {
	r.Files = append(r.Files, RenderedFile{Path: path, Content: content})
}

// Render renders p and every enabled, resolvable dependency beneath it,
// against the given values and release/capabilities context.
func Render(p *pack.Pack, vals map[string]interface{}, release ReleaseOptions, caps *Capabilities, opts Options) (*Report, error) {
	if caps == nil {
		caps = DefaultCapabilities
	}
	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = defaultMaxDepth
	}

	eng := opts.Secrets
	if eng == nil {
		eng = engine.NewEngine()
	}
	eng.Strict = opts.Strict

	report := &Report{}
	releaseCtx := releaseContext(release)

	err := renderPack(p, "", vals, releaseCtx, caps, eng, opts.Mode, maxDepth, 0, report)
	if err != nil {
		return report, err
	}
	return report, nil
}

func releaseContext(r ReleaseOptions) map[string]interface{} {
	return map[string]interface{}{
		"name":       r.Name,
		"namespace":  r.Namespace,
		"revision":   float64(r.Revision),
		"is_install": r.IsInstall,
		"is_upgrade": r.IsUpgrade,
		"service":    "Sherpack",
	}
}

func packContext(p *pack.Pack) map[string]interface{} {
	m := map[string]interface{}{
		"name":    p.Name(),
		"version": "",
	}
	if p.Metadata != nil {
		m["version"] = p.Metadata.Version
		if p.Metadata.AppVersion != "" {
			m["appVersion"] = p.Metadata.AppVersion
		}
	}
	return m
}

// renderPack renders one pack's own templates/crds, then recurses into its
// enabled dependencies, writing everything into report under keyPrefix
// ("" at the root, "charts/<effectiveName>/" for subpacks).
func renderPack(p *pack.Pack, keyPrefix string, scopedValues map[string]interface{}, releaseCtx map[string]interface{}, caps *Capabilities, eng *engine.Engine, mode Mode, maxDepth, depth int, report *Report) error {
	if depth > maxDepth {
		return errors.Errorf("render: subchart nesting exceeds maximum depth of %d at %q", maxDepth, p.Name())
	}

	filesAPI := files.New(filesContentsFor(p))
	ctxVars := map[string]interface{}{
		"values":       scopedValues,
		"release":      releaseCtx,
		"pack":         packContext(p),
		"capabilities": caps.asTemplateValue(),
		"files":        filesAPI,
	}

	all := make([]*pack.File, 0, len(p.Templates)+len(p.CRDs))
	all = append(all, p.Templates...)
	all = append(all, p.CRDs...)

	for _, f := range all {
		if pack.IsPartial(f.Path) {
			continue
		}
		out, rerr := eng.Render(f.Path, string(f.Data), ctxVars)
		if rerr != nil {
			if mode == FailFast {
				return &TemplateError{Path: keyPrefix + f.Path, Err: rerr}
			}
			report.TemplateErrors = append(report.TemplateErrors, &TemplateError{Path: keyPrefix + f.Path, Err: rerr})
			continue
		}

		key := keyPrefix + f.Path
		if keyPrefix == "" {
			key = strings.TrimPrefix(f.Path, "templates/")
		}
		if f.Path == notesFile && keyPrefix == "" {
			report.Notes = out
			continue
		}
		report.addFile(key, out)
		checkYAML(key, out, report)
	}

	for _, dep := range p.Metadata.Dependencies {
		if err := renderDependency(p, dep, keyPrefix, scopedValues, releaseCtx, caps, eng, mode, maxDepth, depth, report); err != nil {
			return err
		}
	}
	return nil
}

func renderDependency(parent *pack.Pack, dep *pack.Dependency, keyPrefix string, parentValues map[string]interface{}, releaseCtx map[string]interface{}, caps *Capabilities, eng *engine.Engine, mode Mode, maxDepth, depth int, report *Report) error {
	if !dependencyEnabled(dep, parentValues) {
		return nil
	}
	effectiveName := dep.EffectiveName()
	child := parent.Dependency(effectiveName)
	if child == nil {
		msg := fmt.Sprintf("render: enabled dependency %q has no materialised pack under charts/%s", dep.Name, effectiveName)
		if eng.Strict {
			return errors.New(msg)
		}
		report.Warnings = append(report.Warnings, msg)
		return nil
	}

	childValues := values.Scope(child.Values, parentValues, effectiveName)
	if len(dep.ImportValues) > 0 {
		merged, err := values.ImportValues(parentValues, childValues, dep.ImportValues)
		if err != nil {
			return errors.Wrapf(err, "render: import-values for %q", effectiveName)
		}
		parentValues = merged
	}

	childEngine := engine.NewEngine()
	childEngine.Strict = eng.Strict
	childEngine.Secrets = eng.Secrets

	return renderPack(child, keyPrefix+"charts/"+effectiveName+"/", childValues, releaseCtx, caps, childEngine, mode, maxDepth, depth+1, report)
}

// dependencyEnabled applies the 4.3 filtering rules that also gate
// rendering: an explicitly disabled or never-resolved dependency, or one
// whose condition evaluates false, contributes nothing to the manifest set
// even if a materialised pack happens to exist for it.
func dependencyEnabled(dep *pack.Dependency, parentValues map[string]interface{}) bool {
	if !dep.IsEnabled() {
		return false
	}
	if dep.EffectiveResolve() == pack.ResolveNever {
		return false
	}
	if dep.EffectiveResolve() == pack.ResolveAlways {
		return true
	}
	if dep.Condition == "" {
		return true
	}
	v, err := values.GetPath(parentValues, dep.Condition)
	if err != nil {
		return false
	}
	return values.Truthy(v)
}

// filesContentsFor extracts the files/-rooted subset of p.Files, stripping
// the "files/" prefix so templates address them the way the Files API
// sandbox expects (paths relative to files/, not to the pack root).
func filesContentsFor(p *pack.Pack) map[string][]byte {
	out := make(map[string][]byte, len(p.Files))
	for _, f := range p.Files {
		if rel, ok := strings.CutPrefix(f.Path, "files/"); ok {
			out[rel] = f.Data
		}
	}
	return out
}

// checkYAML re-parses a rendered file as multi-document YAML and records
// any parse failure as a YamlError without aborting the render, per 4.2's
// "re-parsed ... not re-raised" post-processing rule.
func checkYAML(path, content string, report *Report) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader([]byte(content))))
	for {
		raw, err := reader.Read()
		if err != nil {
			break
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var doc map[string]interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			report.YamlErrors = append(report.YamlErrors, &YamlError{Path: path, Err: err})
			return
		}
	}
}
