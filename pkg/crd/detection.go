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
	"strings"

	"sigs.k8s.io/yaml"
)

// ContainsTemplateSyntax reports whether content carries template markers
// ("{{", "{%", "{#") and so must be rendered before it can be parsed as a
// plain CustomResourceDefinition manifest.
func ContainsTemplateSyntax(content string) bool {
	return strings.Contains(content, "{{") || strings.Contains(content, "{%") || strings.Contains(content, "{#")
}

// IsCRDManifest reports whether a single rendered YAML document is a
// CustomResourceDefinition.
func IsCRDManifest(content string) bool {
	if !strings.Contains(content, "CustomResourceDefinition") {
		return false
	}
	var doc struct {
		Kind string `json:"kind"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return false
	}
	return doc.Kind == "CustomResourceDefinition"
}

// ExtractName returns metadata.name from a CRD manifest, or "" if absent or
// unparseable.
func ExtractName(content string) string {
	var doc struct {
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return ""
	}
	return doc.Metadata.Name
}

// DetectInManifests scans a set of rendered templates/ documents (path ->
// content, already rendered) for CustomResourceDefinitions. Unlike crds/,
// anything found here is implicitly templates: true.
func DetectInManifests(manifests map[string]string) []Detected {
	var found []Detected
	for path, content := range manifests {
		for _, doc := range strings.Split(content, "---") {
			doc = strings.TrimSpace(doc)
			if doc == "" || isAllComments(doc) {
				continue
			}
			if !IsCRDManifest(doc) {
				continue
			}
			name := ExtractName(doc)
			if name == "" {
				name = "unknown"
			}
			found = append(found, NewDetected(name, doc, Location{Path: path}))
		}
	}
	return found
}

func isAllComments(doc string) bool {
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return false
		}
	}
	return true
}

// TemplateConstructKind distinguishes the three template marker families so
// a lint suggestion can tell a reader whether control flow is in play.
type TemplateConstructKind int

const (
	ConstructVariable TemplateConstructKind = iota
	ConstructControl
	ConstructComment
)

// TemplateConstruct is one occurrence of a template marker, for diagnostics.
type TemplateConstruct struct {
	Kind TemplateConstructKind
	Line int
}

// TemplatedCRDFile is a crds/ entry that still needs rendering before it can
// be parsed as a plain CRD manifest.
type TemplatedCRDFile struct {
	Path       string
	Content    string
	Constructs []TemplateConstruct
}

// AnalyzeTemplatedFile scans content line by line for template markers.
func AnalyzeTemplatedFile(path, content string) TemplatedCRDFile {
	f := TemplatedCRDFile{Path: path, Content: content}
	for i, line := range strings.Split(content, "\n") {
		lineNum := i + 1
		if strings.Contains(line, "{{") {
			f.Constructs = append(f.Constructs, TemplateConstruct{ConstructVariable, lineNum})
		}
		if strings.Contains(line, "{%") {
			f.Constructs = append(f.Constructs, TemplateConstruct{ConstructControl, lineNum})
		}
		if strings.Contains(line, "{#") {
			f.Constructs = append(f.Constructs, TemplateConstruct{ConstructComment, lineNum})
		}
	}
	return f
}

func (f TemplatedCRDFile) HasVariables() bool   { return f.has(ConstructVariable) }
func (f TemplatedCRDFile) HasControlFlow() bool { return f.has(ConstructControl) }

func (f TemplatedCRDFile) has(kind TemplateConstructKind) bool {
	for _, c := range f.Constructs {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// NonCRDFile is a crds/ entry whose kind is not CustomResourceDefinition —
// always a lint error, since crds/ holds nothing else.
type NonCRDFile struct {
	Path string
	Kind string
}

// LintCode identifies the specific CRD-placement issue a Warning reports.
type LintCode int

const (
	LintCRDInTemplates LintCode = iota
	LintTemplatedCRDInCrdsDir
	LintNonCRDInCrdsDir
	LintNoPolicyAnnotation
	LintSharedCRDInTemplates
	LintExternalPolicyInPack
)

// LintSeverity is how seriously a Warning's finding should be treated.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarningSeverity
	LintError
)

// Warning is a single CRD-placement lint finding.
type Warning struct {
	Code       LintCode
	Path       string
	CRDName    string
	Message    string
	Suggestion string
}

// Severity maps a Warning's Code to its display severity.
func (w Warning) Severity() LintSeverity {
	switch w.Code {
	case LintNonCRDInCrdsDir:
		return LintError
	case LintSharedCRDInTemplates, LintExternalPolicyInPack:
		return LintWarningSeverity
	default:
		return LintInfo
	}
}

// LintPlacement generates placement warnings for a pack's CRDs: flags CRDs
// defined in templates/ (allowed, but crds/ is clearer), templated files in
// crds/ (informational — they will be rendered before install), and an
// external policy set on a CRD the pack itself defines (contradictory:
// external means Sherpack never manages it).
func LintPlacement(crdsDirCRDs, templateCRDs []Detected, templatedFiles []TemplatedCRDFile) []Warning {
	var warnings []Warning

	for _, c := range templateCRDs {
		w := Warning{
			Code: LintCRDInTemplates, Path: c.Location.Description(), CRDName: c.Name,
			Message:    "CRD detected in templates/ directory",
			Suggestion: "Consider moving to crds/ for clearer organization; protection applies regardless of location.",
		}
		warnings = append(warnings, w)

		if c.Policy == PolicyShared {
			warnings = append(warnings, Warning{
				Code: LintSharedCRDInTemplates, Path: c.Location.Description(), CRDName: c.Name,
				Message:    "shared CRD in templates/ may cause confusion",
				Suggestion: "Shared CRDs are typically managed in crds/ or externally; consider policy 'external' if managed by GitOps.",
			})
		}
	}

	for _, t := range templatedFiles {
		suggestion := "File uses templating and will be rendered before installation."
		if t.HasControlFlow() {
			suggestion = "File uses control flow; ensure conditionals don't accidentally exclude required CRDs."
		}
		warnings = append(warnings, Warning{
			Code: LintTemplatedCRDInCrdsDir, Path: t.Path,
			Message:    "templated CRD in crds/ directory",
			Suggestion: suggestion,
		})
	}

	for _, c := range append(append([]Detected{}, crdsDirCRDs...), templateCRDs...) {
		if c.Policy == PolicyExternal {
			warnings = append(warnings, Warning{
				Code: LintExternalPolicyInPack, Path: c.Location.Description(), CRDName: c.Name,
				Message:    "CRD has 'external' policy but is defined in this pack",
				Suggestion: "External policy means Sherpack won't manage this CRD; remove it from the pack, or use 'managed' or 'shared'.",
			})
		}
	}

	return warnings
}
