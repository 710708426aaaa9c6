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
	"sigs.k8s.io/yaml"

	"github.com/alegeay/Sherpack-sub001/pkg/pack"
)

// ScanResult is the outcome of scanning a pack's crds/ directory: files
// split into already-static CRDs, files that still need template
// rendering, and non-CRD content (always a lint error, since crds/ holds
// nothing else).
type ScanResult struct {
	Static    []Detected
	Templated []TemplatedCRDFile
	NonCRD    []NonCRDFile
}

// ScanCrdsDirectory classifies every file under a pack's crds/ directory.
// A file containing template syntax is reported as Templated rather than
// parsed, since its content isn't valid YAML until rendered.
func ScanCrdsDirectory(files []*pack.File) ScanResult {
	var result ScanResult
	for _, f := range files {
		content := string(f.Data)
		if ContainsTemplateSyntax(content) {
			result.Templated = append(result.Templated, AnalyzeTemplatedFile(f.Path, content))
			continue
		}
		if !IsCRDManifest(content) {
			result.NonCRD = append(result.NonCRD, NonCRDFile{Path: f.Path, Kind: extractKind(content)})
			continue
		}
		name := ExtractName(content)
		if name == "" {
			name = "unknown"
		}
		result.Static = append(result.Static, NewDetected(name, content, Location{CrdsDirectory: true, Path: f.Path}))
	}
	return result
}

func extractKind(content string) string {
	var doc struct {
		Kind string `json:"kind"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil || doc.Kind == "" {
		return "unknown"
	}
	return doc.Kind
}
