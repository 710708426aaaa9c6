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

package render

import "slices"

// KubeVersion is the Kubernetes version exposed to templates as
// capabilities.kube_version. Unlike the teacher's own Capabilities (which
// derives this from a live client-go connection), this module never talks
// to a cluster, so callers that do have one supply the real version and
// everyone else gets DefaultCapabilities' static stand-in.
type KubeVersion struct {
	Version string
	Major   string
	Minor   string
}

// VersionSet is the set of API versions (e.g. "apps/v1") a cluster is
// known to support.
type VersionSet []string

// Has reports whether apiVersion is present in the set.
func (v VersionSet) Has(apiVersion string) bool {
	return slices.Contains(v, apiVersion)
}

// Capabilities is the read-only cluster-shape information bound into a
// render's TemplateContext as "capabilities".
type Capabilities struct {
	KubeVersion KubeVersion
	APIVersions VersionSet
}

// DefaultCapabilities is injected whenever a caller has no cluster to
// introspect, per the data model's "defaults are injected when no cluster
// is reachable" rule.
var DefaultCapabilities = &Capabilities{
	KubeVersion: KubeVersion{Version: "v1.30.0", Major: "1", Minor: "30"},
	APIVersions: VersionSet{"v1"},
}

func (c *Capabilities) asTemplateValue() map[string]interface{} {
	return map[string]interface{}{
		"kube_version": map[string]interface{}{
			"version": c.KubeVersion.Version,
			"major":   c.KubeVersion.Major,
			"minor":   c.KubeVersion.Minor,
		},
		"api_versions": apiVersionsAsSlice(c.APIVersions),
	}
}

func apiVersionsAsSlice(vs VersionSet) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
