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
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

// HelmResourcePolicyAnnotation is the legacy "keep on uninstall" annotation
// honored for compatibility with charts migrated from Helm.
const HelmResourcePolicyAnnotation = "helm.sh/resource-policy"

// Policy is the intent a CRD declares for how Sherpack should manage it
// across install, upgrade, and uninstall — read from the
// sherpack.io/crd-policy annotation (release.AnnotationCRDPolicy).
type Policy string

const (
	// PolicyManaged is the default: this release owns the CRD, applies
	// updates to it (subject to Strategy), and is the only one allowed to
	// delete it on uninstall (and only when asked to).
	PolicyManaged Policy = "managed"
	// PolicyShared means multiple releases install the same CRD; it is
	// updated like a managed one but never deleted by any of them.
	PolicyShared Policy = "shared"
	// PolicyExternal means some other process (GitOps, kubectl) owns the
	// CRD entirely; Sherpack never installs, updates, or deletes it.
	PolicyExternal Policy = "external"
)

// ParsePolicy reads a sherpack.io/crd-policy annotation value, defaulting to
// PolicyManaged for an empty or unrecognized value.
func ParsePolicy(value string) Policy {
	switch strings.ToLower(value) {
	case string(PolicyShared):
		return PolicyShared
	case string(PolicyExternal):
		return PolicyExternal
	default:
		return PolicyManaged
	}
}

func (p Policy) AllowsInstall() bool { return p == PolicyManaged || p == PolicyShared }
func (p Policy) AllowsUpdate() bool  { return p == PolicyManaged || p == PolicyShared }
func (p Policy) AllowsDelete() bool  { return p == PolicyManaged }

// Location is where in a pack (or a dependency's pack) a CRD was found.
type Location struct {
	CrdsDirectory bool
	Path          string
	Templated     bool
	Dependency    string // empty unless found inside a subpack
}

// Description renders a human-readable location, matching the form lint
// output and diff summaries use elsewhere in this package.
func (l Location) Description() string {
	var base string
	if l.CrdsDirectory {
		base = fmt.Sprintf("crds/%s", l.Path)
		if l.Templated {
			base += " (templated)"
		}
	} else {
		base = fmt.Sprintf("templates/%s", l.Path)
	}
	if l.Dependency != "" {
		return fmt.Sprintf("dependency:%s/%s", l.Dependency, base)
	}
	return base
}

// Ownership records which release is responsible for a CRD and under what
// policy, so Uninstall and a future upgrade can tell whether this release
// may touch it.
type Ownership struct {
	CRDName          string
	OwningRelease    string
	ReleaseNamespace string
	Policy           Policy
	Location         Location
	InstalledVersion string
}

// CanManage reports whether the named release/namespace pair is the owner
// recorded for this CRD.
func (o Ownership) CanManage(releaseName, namespace string) bool {
	return o.OwningRelease == releaseName && o.ReleaseNamespace == namespace
}

// Detected is a CRD found while scanning a pack, with its policy and
// deletion-protection annotation already extracted.
type Detected struct {
	Name              string
	Content           string
	Location          Location
	Policy            Policy
	HasKeepAnnotation bool
}

// NewDetected parses Content's annotations to fill Policy and
// HasKeepAnnotation; a parse failure leaves both at their defaults
// (PolicyManaged, no keep annotation) rather than failing detection.
func NewDetected(name, content string, location Location) Detected {
	policy, keep := extractPolicy(content)
	return Detected{Name: name, Content: content, Location: location, Policy: policy, HasKeepAnnotation: keep}
}

func extractPolicy(content string) (Policy, bool) {
	var doc struct {
		Metadata struct {
			Annotations map[string]string `json:"annotations"`
		} `json:"metadata"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return PolicyManaged, false
	}
	policy := PolicyManaged
	if v, ok := doc.Metadata.Annotations[release.AnnotationCRDPolicy]; ok {
		policy = ParsePolicy(v)
	}
	keep := doc.Metadata.Annotations[HelmResourcePolicyAnnotation] == "keep"
	return policy, keep
}

// IsProtected reports whether this CRD must not be deleted without an
// explicit override: anything that isn't PolicyManaged, anything carrying
// the legacy keep annotation, and PolicyManaged itself (protected by
// default — deletion requires the caller to opt in explicitly).
func (d Detected) IsProtected() bool {
	return !d.Policy.AllowsDelete() || d.HasKeepAnnotation || d.Policy == PolicyManaged
}
