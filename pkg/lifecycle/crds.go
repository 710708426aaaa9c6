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
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/alegeay/Sherpack-sub001/pkg/crd"
)

const crdKind = "CustomResourceDefinition"

// crdApplierAdapter satisfies crd.Applier by delegating to the same Applier
// the rest of the engine uses, so a caller only ever wires up one cluster
// client. WaitEstablished reuses Applier.Wait the way every other kind's
// readiness check does; a real Applier implementation treats a
// CustomResourceDefinition ref as "wait for the Established condition"
// instead of its usual Available/Ready check.
type crdApplierAdapter struct {
	applier   Applier
	namespace string
}

func (a crdApplierAdapter) Apply(ctx context.Context, manifest string) error {
	resource, ok := parseResource(manifest)
	if !ok {
		return errors.New("invalid CustomResourceDefinition manifest")
	}
	return a.applier.Apply(ctx, a.namespace, resource)
}

func (a crdApplierAdapter) WaitEstablished(ctx context.Context, name string, timeout time.Duration) error {
	return a.applier.Wait(ctx, a.namespace, []ResourceRef{{Kind: crdKind, Name: name}}, timeout)
}

func (a crdApplierAdapter) Delete(ctx context.Context, name string) error {
	return a.applier.Delete(ctx, a.namespace, ResourceRef{Kind: crdKind, Name: name})
}

// crdManager builds a crd.Manager backed by this engine's Applier, honoring
// CRDStrategy when set (SafeStrategy otherwise).
func (e *Engine) crdManager(namespace string) *crd.Manager {
	return crd.NewManager(crdApplierAdapter{applier: e.Applier, namespace: namespace}, e.CRDStrategy)
}

// splitCRDs separates a rendered manifest's CustomResourceDefinitions from
// everything else, returning the non-CRD remainder already rejoined for
// BuildExecutionPlan. CRDs never travel through the ordinary wave plan: they
// must exist, and be Established, before any custom resource of their kind
// can be applied, which an ordinary sync wave has no way to express.
func splitCRDs(manifest string) (crdDocs []string, rest string) {
	crdDocs, restDocs := crd.CategorizeManifest(manifest)
	return crdDocs, strings.Join(restDocs, "---")
}

// installCRDs applies every CRD in a fresh manifest unconditionally and
// waits for each to become Established. There is nothing to compare a
// brand-new install's CRDs against, so no Strategy decision applies.
func (e *Engine) installCRDs(ctx context.Context, namespace string, crdDocs []string, timeout time.Duration) error {
	if len(crdDocs) == 0 {
		return nil
	}
	if timeout == 0 {
		timeout = crd.DefaultEstablishTimeout
	}
	return e.crdManager(namespace).InstallAll(ctx, crdDocs, timeout)
}

// upgradeCRDs analyzes each CRD in the new manifest against its counterpart
// in the previously deployed manifest (if any), and applies the change only
// if CRDStrategy allows it. A CRD with no prior counterpart is treated as a
// fresh install.
func (e *Engine) upgradeCRDs(ctx context.Context, namespace string, oldManifest string, newCRDDocs []string, timeout time.Duration) error {
	if len(newCRDDocs) == 0 {
		return nil
	}
	if timeout == 0 {
		timeout = crd.DefaultEstablishTimeout
	}

	oldCRDDocs, _ := crd.CategorizeManifest(oldManifest)
	oldByName := make(map[string]string, len(oldCRDDocs))
	for _, doc := range oldCRDDocs {
		oldByName[crd.ExtractName(doc)] = doc
	}

	mgr := e.crdManager(namespace)
	for _, doc := range newCRDDocs {
		name := crd.ExtractName(doc)
		decision, err := mgr.Upgrade(ctx, oldByName[name], doc, timeout)
		if err != nil {
			return errors.Wrapf(err, "applying CRD %s", name)
		}
		if decision.IsRejected() {
			return errors.Errorf("CRD %s upgrade rejected: %s", name, decision.Reason)
		}
	}
	return nil
}
