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

package driver

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	corev1 "k8s.io/client-go/kubernetes/typed/core/v1"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
	"github.com/alegeay/Sherpack-sub001/pkg/storage"
)

// SecretsDriverName is the name Secrets reports via Name().
const SecretsDriverName = "Secret"

// secretType marks a Secret as holding a release record, so cluster
// tooling and `kubectl get secrets` can tell them apart from application
// secrets at a glance.
const secretType v1.SecretType = "sherpack.io/release.v1"

// Secrets stores one release revision per Kubernetes Secret, in the
// revision's own namespace, keyed by name+revision in Data["release"].
type Secrets struct {
	client corev1.SecretsGetter
}

// NewSecrets wraps a SecretsGetter (typically clientset.CoreV1()) as a
// storage.Driver.
func NewSecrets(client corev1.SecretsGetter) *Secrets {
	return &Secrets{client: client}
}

// Name returns SecretsDriverName.
func (d *Secrets) Name() string { return SecretsDriverName }

func (d *Secrets) fromSecret(secret *v1.Secret) (*release.Release, error) {
	data, ok := secret.Data["release"]
	if !ok {
		return nil, errors.Errorf("storage: secret %s has no release data", secret.Name)
	}
	return decodeRelease(string(data))
}

func (d *Secrets) toSecret(rel *release.Release) (*v1.Secret, error) {
	encoded, err := encodeRelease(rel)
	if err != nil {
		return nil, err
	}
	return &v1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      releaseKey(rel.Name, rel.Revision),
			Namespace: rel.Namespace,
			Labels:    rel.Labels(),
		},
		Type: secretType,
		Data: map[string][]byte{"release": []byte(encoded)},
	}, nil
}

// Get implements storage.Driver.
func (d *Secrets) Get(namespace, name string, revision int) (*release.Release, error) {
	secret, err := d.client.Secrets(namespace).Get(context.Background(), releaseKey(name, revision), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, errors.Wrapf(storage.ErrReleaseNotFound, "%s/%s.v%d", namespace, name, revision)
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage: fetching release secret")
	}
	return d.fromSecret(secret)
}

func (d *Secrets) selectAll(namespace, name string) ([]*release.Release, error) {
	sel := labels.Set{"owner": "sherpack"}
	if name != "" {
		sel["name"] = name
	}
	list, err := d.client.Secrets(namespace).List(context.Background(), metav1.ListOptions{LabelSelector: sel.AsSelector().String()})
	if err != nil {
		return nil, errors.Wrap(err, "storage: listing release secrets")
	}
	var out []*release.Release
	for i := range list.Items {
		rel, err := d.fromSecret(&list.Items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

// GetLatest implements storage.Driver.
func (d *Secrets) GetLatest(namespace, name string) (*release.Release, error) {
	all, err := d.selectAll(namespace, name)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.Wrapf(storage.ErrReleaseNotFound, "%s/%s", namespace, name)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Revision > all[j].Revision })
	return all[0], nil
}

// List implements storage.Driver.
func (d *Secrets) List(namespace, name string, includeSuperseded bool) ([]*release.Release, error) {
	all, err := d.selectAll(namespace, name)
	if err != nil {
		return nil, err
	}
	var out []*release.Release
	for _, rel := range all {
		if !includeSuperseded && rel.Status == release.StatusSuperseded {
			continue
		}
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Revision > out[j].Revision
	})
	return out, nil
}

// History implements storage.Driver.
func (d *Secrets) History(namespace, name string) ([]*release.Release, error) {
	return d.List(namespace, name, true)
}

// Create implements storage.Driver.
func (d *Secrets) Create(rel *release.Release) error {
	secret, err := d.toSecret(rel)
	if err != nil {
		return err
	}
	_, err = d.client.Secrets(rel.Namespace).Create(context.Background(), secret, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return errors.Wrapf(storage.ErrReleaseExists, "%s/%s.v%d", rel.Namespace, rel.Name, rel.Revision)
	}
	return errors.Wrap(err, "storage: creating release secret")
}

// Update implements storage.Driver.
func (d *Secrets) Update(rel *release.Release) error {
	secret, err := d.toSecret(rel)
	if err != nil {
		return err
	}
	_, err = d.client.Secrets(rel.Namespace).Update(context.Background(), secret, metav1.UpdateOptions{})
	if apierrors.IsNotFound(err) {
		return errors.Wrapf(storage.ErrReleaseNotFound, "%s/%s.v%d", rel.Namespace, rel.Name, rel.Revision)
	}
	return errors.Wrap(err, "storage: updating release secret")
}

// Delete implements storage.Driver.
func (d *Secrets) Delete(namespace, name string, revision int) (*release.Release, error) {
	rel, err := d.Get(namespace, name, revision)
	if err != nil {
		return nil, err
	}
	err = d.client.Secrets(namespace).Delete(context.Background(), releaseKey(name, revision), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return nil, errors.Wrap(err, "storage: deleting release secret")
	}
	return rel, nil
}

// DeleteAll implements storage.Driver.
func (d *Secrets) DeleteAll(namespace, name string) ([]*release.Release, error) {
	all, err := d.History(namespace, name)
	if err != nil {
		return nil, err
	}
	for _, rel := range all {
		if _, err := d.Delete(namespace, name, rel.Revision); err != nil {
			return nil, errors.Wrapf(err, "deleting revision %d", rel.Revision)
		}
	}
	return all, nil
}
