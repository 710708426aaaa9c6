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
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

// systemLabels are the selector labels the drivers themselves manage;
// callers may not override them via extra labels.
var systemLabels = map[string]bool{
	"name":      true,
	"owner":     true,
	"status":    true,
	"version":   true,
	"namespace": true,
}

// isSystemLabel reports whether label is one of the reserved keys above.
func isSystemLabel(label string) bool {
	return systemLabels[label]
}

// filterSystemLabels drops every reserved key from labels, returning the
// caller-supplied subset (never nil).
func filterSystemLabels(lbs map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range lbs {
		if !isSystemLabel(k) {
			out[k] = v
		}
	}
	return out
}

// releaseKey is the storage object name for one release revision.
func releaseKey(name string, revision int) string {
	return fmt.Sprintf("sh.sherpack.release.v1.%s.v%d", name, revision)
}

// encodeRelease serializes rel to JSON, gzips it, and base64-encodes the
// result, the way the teacher packs a release into a Secret/ConfigMap's
// single opaque data field.
func encodeRelease(rel *release.Release) (string, error) {
	raw, err := json.Marshal(rel)
	if err != nil {
		return "", errors.Wrap(err, "storage: encoding release")
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return "", errors.Wrap(err, "storage: compressing release")
	}
	if err := gz.Close(); err != nil {
		return "", errors.Wrap(err, "storage: compressing release")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeRelease reverses encodeRelease. It also accepts an uncompressed
// base64 payload for forward compatibility with records written before
// compression was introduced.
func decodeRelease(data string) (*release.Release, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.Wrap(err, "storage: decoding release")
	}

	if gz, err := gzip.NewReader(bytes.NewReader(raw)); err == nil {
		decompressed, err := io.ReadAll(gz)
		gz.Close()
		if err == nil {
			raw = decompressed
		}
	}

	rel := &release.Release{}
	if err := json.Unmarshal(raw, rel); err != nil {
		return nil, errors.Wrap(err, "storage: parsing release")
	}
	return rel, nil
}
