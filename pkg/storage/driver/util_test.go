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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alegeay/Sherpack-sub001/pkg/release"
)

func TestIsSystemLabel(t *testing.T) {
	assert.True(t, isSystemLabel("name"))
	assert.True(t, isSystemLabel("owner"))
	assert.False(t, isSystemLabel("team"))
	assert.False(t, isSystemLabel("NaMe"))
}

func TestFilterSystemLabels(t *testing.T) {
	in := map[string]string{"name": "a", "owner": "sherpack", "team": "platform"}
	out := filterSystemLabels(in)
	assert.Equal(t, map[string]string{"team": "platform"}, out)
}

func TestEncodeDecodeReleaseRoundTrip(t *testing.T) {
	rel := &release.Release{Name: "myapp", Namespace: "default", Revision: 1, Status: release.StatusDeployed}
	encoded, err := encodeRelease(rel)
	require.NoError(t, err)

	decoded, err := decodeRelease(encoded)
	require.NoError(t, err)
	assert.Equal(t, rel.Name, decoded.Name)
	assert.Equal(t, rel.Revision, decoded.Revision)
	assert.Equal(t, rel.Status, decoded.Status)
}

func TestReleaseKey(t *testing.T) {
	assert.Equal(t, "sh.sherpack.release.v1.myapp.v3", releaseKey("myapp", 3))
}
