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

package sign

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	archive := []byte("archive contents go here")
	comment := DefaultTrustedComment("demo", "1.0.0", "abcdef0123456789abcdef0123456789")
	sig, err := Sign(archive, kp.Secret, comment)
	require.NoError(t, err)

	parsed, err := ParseSignature(sig.String())
	require.NoError(t, err)
	assert.Equal(t, comment, parsed.TrustedComment)

	result, err := Verify(archive, parsed, kp.Public)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, comment, result.TrustedComment)
}

func TestVerifyFailsOnTamperedArchive(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	sig, err := Sign([]byte("original"), kp.Secret, "comment")
	require.NoError(t, err)

	result, err := Verify([]byte("tampered"), sig, kp.Public)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestVerifyFailsOnTamperedTrustedComment(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	archive := []byte("payload")
	sig, err := Sign(archive, kp.Secret, "original comment")
	require.NoError(t, err)

	sig.TrustedComment = "swapped comment"
	result, err := Verify(archive, sig, kp.Public)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestVerifyFailsOnWrongKey(t *testing.T) {
	kp1, err := GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := GenerateKeyPair()
	require.NoError(t, err)

	archive := []byte("payload")
	sig, err := Sign(archive, kp1.Secret, "comment")
	require.NoError(t, err)

	_, err = Verify(archive, sig, kp2.Public)
	assert.Error(t, err)
}

func TestSecretKeyUnencryptedRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	text, err := MarshalSecretKey(kp.Secret, "")
	require.NoError(t, err)

	loaded, err := ParseSecretKey(text, nil)
	require.NoError(t, err)
	assert.Equal(t, kp.Secret.KeyID, loaded.KeyID)
	assert.Equal(t, []byte(kp.Secret.Key), []byte(loaded.Key))
}

func TestSecretKeyEncryptedRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	text, err := MarshalSecretKey(kp.Secret, "correct horse")
	require.NoError(t, err)

	loaded, err := ParseSecretKey(text, func() (string, error) { return "correct horse", nil })
	require.NoError(t, err)
	assert.Equal(t, []byte(kp.Secret.Key), []byte(loaded.Key))
}

func TestSecretKeyEncryptedWrongPassphraseFails(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	text, err := MarshalSecretKey(kp.Secret, "correct horse")
	require.NoError(t, err)

	_, err = ParseSecretKey(text, func() (string, error) { return "wrong", nil })
	assert.Error(t, err)
}

func TestPublicKeyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	text := MarshalPublicKey(kp.Public)
	loaded, err := ParsePublicKey(text)
	require.NoError(t, err)
	assert.Equal(t, kp.Public.KeyID, loaded.KeyID)
	assert.Equal(t, []byte(kp.Public.Key), []byte(loaded.Key))
}

func TestSecretKeyDerivesMatchingPublicKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	derived := kp.Secret.Public()
	assert.Equal(t, []byte(kp.Public.Key), []byte(derived.Key))
}
