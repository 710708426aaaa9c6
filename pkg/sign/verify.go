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
	"crypto/ed25519"

	"github.com/pkg/errors"
)

// VerificationResult is the structured outcome of Verify, always returned
// (never just a bool) so a caller can surface the trusted comment
// regardless of outcome.
type VerificationResult struct {
	Valid          bool
	TrustedComment string
	KeyID          [8]byte
}

// Verify checks sig against archive using pk: first the per-message
// signature over the raw archive bytes, then the global signature binding
// that per-message signature to its trusted comment. Both must hold for
// Valid to be true.
func Verify(archive []byte, sig *Signature, pk *PublicKey) (*VerificationResult, error) {
	if sig.KeyID != pk.KeyID {
		return &VerificationResult{Valid: false, TrustedComment: sig.TrustedComment, KeyID: sig.KeyID}, errors.New("sign: signature key id does not match public key")
	}

	result := &VerificationResult{TrustedComment: sig.TrustedComment, KeyID: sig.KeyID}

	if !ed25519.Verify(pk.Key, archive, sig.Signature[:]) {
		return result, nil
	}

	globalMsg := append(append([]byte(nil), sig.Signature[:]...), []byte(sig.TrustedComment)...)
	if !ed25519.Verify(pk.Key, globalMsg, sig.GlobalSignature[:]) {
		return result, nil
	}

	result.Valid = true
	return result, nil
}
