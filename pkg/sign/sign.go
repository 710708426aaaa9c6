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
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Signature is a parsed minisign-format detached signature: a per-message
// signature over the archive bytes, and a global signature binding that
// signature to its trusted comment so the comment itself can't be swapped
// without invalidating verification.
type Signature struct {
	UntrustedComment string
	TrustedComment   string
	KeyID            [8]byte
	Signature        [64]byte
	GlobalSignature  [64]byte
}

// DefaultTrustedComment builds the "sherpack:<name> v<version>
// digest:<truncated-digest>" comment used when a caller supplies none.
func DefaultTrustedComment(name, version, digest string) string {
	return fmt.Sprintf("sherpack:%s v%s digest:%s", name, version, truncateHash(digest, 16))
}

func truncateHash(h string, n int) string {
	if len(h) <= n {
		return h
	}
	return h[:n]
}

// Sign produces a detached signature over archive using sk, with the given
// trusted comment. The signed message is exactly the archive bytes, per
// spec.md 4.4.
func Sign(archive []byte, sk *SecretKey, trustedComment string) (*Signature, error) {
	sig := ed25519.Sign(sk.Key, archive)
	var sigArr [64]byte
	copy(sigArr[:], sig)

	globalMsg := append(append([]byte(nil), sig...), []byte(trustedComment)...)
	global := ed25519.Sign(sk.Key, globalMsg)
	var globalArr [64]byte
	copy(globalArr[:], global)

	return &Signature{
		UntrustedComment: "signature from sherpack",
		TrustedComment:   trustedComment,
		KeyID:            sk.KeyID,
		Signature:        sigArr,
		GlobalSignature:  globalArr,
	}, nil
}

// String renders s in the minisign .minisig text format.
func (s *Signature) String() string {
	body := make([]byte, 0, 2+8+64)
	body = append(body, sigAlgEd[:]...)
	body = append(body, s.KeyID[:]...)
	body = append(body, s.Signature[:]...)

	var sb strings.Builder
	fmt.Fprintf(&sb, "untrusted comment: %s\n", s.UntrustedComment)
	sb.WriteString(base64.StdEncoding.EncodeToString(body))
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "trusted comment: %s\n", s.TrustedComment)
	sb.WriteString(base64.StdEncoding.EncodeToString(s.GlobalSignature[:]))
	sb.WriteByte('\n')
	return sb.String()
}

// ParseSignature parses the text format written by Signature.String.
func ParseSignature(text string) (*Signature, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) < 4 {
		return nil, errors.New("sign: malformed signature file")
	}

	untrusted, ok := strings.CutPrefix(lines[0], "untrusted comment: ")
	if !ok {
		return nil, errors.New("sign: missing untrusted comment line")
	}
	body, err := base64.StdEncoding.DecodeString(strings.TrimSpace(lines[1]))
	if err != nil {
		return nil, errors.Wrap(err, "sign: decoding signature body")
	}
	if len(body) != 2+8+64 {
		return nil, errors.New("sign: malformed signature body")
	}
	if [2]byte{body[0], body[1]} != sigAlgEd {
		return nil, errors.New("sign: unsupported signature algorithm")
	}

	trusted, ok := strings.CutPrefix(lines[2], "trusted comment: ")
	if !ok {
		return nil, errors.New("sign: missing trusted comment line")
	}
	global, err := base64.StdEncoding.DecodeString(strings.TrimSpace(lines[3]))
	if err != nil {
		return nil, errors.Wrap(err, "sign: decoding global signature")
	}
	if len(global) != 64 {
		return nil, errors.New("sign: malformed global signature")
	}

	sig := &Signature{UntrustedComment: untrusted, TrustedComment: trusted}
	copy(sig.KeyID[:], body[2:10])
	copy(sig.Signature[:], body[10:74])
	copy(sig.GlobalSignature[:], global)
	return sig, nil
}
