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

package engine

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
	"sync"

	"github.com/pkg/errors"
)

const (
	charsetAlphanumeric = "alphanumeric"
	charsetAlpha        = "alpha"
	charsetNumeric      = "numeric"
	charsetHex          = "hex"
	charsetBase64       = "base64"
	charsetURLSafe      = "urlsafe"
)

const maxSecretLength = 4096

var secretAlphabets = map[string]string{
	charsetAlphanumeric: "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789",
	charsetAlpha:        "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz",
	charsetNumeric:      "0123456789",
	charsetHex:          "0123456789abcdef",
	charsetURLSafe:      "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_",
}

// secretStore generates and caches stateful secrets referenced by
// generate_secret() calls during a single render. A secret is generated at
// most once per (store, name); repeated calls with the same name return the
// cached value, matching generate_secret's "first install generates,
// subsequent renders read back" contract. Values seeded via Seed (e.g.
// loaded from an existing release's Kubernetes Secret) are never
// regenerated and never mark the store dirty.
type secretStore struct {
	mu     sync.Mutex
	values map[string]string
	seeded map[string]bool
	dirty  bool
}

func newSecretStore() *secretStore {
	return &secretStore{values: map[string]string{}, seeded: map[string]bool{}}
}

// Seed preloads a secret value from prior release state, e.g. when
// re-rendering a pack during an upgrade so existing secrets are preserved
// verbatim instead of regenerated.
func (s *secretStore) Seed(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
	s.seeded[name] = true
}

// IsDirty reports whether any secret was freshly generated (as opposed to
// served from a seeded value) during this render.
func (s *secretStore) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Values returns a snapshot of every secret produced or seeded so far, for
// persistence back into release state.
func (s *secretStore) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *secretStore) getOrCreate(name string, length int, charset string) (string, error) {
	if name == "" {
		return "", &RenderError{Kind: KindInvalidOperation, Message: "generate_secret: name cannot be empty"}
	}
	if length < 1 {
		return "", &RenderError{Kind: KindInvalidOperation, Message: "generate_secret: length must be positive"}
	}
	if length > maxSecretLength {
		return "", &RenderError{Kind: KindInvalidOperation, Message: "generate_secret: length exceeds maximum of 4096"}
	}
	alphabet, ok := secretAlphabetFor(charset)
	if !ok {
		return "", &RenderError{Kind: KindInvalidOperation, Message: "generate_secret: unknown charset '" + charset + "'. Valid options: alphanumeric, alpha, numeric, hex, base64, urlsafe"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[name]; ok {
		return v, nil
	}
	v, err := generateSecretValue(length, charset, alphabet)
	if err != nil {
		return "", err
	}
	s.values[name] = v
	s.dirty = true
	return v, nil
}

func secretAlphabetFor(charset string) (string, bool) {
	if charset == charsetBase64 {
		return "", true // handled specially below; alphabet unused
	}
	a, ok := secretAlphabets[charset]
	return a, ok
}

// generateSecretValue draws cryptographically secure random characters from
// alphabet, or (for base64) random bytes encoded with the standard base64
// alphabet, trimmed to length.
func generateSecretValue(length int, charset, alphabet string) (string, error) {
	if charset == charsetBase64 {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			return "", errors.Wrap(err, "generate_secret: reading randomness")
		}
		enc := base64.StdEncoding.EncodeToString(buf)
		for len(enc) < length {
			more := make([]byte, length)
			if _, err := rand.Read(more); err != nil {
				return "", errors.Wrap(err, "generate_secret: reading randomness")
			}
			enc += base64.StdEncoding.EncodeToString(more)
		}
		return enc[:length], nil
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "generate_secret: reading randomness")
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
