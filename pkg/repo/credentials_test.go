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

package repo

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedCredentialsAppliedToOwnHost(t *testing.T) {
	var sawAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	scoped := NewScopedCredentials()
	scoped.Add(upstream.URL, &Credentials{Basic: &BasicCredentials{Username: "u", Password: "p"}})
	client := newSecureClient(scoped)

	req, err := http.NewRequest(http.MethodGet, upstream.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, sawAuth)
}

func TestSecureClientStripsAuthOnCrossOriginRedirect(t *testing.T) {
	var sawAuth string
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer external.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, external.URL, http.StatusFound)
	}))
	defer origin.Close()

	scoped := NewScopedCredentials()
	scoped.Add(origin.URL, &Credentials{Basic: &BasicCredentials{Username: "u", Password: "p"}})
	client := newSecureClient(scoped)

	req, err := http.NewRequest(http.MethodGet, origin.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, sawAuth, "credentials scoped to origin must not reach a different host after redirect")
}

func TestDockerConfigAuthDecodesBasic(t *testing.T) {
	// base64("alice:hunter2")
	creds := dockerConfigAuth("Basic YWxpY2U6aHVudGVyMg==")
	require.NotNil(t, creds)
	require.NotNil(t, creds.Basic)
	assert.Equal(t, "alice", creds.Basic.Username)
	assert.Equal(t, "hunter2", creds.Basic.Password)
}

func TestDockerConfigAuthRejectsMalformed(t *testing.T) {
	assert.Nil(t, dockerConfigAuth("Bearer sometoken"))
	assert.Nil(t, dockerConfigAuth("Basic not-base64!"))
}

func TestCredentialStoreGetSet(t *testing.T) {
	store := NewCredentialStore()
	assert.Nil(t, store.Get("missing"))

	store.Set("bitnami", &Credentials{Bearer: "tok"})
	got := store.Get("bitnami")
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.Bearer)
}
