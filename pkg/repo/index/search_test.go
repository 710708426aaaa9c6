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

package index

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alegeay/Sherpack-sub001/pkg/repo"
)

func TestMultiIndexRefreshAllThenSearchIsOffline(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`
apiVersion: v1
generated: "2024-01-01T00:00:00Z"
entries:
  nginx:
    - name: nginx
      version: "15.0.0"
      description: NGINX Open Source
      keywords: [webserver]
`))
	}))
	defer srv.Close()

	repoCfg, err := repo.NewRepository("bitnami", srv.URL)
	require.NoError(t, err)
	backend := repo.NewHTTPBackend(repoCfg, nil)

	cache := newTestCache(t)
	mi := NewMultiIndex(cache, map[string]repo.Backend{"bitnami": backend})

	ctx := context.Background()
	require.NoError(t, mi.RefreshAll(ctx))
	assert.Equal(t, 1, calls)

	results, err := mi.Search(ctx, "nginx")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bitnami", results[0].Repo)

	// Search never triggers a network call of its own.
	_, err = mi.Search(ctx, "nginx")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
