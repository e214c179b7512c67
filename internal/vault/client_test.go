package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/util"
)

const kvResponse = `{
  "request_id": "1",
  "lease_id": "",
  "renewable": false,
  "lease_duration": 0,
  "data": {
    "data": {"secret": "0123456789abcdef0123456789abcdef", "count": 3},
    "metadata": {
      "created_time": "2025-01-01T00:00:00.000000Z",
      "custom_metadata": null,
      "deletion_time": "",
      "destroyed": false,
      "version": 2
    }
  }
}`

// fakeVault serves secret/data/gateway/jwt and 404s everything else.
func fakeVault(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			util.WriteJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"permission denied"}})
			return
		}
		if r.Method == http.MethodGet && r.URL.Path == "/v1/secret/data/gateway/jwt" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(kvResponse))
			return
		}
		util.WriteJSON(w, http.StatusNotFound, map[string]any{"errors": []string{}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, addr, token string) *Client {
	t.Helper()

	c, err := New(&config.VaultConfig{Enabled: true, Address: addr, Token: token})
	require.NoError(t, err)
	c.api.SetMaxRetries(0)
	return c
}

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = New(&config.VaultConfig{Enabled: false, Address: "http://vault:8200"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSecretString(t *testing.T) {
	t.Parallel()

	srv := fakeVault(t)
	c := newClient(t, srv.URL, "root")

	tests := []struct {
		name    string
		path    string
		key     string
		want    string
		wantErr error
	}{
		{name: "found", path: "gateway/jwt", key: "secret", want: "0123456789abcdef0123456789abcdef"},
		{name: "missing key", path: "gateway/jwt", key: "other", wantErr: ErrKeyNotFound},
		{name: "non-string key", path: "gateway/jwt", key: "count", wantErr: ErrKeyNotFound},
		{name: "missing secret", path: "gateway/nope", key: "secret", wantErr: ErrSecretNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := c.SecretString(context.Background(), "secret", tt.path, tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				var verr *Error
				assert.ErrorAs(t, err, &verr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadKV_PermissionDenied(t *testing.T) {
	t.Parallel()

	srv := fakeVault(t)
	c := newClient(t, srv.URL, "wrong")

	_, err := c.ReadKV(context.Background(), "secret", "gateway/jwt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
	assert.Contains(t, err.Error(), "permission denied")
}
