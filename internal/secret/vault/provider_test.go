package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeVault(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root-token" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/secret/data/recall":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"data":     map[string]any{"dsn": "postgres://db/recall", "value": "default"},
					"metadata": map[string]any{"version": 1},
				},
			})
		case "/v1/kv1/recall":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"token": "abc"},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProvider_TokenAuth(t *testing.T) {
	ctx := context.Background()
	srv := newFakeVault(t)

	p, err := New(ctx, Config{Address: srv.URL, Token: "root-token"}, nil)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.Get(ctx, "secret/data/recall#dsn")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/recall", got)

	got, err = p.Get(ctx, "secret/data/recall")
	require.NoError(t, err)
	assert.Equal(t, "default", got)

	got, err = p.Get(ctx, "kv1/recall#token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	_, err = p.Get(ctx, "secret/data/recall#missing")
	assert.Error(t, err)

	_, err = p.Get(ctx, "secret/data/nothing")
	assert.Error(t, err)
}

func TestProvider_BadToken(t *testing.T) {
	ctx := context.Background()
	srv := newFakeVault(t)

	p, err := New(ctx, Config{Address: srv.URL, Token: "wrong"}, nil)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Get(ctx, "secret/data/recall#dsn")
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Address: "http://127.0.0.1:1", AuthMethod: AuthToken}, nil)
	assert.Error(t, err)

	_, err = New(ctx, Config{Address: "http://127.0.0.1:1", AuthMethod: "kerberos"}, nil)
	assert.Error(t, err)
}
