package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/recall/internal/resilience"
)

const testSecret = "test-secret-0123456789"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := PrincipalFrom(r.Context()); p != nil {
			w.Header().Set("X-Subject", p.Subject)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Message, body.Error.Type
}

func TestParseBearer(t *testing.T) {
	tok, err := ParseBearer("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	tok, err = ParseBearer("bearer   xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, h := range []string{"", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz", "abc"} {
		_, err := ParseBearer(h)
		assert.ErrorIs(t, err, ErrMissingToken, h)
	}
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{Secret: testSecret, Issuer: "recall", Audience: "api"})
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.MapClaims{
		"sub":   "user-1",
		"email": "u@example.com",
		"iss":   "recall",
		"aud":   "api",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}

	p, err := v.Verify(context.Background(), sign(jwt.SigningMethodHS256, []byte(testSecret), valid))
	require.NoError(t, err)
	assert.Equal(t, &Principal{Subject: "user-1", Email: "u@example.com", Issuer: "recall", Method: "jwt"}, p)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		key    []byte
		method jwt.SigningMethod
	}{
		{name: "wrong secret", key: []byte("other")},
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{name: "missing exp", mutate: func(c jwt.MapClaims) { delete(c, "exp") }},
		{name: "wrong issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "other" }},
		{name: "wrong audience", mutate: func(c jwt.MapClaims) { c["aud"] = "other" }},
		{name: "missing subject", mutate: func(c jwt.MapClaims) { delete(c, "sub") }},
		{name: "hs512 rejected", method: jwt.SigningMethodHS512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := jwt.MapClaims{}
			for k, val := range valid {
				claims[k] = val
			}
			if tt.mutate != nil {
				tt.mutate(claims)
			}
			key, method := []byte(testSecret), jwt.SigningMethod(jwt.SigningMethodHS256)
			if tt.key != nil {
				key = tt.key
			}
			if tt.method != nil {
				method = tt.method
			}
			_, err := v.Verify(context.Background(), sign(method, key, claims))
			assert.Error(t, err)
		})
	}

	_, err = NewJWTVerifier(JWTConfig{})
	assert.Error(t, err)
}

func TestSignHS256(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{Secret: testSecret})
	require.NoError(t, err)
	tok, err := SignHS256(testSecret, "memctl", time.Minute)
	require.NoError(t, err)
	p, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "memctl", p.Subject)
}

func TestMiddleware(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{Secret: testSecret})
	require.NoError(t, err)
	h := NewMiddleware(MiddlewareConfig{Verifier: v, SkipPaths: []string{"/health"}}).Authenticate(okHandler())

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/memories", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		msg, typ := decodeError(t, rec)
		assert.Equal(t, "authentication_error", typ)
		assert.Equal(t, ErrMissingToken.Error(), msg)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/memories", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		msg, _ := decodeError(t, rec)
		assert.Equal(t, "invalid token", msg)
	})

	t.Run("valid token", func(t *testing.T) {
		tok, err := SignHS256(testSecret, "alice", time.Minute)
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/memories", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Header().Get("X-Subject"))
	})

	t.Run("skip path and preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/add", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewMiddleware(MiddlewareConfig{}).Authenticate(okHandler()).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/memories", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// newOIDCProvider serves discovery and JWKS documents for a single RSA key.
func newOIDCProvider(t *testing.T) (*httptest.Server, jose.Signer) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                srv.URL,
			"jwks_uri":                              srv.URL + "/keys",
			"authorization_endpoint":                srv.URL + "/auth",
			"token_endpoint":                        srv.URL + "/token",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "k1",
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "k1"),
	)
	require.NoError(t, err)
	return srv, signer
}

func TestOIDCVerifier(t *testing.T) {
	srv, signer := newOIDCProvider(t)
	ctx := context.Background()

	v, err := NewOIDCVerifier(ctx, OIDCConfig{IssuerURL: srv.URL, ClientID: "recall"})
	require.NoError(t, err)

	idToken := func(aud string, exp time.Time) string {
		tok, err := josejwt.Signed(signer).Claims(map[string]any{
			"iss":   srv.URL,
			"sub":   "oidc-user",
			"aud":   aud,
			"email": "o@example.com",
			"iat":   time.Now().Unix(),
			"exp":   exp.Unix(),
		}).Serialize()
		require.NoError(t, err)
		return tok
	}

	p, err := v.Verify(ctx, idToken("recall", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "oidc-user", p.Subject)
	assert.Equal(t, "o@example.com", p.Email)
	assert.Equal(t, "oidc", p.Method)

	_, err = v.Verify(ctx, idToken("someone-else", time.Now().Add(time.Hour)))
	assert.Error(t, err)
	_, err = v.Verify(ctx, idToken("recall", time.Now().Add(-time.Hour)))
	assert.Error(t, err)

	_, err = NewOIDCVerifier(ctx, OIDCConfig{IssuerURL: srv.URL + "/nowhere", ClientID: "recall"})
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	proxies, invalid := ParseTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1", "nope", ""})
	assert.Equal(t, []string{"nope", ""}, invalid)

	tests := []struct {
		name    string
		proxies TrustedProxies
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "no proxies", remote: "1.2.3.4:5555", headers: map[string]string{"X-Forwarded-For": "9.9.9.9"}, want: "1.2.3.4"},
		{name: "untrusted peer", proxies: proxies, remote: "1.2.3.4:5555", headers: map[string]string{"X-Forwarded-For": "9.9.9.9"}, want: "1.2.3.4"},
		{name: "xff", proxies: proxies, remote: "10.1.1.1:80", headers: map[string]string{"X-Forwarded-For": "8.8.8.8, 9.9.9.9, 10.2.2.2"}, want: "9.9.9.9"},
		{name: "forwarded", proxies: proxies, remote: "192.168.1.1:80", headers: map[string]string{"Forwarded": `for="[2001:db8::1]:443";proto=https`}, want: "2001:db8::1"},
		{name: "real ip", proxies: proxies, remote: "10.1.1.1:80", headers: map[string]string{"X-Real-IP": "7.7.7.7"}, want: "7.7.7.7"},
		{name: "all trusted", proxies: proxies, remote: "10.1.1.1:80", headers: map[string]string{"X-Forwarded-For": "10.3.3.3, 10.4.4.4"}, want: "10.3.3.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(req))
		})
	}
}

func TestClientRateLimiter(t *testing.T) {
	l := NewClientRateLimiter(RateLimiterConfig{RequestsPerMinute: 60, Burst: 2, CleanupTTL: time.Minute})
	defer l.Close()
	h := l.Middleware(okHandler())

	do := func(remote string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/add", nil)
		req.RemoteAddr = remote
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("1.1.1.1:1").Code)
	assert.Equal(t, http.StatusOK, do("1.1.1.1:2").Code)
	rec := do("1.1.1.1:3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	_, typ := decodeError(t, rec)
	assert.Equal(t, "rate_limit_error", typ)

	assert.Equal(t, http.StatusOK, do("2.2.2.2:1").Code, "clients are limited independently")
	assert.Equal(t, 2, l.Stats()["active_clients"])

	l.cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, l.Stats()["active_clients"])
}

func TestClientRateLimiter_KeyUsesPrincipal(t *testing.T) {
	l := NewClientRateLimiter(RateLimiterConfig{})
	defer l.Close()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "3.3.3.3:1"
	assert.Equal(t, "ip:3.3.3.3", l.Key(req))

	req = req.WithContext(WithPrincipal(req.Context(), &Principal{Subject: "bob"}))
	assert.Equal(t, "sub:bob", l.Key(req))
}

func TestClientRateLimiter_Distributed(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	ctx := context.Background()

	l := NewClientRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 2,
		Distributed:       resilience.NewRedisLimiter(client, "rl"),
	})
	defer l.Close()

	assert.True(t, l.Allow(ctx, "ip:a"))
	assert.True(t, l.Allow(ctx, "ip:a"))
	assert.False(t, l.Allow(ctx, "ip:a"))

	s.SetError("down")
	assert.False(t, l.Allow(ctx, "ip:b"), "fails closed by default")

	open := NewClientRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 2,
		FailOpen:          true,
		Distributed:       resilience.NewRedisLimiter(client, "rl"),
	})
	defer open.Close()
	assert.True(t, open.Allow(ctx, "ip:b"))
}
