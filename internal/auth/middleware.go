package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/recall/internal/metrics"
	llmerrors "github.com/blueberrycongee/recall/pkg/errors"
)

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}

// ErrMissingToken is returned when no bearer token is present.
var ErrMissingToken = errors.New("missing or invalid authorization header")

// Middleware provides HTTP middleware for bearer token authentication.
type Middleware struct {
	verifier  Verifier
	logger    *slog.Logger
	skipPaths []string
}

// MiddlewareConfig contains configuration for the auth middleware.
type MiddlewareConfig struct {
	Verifier Verifier
	Logger   *slog.Logger
	// SkipPaths bypass authentication (prefix match, e.g. /health, /metrics).
	SkipPaths []string
}

// NewMiddleware creates a new authentication middleware. A nil Verifier
// disables authentication.
func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Middleware{
		verifier:  cfg.Verifier,
		logger:    cfg.Logger,
		skipPaths: cfg.SkipPaths,
	}
}

// Authenticate returns an HTTP middleware that validates bearer tokens.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.verifier == nil || r.Method == http.MethodOptions || m.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := ParseBearer(r.Header.Get("Authorization"))
		if err != nil {
			metrics.AuthFailures.WithLabelValues("missing_token").Inc()
			writeError(w, llmerrors.NewAuthenticationError(err.Error()))
			return
		}

		principal, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
			m.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
			writeError(w, llmerrors.NewAuthenticationError("invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (m *Middleware) skip(path string) bool {
	for _, p := range m.skipPaths {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>" header.
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func writeError(w http.ResponseWriter, err *llmerrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	if err.Type == llmerrors.TypeRateLimit {
		w.Header().Set("Retry-After", "60")
	}
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"message": err.Message,
			"type":    err.Type,
		},
	})
}
