package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/blueberrycongee/recall/internal/auth"
	"github.com/blueberrycongee/recall/internal/cache"
	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/metrics"
	"github.com/blueberrycongee/recall/internal/observability"
	"github.com/blueberrycongee/recall/internal/resilience"
)

var errNilConfig = errors.New("config is required")

const rateLimitKeyPrefix = "recall:ratelimit"

// buildMiddlewareStack wraps the mux, innermost first, in metrics, rate
// limiting, authentication, request IDs and CORS. The returned func releases
// background resources.
func buildMiddlewareStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, func(), error) {
	if cfg == nil {
		return nil, nil, errNilConfig
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	verifier, err := buildVerifier(ctx, cfg.Auth)
	if err != nil {
		return nil, nil, err
	}
	var authMiddleware *auth.Middleware
	if verifier != nil {
		authMiddleware = auth.NewMiddleware(auth.MiddlewareConfig{
			Verifier:  verifier,
			Logger:    logger,
			SkipPaths: cfg.Auth.SkipPaths,
		})
		logger.Info("bearer authentication enabled", "mode", cfg.Auth.Mode)
	}

	var limiter *auth.ClientRateLimiter
	if cfg.RateLimit.Enabled {
		rlCfg := auth.RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.BurstSize,
			FailOpen:          cfg.RateLimit.FailOpen,
			TrustedProxies:    cfg.RateLimit.TrustedProxies,
			Logger:            logger,
		}
		if cfg.RateLimit.Backend == "redis" {
			client, err := cache.NewRedisClient(cfg.Cache.Redis)
			if err != nil && !cfg.RateLimit.FailOpen {
				return nil, nil, fmt.Errorf("connect rate limit backend: %w", err)
			}
			if client != nil {
				closers = append(closers, func() { _ = client.Close() })
				rlCfg.Distributed = resilience.NewRedisLimiter(client, rateLimitKeyPrefix)
			}
			if err != nil {
				logger.Warn("redis rate limiter unreachable, using local limits", "error", err)
			}
		}
		limiter = auth.NewClientRateLimiter(rlCfg)
		closers = append(closers, limiter.Close)
		logger.Info("rate limiting enabled",
			"backend", cfg.RateLimit.Backend,
			"requests_per_minute", cfg.RateLimit.RequestsPerMinute,
			"burst", cfg.RateLimit.BurstSize)
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			return nil
		}
		handler := metrics.Middleware(next)
		if limiter != nil {
			handler = limiter.Middleware(handler)
		}
		if authMiddleware != nil {
			handler = authMiddleware.Authenticate(handler)
		}
		handler = observability.RequestIDMiddleware(handler)
		handler = corsMiddleware(cfg.CORS, handler)
		return handler
	}, closeAll, nil
}

func buildVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	switch cfg.Mode {
	case "", "none":
		return nil, nil
	case "jwt":
		v, err := auth.NewJWTVerifier(auth.JWTConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt auth: %w", err)
		}
		return v, nil
	case "oidc":
		v, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
			IssuerURL: cfg.OIDC.IssuerURL,
			ClientID:  cfg.OIDC.ClientID,
		})
		if err != nil {
			return nil, fmt.Errorf("init oidc auth: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", cfg.Mode)
	}
}
