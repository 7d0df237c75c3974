package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/blueberrycongee/recall/internal/metrics"
	"github.com/blueberrycongee/recall/internal/resilience"
	llmerrors "github.com/blueberrycongee/recall/pkg/errors"
)

// ClientRateLimiter limits requests per client. Authenticated callers are
// keyed by subject, anonymous callers by IP.
type ClientRateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*clientLimiter
	rpm         int
	burst       int
	cleanupTTL  time.Duration
	distributed resilience.DistributedLimiter
	failOpen    bool
	proxies     TrustedProxies
	logger      *slog.Logger
	stop        chan struct{}
	stopOnce    sync.Once
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiterConfig contains configuration for the client rate limiter.
type RateLimiterConfig struct {
	RequestsPerMinute int           // Default 60
	Burst             int           // Default 10
	CleanupTTL        time.Duration // TTL for inactive limiters
	FailOpen          bool          // Allow requests when the distributed backend fails
	TrustedProxies    []string      // Trusted proxy IPs/CIDRs for forwarded headers
	// Distributed, when set, replaces the in-process token buckets.
	Distributed resilience.DistributedLimiter
	Logger      *slog.Logger
}

// NewClientRateLimiter creates a limiter and starts its cleanup loop.
func NewClientRateLimiter(cfg RateLimiterConfig) *ClientRateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.CleanupTTL <= 0 {
		cfg.CleanupTTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	proxies, invalid := ParseTrustedProxies(cfg.TrustedProxies)
	for _, value := range invalid {
		cfg.Logger.Warn("invalid trusted proxy cidr ignored", "value", value)
	}

	l := &ClientRateLimiter{
		limiters:    make(map[string]*clientLimiter),
		rpm:         cfg.RequestsPerMinute,
		burst:       cfg.Burst,
		cleanupTTL:  cfg.CleanupTTL,
		distributed: cfg.Distributed,
		failOpen:    cfg.FailOpen,
		proxies:     proxies,
		logger:      cfg.Logger,
		stop:        make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether the client identified by key may proceed.
func (l *ClientRateLimiter) Allow(ctx context.Context, key string) bool {
	if l.distributed == nil {
		return l.local(key).Allow()
	}

	results, err := l.distributed.CheckAllow(ctx, []resilience.Descriptor{{
		Key:    key,
		Limit:  int64(l.rpm),
		Window: time.Minute,
	}})
	if err == nil && len(results) == 0 {
		err = fmt.Errorf("distributed rate limiter returned no results")
	}
	if err == nil {
		return results[0].Allowed
	}

	action := "deny"
	if l.failOpen {
		action = "allow"
	}
	metrics.RateLimiterBackendErrors.WithLabelValues(action).Inc()
	l.logger.Warn("distributed rate limiter check failed", "error", err, "action", action)
	return l.failOpen
}

func (l *ClientRateLimiter) local(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(float64(l.rpm)/60.0), l.burst)}
		l.limiters[key] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

// Key derives the limiter key for r.
func (l *ClientRateLimiter) Key(r *http.Request) string {
	if p := PrincipalFrom(r.Context()); p != nil && p.Subject != "" {
		return "sub:" + p.Subject
	}
	return "ip:" + l.proxies.ClientIP(r)
}

// Middleware rejects requests over the limit with 429.
func (l *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	backend := "local"
	if l.distributed != nil {
		backend = "redis"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || l.Allow(r.Context(), l.Key(r)) {
			next.ServeHTTP(w, r)
			return
		}
		metrics.RateLimitRejections.WithLabelValues(backend).Inc()
		writeError(w, llmerrors.NewRateLimitError("rate limit exceeded"))
	})
}

// Stats returns the number of tracked clients.
func (l *ClientRateLimiter) Stats() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return map[string]any{
		"active_clients": len(l.limiters),
		"rpm":            l.rpm,
		"burst":          l.burst,
	}
}

// Close stops the cleanup loop.
func (l *ClientRateLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *ClientRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup(time.Now())
		}
	}
}

func (l *ClientRateLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, cl := range l.limiters {
		if now.Sub(cl.lastAccess) > l.cleanupTTL {
			delete(l.limiters, key)
		}
	}
}
