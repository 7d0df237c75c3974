// Package resilience provides rate limiting shared across service replicas.
package resilience

import (
	"context"
	"time"
)

// Descriptor defines a specific limit rule.
type Descriptor struct {
	Key    string        // e.g., "ip:10.0.0.1"
	Limit  int64         // requests allowed per window
	Window time.Duration // window size (default 1m)
}

// LimitResult contains the result of a check.
type LimitResult struct {
	Allowed   bool
	Current   int64
	Remaining int64
	ResetAt   time.Time
}

// DistributedLimiter checks and increments limits in a shared backend.
type DistributedLimiter interface {
	// CheckAllow atomically increments the counter of every descriptor and
	// returns one result per descriptor, in order.
	CheckAllow(ctx context.Context, descriptors []Descriptor) ([]LimitResult, error)
}
