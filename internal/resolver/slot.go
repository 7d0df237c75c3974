package resolver

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Slot is a single-value cache for a resolved model name. Only non-empty
// results are kept, so a failed resolution is retried on the next call.
type Slot struct {
	mu    sync.Mutex
	value string
	group singleflight.Group
}

// Get returns the cached name and whether one is set.
func (s *Slot) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.value != ""
}

// GetOrResolve returns the cached name, or runs resolve and caches its
// result. Concurrent callers share one resolution, but each waits only as
// long as its own ctx allows and gets "" when ctx ends first. The shared
// resolution is not cancelled by any single caller.
func (s *Slot) GetOrResolve(ctx context.Context, resolve func(context.Context) string) string {
	if v, ok := s.Get(); ok {
		return v
	}

	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan("resolve", func() (any, error) {
		v := resolve(flight)
		if v != "" {
			s.mu.Lock()
			s.value = v
			s.mu.Unlock()
		}
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return ""
	}
}

// Reset clears the cached name.
func (s *Slot) Reset() {
	s.mu.Lock()
	s.value = ""
	s.mu.Unlock()
}
