package secret

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Manager routes secret references to providers by URI scheme.
type Manager struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewManager creates a new secret manager.
func NewManager() *Manager {
	return &Manager{
		providers: make(map[string]Provider),
	}
}

// Register registers a provider for a scheme such as "vault" or "env".
func (m *Manager) Register(scheme string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[scheme] = provider
}

// IsReference reports whether v looks like "scheme://path".
func IsReference(v string) bool {
	scheme, _, ok := strings.Cut(v, "://")
	return ok && scheme != "" && !strings.ContainsAny(scheme, " /")
}

// Get resolves ref. A value without a scheme is returned as-is.
func (m *Manager) Get(ctx context.Context, ref string) (string, error) {
	scheme, path, ok := strings.Cut(ref, "://")
	if !ok {
		return ref, nil
	}

	m.mu.RLock()
	provider, found := m.providers[scheme]
	m.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("no secret provider registered for scheme: %s", scheme)
	}
	return provider.Get(ctx, path)
}

// ResolveAll replaces every field holding a reference for a registered
// scheme with the secret it points to. Other values, including URLs, are
// left untouched.
func (m *Manager) ResolveAll(ctx context.Context, fields ...*string) error {
	for _, f := range fields {
		if f == nil || !IsReference(*f) {
			continue
		}
		scheme, _, _ := strings.Cut(*f, "://")
		m.mu.RLock()
		_, registered := m.providers[scheme]
		m.mu.RUnlock()
		if !registered {
			continue
		}
		v, err := m.Get(ctx, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// Close closes all registered providers.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []string
	for scheme, p := range m.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", scheme, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close providers: %s", strings.Join(errs, "; "))
	}
	return nil
}
