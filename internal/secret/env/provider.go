// Package env resolves env:// secret references from the process
// environment.
package env

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider reads environment variables. A path of the form "NAME:-default"
// falls back to default when NAME is unset or empty.
type Provider struct{}

// New creates a new env provider.
func New() *Provider {
	return &Provider{}
}

func (p *Provider) Get(ctx context.Context, path string) (string, error) {
	name, def, hasDefault := strings.Cut(path, ":-")
	val, ok := os.LookupEnv(name)
	if ok && val != "" {
		return val, nil
	}
	if hasDefault {
		return def, nil
	}
	if ok {
		return val, nil
	}
	return "", fmt.Errorf("environment variable %q not set", name)
}

func (p *Provider) Close() error {
	return nil
}
