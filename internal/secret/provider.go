package secret

import "context"

// Provider retrieves secrets from one backend.
type Provider interface {
	// Get retrieves the secret at path, the part of a reference after
	// "scheme://".
	Get(ctx context.Context, path string) (string, error)

	// Close releases any resources held by the provider.
	Close() error
}
