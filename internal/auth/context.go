// Package auth authenticates API callers with bearer tokens and limits
// request rates per client.
package auth

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// PrincipalContextKey is the context key for the authenticated Principal.
const PrincipalContextKey contextKey = "principal"

// Principal identifies an authenticated caller.
type Principal struct {
	Subject string
	Email   string
	Issuer  string
	// Method is the verifier that accepted the token ("jwt" or "oidc").
	Method string
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// PrincipalFrom returns the caller stored on ctx, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(PrincipalContextKey).(*Principal)
	return p
}
