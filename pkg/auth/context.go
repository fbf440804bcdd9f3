// Package auth authenticates HTTP callers and carries the resulting
// principal through the request context. Authorization itself is the
// gate's job; this package only establishes who is calling.
package auth

import (
	"context"
	"errors"

	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal attaches a principal to the context.
func WithPrincipal(ctx context.Context, p contracts.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal retrieves the principal from the context.
func GetPrincipal(ctx context.Context) (contracts.Principal, error) {
	p, ok := ctx.Value(principalKey).(contracts.Principal)
	if !ok || p == "" {
		return "", errors.New("no principal in context")
	}
	return p, nil
}
