package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type claimsKey struct{}

// ErrForbidden is returned when a caller holds none of the required scopes.
var ErrForbidden = errors.New("insufficient scope")

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext retrieves claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// Authorize returns the caller's claims when they grant at least one of scopes.
// It fails with ErrMissingToken when no claims are attached and ErrForbidden otherwise.
func Authorize(ctx context.Context, scopes ...string) (*Claims, error) {
	claims, ok := FromContext(ctx)
	if !ok {
		return nil, ErrMissingToken
	}
	if len(scopes) > 0 && !claims.HasAnyScope(scopes...) {
		return nil, fmt.Errorf("%w: requires %s", ErrForbidden, strings.Join(scopes, " or "))
	}
	return claims, nil
}
