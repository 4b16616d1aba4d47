package httpapi

import (
	"context"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

type callerKey struct{}

// WithCaller stores the authenticated member on the request context.
func WithCaller(ctx context.Context, m domain.Member) context.Context {
	return context.WithValue(ctx, callerKey{}, m)
}

// CallerFromContext returns the authenticated member, if any.
func CallerFromContext(ctx context.Context) (domain.Member, bool) {
	m, ok := ctx.Value(callerKey{}).(domain.Member)
	return m, ok && m.ID != ""
}
