// Package static provides a development identity resolver that trusts the
// caller-supplied subject. Never wire it in production.
package static

import (
	"context"
	"strings"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/identity"
)

// Resolver maps the credential string straight to a member id. An empty
// credential falls back to DefaultSubject so local tooling works without
// headers.
type Resolver struct {
	DefaultSubject string
}

func New(defaultSubject string) *Resolver {
	return &Resolver{DefaultSubject: defaultSubject}
}

func (r *Resolver) Resolve(_ context.Context, credential string) (identity.Identity, error) {
	sub := strings.TrimSpace(credential)
	if sub == "" {
		sub = r.DefaultSubject
	}
	if sub == "" {
		return identity.Identity{}, identity.ErrUnauthorized
	}
	return identity.Identity{
		MemberID:    domain.MemberID(sub),
		DisplayName: sub,
		Email:       sub + "@dev.local",
	}, nil
}
