package identity

import (
	"context"
	"errors"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

// Identity is what the identity collaborator resolves a session credential
// to. The core uses the subject as the member id and never looks further.
type Identity struct {
	MemberID    domain.MemberID
	DisplayName string
	Email       string
}

// Resolver turns an opaque bearer credential into a stable identity.
// Implementations must return ErrUnauthorized (possibly wrapped) for any
// credential they cannot verify.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (Identity, error)
}
