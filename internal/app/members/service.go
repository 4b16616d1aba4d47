// Package members registers resolved identities as member records.
package members

import (
	"context"
	"fmt"

	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
	"github.com/shared-wheels/carpool-ledger-api/internal/ledger"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/identity"
	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

type Service struct {
	store treestore.Store
}

func NewService(store treestore.Store) *Service {
	return &Service{store: store}
}

// EnsureRegistered creates the member record for a freshly resolved identity
// and returns the member. The record is written once: repeat resolutions of
// the same subject leave the stored record untouched, so a display-name
// change upstream never rewrites names already attached to ledger entries.
func (s *Service) EnsureRegistered(ctx context.Context, ident identity.Identity) (domain.Member, error) {
	var rec ledger.MemberRecord
	found, err := s.store.Get(ctx, ledger.MemberPath(ident.MemberID), &rec)
	if err != nil {
		return domain.Member{}, fmt.Errorf("load member %s: %w", ident.MemberID, err)
	}
	if !found {
		rec = ledger.MemberRecord{
			ID:          ident.MemberID,
			DisplayName: domain.ShortDisplayName(ident.DisplayName, ident.Email),
			Email:       ident.Email,
		}
		err := s.store.Apply(ctx, treestore.Write{Path: ledger.MemberPath(ident.MemberID), Value: rec})
		if err != nil {
			return domain.Member{}, fmt.Errorf("register member %s: %w", ident.MemberID, err)
		}
	}
	return domain.Member{ID: rec.ID, DisplayName: rec.DisplayName, Email: rec.Email}, nil
}

// Member loads a registered member by id.
func (s *Service) Member(ctx context.Context, id domain.MemberID) (domain.Member, bool, error) {
	var rec ledger.MemberRecord
	found, err := s.store.Get(ctx, ledger.MemberPath(id), &rec)
	if err != nil {
		return domain.Member{}, false, fmt.Errorf("load member %s: %w", id, err)
	}
	if !found {
		return domain.Member{}, false, nil
	}
	return domain.Member{ID: rec.ID, DisplayName: rec.DisplayName, Email: rec.Email}, true, nil
}
