package static

import (
	"context"
	"errors"
	"testing"

	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/identity"
)

func TestResolveUsesCredentialAsSubject(t *testing.T) {
	t.Parallel()

	r := New("dev|local")
	ident, err := r.Resolve(context.Background(), "dev|alice")
	if err != nil {
		t.Fatalf("Resolve err=%v", err)
	}
	if string(ident.MemberID) != "dev|alice" {
		t.Fatalf("memberID=%q", ident.MemberID)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	t.Parallel()

	r := New("dev|local")
	ident, err := r.Resolve(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Resolve err=%v", err)
	}
	if string(ident.MemberID) != "dev|local" {
		t.Fatalf("memberID=%q", ident.MemberID)
	}
}

func TestResolveWithoutDefaultFails(t *testing.T) {
	t.Parallel()

	r := New("")
	if _, err := r.Resolve(context.Background(), ""); !errors.Is(err, identity.ErrUnauthorized) {
		t.Fatalf("err=%v, want ErrUnauthorized", err)
	}
}
