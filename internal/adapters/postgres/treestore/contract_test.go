package treestore

import (
	"context"
	"testing"

	"github.com/shared-wheels/carpool-ledger-api/internal/adapters/contracttest"
	"github.com/shared-wheels/carpool-ledger-api/internal/adapters/postgres/testutil"
	treestoreport "github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

func TestContract_PostgresTreeStore(t *testing.T) {
	pool := testutil.OpenPool(t)

	store := NewStore(pool)
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	contracttest.RunTreeStore(t, func(t *testing.T) (treestoreport.Store, func()) {
		t.Helper()
		testutil.Reset(t, pool)
		return store, nil
	})
}
