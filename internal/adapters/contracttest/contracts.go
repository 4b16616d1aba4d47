// Package contracttest holds the behavioral contract every treestore.Store
// implementation must satisfy. Both the memory and postgres adapters run it.
package contracttest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

type CleanupFunc = func()

type StoreFactory func(t *testing.T) (treestore.Store, CleanupFunc)

type doc struct {
	Name string  `json:"name"`
	Kms  float64 `json:"kms"`
}

func RunTreeStore(t *testing.T, newStore StoreFactory) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		store, cleanup := open(t, newStore)
		_ = cleanup

		var d doc
		ok, err := store.Get(context.Background(), "projects/none", &d)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok {
			t.Fatalf("expected ok=false for missing path")
		}
	})

	t.Run("PutGetOverwrite", func(t *testing.T) {
		store, _ := open(t, newStore)
		ctx := context.Background()

		if err := store.Apply(ctx, treestore.Write{Path: "projects/p1", Value: doc{Name: "pool", Kms: 10}}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		var d doc
		ok, err := store.Get(ctx, "projects/p1", &d)
		if err != nil || !ok {
			t.Fatalf("Get: ok=%v err=%v", ok, err)
		}
		if d.Name != "pool" || d.Kms != 10 {
			t.Fatalf("unexpected doc: %+v", d)
		}

		// Overwrite semantics.
		if err := store.Apply(ctx, treestore.Write{Path: "projects/p1", Value: doc{Name: "pool", Kms: 25}}); err != nil {
			t.Fatalf("Apply overwrite: %v", err)
		}
		if _, err := store.Get(ctx, "projects/p1", &d); err != nil {
			t.Fatalf("Get: %v", err)
		}
		if d.Kms != 25 {
			t.Fatalf("kms=%v, want 25", d.Kms)
		}
	})

	t.Run("ChildrenOneLevel", func(t *testing.T) {
		store, _ := open(t, newStore)
		ctx := context.Background()

		err := store.Apply(ctx,
			treestore.Write{Path: "trips/p1/t1", Value: doc{Name: "a"}},
			treestore.Write{Path: "trips/p1/t2", Value: doc{Name: "b"}},
			treestore.Write{Path: "trips/p2/t3", Value: doc{Name: "other project"}},
			treestore.Write{Path: "trips/p1", Value: doc{Name: "parent node, not a child"}},
		)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}

		kids, err := store.Children(ctx, "trips/p1")
		if err != nil {
			t.Fatalf("Children: %v", err)
		}
		if len(kids) != 2 {
			t.Fatalf("len=%d, want 2 (got %v)", len(kids), keys(kids))
		}
		var d doc
		if err := json.Unmarshal(kids["t1"], &d); err != nil || d.Name != "a" {
			t.Fatalf("t1 decode: %v %+v", err, d)
		}
	})

	t.Run("MultiPathApplyAndSubtreeDelete", func(t *testing.T) {
		store, _ := open(t, newStore)
		ctx := context.Background()

		err := store.Apply(ctx,
			treestore.Write{Path: "projects/p1", Value: doc{Name: "pool"}},
			treestore.Write{Path: "trips/p1/t1", Value: doc{Name: "trip"}},
			treestore.Write{Path: "members/m1/membership", Value: doc{Name: "membership"}},
		)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}

		// One apply removes the project and its whole trip subtree while
		// clearing the membership, mirroring a cascading project delete.
		err = store.Apply(ctx,
			treestore.Remove("projects/p1"),
			treestore.Remove("trips/p1"),
			treestore.Remove("members/m1/membership"),
		)
		if err != nil {
			t.Fatalf("Apply delete: %v", err)
		}

		for _, path := range []string{"projects/p1", "trips/p1/t1", "members/m1/membership"} {
			ok, err := store.Get(ctx, path, nil)
			if err != nil {
				t.Fatalf("Get %s: %v", path, err)
			}
			if ok {
				t.Fatalf("path %s should be gone", path)
			}
		}
	})

	t.Run("NilValueDeleteIsIdempotent", func(t *testing.T) {
		store, _ := open(t, newStore)
		ctx := context.Background()

		if err := store.Apply(ctx, treestore.Remove("projects/never-existed")); err != nil {
			t.Fatalf("Apply delete of missing path: %v", err)
		}
	})
}

func open(t *testing.T, newStore StoreFactory) (treestore.Store, CleanupFunc) {
	t.Helper()
	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	return store, cleanup
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
