package treestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

// Store is a Postgres implementation of treestore.Store. Records live in a
// single path→jsonb table; Apply runs inside one transaction, which gives the
// multi-path all-or-nothing guarantee the ledger relies on.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the backing table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tree_nodes (
			path  text PRIMARY KEY,
			value jsonb NOT NULL
		)
	`)
	if err != nil {
		return unavailable("ensure schema", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string, dest any) (bool, error) {
	if s.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM tree_nodes WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("get "+path, err)
	}
	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return true, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func (s *Store) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT substr(path, length($1) + 2), value
		FROM tree_nodes
		WHERE path LIKE $1 || '/%'
		  AND strpos(substr(path, length($1) + 2), '/') = 0
	`, path)
	if err != nil {
		return nil, unavailable("children "+path, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var seg string
		var raw []byte
		if err := rows.Scan(&seg, &raw); err != nil {
			return nil, unavailable("children "+path, err)
		}
		out[seg] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("children "+path, err)
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, writes ...treestore.Write) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	// Marshal up front so a bad value aborts before the transaction starts.
	encoded := make([][]byte, len(writes))
	for i, w := range writes {
		if w.Path == "" {
			return fmt.Errorf("empty path in write %d", i)
		}
		if w.Value == nil {
			continue
		}
		raw, err := json.Marshal(w.Value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", w.Path, err)
		}
		encoded[i] = raw
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for i, w := range writes {
			if w.Value == nil {
				_, err := tx.Exec(ctx, `
					DELETE FROM tree_nodes
					WHERE path = $1 OR path LIKE $1 || '/%'
				`, w.Path)
				if err != nil {
					return err
				}
				continue
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO tree_nodes (path, value) VALUES ($1, $2)
				ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value
			`, w.Path, encoded[i])
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("apply", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", treestore.ErrUnavailable, op, err)
}
