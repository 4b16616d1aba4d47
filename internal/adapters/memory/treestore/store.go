package treestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/shared-wheels/carpool-ledger-api/internal/ports/out/treestore"
)

// Store is an in-memory implementation of treestore.Store.
// It is safe for concurrent use; Apply is atomic under the write lock, so a
// reader sees either none or all of a multi-path write.
type Store struct {
	mu     sync.RWMutex
	byPath map[string]json.RawMessage
}

func NewStore() *Store {
	return &Store{byPath: make(map[string]json.RawMessage)}
}

func (s *Store) Get(ctx context.Context, path string, dest any) (bool, error) {
	_ = ctx
	s.mu.RLock()
	raw, ok := s.byPath[path]
	s.mu.RUnlock()
	if !ok {
		return false, nil
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
	_ = ctx
	prefix := path + "/"
	out := make(map[string]json.RawMessage)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for p, raw := range s.byPath {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		seg := p[len(prefix):]
		if strings.ContainsRune(seg, '/') {
			continue
		}
		cp := make(json.RawMessage, len(raw))
		copy(cp, raw)
		out[seg] = cp
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, writes ...treestore.Write) error {
	_ = ctx

	// Marshal everything up front so a bad value cannot leave a partial apply.
	encoded := make([]json.RawMessage, len(writes))
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

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range writes {
		if w.Value == nil {
			s.removeSubtreeLocked(w.Path)
			continue
		}
		s.byPath[w.Path] = encoded[i]
	}
	return nil
}

func (s *Store) removeSubtreeLocked(path string) {
	delete(s.byPath, path)
	prefix := path + "/"
	for p := range s.byPath {
		if strings.HasPrefix(p, prefix) {
			delete(s.byPath, p)
		}
	}
}
