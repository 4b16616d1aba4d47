package treestore

import (
	"context"
	"encoding/json"
)

// Write is one path→value entry in a multi-path apply. A nil Value deletes
// the path together with its whole subtree.
type Write struct {
	Path  string
	Value any
}

// Remove is shorthand for a subtree-deleting write.
func Remove(path string) Write { return Write{Path: path} }

// Store is a tree-shaped key/value store. Records are JSON documents stored
// at slash-separated paths (e.g. "projects/p1", "trips/p1/t1").
//
// The only hard requirement on implementations is atomicity of Apply: a set
// of writes submitted together either all land or none do, and a concurrent
// reader observes either the pre-state or the post-state, never a mix.
type Store interface {
	// Get decodes the record at path into dest. The second return is false
	// when no record exists at that path.
	Get(ctx context.Context, path string, dest any) (bool, error)

	// Children returns the records stored exactly one level below path,
	// keyed by their final path segment.
	Children(ctx context.Context, path string) (map[string]json.RawMessage, error)

	// Apply performs a multi-path atomic write.
	Apply(ctx context.Context, writes ...Write) error
}
