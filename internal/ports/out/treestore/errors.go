package treestore

import "errors"

// ErrUnavailable marks transient storage failures. Ledger operations are
// idempotent when retried with the same logical values, so callers may retry.
var ErrUnavailable = errors.New("tree store unavailable")
