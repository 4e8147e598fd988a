package store

import "errors"

// ErrNotFound is returned by lookups that match no row. Callers on the
// degraded pricing path check for it with errors.Is and proceed without
// the data.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned by conditional status transitions when the
// row is not in the expected current status. It signals a state error,
// distinct from validation failures.
var ErrConflict = errors.New("store: status conflict")
