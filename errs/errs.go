// Package errs defines the error taxonomy shared by the storage core:
// not-found, duplicate, capacity, wrong-node-kind, and invariant-violation
// sentinels. Callers wrap them with context; errors.Is still matches them.
package errs

import "errors"

var (
	// ErrNotFound is returned when a read/remove targets an absent key.
	ErrNotFound = errors.New("key not found")

	// ErrDuplicate is returned when an insert targets an existing key.
	ErrDuplicate = errors.New("duplicate key")

	// ErrCapacity is returned when a page (leaf, intermediate, or heap)
	// has no room for another cell. Terminal until splits exist.
	ErrCapacity = errors.New("page is full")

	// ErrWrongNodeKind is returned when a leaf-only or intermediate-only
	// operation is invoked on the wrong kind of page.
	ErrWrongNodeKind = errors.New("wrong node kind")

	// ErrInvariant is returned for page-id overflow, an unavailable
	// eviction victim (all frames pinned), a child page id that does not
	// exist in the index file, or a buffer-pool free-list inconsistency.
	ErrInvariant = errors.New("invariant violation")
)
