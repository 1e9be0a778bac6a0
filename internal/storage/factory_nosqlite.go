//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("%w: sqlite backend unavailable in this build; rebuild with -tags sqlite", ErrUnsupportedBackend)
}

// DefaultStoreKind is the backend used when none is configured.
func DefaultStoreKind() string { return "memory" }
