package storage

import "fmt"

// NewStore opens the backend named by kind: "memory" (also the empty kind) or
// "sqlite". Callers with no configured kind use DefaultStoreKind, which is
// "sqlite" in builds tagged sqlite (sqlite.go) and "memory" otherwise
// (factory_nosqlite.go).
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, kind)
	}
}

// CloseIfSupported closes backends that hold resources, such as the sqlite
// connection. The memory store needs no close.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
