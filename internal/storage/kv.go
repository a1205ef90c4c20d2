package storage

import (
	"context"
	"errors"
	"fmt"
)

// Backend names accepted by OpenBackend
const (
	BackendBolt   = "bolt"
	BackendLibSQL = "libsql"
)

var ErrUnknownBackend = errors.New("unknown storage backend")

// Tx is a view of the store inside a single atomic transaction.
type Tx interface {
	Get(key string) (string, bool, error)
	Keys(prefix string) ([]string, error)
	Put(key, value string) error
	Delete(key string) error
	DeletePrefix(prefix string) (int, error)
}

// KV is a durable string map. Every single-key call is atomic on its own;
// Update groups several changes into one transaction.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every row whose key starts with prefix and
	// returns how many rows were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Keys returns all keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Update runs fn in a read-write transaction. If fn returns an error
	// nothing it wrote is persisted.
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Compactor is implemented by backends that can rewrite their file to
// reclaim space left by deleted rows.
type Compactor interface {
	Compact() error
}

// OpenBackend opens the store at path using the named backend.
func OpenBackend(backend, path string) (KV, error) {
	switch backend {
	case "", BackendBolt:
		return Open(path)
	case BackendLibSQL:
		return OpenSQL(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
