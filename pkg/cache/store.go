package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// FastStore is the in-process tier: low-latency, TTL-bound, authoritative for
// the common-case read path. Its contents are a pure performance accelerator
// and may be fully reconstructed from the durable tier after a restart.
//
// Implementations must be safe for concurrent use. Operations never perform
// I/O and have no external failure modes.
type FastStore[V any] interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) (V, error)

	// Set stores a value with the given TTL. A non-positive TTL is rejected
	// with ErrInvalidTTL. Setting an existing key replaces both value and TTL.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteFunc removes every entry whose key matches the predicate.
	DeleteFunc(ctx context.Context, match func(key string) bool) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close releases resources (stops background goroutines, etc.).
	Close() error
}

// DurableStore is the persistence-backed tier: survives process restarts and
// seeds the fast tier on misses. Every entry carries an explicit expiry
// timestamp so the remaining TTL can be reconciled on promotion.
//
// Implementations report backend failures wrapped in ErrPersistenceUnavailable
// so the coordinator can distinguish them from misses and degrade gracefully.
type DurableStore[V any] interface {
	// Get retrieves a value and its absolute expiry by key.
	// An entry past its expiry is treated as absent and opportunistically
	// deleted (read-time reaping). Returns ErrNotFound on miss.
	Get(ctx context.Context, key string) (V, time.Time, error)

	// Put upserts an entry keyed by key, tagged with its namespace for bulk
	// invalidation. A non-positive TTL is rejected with ErrInvalidTTL.
	Put(ctx context.Context, key string, value V, namespace string, ttl time.Duration) error

	// Delete removes a single entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteNamespace removes every entry tagged with the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close releases resources owned by the store. It does not close the
	// underlying backend client, whose lifecycle belongs to the caller.
	Close() error
}

// Marshaler serializes and deserializes cache values for storage backends
// that require byte representation (Postgres, Redis).
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}
