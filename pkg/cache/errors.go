package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNotFound is returned when a key does not exist in either tier or has expired.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("cache: closed")

	// ErrInvalidShape is returned when a query shape cannot be canonicalized
	// into a deterministic serialization.
	ErrInvalidShape = errors.New("cache: shape is not serializable")

	// ErrInvalidNamespace is returned for an empty namespace or one containing
	// the key separator, which would break prefix-scoped invalidation.
	ErrInvalidNamespace = errors.New("cache: invalid namespace")

	// ErrInvalidTTL is returned when a non-positive TTL is passed to a write.
	ErrInvalidTTL = errors.New("cache: ttl must be positive")

	// ErrPersistenceUnavailable wraps durable-tier failures (connectivity,
	// backend errors). The coordinator never propagates it to callers.
	ErrPersistenceUnavailable = errors.New("cache: durable tier unavailable")

	// ErrInvalidReapSchedule is returned when the durable-tier reaper
	// schedule cannot be parsed as a cron expression.
	ErrInvalidReapSchedule = errors.New("cache: invalid reap schedule")

	// ErrMarshal is returned when value serialization fails.
	ErrMarshal = errors.New("cache: failed to marshal value")

	// ErrUnmarshal is returned when value deserialization fails.
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")
)
