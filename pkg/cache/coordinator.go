package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Coordinator orchestrates reads, writes, and invalidation across the fast
// and durable tiers. It owns the read-through/write-through policy: reads
// fall through fast → durable → miss, writes populate both tiers, and
// durable-tier failures are logged and swallowed so the fast tier keeps
// serving regardless of backend health.
type Coordinator[V any] struct {
	fast    FastStore[V]
	durable DurableStore[V]
	opts    *coordinatorOptions
	sf      singleflight.Group
}

// New creates a coordinator over a fast tier and an optional durable tier.
// Pass a nil durable store to run fast-tier-only (useful for tests and local
// development, where cross-restart warm-start does not matter).
//
// Example:
//
//	coord := cache.New[[]Row](fast, durable,
//	    cache.WithLogger(log),
//	)
func New[V any](fast FastStore[V], durable DurableStore[V], opts ...CoordinatorOption) *Coordinator[V] {
	o := defaultCoordinatorOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Coordinator[V]{
		fast:    fast,
		durable: durable,
		opts:    o,
	}
}

// Get looks up the cached value for (namespace, shape).
//
// The fast tier is consulted first. On a fast miss the durable tier is
// consulted; a durable hit with remaining lifetime repopulates the fast tier
// with the remaining TTL so both tiers agree on the absolute expiry, while a
// stale durable entry is deleted and reported as a miss. The coordinator
// never computes the underlying value itself; see ReadThrough for that.
func (c *Coordinator[V]) Get(ctx context.Context, namespace string, shape any) (V, error) {
	var zero V

	key, err := DeriveKey(namespace, shape)
	if err != nil {
		return zero, err
	}

	v, err := c.fast.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return zero, err
	}

	if c.durable == nil {
		return zero, ErrNotFound
	}

	v, expiresAt, err := c.durable.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.opts.log.WarnContext(ctx, "durable tier read failed, degrading to miss",
				"key", key, "error", err)
		}
		return zero, ErrNotFound
	}

	// The store already reaps on read; re-check against our own clock so the
	// promoted TTL is never non-positive.
	remaining := expiresAt.Sub(c.opts.now())
	if remaining <= 0 {
		if err := c.durable.Delete(ctx, key); err != nil {
			c.opts.log.WarnContext(ctx, "failed to delete stale durable entry",
				"key", key, "error", err)
		}
		return zero, ErrNotFound
	}

	if err := c.fast.Set(ctx, key, v, remaining); err != nil {
		c.opts.log.WarnContext(ctx, "fast tier repopulation failed",
			"key", key, "error", err)
	}

	return v, nil
}

// Put writes the value to both tiers with the same TTL. The fast-tier write
// must succeed and alone satisfies the write contract; a durable-tier failure
// is logged and swallowed, never propagated to the caller.
func (c *Coordinator[V]) Put(ctx context.Context, namespace string, shape any, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	key, err := DeriveKey(namespace, shape)
	if err != nil {
		return err
	}

	if err := c.fast.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	if c.durable != nil {
		if err := c.durable.Put(ctx, key, value, namespace, ttl); err != nil {
			c.opts.log.ErrorContext(ctx, "durable tier write failed",
				"key", key, "namespace", namespace, "error", err)
		}
	}

	return nil
}

// Invalidate removes every entry derived under the namespace from both tiers.
// Both deletions are attempted even if one fails; a durable-tier failure is
// logged and swallowed.
func (c *Coordinator[V]) Invalidate(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	// Keys embed the namespace as "namespace:digest", so an exact-prefix
	// match sweeps the fast tier without an auxiliary index.
	prefix := namespace + keySeparator
	fastErr := c.fast.DeleteFunc(ctx, func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})

	if c.durable != nil {
		if err := c.durable.DeleteNamespace(ctx, namespace); err != nil {
			c.opts.log.ErrorContext(ctx, "durable tier invalidation failed",
				"namespace", namespace, "error", err)
		}
	}

	return fastErr
}

// InvalidateAll clears both tiers unconditionally.
func (c *Coordinator[V]) InvalidateAll(ctx context.Context) error {
	fastErr := c.fast.Clear(ctx)

	if c.durable != nil {
		if err := c.durable.Clear(ctx); err != nil {
			c.opts.log.ErrorContext(ctx, "durable tier clear failed", "error", err)
		}
	}

	return fastErr
}

// ReadThrough attempts Get and, on a miss, invokes compute to produce the
// value, writes it through both tiers, and returns it. Compute errors
// propagate unchanged and are never cached.
//
// Concurrent callers missing on the same key each invoke compute
// independently; use ReadThroughShared when duplicate suppression matters.
func (c *Coordinator[V]) ReadThrough(ctx context.Context, namespace string, shape any, ttl time.Duration, compute func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	if ttl <= 0 {
		return zero, ErrInvalidTTL
	}

	v, err := c.Get(ctx, namespace, shape)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return zero, err
	}

	v, err = compute(ctx)
	if err != nil {
		return zero, err
	}

	if err := c.Put(ctx, namespace, shape, v, ttl); err != nil {
		return zero, err
	}

	return v, nil
}

// ReadThroughShared behaves like ReadThrough but collapses concurrent misses
// on the same derived key into a single compute invocation via singleflight.
// Opt in when compute is expensive enough that a stampede of identical misses
// would hurt; the plain ReadThrough stays the default.
func (c *Coordinator[V]) ReadThroughShared(ctx context.Context, namespace string, shape any, ttl time.Duration, compute func(ctx context.Context) (V, error)) (V, error) {
	var zero V

	if ttl <= 0 {
		return zero, ErrInvalidTTL
	}

	key, err := DeriveKey(namespace, shape)
	if err != nil {
		return zero, err
	}

	v, err := c.Get(ctx, namespace, shape)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return zero, err
	}

	res, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Put(ctx, namespace, shape, v, ttl); err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}

	return res.(V), nil
}
