// Package cache provides a two-tier query-result cache: an in-process fast
// tier in front of a persistence-backed durable tier, coordinated by a single
// read-through/write-through policy.
//
// The fast tier serves the dominant read path with no I/O; the durable tier
// survives process restarts and re-seeds the fast tier on misses. The durable
// tier is an optimization for cross-restart warm-start, not a correctness
// dependency: its failures are logged and swallowed, and callers only ever
// observe them as extra cache misses.
//
// # Key Derivation
//
// Cache keys are derived, never caller-supplied. [DeriveKey] maps a
// (namespace, shape) pair to "namespace:<sha256 digest>" over a canonical
// JSON serialization of the shape, so equivalent shapes with different field
// order produce identical keys across restarts and processes:
//
//	key, err := cache.DeriveKey("prices", map[string]any{"sku": "A1"})
//
// Embedding the namespace in the key enables exact-prefix invalidation
// without an auxiliary index.
//
// # Stores
//
// [Memory] implements [FastStore]: a mutex-guarded map with per-key TTL, lazy
// expiry on read, and a background janitor as a memory backstop.
//
// [Postgres] and [Redis] implement [DurableStore]. Both persist an explicit
// expiry timestamp per entry, treat expired entries as absent on read
// (deleting them opportunistically), and support namespace-scoped deletion.
// Postgres purges expired rows on a cron schedule; Redis additionally sets a
// server-side TTL as a backstop.
//
// # Coordinator
//
// [Coordinator] ties the tiers together:
//
//	fast := cache.NewMemory[[]Row]()
//	defer fast.Close()
//
//	durable, err := cache.NewPostgres[[]Row](pool, nil)
//	coord := cache.New[[]Row](fast, durable, cache.WithLogger(log))
//
//	rows, err := coord.ReadThrough(ctx, "reports", params, 5*time.Minute,
//	    func(ctx context.Context) ([]Row, error) {
//	        return runExpensiveQuery(ctx, params)
//	    })
//
// Get consults fast → durable → miss; a durable hit is promoted back into the
// fast tier with its remaining TTL, so both tiers agree on the absolute
// expiry. Put writes through both tiers. Invalidate sweeps a namespace from
// both tiers.
//
// [Coordinator.ReadThrough] does not deduplicate concurrent identical misses;
// [Coordinator.ReadThroughShared] collapses them via singleflight when the
// computation is expensive enough to warrant it.
//
// # TTL Semantics
//
// Every write requires a positive TTL; non-positive TTLs are rejected with
// [ErrInvalidTTL] before any store mutation. There is no default-TTL or
// never-expires mode: a query-result cache that never expires is a bug.
//
// # Error Handling
//
// The package defines sentinel errors checked with [errors.Is]:
//
//   - [ErrNotFound] — key absent or expired in all tiers
//   - [ErrInvalidShape] — shape cannot be canonicalized
//   - [ErrInvalidNamespace] — empty namespace or one containing ":"
//   - [ErrInvalidTTL] — non-positive TTL
//   - [ErrPersistenceUnavailable] — durable backend failure (wrapped by
//     stores, swallowed by the coordinator)
//   - [ErrClosed] — operation on a closed store
//
// Compute-function errors from ReadThrough propagate unchanged; failures are
// never cached.
package cache
