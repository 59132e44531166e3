package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tiercache/pkg/cache"
)

var errBackendDown = errors.New("backend down")

// mockDurable is an in-memory DurableStore with call counters and
// deterministic failure injection. It shares the test's fake clock so its
// expiry decisions line up with the coordinator's.
type mockDurable struct {
	mu       sync.Mutex
	entries  map[string]mockEntry
	now      func() time.Time
	getCalls atomic.Int64
	putCalls atomic.Int64
	failGet  bool
	failPut  bool
}

type mockEntry struct {
	value     int
	namespace string
	expiresAt time.Time
}

func newMockDurable(now func() time.Time) *mockDurable {
	return &mockDurable{entries: make(map[string]mockEntry), now: now}
}

func (m *mockDurable) Get(_ context.Context, key string) (int, time.Time, error) {
	m.getCalls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet {
		return 0, time.Time{}, errors.Join(cache.ErrPersistenceUnavailable, errBackendDown)
	}

	e, ok := m.entries[key]
	if !ok {
		return 0, time.Time{}, cache.ErrNotFound
	}
	return e.value, e.expiresAt, nil
}

func (m *mockDurable) Put(_ context.Context, key string, value int, namespace string, ttl time.Duration) error {
	m.putCalls.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPut {
		return errors.Join(cache.ErrPersistenceUnavailable, errBackendDown)
	}
	if ttl <= 0 {
		return cache.ErrInvalidTTL
	}

	m.entries[key] = mockEntry{value: value, namespace: namespace, expiresAt: m.now().Add(ttl)}
	return nil
}

// putAt seeds an entry with an explicit expiry, bypassing the TTL contract.
func (m *mockDurable) putAt(key string, value int, namespace string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = mockEntry{value: value, namespace: namespace, expiresAt: expiresAt}
}

func (m *mockDurable) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *mockDurable) DeleteNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		if e.namespace == namespace {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *mockDurable) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]mockEntry)
	return nil
}

func (m *mockDurable) Close() error { return nil }

func (m *mockDurable) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func (m *mockDurable) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var _ cache.DurableStore[int] = (*mockDurable)(nil)

// newTestCoordinator wires a fast tier, a mock durable tier, and a fake clock
// shared by all components.
func newTestCoordinator(t *testing.T) (*cache.Coordinator[int], *cache.Memory[int], *mockDurable, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	fast := cache.NewMemory[int](
		cache.WithCleanupInterval(0),
		cache.WithTimeSource(clock.Now),
	)
	t.Cleanup(func() { _ = fast.Close() })

	durable := newMockDurable(clock.Now)
	coord := cache.New[int](fast, durable,
		cache.WithCoordinatorTimeSource(clock.Now),
	)

	return coord, fast, durable, clock
}

// --- Coordinator: Get / Put ---

func TestCoordinator_GetPut(t *testing.T) {
	t.Parallel()

	t.Run("put then get returns value", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, 5*time.Second))

		val, err := coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 42, val)
	})

	t.Run("miss in both tiers returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		_, err := coord.Get(context.Background(), "prices", map[string]any{"sku": "missing"})
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("get after ttl elapses returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		coord, _, _, clock := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, 5*time.Second))

		clock.Advance(6 * time.Second)

		_, err := coord.Get(ctx, "prices", shape)
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("put writes through to the durable tier", func(t *testing.T) {
		t.Parallel()

		coord, _, durable, _ := newTestCoordinator(t)

		ctx := context.Background()
		require.NoError(t, coord.Put(ctx, "prices", map[string]any{"sku": "A1"}, 42, time.Minute))

		key, err := cache.DeriveKey("prices", map[string]any{"sku": "A1"})
		require.NoError(t, err)
		require.True(t, durable.has(key))
	})

	t.Run("overwrite leaves only the second value retrievable", func(t *testing.T) {
		t.Parallel()

		coord, fast, _, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 1, time.Minute))
		require.NoError(t, coord.Put(ctx, "prices", shape, 2, time.Minute))

		val, err := coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 2, val)

		// The durable tier must agree after the fast entry is gone.
		require.NoError(t, fast.Clear(ctx))

		val, err = coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 2, val)
	})

	t.Run("rejects non-positive ttl before any store mutation", func(t *testing.T) {
		t.Parallel()

		coord, _, durable, _ := newTestCoordinator(t)

		err := coord.Put(context.Background(), "prices", map[string]any{"sku": "A1"}, 42, 0)
		require.ErrorIs(t, err, cache.ErrInvalidTTL)
		require.Zero(t, durable.len())
	})

	t.Run("propagates ErrInvalidShape", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		_, err := coord.Get(context.Background(), "prices", make(chan int))
		require.ErrorIs(t, err, cache.ErrInvalidShape)

		err = coord.Put(context.Background(), "prices", make(chan int), 42, time.Minute)
		require.ErrorIs(t, err, cache.ErrInvalidShape)
	})

	t.Run("works without a durable tier", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		fast := cache.NewMemory[int](
			cache.WithCleanupInterval(0),
			cache.WithTimeSource(clock.Now),
		)
		defer fast.Close()

		coord := cache.New[int](fast, nil,
			cache.WithCoordinatorTimeSource(clock.Now),
		)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, time.Minute))

		val, err := coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 42, val)
	})
}

// --- Coordinator: Tier Promotion ---

func TestCoordinator_TierPromotion(t *testing.T) {
	t.Parallel()

	t.Run("fast miss is served from the durable tier and repopulates", func(t *testing.T) {
		t.Parallel()

		coord, fast, durable, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, time.Minute))

		// Simulate a restart of the fast tier.
		require.NoError(t, fast.Clear(ctx))

		val, err := coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 42, val)
		require.Equal(t, int64(1), durable.getCalls.Load())

		// The repopulated fast tier satisfies the next read alone.
		val, err = coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 42, val)
		require.Equal(t, int64(1), durable.getCalls.Load(), "second get must not touch the durable tier")
	})

	t.Run("promotion preserves the absolute expiry", func(t *testing.T) {
		t.Parallel()

		coord, fast, _, clock := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, 10*time.Second))

		require.NoError(t, fast.Clear(ctx))
		clock.Advance(7 * time.Second)

		// Promoted with the remaining 3s, not a fresh 10s.
		val, err := coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 42, val)

		clock.Advance(4 * time.Second)

		_, err = coord.Get(ctx, "prices", shape)
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("stale durable entry is deleted and reported absent", func(t *testing.T) {
		t.Parallel()

		coord, _, durable, clock := newTestCoordinator(t)

		key, err := cache.DeriveKey("prices", map[string]any{"sku": "A1"})
		require.NoError(t, err)
		durable.putAt(key, 42, "prices", clock.Now().Add(-time.Second))

		_, err = coord.Get(context.Background(), "prices", map[string]any{"sku": "A1"})
		require.ErrorIs(t, err, cache.ErrNotFound)
		require.False(t, durable.has(key), "stale entry should have been reaped")
	})
}

// --- Coordinator: Invalidation ---

func TestCoordinator_Invalidate(t *testing.T) {
	t.Parallel()

	t.Run("sweeps one namespace from both tiers", func(t *testing.T) {
		t.Parallel()

		coord, _, durable, _ := newTestCoordinator(t)

		ctx := context.Background()
		require.NoError(t, coord.Put(ctx, "prices", map[string]any{"sku": "B2"}, 7, time.Minute))
		require.NoError(t, coord.Put(ctx, "inventory", map[string]any{"sku": "B2"}, 9, time.Minute))

		require.NoError(t, coord.Invalidate(ctx, "prices"))

		_, err := coord.Get(ctx, "prices", map[string]any{"sku": "B2"})
		require.ErrorIs(t, err, cache.ErrNotFound)

		val, err := coord.Get(ctx, "inventory", map[string]any{"sku": "B2"})
		require.NoError(t, err)
		require.Equal(t, 9, val)

		require.Equal(t, 1, durable.len(), "only the inventory entry should remain durable")
	})

	t.Run("rejects invalid namespace", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		require.ErrorIs(t, coord.Invalidate(context.Background(), ""), cache.ErrInvalidNamespace)
		require.ErrorIs(t, coord.Invalidate(context.Background(), "a:b"), cache.ErrInvalidNamespace)
	})

	t.Run("invalidate all clears both tiers", func(t *testing.T) {
		t.Parallel()

		coord, _, durable, _ := newTestCoordinator(t)

		ctx := context.Background()
		require.NoError(t, coord.Put(ctx, "prices", map[string]any{"sku": "A1"}, 1, time.Minute))
		require.NoError(t, coord.Put(ctx, "inventory", map[string]any{"sku": "A1"}, 2, time.Minute))

		require.NoError(t, coord.InvalidateAll(ctx))

		_, err := coord.Get(ctx, "prices", map[string]any{"sku": "A1"})
		require.ErrorIs(t, err, cache.ErrNotFound)
		require.Zero(t, durable.len())
	})
}

// --- Coordinator: Durable Fault Tolerance ---

func TestCoordinator_DurableFaults(t *testing.T) {
	t.Parallel()

	t.Run("put succeeds when the durable write fails", func(t *testing.T) {
		t.Parallel()

		coord, _, durable, _ := newTestCoordinator(t)
		durable.failPut = true

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, time.Minute))

		val, err := coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 42, val)
	})

	t.Run("get degrades to miss when the durable read fails", func(t *testing.T) {
		t.Parallel()

		coord, fast, durable, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, time.Minute))

		require.NoError(t, fast.Clear(ctx))
		durable.failGet = true

		_, err := coord.Get(ctx, "prices", shape)
		require.ErrorIs(t, err, cache.ErrNotFound, "backend failure must surface as a plain miss")
	})

	t.Run("fast hit is unaffected by a broken durable tier", func(t *testing.T) {
		t.Parallel()

		coord, _, durable, _ := newTestCoordinator(t)
		durable.failGet = true
		durable.failPut = true

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, time.Minute))

		val, err := coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 42, val)
		require.Zero(t, durable.getCalls.Load(), "fast hit must not touch the durable tier")
	})
}

// --- Coordinator: ReadThrough ---

func TestCoordinator_ReadThrough(t *testing.T) {
	t.Parallel()

	t.Run("returns cached value without computing", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		require.NoError(t, coord.Put(ctx, "prices", shape, 42, time.Minute))

		val, err := coord.ReadThrough(ctx, "prices", shape, time.Minute, func(context.Context) (int, error) {
			t.Fatal("compute should not run on a cache hit")
			return 0, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, val)
	})

	t.Run("computes and populates on miss", func(t *testing.T) {
		t.Parallel()

		coord, _, durable, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}

		val, err := coord.ReadThrough(ctx, "prices", shape, time.Minute, func(context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, val)

		// Populated both tiers.
		val, err = coord.Get(ctx, "prices", shape)
		require.NoError(t, err)
		require.Equal(t, 42, val)
		require.Equal(t, 1, durable.len())
	})

	t.Run("compute errors propagate and are not cached", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		computeErr := errors.New("query failed")

		_, err := coord.ReadThrough(ctx, "prices", shape, time.Minute, func(context.Context) (int, error) {
			return 0, computeErr
		})
		require.ErrorIs(t, err, computeErr)

		_, err = coord.Get(ctx, "prices", shape)
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		_, err := coord.ReadThrough(context.Background(), "prices", map[string]any{"sku": "A1"}, 0, func(context.Context) (int, error) {
			return 42, nil
		})
		require.ErrorIs(t, err, cache.ErrInvalidTTL)
	})

	t.Run("concurrent identical misses may each compute", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		var calls atomic.Int64
		var wg sync.WaitGroup

		for range 5 {
			wg.Go(func() {
				val, err := coord.ReadThrough(ctx, "prices", shape, time.Minute, func(context.Context) (int, error) {
					calls.Add(1)
					time.Sleep(5 * time.Millisecond)
					return 42, nil
				})
				require.NoError(t, err)
				require.Equal(t, 42, val)
			})
		}

		wg.Wait()

		// No duplicate suppression: every caller that missed computes.
		require.GreaterOrEqual(t, calls.Load(), int64(1))
	})
}

// --- Coordinator: ReadThroughShared ---

func TestCoordinator_ReadThroughShared(t *testing.T) {
	t.Parallel()

	t.Run("collapses concurrent identical misses", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		var calls atomic.Int64
		var wg sync.WaitGroup

		for range 10 {
			wg.Go(func() {
				val, err := coord.ReadThroughShared(ctx, "prices", shape, time.Minute, func(context.Context) (int, error) {
					calls.Add(1)
					time.Sleep(10 * time.Millisecond)
					return 42, nil
				})
				require.NoError(t, err)
				require.Equal(t, 42, val)
			})
		}

		wg.Wait()

		// Singleflight dedup: once for the initial miss, possibly once more
		// if the first flight finishes before a late caller joins it.
		require.LessOrEqual(t, calls.Load(), int64(2))
	})

	t.Run("compute errors propagate and are not cached", func(t *testing.T) {
		t.Parallel()

		coord, _, _, _ := newTestCoordinator(t)

		ctx := context.Background()
		shape := map[string]any{"sku": "A1"}
		computeErr := errors.New("query failed")

		_, err := coord.ReadThroughShared(ctx, "prices", shape, time.Minute, func(context.Context) (int, error) {
			return 0, computeErr
		})
		require.ErrorIs(t, err, computeErr)

		_, err = coord.Get(ctx, "prices", shape)
		require.ErrorIs(t, err, cache.ErrNotFound)
	})
}

// --- Coordinator: End-to-End Scenario ---

func TestCoordinator_Scenario(t *testing.T) {
	t.Parallel()

	t.Run("prices lifecycle", func(t *testing.T) {
		t.Parallel()

		coord, _, _, clock := newTestCoordinator(t)
		ctx := context.Background()

		// put("prices", {sku:A1}, 42, 5s) → immediate get returns 42.
		require.NoError(t, coord.Put(ctx, "prices", map[string]any{"sku": "A1"}, 42, 5*time.Second))

		val, err := coord.Get(ctx, "prices", map[string]any{"sku": "A1"})
		require.NoError(t, err)
		require.Equal(t, 42, val)

		// After 6s of elapsed time the entry is absent.
		clock.Advance(6 * time.Second)
		_, err = coord.Get(ctx, "prices", map[string]any{"sku": "A1"})
		require.ErrorIs(t, err, cache.ErrNotFound)

		// A long-lived entry disappears immediately on namespace invalidation.
		require.NoError(t, coord.Put(ctx, "prices", map[string]any{"sku": "B2"}, 7, time.Minute))
		require.NoError(t, coord.Invalidate(ctx, "prices"))

		_, err = coord.Get(ctx, "prices", map[string]any{"sku": "B2"})
		require.ErrorIs(t, err, cache.ErrNotFound)
	})
}
