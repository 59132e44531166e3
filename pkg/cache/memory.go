package cache

import (
	"context"
	"sync"
	"time"
)

// memEntry holds a cached value with its absolute expiry.
type memEntry[V any] struct {
	expiresAt time.Time
	value     V
}

// Memory is the in-process fast tier: a mutex-guarded map with per-key TTL.
//
// Expiry is lazy on read (an entry past its expiry is reported absent even if
// physical cleanup has not run yet) with a background janitor as a
// memory-safety backstop. There is deliberately no size-bound eviction:
// entries leave only through TTL expiry or explicit invalidation.
type Memory[V any] struct {
	items  map[string]memEntry[V]
	opts   *memoryOptions
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewMemory creates a new in-process fast tier.
//
// Example:
//
//	fast := cache.NewMemory[[]Row](
//	    cache.WithCleanupInterval(30 * time.Second),
//	)
//	defer fast.Close()
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory[V]{
		items: make(map[string]memEntry[V]),
		opts:  o,
		done:  make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go m.janitor()
	}

	return m
}

// Get retrieves a value by key.
// Returns ErrNotFound if the key does not exist or has expired.
func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero V

	e, ok := m.items[key]
	if !ok {
		return zero, ErrNotFound
	}

	// Logical expiry precedes physical cleanup: leave removal to the janitor.
	if !e.expiresAt.After(m.opts.now()) {
		return zero, ErrNotFound
	}

	return e.value, nil
}

// Set stores a value with the given TTL. Setting an existing key is a full
// overwrite: value and TTL are both replaced.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.items[key] = memEntry[V]{
		value:     value,
		expiresAt: m.opts.now().Add(ttl),
	}

	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	delete(m.items, key)

	return nil
}

// DeleteFunc removes every entry whose key matches the predicate.
func (m *Memory[V]) DeleteFunc(_ context.Context, match func(key string) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for key := range m.items {
		if match(key) {
			delete(m.items, key)
		}
	}

	return nil
}

// Clear removes all entries.
func (m *Memory[V]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.items = make(map[string]memEntry[V])

	return nil
}

// Close stops the background janitor goroutine and marks the store as closed.
// Close is idempotent.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)

	return nil
}

// janitor periodically evicts expired entries so memory stays bounded
// independent of read traffic.
func (m *Memory[V]) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

func (m *Memory[V]) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.opts.now()
	for key, e := range m.items {
		if !e.expiresAt.After(now) {
			delete(m.items, key)
		}
	}
}

var _ FastStore[any] = (*Memory[any])(nil)
