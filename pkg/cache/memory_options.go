package cache

import "time"

// MemoryOption configures the in-process fast tier.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	cleanupInterval time.Duration
	now             func() time.Time
}

func defaultMemoryOptions() *memoryOptions {
	return &memoryOptions{
		cleanupInterval: time.Minute,
		now:             time.Now,
	}
}

// WithCleanupInterval sets how often the background janitor evicts expired
// entries. Zero disables the janitor; expired entries are then only hidden
// by lazy expiry on read, never physically removed.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(o *memoryOptions) {
		o.cleanupInterval = d
	}
}

// WithTimeSource overrides the wall clock used for expiry decisions.
// Intended for deterministic TTL tests.
func WithTimeSource(now func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		if now != nil {
			o.now = now
		}
	}
}
