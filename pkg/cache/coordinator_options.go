package cache

import (
	"log/slog"
	"time"
)

// CoordinatorOption configures the coordinator.
type CoordinatorOption func(*coordinatorOptions)

type coordinatorOptions struct {
	log *slog.Logger
	now func() time.Time
}

func defaultCoordinatorOptions() *coordinatorOptions {
	return &coordinatorOptions{
		log: slog.New(slog.DiscardHandler),
		now: time.Now,
	}
}

// WithLogger sets the logger used for swallowed durable-tier failures.
// Default: discard.
func WithLogger(log *slog.Logger) CoordinatorOption {
	return func(o *coordinatorOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithCoordinatorTimeSource overrides the wall clock used to compute the
// remaining TTL on tier promotion. Intended for deterministic tests.
func WithCoordinatorTimeSource(now func() time.Time) CoordinatorOption {
	return func(o *coordinatorOptions) {
		if now != nil {
			o.now = now
		}
	}
}
