package cache

import (
	"log/slog"
	"time"
)

// PostgresOption configures the Postgres durable tier.
type PostgresOption func(*postgresOptions)

type postgresOptions struct {
	table        string
	reapSchedule string
	reapTimeout  time.Duration
	log          *slog.Logger
	now          func() time.Time
}

func defaultPostgresOptions() *postgresOptions {
	return &postgresOptions{
		table:        "cache_entries",
		reapSchedule: "@every 1m",
		reapTimeout:  30 * time.Second,
		log:          slog.New(slog.DiscardHandler),
		now:          time.Now,
	}
}

// WithTable sets the table name. Default: cache_entries.
// Use together with a matching migration when multiple caches share a database.
func WithTable(name string) PostgresOption {
	return func(o *postgresOptions) {
		if name != "" {
			o.table = name
		}
	}
}

// WithReapSchedule sets the cron schedule for the bulk purge of expired rows.
// An empty schedule disables the reaper; read-time reaping still applies.
// Default: "@every 1m".
func WithReapSchedule(schedule string) PostgresOption {
	return func(o *postgresOptions) {
		o.reapSchedule = schedule
	}
}

// WithPostgresLogger sets the logger for reaper sweep failures.
// Default: discard.
func WithPostgresLogger(log *slog.Logger) PostgresOption {
	return func(o *postgresOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// WithPostgresTimeSource overrides the wall clock used for expiry decisions.
// Intended for deterministic tests.
func WithPostgresTimeSource(now func() time.Time) PostgresOption {
	return func(o *postgresOptions) {
		if now != nil {
			o.now = now
		}
	}
}
