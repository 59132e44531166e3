package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// Postgres is a durable tier backed by a PostgreSQL table. Entries carry an
// explicit expires_at column, so cached state survives process restarts and
// the remaining lifetime can be reconciled when an entry is promoted back
// into the fast tier.
//
// Expired rows are treated as absent and deleted on read; a cron-scheduled
// reaper purges them in bulk as a space backstop. The schema is owned by this
// package, see Migrate.
type Postgres[V any] struct {
	pool      *pgxpool.Pool
	marshaler Marshaler[V]
	opts      *postgresOptions
	reaper    *cron.Cron
}

// NewPostgres creates a Postgres-backed durable tier on an existing
// connection pool. The pool lifecycle belongs to the caller.
//
// An optional Marshaler can be provided to customize value serialization.
// If nil, JSON is used (the value column is JSONB).
//
// Example:
//
//	durable, err := cache.NewPostgres[[]Row](pool, nil,
//	    cache.WithReapSchedule("@every 5m"),
//	)
func NewPostgres[V any](pool *pgxpool.Pool, m Marshaler[V], opts ...PostgresOption) (*Postgres[V], error) {
	o := defaultPostgresOptions()
	for _, opt := range opts {
		opt(o)
	}

	if m == nil {
		m = jsonMarshaler[V]{}
	}

	p := &Postgres[V]{
		pool:      pool,
		marshaler: m,
		opts:      o,
	}

	if o.reapSchedule != "" {
		p.reaper = cron.New()
		if _, err := p.reaper.AddFunc(o.reapSchedule, p.reap); err != nil {
			return nil, errors.Join(ErrInvalidReapSchedule, err)
		}
		p.reaper.Start()
	}

	return p, nil
}

// Get retrieves a value and its absolute expiry by key. A row past its expiry
// is deleted and reported as ErrNotFound (read-time reaping).
func (p *Postgres[V]) Get(ctx context.Context, key string) (V, time.Time, error) {
	var zero V

	query := fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE cache_key = $1`, p.opts.table)

	var data []byte
	var expiresAt time.Time
	err := p.pool.QueryRow(ctx, query, key).Scan(&data, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zero, time.Time{}, ErrNotFound
		}
		return zero, time.Time{}, errors.Join(ErrPersistenceUnavailable, err)
	}

	if !expiresAt.After(p.opts.now()) {
		// Best effort: the scheduled reaper will catch it if this fails.
		_ = p.Delete(ctx, key)
		return zero, time.Time{}, ErrNotFound
	}

	v, err := p.marshaler.Unmarshal(data)
	if err != nil {
		return zero, time.Time{}, err
	}

	return v, expiresAt, nil
}

// Put upserts an entry keyed by key. Re-writing an existing key replaces
// value, namespace, and expiry in a single statement.
func (p *Postgres[V]) Put(ctx context.Context, key string, value V, namespace string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	data, err := p.marshaler.Marshal(value)
	if err != nil {
		return err
	}

	now := p.opts.now()
	query := fmt.Sprintf(`
		INSERT INTO %s (cache_key, namespace, value, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_key) DO UPDATE SET
			namespace = EXCLUDED.namespace,
			value = EXCLUDED.value,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`, p.opts.table)

	if _, err := p.pool.Exec(ctx, query, key, namespace, data, now, now.Add(ttl)); err != nil {
		return errors.Join(ErrPersistenceUnavailable, err)
	}

	return nil
}

// Delete removes a single entry. Deleting a missing key is not an error.
func (p *Postgres[V]) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, p.opts.table)
	if _, err := p.pool.Exec(ctx, query, key); err != nil {
		return errors.Join(ErrPersistenceUnavailable, err)
	}
	return nil
}

// DeleteNamespace removes every entry tagged with the namespace.
func (p *Postgres[V]) DeleteNamespace(ctx context.Context, namespace string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, p.opts.table)
	if _, err := p.pool.Exec(ctx, query, namespace); err != nil {
		return errors.Join(ErrPersistenceUnavailable, err)
	}
	return nil
}

// Clear removes all entries.
func (p *Postgres[V]) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, p.opts.table)
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return errors.Join(ErrPersistenceUnavailable, err)
	}
	return nil
}

// Close stops the scheduled reaper and waits for an in-flight sweep to
// finish. It does not close the connection pool.
func (p *Postgres[V]) Close() error {
	if p.reaper != nil {
		<-p.reaper.Stop().Done()
	}
	return nil
}

// reap purges expired rows in bulk. Read-time reaping is the correctness
// mechanism; this sweep only bounds table growth for keys nobody reads.
func (p *Postgres[V]) reap() {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.reapTimeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, p.opts.table)
	if _, err := p.pool.Exec(ctx, query, p.opts.now()); err != nil {
		p.opts.log.ErrorContext(ctx, "cache reaper sweep failed", "error", err)
	}
}

var _ DurableStore[any] = (*Postgres[any])(nil)
