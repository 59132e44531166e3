package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisEnvelope wraps a serialized value with the metadata the durable
// contract needs: the namespace tag and the authoritative expiry timestamp.
// The server-side TTL set alongside it is only a backstop; expiry decisions
// on read always use the envelope's own expires_at.
type redisEnvelope struct {
	Namespace string          `json:"namespace"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Redis is a durable tier backed by Redis. With RDB/AOF persistence enabled
// it survives process restarts of the application holding the fast tier.
//
// All keys live under a store-level prefix so several caches can share one
// Redis instance. Namespace deletion relies on the key convention
// "namespace:digest" and SCANs "{prefix}:{namespace}:*".
type Redis[V any] struct {
	client    redis.UniversalClient
	marshaler Marshaler[V]
	opts      *redisOptions
}

// NewRedis creates a Redis-backed durable tier. The client should be obtained
// from pkg/redis.Open or pkg/redis.MustOpen; its lifecycle belongs to the caller.
//
// An optional Marshaler can be provided to customize payload serialization.
// If nil, JSON is used.
//
// Example:
//
//	client := redis.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	durable := cache.NewRedis[[]Row](client, nil,
//	    cache.WithRedisPrefix("reports"),
//	)
func NewRedis[V any](client redis.UniversalClient, m Marshaler[V], opts ...RedisOption) *Redis[V] {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}

	if m == nil {
		m = jsonMarshaler[V]{}
	}

	return &Redis[V]{
		client:    client,
		marshaler: m,
		opts:      o,
	}
}

// Get retrieves a value and its absolute expiry by key. An envelope past its
// expiry is deleted and reported as ErrNotFound even if the server-side TTL
// has not fired yet.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, time.Time, error) {
	var zero V

	data, err := r.client.Get(ctx, r.prefixed(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, time.Time{}, ErrNotFound
		}
		return zero, time.Time{}, errors.Join(ErrPersistenceUnavailable, err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, time.Time{}, errors.Join(ErrUnmarshal, err)
	}

	if !env.ExpiresAt.After(r.opts.now()) {
		_ = r.Delete(ctx, key)
		return zero, time.Time{}, ErrNotFound
	}

	v, err := r.marshaler.Unmarshal(env.Payload)
	if err != nil {
		return zero, time.Time{}, err
	}

	return v, env.ExpiresAt, nil
}

// Put upserts an entry keyed by key. The envelope and the server-side TTL are
// written in a single SET, so re-writing replaces value, namespace, and
// expiry atomically.
func (r *Redis[V]) Put(ctx context.Context, key string, value V, namespace string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	payload, err := r.marshaler.Marshal(value)
	if err != nil {
		return err
	}

	now := r.opts.now()
	data, err := json.Marshal(redisEnvelope{
		Namespace: namespace,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Payload:   payload,
	})
	if err != nil {
		return errors.Join(ErrMarshal, err)
	}

	if err := r.client.Set(ctx, r.prefixed(key), data, ttl).Err(); err != nil {
		return errors.Join(ErrPersistenceUnavailable, err)
	}

	return nil
}

// Delete removes a single entry. Deleting a missing key is not an error.
func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefixed(key)).Err(); err != nil {
		return errors.Join(ErrPersistenceUnavailable, err)
	}
	return nil
}

// DeleteNamespace removes every entry whose key was derived under the namespace.
func (r *Redis[V]) DeleteNamespace(ctx context.Context, namespace string) error {
	return r.deleteByPattern(ctx, r.opts.prefix+keySeparator+namespace+keySeparator+"*")
}

// Clear removes all entries under the store prefix.
func (r *Redis[V]) Clear(ctx context.Context) error {
	return r.deleteByPattern(ctx, r.opts.prefix+keySeparator+"*")
}

// Close is a no-op; the Redis client lifecycle is managed by the caller.
func (r *Redis[V]) Close() error {
	return nil
}

func (r *Redis[V]) prefixed(key string) string {
	return r.opts.prefix + keySeparator + key
}

// deleteByPattern removes all keys matching the pattern using SCAN, which
// does not block the server.
func (r *Redis[V]) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, r.opts.scanCount).Result()
		if err != nil {
			return errors.Join(ErrPersistenceUnavailable, err)
		}

		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Join(ErrPersistenceUnavailable, err)
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

var _ DurableStore[any] = (*Redis[any])(nil)
