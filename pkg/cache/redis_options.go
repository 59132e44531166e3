package cache

import "time"

// RedisOption configures the Redis durable tier.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix    string
	scanCount int64
	now       func() time.Time
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		prefix:    "tiercache",
		scanCount: 100,
		now:       time.Now,
	}
}

// WithRedisPrefix sets the store-level key prefix. Keys are stored as
// "{prefix}:{namespace}:{digest}". Useful when multiple caches share the
// same Redis instance.
// Default: "tiercache".
func WithRedisPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithRedisScanCount sets the COUNT hint for SCAN-based bulk deletions.
// Default: 100.
func WithRedisScanCount(n int64) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.scanCount = n
		}
	}
}

// WithRedisTimeSource overrides the wall clock used for expiry decisions.
// Intended for deterministic tests.
func WithRedisTimeSource(now func() time.Time) RedisOption {
	return func(o *redisOptions) {
		if now != nil {
			o.now = now
		}
	}
}
