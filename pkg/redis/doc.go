// Package redis manages the Redis client backing the durable cache tier.
//
// [Open] parses a redis:// or rediss:// URL and connects with retry and
// exponential backoff; [MustOpen] exits on failure for simple programs:
//
//	client := redis.MustOpen(ctx, os.Getenv("REDIS_URL"),
//	    redis.WithPoolSize(20),
//	)
//	defer client.Close()
//
// The returned client is a go-redis UniversalClient, passed directly to
// pkg/cache.NewRedis. [Healthcheck] and [Shutdown] adapt the client to
// closure-based runtime hooks.
package redis
