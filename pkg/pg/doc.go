// Package pg manages the PostgreSQL connection pool and schema migrations
// backing the durable cache tier.
//
// # Connecting
//
// [Connect] opens a pgx pool with retry and exponential backoff:
//
//	pool, err := pg.Connect(ctx, pg.DefaultConfig(os.Getenv("DATABASE_CONN_URL")))
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// [Config] carries env tags for parsing with caarlos0/env when configuration
// comes from the environment.
//
// # Migrations
//
// [Migrate] runs embedded goose migrations against the pool. Each package
// owning a schema passes its own filesystem and migrations table, so this
// package stays schema-agnostic.
//
// # Lifecycle
//
// [Healthcheck] and [Shutdown] adapt the pool to the closure-based hooks
// used by application runtimes.
package pg
