// Package logger provides slog factories for the cache library and its hosts.
//
// [New] returns a JSON stdout logger; [NewNope] a discarding one for tests
// and unconfigured components. [NewWithSentry] fans records out to stdout and
// Sentry, degrading gracefully to stdout when no DSN is configured:
//
//	log := logger.NewWithSentry(logger.SentryConfig{
//	    DSN: os.Getenv("SENTRY_DSN"),
//	}).With("app", "pricing")
//
// The cache coordinator takes any *slog.Logger via cache.WithLogger, so
// swallowed durable-tier failures surface in whatever sink the host uses.
package logger
