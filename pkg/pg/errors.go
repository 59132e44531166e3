package pg

import "errors"

var (
	ErrFailedToParseConfig = errors.New("pg: failed to parse connection configuration")
	ErrConnectionFailed    = errors.New("pg: failed to establish connection")
	ErrHealthcheckFailed   = errors.New("pg: healthcheck failed")
	ErrSetDialect          = errors.New("pg migrator: failed to set dialect")
	ErrApplyMigrations     = errors.New("pg migrator: failed to apply migrations")
)
