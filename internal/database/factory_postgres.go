//go:build postgres

package database

import (
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// newPostgresDB opens a PostgreSQL-backed DB via the pgx stdlib driver.
// Compiled in only under the 'postgres' build tag.
func newPostgresDB(config FullConfig) (*DB, error) {
	return openServerDB("pgx", DriverPostgres, config)
}
