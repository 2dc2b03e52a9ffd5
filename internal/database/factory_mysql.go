//go:build mysql

package database

import (
	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// newMySQLDB opens a MySQL-backed DB. Compiled in only under the 'mysql'
// build tag.
func newMySQLDB(config FullConfig) (*DB, error) {
	return openServerDB("mysql", DriverMySQL, config)
}
