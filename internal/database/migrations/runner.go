// Package migrations applies versioned schema migrations using goose.
package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
)

// Advisory lock identifier shared by all instances so that only one
// process migrates the schema at a time.
const lockID = 7245101880

// Runner manages schema migrations for PostgreSQL and MySQL.
// SQLite schemas are created directly on open and never pass through here.
type Runner struct {
	db             *sql.DB
	dialect        string
	migrationsPath string
}

// NewRunner creates a migration runner. dialect is a goose dialect name
// ("postgres" or "mysql"), migrationsPath the directory holding the SQL files.
func NewRunner(db *sql.DB, dialect, migrationsPath string) *Runner {
	return &Runner{
		db:             db,
		dialect:        dialect,
		migrationsPath: migrationsPath,
	}
}

// Up applies all pending migrations. Each migration runs in a transaction
// and is rolled back on failure. An advisory lock prevents concurrent
// migrations when several instances start at once.
func (r *Runner) Up() error {
	if err := r.validate(); err != nil {
		return err
	}

	release, err := r.acquireLock()
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer release()

	if err := goose.SetDialect(r.dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(r.db, r.migrationsPath); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Down rolls back the most recently applied migration.
func (r *Runner) Down() error {
	if err := r.validate(); err != nil {
		return err
	}

	release, err := r.acquireLock()
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer release()

	if err := goose.SetDialect(r.dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Down(r.db, r.migrationsPath); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	return nil
}

// Status returns the current migration version, 0 if none applied.
func (r *Runner) Status() (int64, error) {
	if err := r.validate(); err != nil {
		return 0, err
	}

	if err := goose.SetDialect(r.dialect); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}

	version, err := goose.GetDBVersion(r.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}

	return version, nil
}

func (r *Runner) validate() error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if r.migrationsPath == "" {
		return fmt.Errorf("migrations path is empty")
	}
	if r.dialect != "postgres" && r.dialect != "mysql" {
		return fmt.Errorf("unsupported migration dialect: %s", r.dialect)
	}
	return nil
}

// acquireLock takes a server-side advisory lock and returns a release
// function. PostgreSQL uses pg_try_advisory_lock, MySQL GET_LOCK.
func (r *Runner) acquireLock() (func(), error) {
	const maxRetries = 10
	const retryDelay = 100 * time.Millisecond

	switch r.dialect {
	case "postgres":
		for i := 0; i < maxRetries; i++ {
			var acquired bool
			if err := r.db.QueryRow("SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
				return nil, fmt.Errorf("failed to try advisory lock: %w", err)
			}
			if acquired {
				return func() {
					_, _ = r.db.Exec("SELECT pg_advisory_unlock($1)", lockID)
				}, nil
			}
			if i < maxRetries-1 {
				time.Sleep(retryDelay)
			}
		}
		return nil, fmt.Errorf("failed to acquire advisory lock after %d retries", maxRetries)

	case "mysql":
		lockName := fmt.Sprintf("swipeflow_migrations_%d", lockID)
		var acquired sql.NullInt64
		if err := r.db.QueryRow("SELECT GET_LOCK(?, ?)", lockName, 1+maxRetries/10).Scan(&acquired); err != nil {
			return nil, fmt.Errorf("failed to try named lock: %w", err)
		}
		if !acquired.Valid || acquired.Int64 != 1 {
			return nil, fmt.Errorf("named lock %s is held by another process", lockName)
		}
		return func() {
			_, _ = r.db.Exec("SELECT RELEASE_LOCK(?)", lockName)
		}, nil

	default:
		return nil, fmt.Errorf("unsupported migration dialect: %s", r.dialect)
	}
}
