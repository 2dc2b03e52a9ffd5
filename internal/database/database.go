// Package database provides SQL storage for the SwipeFlow backend.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DB represents the database connection.
type DB struct {
	db     *sql.DB
	driver Driver
}

// Config contains the SQLite database configuration.
type Config struct {
	// Path is the path to the SQLite database file.
	Path string
	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int
	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int
	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() Config {
	return Config{
		Path:            "data/swipeflow.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// New creates a new SQLite database connection.
func New(config Config) (*DB, error) {
	// Ensure database directory exists (skip for in-memory databases)
	if config.Path != ":memory:" {
		if err := ensureDirExists(filepath.Dir(config.Path)); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open connection
	db, err := sql.Open("sqlite3", config.Path+"?_journal=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	// Special case: in-memory SQLite databases are per-connection. Use a single connection
	// to ensure schema and data are visible across queries within the same *sql.DB handle.
	if config.Path == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	// Test the connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize database (create tables, indexes)
	if err := initDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &DB{db: db, driver: DriverSQLite}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		_ = d.db.Close()
	}
	return nil
}

// ensureDirExists creates the directory if it doesn't exist.
func ensureDirExists(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0755)
	} else if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path %s exists and is not a directory", dir)
	}
	return nil
}

// initDatabase initializes the database with the necessary schema.
func initDatabase(db *sql.DB) error {
	_, err := db.Exec(`
	-- Access keys gating API usage, provisioned per customer batch
	CREATE TABLE IF NOT EXISTS access_keys (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		key_value TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'revoked')),
		expires_at DATETIME,
		max_users INTEGER NOT NULL DEFAULT -1,
		current_users INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_access_keys_status ON access_keys(status);

	-- End-user accounts with lifetime counters and a consumable credit balance
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT,
		password_hash TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive', 'suspended')),
		expires_at DATETIME,
		total_likes INTEGER NOT NULL DEFAULT 0,
		total_messages INTEGER NOT NULL DEFAULT 0,
		credits_left INTEGER NOT NULL DEFAULT 0,
		max_daily_likes INTEGER NOT NULL DEFAULT 100,
		max_daily_messages INTEGER NOT NULL DEFAULT 50,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);

	-- Bearer session tokens issued on login
	CREATE TABLE IF NOT EXISTS user_sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_user_sessions_user_id ON user_sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_user_sessions_expires_at ON user_sessions(expires_at);

	-- Append-only usage facts
	CREATE TABLE IF NOT EXISTS usage_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		username TEXT NOT NULL,
		action_type TEXT NOT NULL,
		site_url TEXT,
		details TEXT,
		count INTEGER NOT NULL DEFAULT 1,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_usage_logs_user_id ON usage_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_usage_logs_action_type ON usage_logs(action_type);
	CREATE INDEX IF NOT EXISTS idx_usage_logs_created_at ON usage_logs(created_at);

	-- Append-only error reports from the extension
	CREATE TABLE IF NOT EXISTS error_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		username TEXT,
		context TEXT NOT NULL,
		error_message TEXT NOT NULL,
		stack_trace TEXT,
		extension_version TEXT,
		url TEXT,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_error_logs_created_at ON error_logs(created_at);

	-- Per-site scraping/automation configuration served to the extension
	CREATE TABLE IF NOT EXISTS site_configurations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		base_url TEXT NOT NULL,
		logo_url TEXT,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
		profile_selector TEXT,
		pagination_selector TEXT,
		like_endpoint TEXT,
		message_endpoint TEXT,
		profile_details_endpoint TEXT,
		member_id_field TEXT,
		message_field TEXT,
		additional_fields TEXT,
		sound_success_url TEXT,
		sound_duplicate_url TEXT,
		sound_failure_url TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_site_configurations_status ON site_configurations(status);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// DBInitForTests is a helper to ensure schema exists in tests. No-op if db is nil.
func DBInitForTests(d *DB) error {
	if d == nil || d.db == nil {
		return nil
	}
	return initDatabase(d.db)
}

// Transaction executes the given function within a transaction.
func (d *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("database is nil")
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// If the function panics, rollback the transaction
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // Re-throw the panic after rolling back
		}
	}()

	// Execute the function
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	// Commit the transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DB returns the underlying sql.DB instance.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Driver returns the database driver in use.
func (d *DB) Driver() Driver {
	return d.driver
}
