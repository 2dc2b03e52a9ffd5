package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/swipeflow/swipeflow/internal/database/migrations"
)

// Driver identifies the database backend in use.
type Driver string

const (
	// DriverSQLite is the default embedded backend.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is the PostgreSQL backend.
	DriverPostgres Driver = "postgres"
	// DriverMySQL is the MySQL backend.
	DriverMySQL Driver = "mysql"
)

// FullConfig contains the complete database configuration for all drivers.
type FullConfig struct {
	// Driver specifies which database driver to use (sqlite, postgres, mysql).
	Driver Driver
	// Path is the path to the SQLite database file.
	Path string
	// DatabaseURL is the PostgreSQL or MySQL connection string.
	DatabaseURL string
	// Connection pool settings, used by all drivers.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultFullConfig returns a default database configuration.
func DefaultFullConfig() FullConfig {
	base := DefaultConfig()
	return FullConfig{
		Driver:          DriverSQLite,
		Path:            base.Path,
		DatabaseURL:     "",
		MaxOpenConns:    base.MaxOpenConns,
		MaxIdleConns:    base.MaxIdleConns,
		ConnMaxLifetime: base.ConnMaxLifetime,
	}
}

// ConfigFromEnv creates a FullConfig from environment variables.
// Invalid configuration values are logged as warnings and defaults are used.
func ConfigFromEnv() FullConfig {
	config := DefaultFullConfig()

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		driverType := Driver(strings.ToLower(driver))
		if driverType != DriverSQLite && driverType != DriverPostgres && driverType != DriverMySQL {
			log.Printf("Warning: unsupported DB_DRIVER '%s', defaulting to sqlite", driver)
		} else {
			config.Driver = driverType
		}
	}

	if path := os.Getenv("DATABASE_PATH"); path != "" {
		config.Path = path
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.DatabaseURL = url
	}

	if poolSize := os.Getenv("DATABASE_POOL_SIZE"); poolSize != "" {
		if size, err := parsePositiveInt(poolSize); err == nil {
			config.MaxOpenConns = size
		} else {
			log.Printf("Warning: invalid DATABASE_POOL_SIZE '%s': %v, using default %d", poolSize, err, config.MaxOpenConns)
		}
	}

	if idleConns := os.Getenv("DATABASE_MAX_IDLE_CONNS"); idleConns != "" {
		if size, err := parsePositiveInt(idleConns); err == nil {
			config.MaxIdleConns = size
		} else {
			log.Printf("Warning: invalid DATABASE_MAX_IDLE_CONNS '%s': %v, using default %d", idleConns, err, config.MaxIdleConns)
		}
	}

	if lifetime := os.Getenv("DATABASE_CONN_MAX_LIFETIME"); lifetime != "" {
		if duration, err := time.ParseDuration(lifetime); err == nil {
			config.ConnMaxLifetime = duration
		} else {
			log.Printf("Warning: invalid DATABASE_CONN_MAX_LIFETIME '%s': %v, using default %v", lifetime, err, config.ConnMaxLifetime)
		}
	}

	return config
}

// parsePositiveInt parses a string as a positive integer.
func parsePositiveInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	if err != nil || i <= 0 {
		return 0, fmt.Errorf("invalid positive integer: %s", s)
	}
	return i, nil
}

// NewFromConfig creates a new database connection based on the configuration.
func NewFromConfig(config FullConfig) (*DB, error) {
	switch config.Driver {
	case DriverSQLite:
		return New(Config{
			Path:            config.Path,
			MaxOpenConns:    config.MaxOpenConns,
			MaxIdleConns:    config.MaxIdleConns,
			ConnMaxLifetime: config.ConnMaxLifetime,
		})
	case DriverPostgres:
		return newPostgresDB(config)
	case DriverMySQL:
		return newMySQLDB(config)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
}

// openServerDB opens a connection to a server-based engine (postgres or
// mysql), applies pool settings, verifies connectivity and runs pending
// migrations. The driver registration comes from the build-tagged files.
func openServerDB(sqlDriverName string, driver Driver, config FullConfig) (*DB, error) {
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the %s driver", driver)
	}

	db, err := sql.Open(sqlDriverName, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	if err := runMigrationsForDriver(db, string(driver)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run %s migrations: %w", driver, err)
	}

	return &DB{db: db, driver: driver}, nil
}

// runMigrationsForDriver applies pending migrations for PostgreSQL or MySQL.
// SQLite does not use migrations; its schema is created directly on open.
func runMigrationsForDriver(db *sql.DB, dialect string) error {
	if dialect == "sqlite3" || dialect == "sqlite" {
		return fmt.Errorf("SQLite does not use migrations; schema is initialized on open")
	}

	migrationsPath, err := getMigrationsPathForDialect(dialect)
	if err != nil {
		return fmt.Errorf("failed to get migrations path: %w", err)
	}

	runner := migrations.NewRunner(db, dialect, migrationsPath)
	if err := runner.Up(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// getMigrationsPathForDialect returns the path to migrations for the specified dialect.
func getMigrationsPathForDialect(dialect string) (string, error) {
	if dialect == "sqlite3" || dialect == "sqlite" {
		return "", fmt.Errorf("SQLite does not use migrations; schema is initialized on open")
	}

	// Common base paths to try
	basePaths := []string{
		"internal/database/migrations",
	}

	// Add path relative to this source file (for tests)
	_, filename, _, ok := runtime.Caller(0)
	if ok {
		sourceDir := filepath.Dir(filename)
		basePaths = append(basePaths, filepath.Join(sourceDir, "migrations"))
	}

	// Add paths relative to executable
	execPath, err := os.Executable()
	if err == nil {
		execDir := filepath.Dir(execPath)
		basePaths = append(basePaths, filepath.Join(execDir, "internal/database/migrations"))
		basePaths = append(basePaths, filepath.Join(filepath.Dir(execDir), "internal/database/migrations"))
	}

	for _, basePath := range basePaths {
		dialectPath := filepath.Join(basePath, "sql", dialect)
		if _, err := os.Stat(dialectPath); err == nil {
			return dialectPath, nil
		}
	}

	return "", fmt.Errorf("migrations directory not found for dialect: %s", dialect)
}

// MigrationsPathForDriver returns the migrations directory for the given driver.
// Only PostgreSQL and MySQL use migrations.
func MigrationsPathForDriver(driver Driver) (string, error) {
	switch driver {
	case DriverSQLite:
		return "", fmt.Errorf("SQLite does not use migrations; schema is initialized on open")
	case DriverPostgres:
		return getMigrationsPathForDialect("postgres")
	case DriverMySQL:
		return getMigrationsPathForDialect("mysql")
	default:
		return getMigrationsPathForDialect(string(driver))
	}
}
