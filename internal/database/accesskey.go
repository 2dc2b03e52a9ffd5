package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrAccessKeyNotFound is returned when an access key is not found.
	ErrAccessKeyNotFound = errors.New("access key not found")
	// ErrAccessKeyExists is returned when an access key value already exists.
	ErrAccessKeyExists = errors.New("access key already exists")
	// ErrAccessKeyCapacity is returned when a key's bound-user count has
	// reached max_users.
	ErrAccessKeyCapacity = errors.New("access key user limit reached")
)

// executor is the subset of *sql.DB and *sql.Tx the store helpers need.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// CreateAccessKey creates a new access key in the database.
func (d *DB) CreateAccessKey(ctx context.Context, key AccessKey) error {
	query := `
	INSERT INTO access_keys (id, name, key_value, status, expires_at, max_users, current_users, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(
		ctx,
		query,
		key.ID,
		key.Name,
		key.KeyValue,
		key.Status,
		key.ExpiresAt,
		key.MaxUsers,
		key.CurrentUsers,
		key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access key: %w", err)
	}

	return nil
}

// GetAccessKeyByValue retrieves an access key by its secret value.
func (d *DB) GetAccessKeyByValue(ctx context.Context, keyValue string) (AccessKey, error) {
	query := `
	SELECT id, name, key_value, status, expires_at, max_users, current_users, created_at
	FROM access_keys
	WHERE key_value = ?
	`

	var key AccessKey
	var expiresAt sql.NullTime

	err := d.db.QueryRowContext(ctx, query, keyValue).Scan(
		&key.ID,
		&key.Name,
		&key.KeyValue,
		&key.Status,
		&expiresAt,
		&key.MaxUsers,
		&key.CurrentUsers,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AccessKey{}, ErrAccessKeyNotFound
		}
		return AccessKey{}, fmt.Errorf("failed to get access key: %w", err)
	}

	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}

	return key, nil
}

// ListAccessKeys retrieves all access keys, newest first.
func (d *DB) ListAccessKeys(ctx context.Context) ([]AccessKey, error) {
	query := `
	SELECT id, name, key_value, status, expires_at, max_users, current_users, created_at
	FROM access_keys
	ORDER BY created_at DESC
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query access keys: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []AccessKey
	for rows.Next() {
		var key AccessKey
		var expiresAt sql.NullTime

		if err := rows.Scan(
			&key.ID,
			&key.Name,
			&key.KeyValue,
			&key.Status,
			&expiresAt,
			&key.MaxUsers,
			&key.CurrentUsers,
			&key.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan access key: %w", err)
		}

		if expiresAt.Valid {
			key.ExpiresAt = &expiresAt.Time
		}

		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access keys: %w", err)
	}

	return keys, nil
}

// UpdateAccessKeyStatus sets the status of an access key.
func (d *DB) UpdateAccessKeyStatus(ctx context.Context, id, status string) error {
	query := `
	UPDATE access_keys
	SET status = ?
	WHERE id = ?
	`

	result, err := d.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update access key status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAccessKeyNotFound
	}

	return nil
}

// IncrementKeyUsers increments the bound-user count for an access key,
// guarded against exceeding max_users. Called when a key is associated
// with a newly created account, never during validation.
func (d *DB) IncrementKeyUsers(ctx context.Context, id string) error {
	return claimKeyUser(ctx, d.db, id)
}

// claimKeyUser increments current_users only while capacity remains, so
// concurrent claims cannot push a key past max_users. A non-positive
// max_users means unlimited.
func claimKeyUser(ctx context.Context, ex executor, id string) error {
	query := `
	UPDATE access_keys
	SET current_users = current_users + 1
	WHERE id = ? AND (max_users <= 0 OR current_users < max_users)
	`

	result, err := ex.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment key users: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists int
		if err := ex.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM access_keys WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check access key: %w", err)
		}
		if exists == 0 {
			return ErrAccessKeyNotFound
		}
		return ErrAccessKeyCapacity
	}

	return nil
}
