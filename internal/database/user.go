package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when a user is not found or not active.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a username is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsageKind is returned for an unknown usage counter kind.
	ErrInvalidUsageKind = errors.New("invalid usage kind")
)

// UsageKind selects which lifetime counter an accounting update targets.
type UsageKind string

const (
	UsageKindLikes    UsageKind = "likes"
	UsageKindMessages UsageKind = "messages"
)

// Valid reports whether the kind is one of the known counters.
func (k UsageKind) Valid() bool {
	return k == UsageKindLikes || k == UsageKindMessages
}

// UsageCounters is the post-update snapshot returned by ApplyUsage.
type UsageCounters struct {
	TotalLikes    int `json:"total_likes"`
	TotalMessages int `json:"total_messages"`
	CreditsLeft   int `json:"credits_left"`
}

const userColumns = `id, username, email, password_hash, status, expires_at,
	total_likes, total_messages, credits_left, max_daily_likes, max_daily_messages, created_at`

// CreateUser creates a new user account.
func (d *DB) CreateUser(ctx context.Context, user User) error {
	return insertUser(ctx, d.db, user)
}

// CreateUserWithKey creates a user account bound to an access key. The
// capacity-guarded user-count increment and the insert commit together,
// so concurrent creates cannot push a key past max_users and a full key
// leaves no orphaned account behind.
func (d *DB) CreateUserWithKey(ctx context.Context, user User, keyID string) error {
	return d.Transaction(ctx, func(tx *sql.Tx) error {
		if err := claimKeyUser(ctx, tx, keyID); err != nil {
			return err
		}
		return insertUser(ctx, tx, user)
	})
}

func insertUser(ctx context.Context, ex executor, user User) error {
	query := `
	INSERT INTO users (id, username, email, password_hash, status, expires_at,
		total_likes, total_messages, credits_left, max_daily_likes, max_daily_messages, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := ex.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Status,
		user.ExpiresAt,
		user.TotalLikes,
		user.TotalMessages,
		user.CreditsLeft,
		user.MaxDailyLikes,
		user.MaxDailyMessages,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UserExists reports whether a username is taken by any account,
// regardless of status.
func (d *DB) UserExists(ctx context.Context, username string) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return count > 0, nil
}

// GetUserByUsername retrieves an active user by username.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ? AND status = 'active'`
	return d.scanUser(d.db.QueryRowContext(ctx, query, username))
}

// GetUserByID retrieves an active user by ID.
func (d *DB) GetUserByID(ctx context.Context, id string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND status = 'active'`
	return d.scanUser(d.db.QueryRowContext(ctx, query, id))
}

// ListUsers retrieves all users regardless of status, newest first.
func (d *DB) ListUsers(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var users []User
	for rows.Next() {
		var user User
		var email sql.NullString
		var expiresAt sql.NullTime

		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&email,
			&user.PasswordHash,
			&user.Status,
			&expiresAt,
			&user.TotalLikes,
			&user.TotalMessages,
			&user.CreditsLeft,
			&user.MaxDailyLikes,
			&user.MaxDailyMessages,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		if email.Valid {
			user.Email = email.String
		}
		if expiresAt.Valid {
			user.ExpiresAt = &expiresAt.Time
		}

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateUserStatus sets the lifecycle status of a user. Users are never
// hard-deleted, only deactivated.
func (d *DB) UpdateUserStatus(ctx context.Context, id, status string) error {
	result, err := d.db.ExecContext(ctx, `UPDATE users SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ApplyUsage atomically increments the counter selected by kind and
// decrements the credit balance (floored at zero) for a user, then reads
// back the updated counters within the same transaction. Either all
// mutations are applied or none.
func (d *DB) ApplyUsage(ctx context.Context, userID string, kind UsageKind, count int) (UsageCounters, error) {
	var update string
	switch kind {
	case UsageKindLikes:
		update = `
		UPDATE users
		SET total_likes = total_likes + ?,
			credits_left = CASE WHEN credits_left - ? > 0 THEN credits_left - ? ELSE 0 END
		WHERE id = ? AND status = 'active'
		`
	case UsageKindMessages:
		update = `
		UPDATE users
		SET total_messages = total_messages + ?,
			credits_left = CASE WHEN credits_left - ? > 0 THEN credits_left - ? ELSE 0 END
		WHERE id = ? AND status = 'active'
		`
	default:
		return UsageCounters{}, ErrInvalidUsageKind
	}

	var counters UsageCounters
	err := d.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, update, count, count, count, userID)
		if err != nil {
			return fmt.Errorf("failed to apply usage: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrUserNotFound
		}

		row := tx.QueryRowContext(ctx,
			`SELECT total_likes, total_messages, credits_left FROM users WHERE id = ?`, userID)
		if err := row.Scan(&counters.TotalLikes, &counters.TotalMessages, &counters.CreditsLeft); err != nil {
			return fmt.Errorf("failed to read updated counters: %w", err)
		}
		return nil
	})
	if err != nil {
		return UsageCounters{}, err
	}

	return counters, nil
}

// scanUser scans a single user row, mapping sql.ErrNoRows to ErrUserNotFound.
func (d *DB) scanUser(row *sql.Row) (User, error) {
	var user User
	var email sql.NullString
	var expiresAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Username,
		&email,
		&user.PasswordHash,
		&user.Status,
		&expiresAt,
		&user.TotalLikes,
		&user.TotalMessages,
		&user.CreditsLeft,
		&user.MaxDailyLikes,
		&user.MaxDailyMessages,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}

	if email.Valid {
		user.Email = email.String
	}
	if expiresAt.Valid {
		user.ExpiresAt = &expiresAt.Time
	}

	return user, nil
}
