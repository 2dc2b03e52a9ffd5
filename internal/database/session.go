package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSessionNotFound is returned when no usable session matches a token.
	ErrSessionNotFound = errors.New("session not found")
)

// CreateSession persists a new session row.
func (d *DB) CreateSession(ctx context.Context, session Session) error {
	query := `
	INSERT INTO user_sessions (token, user_id, expires_at, ip_address, user_agent, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(
		ctx,
		query,
		session.Token,
		session.UserID,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSessionUser resolves a session token to its user. The session must not
// be expired and the joined user must still be active; any other state maps
// to ErrSessionNotFound. Deactivating a user does not cascade-delete their
// sessions, so the join condition is the enforcement point.
func (d *DB) GetSessionUser(ctx context.Context, token string) (User, error) {
	query := `
	SELECT u.id, u.username, u.email, u.password_hash, u.status, u.expires_at,
		u.total_likes, u.total_messages, u.credits_left, u.max_daily_likes, u.max_daily_messages, u.created_at
	FROM user_sessions s
	JOIN users u ON s.user_id = u.id
	WHERE s.token = ? AND s.expires_at > ? AND u.status = 'active'
	`

	user, err := d.scanUser(d.db.QueryRowContext(ctx, query, token, time.Now()))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrSessionNotFound
		}
		return User{}, err
	}

	return user, nil
}

// GetSession retrieves a raw session row by token, expired or not.
func (d *DB) GetSession(ctx context.Context, token string) (Session, error) {
	query := `
	SELECT token, user_id, expires_at, ip_address, user_agent, created_at
	FROM user_sessions
	WHERE token = ?
	`

	var session Session
	var ipAddress, userAgent sql.NullString

	err := d.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.ExpiresAt,
		&ipAddress,
		&userAgent,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	if ipAddress.Valid {
		session.IPAddress = ipAddress.String
	}
	if userAgent.Valid {
		session.UserAgent = userAgent.String
	}

	return session, nil
}

// DeleteExpiredSessions removes all sessions whose expiry has passed and
// returns the number deleted.
func (d *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// CountSessionsByUser returns the number of stored sessions for a user.
func (d *DB) CountSessionsByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_sessions WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
