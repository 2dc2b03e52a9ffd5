package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/swipeflow/swipeflow/internal/database"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 86400 * time.Second

// sweepProbability is the chance a Validate or Create call also deletes
// expired rows. Cheap opportunistic cleanup instead of a background job.
const sweepProbability = 0.01

// ErrSessionInvalid is returned for every unusable token: malformed,
// unknown, expired, or belonging to a user who is no longer active.
// Callers cannot distinguish the cases.
var ErrSessionInvalid = errors.New("session invalid")

// Store is the persistence surface the manager needs.
type Store interface {
	CreateSession(ctx context.Context, session database.Session) error
	GetSessionUser(ctx context.Context, token string) (database.User, error)
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Meta carries request metadata recorded alongside a session.
type Meta struct {
	IPAddress string
	UserAgent string
}

// Manager issues and validates session tokens backed by a Store.
type Manager struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewManager creates a session manager. A non-positive ttl falls back to
// DefaultTTL; a nil logger falls back to zap.NewNop().
func NewManager(store Store, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, ttl: ttl, logger: logger}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create issues a new session token for a user. The token is only
// returned once the session row is persisted.
func (m *Manager) Create(ctx context.Context, userID string, meta Meta) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := database.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(m.ttl),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
	}

	if err := m.store.CreateSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	m.MaybeSweep(ctx)

	return token, nil
}

// Validate resolves a token to its user. The token must be well-formed,
// the session unexpired, and the user still active; any failure collapses
// to ErrSessionInvalid.
func (m *Manager) Validate(ctx context.Context, token string) (database.User, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return database.User{}, ErrSessionInvalid
	}

	user, err := m.store.GetSessionUser(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrSessionNotFound) {
			return database.User{}, ErrSessionInvalid
		}
		return database.User{}, fmt.Errorf("failed to look up session: %w", err)
	}

	m.MaybeSweep(ctx)

	return user, nil
}

// SweepExpired deletes all expired sessions and returns the number removed.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := m.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	if deleted > 0 {
		m.logger.Debug("swept expired sessions", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

// MaybeSweep runs SweepExpired with a small probability. Sweep failures
// are logged, never surfaced to the caller.
func (m *Manager) MaybeSweep(ctx context.Context) {
	if rand.Float64() >= sweepProbability {
		return
	}
	if _, err := m.SweepExpired(ctx); err != nil {
		m.logger.Warn("opportunistic session sweep failed", zap.Error(err))
	}
}
