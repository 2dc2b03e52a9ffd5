// Package ratelimit provides sliding-window request limiting keyed by an
// arbitrary identifier, usually the client IP.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store records request timestamps per key. Take must atomically check the
// window and, when under the limit, record the request.
type Store interface {
	// Take returns true and records the request when fewer than limit
	// requests were taken for key within the trailing window. A rejected
	// request is not recorded.
	Take(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Limiter applies per-identifier limits on top of a Store.
type Limiter struct {
	store  Store
	logger *zap.Logger
}

// NewLimiter creates a limiter. A nil logger falls back to zap.NewNop().
func NewLimiter(store Store, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{store: store, logger: logger}
}

// Allow reports whether a request from identifier is within limit requests
// per window. A non-positive limit disables the check. Store failures fail
// open with a logged warning: losing limiter state only weakens the limit,
// it never locks clients out.
func (l *Limiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	allowed, err := l.store.Take(ctx, identifier, limit, window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("identifier", identifier),
			zap.Error(err))
		return true, nil
	}

	return allowed, nil
}
