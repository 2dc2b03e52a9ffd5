// Package usage maintains per-user lifetime action counters and the
// consumable credit balance.
package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/swipeflow/swipeflow/internal/database"
)

var (
	// ErrUserNotFound is returned when the username has no active account.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidKind is returned for an unknown action type.
	ErrInvalidKind = errors.New("invalid usage kind")
	// ErrInvalidCount is returned for a non-positive count.
	ErrInvalidCount = errors.New("count must be positive")
)

// Store is the persistence surface the accountant needs.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (database.User, error)
	ApplyUsage(ctx context.Context, userID string, kind database.UsageKind, count int) (database.UsageCounters, error)
}

// Receipt describes a recorded usage update: the account it was applied
// to and the post-update counters.
type Receipt struct {
	UserID   string
	Counters database.UsageCounters
}

// Accountant records usage against user accounts. Each Record call is a
// single transaction: the counter increment, the credit decrement, and the
// counter read-back all commit together or not at all.
type Accountant struct {
	store Store
}

// NewAccountant creates a usage accountant.
func NewAccountant(store Store) *Accountant {
	return &Accountant{store: store}
}

// Record increments the counter selected by kind by count and debits the
// same amount from the user's credit balance, floored at zero. The credit
// balance is advisory: an empty balance never blocks recording. Returns
// the resolved user ID and the post-update counters.
func (a *Accountant) Record(ctx context.Context, username string, kind database.UsageKind, count int) (Receipt, error) {
	if !kind.Valid() {
		return Receipt{}, ErrInvalidKind
	}
	if count <= 0 {
		return Receipt{}, ErrInvalidCount
	}

	user, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return Receipt{}, ErrUserNotFound
		}
		return Receipt{}, fmt.Errorf("failed to look up user: %w", err)
	}

	counters, err := a.store.ApplyUsage(ctx, user.ID, kind, count)
	if err != nil {
		// The account can disappear between the lookup and the update.
		if errors.Is(err, database.ErrUserNotFound) {
			return Receipt{}, ErrUserNotFound
		}
		return Receipt{}, fmt.Errorf("failed to record usage: %w", err)
	}

	return Receipt{UserID: user.ID, Counters: counters}, nil
}
