// Package accesskey validates the distribution keys that gate API access.
package accesskey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swipeflow/swipeflow/internal/database"
)

var (
	// ErrKeyNotFound is returned when no active key matches the value.
	// Revoked keys are indistinguishable from unknown ones.
	ErrKeyNotFound = errors.New("access key not found")
	// ErrKeyExpired is returned when the key's expiry has passed.
	ErrKeyExpired = errors.New("access key expired")
	// ErrKeyCapacity is returned when the key has no user slots left.
	ErrKeyCapacity = errors.New("access key user limit reached")
)

// Inspection reasons reported to API clients.
const (
	ReasonNotFound = "not_found"
	ReasonExpired  = "expired"
	ReasonCapacity = "capacity"
)

// Store is the persistence surface the validator needs.
type Store interface {
	GetAccessKeyByValue(ctx context.Context, keyValue string) (database.AccessKey, error)
}

// Inspection is the detailed result of inspecting a key.
type Inspection struct {
	Valid     bool
	Reason    string
	KeyName   string
	ExpiresAt *time.Time
}

// Validator checks access keys against the store. It never mutates state;
// bound-user counts change only when an account is created against a key.
type Validator struct {
	store Store
}

// NewValidator creates an access key validator.
func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// Validate returns nil iff the key exists, is active, and is not expired.
// Capacity is not checked here; a full key still authorizes existing users.
func (v *Validator) Validate(ctx context.Context, keyValue string) error {
	_, err := v.lookup(ctx, keyValue)
	return err
}

// Inspect performs the Validate checks plus the capacity check used when a
// key is presented for account creation. The result always carries the
// rejection reason; the error mirrors it for callers that branch on errors.
func (v *Validator) Inspect(ctx context.Context, keyValue string) (Inspection, error) {
	key, err := v.lookup(ctx, keyValue)
	if err != nil {
		switch {
		case errors.Is(err, ErrKeyNotFound):
			return Inspection{Reason: ReasonNotFound}, err
		case errors.Is(err, ErrKeyExpired):
			return Inspection{Reason: ReasonExpired, KeyName: key.Name, ExpiresAt: key.ExpiresAt}, err
		default:
			return Inspection{}, err
		}
	}

	if !key.HasCapacity() {
		return Inspection{Reason: ReasonCapacity, KeyName: key.Name, ExpiresAt: key.ExpiresAt}, ErrKeyCapacity
	}

	return Inspection{Valid: true, KeyName: key.Name, ExpiresAt: key.ExpiresAt}, nil
}

// lookup fetches the key and applies the status and expiry checks shared by
// Validate and Inspect. The key is returned even on expiry so Inspect can
// report its name.
func (v *Validator) lookup(ctx context.Context, keyValue string) (database.AccessKey, error) {
	if keyValue == "" {
		return database.AccessKey{}, ErrKeyNotFound
	}

	key, err := v.store.GetAccessKeyByValue(ctx, keyValue)
	if err != nil {
		if errors.Is(err, database.ErrAccessKeyNotFound) {
			return database.AccessKey{}, ErrKeyNotFound
		}
		return database.AccessKey{}, fmt.Errorf("failed to look up access key: %w", err)
	}

	if key.Status != database.KeyStatusActive {
		return database.AccessKey{}, ErrKeyNotFound
	}

	if key.IsExpired() {
		return key, ErrKeyExpired
	}

	return key, nil
}
