package database

import (
	"time"
)

// Access key and user status values stored in the database.
const (
	KeyStatusActive  = "active"
	KeyStatusRevoked = "revoked"

	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"

	SiteStatusActive   = "active"
	SiteStatusInactive = "inactive"
)

// AccessKey represents a shared access key gating API usage.
type AccessKey struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	KeyValue     string     `json:"-"` // Sensitive data, not included in JSON
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxUsers     int        `json:"max_users"` // -1 or 0 means unlimited
	CurrentUsers int        `json:"current_users"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsExpired returns true if the key has an expiry in the past.
func (k *AccessKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// HasCapacity returns true if the key can still be bound to new users.
func (k *AccessKey) HasCapacity() bool {
	if k.MaxUsers <= 0 {
		return true
	}
	return k.CurrentUsers < k.MaxUsers
}

// IsUsable returns true if the key is active and not expired.
func (k *AccessKey) IsUsable() bool {
	return k.Status == KeyStatusActive && !k.IsExpired()
}

// User represents an end-user account.
type User struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email,omitempty"`
	PasswordHash     string     `json:"-"` // Sensitive data, not included in JSON
	Status           string     `json:"status"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	TotalLikes       int        `json:"total_likes"`
	TotalMessages    int        `json:"total_messages"`
	CreditsLeft      int        `json:"credits_left"`
	MaxDailyLikes    int        `json:"max_daily_likes"`
	MaxDailyMessages int        `json:"max_daily_messages"`
	CreatedAt        time.Time  `json:"created_at"`
}

// IsExpired returns true if the account has an expiry in the past.
func (u *User) IsExpired() bool {
	if u.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*u.ExpiresAt)
}

// Session represents a bearer session issued on login.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired returns true if the session expiry is in the past.
func (s *Session) IsExpired() bool {
	return !time.Now().Before(s.ExpiresAt)
}

// UsageLog is an append-only record of an accounted action.
type UsageLog struct {
	ID         string    `json:"id"`
	UserID     *string   `json:"user_id,omitempty"`
	Username   string    `json:"username"`
	ActionType string    `json:"action_type"`
	SiteURL    *string   `json:"site_url,omitempty"`
	Details    *string   `json:"details,omitempty"` // JSON blob
	Count      int       `json:"count"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ErrorLog is an append-only error report from the extension.
type ErrorLog struct {
	ID               string    `json:"id"`
	UserID           *string   `json:"user_id,omitempty"`
	Username         string    `json:"username,omitempty"`
	Context          string    `json:"context"`
	ErrorMessage     string    `json:"error_message"`
	StackTrace       string    `json:"stack_trace,omitempty"`
	ExtensionVersion string    `json:"extension_version,omitempty"`
	URL              string    `json:"url,omitempty"`
	IPAddress        string    `json:"ip_address,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// SiteConfig holds the per-site automation configuration served to the extension.
type SiteConfig struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	BaseURL                string    `json:"base_url"`
	LogoURL                string    `json:"logo_url,omitempty"`
	Status                 string    `json:"status"`
	ProfileSelector        string    `json:"profile_selector,omitempty"`
	PaginationSelector     string    `json:"pagination_selector,omitempty"`
	LikeEndpoint           string    `json:"like_endpoint,omitempty"`
	MessageEndpoint        string    `json:"message_endpoint,omitempty"`
	ProfileDetailsEndpoint string    `json:"profile_details_endpoint,omitempty"`
	MemberIDField          string    `json:"member_id_field,omitempty"`
	MessageField           string    `json:"message_field,omitempty"`
	AdditionalFields       string    `json:"additional_fields,omitempty"` // JSON blob
	SoundSuccessURL        string    `json:"sound_success_url,omitempty"`
	SoundDuplicateURL      string    `json:"sound_duplicate_url,omitempty"`
	SoundFailureURL        string    `json:"sound_failure_url,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}
