// Package auditlog appends usage and error facts to the audit tables.
// Writes are fire-and-forget: a failed insert is reported to the process
// logger and otherwise swallowed, so audit trouble never fails the
// request that produced the entry.
package auditlog

import (
	"context"

	"go.uber.org/zap"

	"github.com/swipeflow/swipeflow/internal/database"
)

// Store is the persistence surface the logger needs.
type Store interface {
	InsertUsageLog(ctx context.Context, entry database.UsageLog) error
	InsertErrorLog(ctx context.Context, entry database.ErrorLog) error
}

// UsageEntry is one accounted action.
type UsageEntry struct {
	UserID     string
	Username   string
	ActionType string
	SiteURL    string
	Details    string
	Count      int
	IPAddress  string
	UserAgent  string
}

// ErrorEntry is one error report from the extension.
type ErrorEntry struct {
	UserID           string
	Username         string
	Context          string
	ErrorMessage     string
	StackTrace       string
	ExtensionVersion string
	URL              string
	IPAddress        string
	UserAgent        string
}

// Logger writes audit entries.
type Logger struct {
	store Store
	log   *zap.Logger
}

// NewLogger creates an audit logger. A nil zap logger falls back to
// zap.NewNop().
func NewLogger(store Store, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{store: store, log: log}
}

// LogUsage records an accounted action. Insert failures are logged and
// swallowed.
func (l *Logger) LogUsage(ctx context.Context, entry UsageEntry) {
	if entry.Count <= 0 {
		entry.Count = 1
	}

	row := database.UsageLog{
		Username:   entry.Username,
		ActionType: entry.ActionType,
		Count:      entry.Count,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
	}
	row.UserID = optional(entry.UserID)
	row.SiteURL = optional(entry.SiteURL)
	row.Details = optional(entry.Details)

	if err := l.store.InsertUsageLog(ctx, row); err != nil {
		l.log.Warn("failed to write usage audit entry",
			zap.String("username", entry.Username),
			zap.String("action_type", entry.ActionType),
			zap.Error(err))
	}
}

// LogError records an error report. Insert failures are logged and
// swallowed; in particular they never feed back into LogError.
func (l *Logger) LogError(ctx context.Context, entry ErrorEntry) {
	row := database.ErrorLog{
		Username:         entry.Username,
		Context:          entry.Context,
		ErrorMessage:     entry.ErrorMessage,
		StackTrace:       entry.StackTrace,
		ExtensionVersion: entry.ExtensionVersion,
		URL:              entry.URL,
		IPAddress:        entry.IPAddress,
		UserAgent:        entry.UserAgent,
	}
	row.UserID = optional(entry.UserID)

	if err := l.store.InsertErrorLog(ctx, row); err != nil {
		l.log.Warn("failed to write error audit entry",
			zap.String("context", entry.Context),
			zap.Error(err))
	}
}

// optional maps an empty string to a NULL column.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
