package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// UsageLogFilters provides filtering options for usage log queries.
type UsageLogFilters struct {
	Username   string
	ActionType string
	StartTime  *string // RFC3339 format
	EndTime    *string // RFC3339 format
	Limit      int
	Offset     int
}

// InsertUsageLog appends a usage log entry. Entries are immutable after insert.
func (d *DB) InsertUsageLog(ctx context.Context, entry UsageLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
	INSERT INTO usage_logs (id, user_id, username, action_type, site_url, details, count, ip_address, user_agent)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.Username,
		entry.ActionType,
		entry.SiteURL,
		entry.Details,
		entry.Count,
		entry.IPAddress,
		entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}

	return nil
}

// InsertErrorLog appends an error log entry. Entries are immutable after insert.
func (d *DB) InsertErrorLog(ctx context.Context, entry ErrorLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
	INSERT INTO error_logs (id, user_id, username, context, error_message, stack_trace, extension_version, url, ip_address, user_agent)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.UserID,
		entry.Username,
		entry.Context,
		entry.ErrorMessage,
		entry.StackTrace,
		entry.ExtensionVersion,
		entry.URL,
		entry.IPAddress,
		entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert error log: %w", err)
	}

	return nil
}

// ListUsageLogs retrieves usage log entries with optional filtering,
// newest first.
func (d *DB) ListUsageLogs(ctx context.Context, filters UsageLogFilters) ([]UsageLog, error) {
	query := `
	SELECT id, user_id, username, action_type, site_url, details, count, ip_address, user_agent, created_at
	FROM usage_logs WHERE 1=1`
	args := []interface{}{}

	if filters.Username != "" {
		query += " AND username = ?"
		args = append(args, filters.Username)
	}
	if filters.ActionType != "" {
		query += " AND action_type = ?"
		args = append(args, filters.ActionType)
	}
	if filters.StartTime != nil {
		query += " AND created_at >= ?"
		args = append(args, *filters.StartTime)
	}
	if filters.EndTime != nil {
		query += " AND created_at <= ?"
		args = append(args, *filters.EndTime)
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filters.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []UsageLog
	for rows.Next() {
		var entry UsageLog
		var userID, siteURL, details, ipAddress, userAgent sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&userID,
			&entry.Username,
			&entry.ActionType,
			&siteURL,
			&details,
			&entry.Count,
			&ipAddress,
			&userAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}

		if userID.Valid {
			entry.UserID = &userID.String
		}
		if siteURL.Valid {
			entry.SiteURL = &siteURL.String
		}
		if details.Valid {
			entry.Details = &details.String
		}
		entry.IPAddress = ipAddress.String
		entry.UserAgent = userAgent.String

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage logs: %w", err)
	}

	return entries, nil
}

// CountUsageLogsByUser returns the total accounted count per action type
// for a username, used by the admin user listing.
func (d *DB) CountUsageLogsByUser(ctx context.Context, username string) (map[string]int, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT action_type, COALESCE(SUM(count), 0) FROM usage_logs WHERE username = ? GROUP BY action_type`,
		username)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	totals := make(map[string]int)
	for rows.Next() {
		var actionType string
		var total int
		if err := rows.Scan(&actionType, &total); err != nil {
			return nil, fmt.Errorf("failed to scan usage aggregate: %w", err)
		}
		totals[actionType] = total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage aggregates: %w", err)
	}

	return totals, nil
}
