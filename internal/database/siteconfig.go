package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrSiteNotFound is returned when no active site matches a host.
	ErrSiteNotFound = errors.New("site configuration not found")
)

const siteColumns = `id, name, base_url, logo_url, status, profile_selector, pagination_selector,
	like_endpoint, message_endpoint, profile_details_endpoint, member_id_field, message_field,
	additional_fields, sound_success_url, sound_duplicate_url, sound_failure_url, created_at, updated_at`

// UpsertSiteConfig inserts a site configuration or updates the existing row
// with the same name.
func (d *DB) UpsertSiteConfig(ctx context.Context, site SiteConfig) error {
	query := `
	INSERT INTO site_configurations (id, name, base_url, logo_url, status, profile_selector, pagination_selector,
		like_endpoint, message_endpoint, profile_details_endpoint, member_id_field, message_field,
		additional_fields, sound_success_url, sound_duplicate_url, sound_failure_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		base_url = excluded.base_url,
		logo_url = excluded.logo_url,
		status = excluded.status,
		profile_selector = excluded.profile_selector,
		pagination_selector = excluded.pagination_selector,
		like_endpoint = excluded.like_endpoint,
		message_endpoint = excluded.message_endpoint,
		profile_details_endpoint = excluded.profile_details_endpoint,
		member_id_field = excluded.member_id_field,
		message_field = excluded.message_field,
		additional_fields = excluded.additional_fields,
		sound_success_url = excluded.sound_success_url,
		sound_duplicate_url = excluded.sound_duplicate_url,
		sound_failure_url = excluded.sound_failure_url,
		updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now

	_, err := d.db.ExecContext(
		ctx,
		query,
		site.ID,
		site.Name,
		site.BaseURL,
		site.LogoURL,
		site.Status,
		site.ProfileSelector,
		site.PaginationSelector,
		site.LikeEndpoint,
		site.MessageEndpoint,
		site.ProfileDetailsEndpoint,
		site.MemberIDField,
		site.MessageField,
		site.AdditionalFields,
		site.SoundSuccessURL,
		site.SoundDuplicateURL,
		site.SoundFailureURL,
		site.CreatedAt,
		site.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert site configuration: %w", err)
	}

	return nil
}

// ListActiveSites retrieves all active site configurations ordered by name.
func (d *DB) ListActiveSites(ctx context.Context) ([]SiteConfig, error) {
	query := `SELECT ` + siteColumns + ` FROM site_configurations WHERE status = 'active' ORDER BY name`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query site configurations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sites []SiteConfig
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating site configurations: %w", err)
	}

	return sites, nil
}

// GetSiteConfigForURL finds the active site configuration whose base URL host
// matches the host of activeURL. When several match (e.g. a site and one of
// its subdomain deployments), the longest base host wins.
func (d *DB) GetSiteConfigForURL(ctx context.Context, activeURL string) (SiteConfig, error) {
	parsed, err := url.Parse(activeURL)
	if err != nil || parsed.Host == "" {
		return SiteConfig{}, ErrSiteNotFound
	}
	host := strings.ToLower(parsed.Hostname())

	sites, err := d.ListActiveSites(ctx)
	if err != nil {
		return SiteConfig{}, err
	}

	var best SiteConfig
	bestLen := -1
	for _, site := range sites {
		baseURL, err := url.Parse(site.BaseURL)
		if err != nil || baseURL.Host == "" {
			continue
		}
		baseHost := strings.ToLower(baseURL.Hostname())
		if hostMatches(host, baseHost) && len(baseHost) > bestLen {
			best = site
			bestLen = len(baseHost)
		}
	}

	if bestLen < 0 {
		return SiteConfig{}, ErrSiteNotFound
	}

	return best, nil
}

// hostMatches reports whether host equals baseHost or is a subdomain of it.
func hostMatches(host, baseHost string) bool {
	if host == baseHost {
		return true
	}
	return strings.HasSuffix(host, "."+baseHost)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSite(row rowScanner) (SiteConfig, error) {
	var site SiteConfig
	var logoURL, profileSelector, paginationSelector sql.NullString
	var likeEndpoint, messageEndpoint, profileDetailsEndpoint sql.NullString
	var memberIDField, messageField, additionalFields sql.NullString
	var soundSuccess, soundDuplicate, soundFailure sql.NullString

	err := row.Scan(
		&site.ID,
		&site.Name,
		&site.BaseURL,
		&logoURL,
		&site.Status,
		&profileSelector,
		&paginationSelector,
		&likeEndpoint,
		&messageEndpoint,
		&profileDetailsEndpoint,
		&memberIDField,
		&messageField,
		&additionalFields,
		&soundSuccess,
		&soundDuplicate,
		&soundFailure,
		&site.CreatedAt,
		&site.UpdatedAt,
	)
	if err != nil {
		return SiteConfig{}, fmt.Errorf("failed to scan site configuration: %w", err)
	}

	site.LogoURL = logoURL.String
	site.ProfileSelector = profileSelector.String
	site.PaginationSelector = paginationSelector.String
	site.LikeEndpoint = likeEndpoint.String
	site.MessageEndpoint = messageEndpoint.String
	site.ProfileDetailsEndpoint = profileDetailsEndpoint.String
	site.MemberIDField = memberIDField.String
	site.MessageField = messageField.String
	site.AdditionalFields = additionalFields.String
	site.SoundSuccessURL = soundSuccess.String
	site.SoundDuplicateURL = soundDuplicate.String
	site.SoundFailureURL = soundFailure.String

	return site, nil
}
