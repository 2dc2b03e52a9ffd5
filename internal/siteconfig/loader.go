// Package siteconfig seeds the site_configurations table from a YAML file.
package siteconfig

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/swipeflow/swipeflow/internal/database"
)

// Store is the persistence surface the seeder needs.
type Store interface {
	UpsertSiteConfig(ctx context.Context, site database.SiteConfig) error
}

// seedFile is the YAML document layout.
type seedFile struct {
	Sites []seedSite `yaml:"sites"`
}

type seedSite struct {
	Name                   string `yaml:"name"`
	BaseURL                string `yaml:"base_url"`
	LogoURL                string `yaml:"logo_url"`
	Status                 string `yaml:"status"`
	ProfileSelector        string `yaml:"profile_selector"`
	PaginationSelector     string `yaml:"pagination_selector"`
	LikeEndpoint           string `yaml:"like_endpoint"`
	MessageEndpoint        string `yaml:"message_endpoint"`
	ProfileDetailsEndpoint string `yaml:"profile_details_endpoint"`
	MemberIDField          string `yaml:"member_id_field"`
	MessageField           string `yaml:"message_field"`
	AdditionalFields       string `yaml:"additional_fields"`
	SoundSuccessURL        string `yaml:"sound_success_url"`
	SoundDuplicateURL      string `yaml:"sound_duplicate_url"`
	SoundFailureURL        string `yaml:"sound_failure_url"`
}

// Load parses a YAML seed file into site configurations. Sites without a
// status default to active.
func Load(path string) ([]database.SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site config file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse site config file: %w", err)
	}

	sites := make([]database.SiteConfig, 0, len(file.Sites))
	for i, seed := range file.Sites {
		if seed.Name == "" || seed.BaseURL == "" {
			return nil, fmt.Errorf("site %d: name and base_url are required", i)
		}
		status := seed.Status
		if status == "" {
			status = database.SiteStatusActive
		}
		if status != database.SiteStatusActive && status != database.SiteStatusInactive {
			return nil, fmt.Errorf("site %q: unknown status %q", seed.Name, seed.Status)
		}

		sites = append(sites, database.SiteConfig{
			ID:                     uuid.New().String(),
			Name:                   seed.Name,
			BaseURL:                seed.BaseURL,
			LogoURL:                seed.LogoURL,
			Status:                 status,
			ProfileSelector:        seed.ProfileSelector,
			PaginationSelector:     seed.PaginationSelector,
			LikeEndpoint:           seed.LikeEndpoint,
			MessageEndpoint:        seed.MessageEndpoint,
			ProfileDetailsEndpoint: seed.ProfileDetailsEndpoint,
			MemberIDField:          seed.MemberIDField,
			MessageField:           seed.MessageField,
			AdditionalFields:       seed.AdditionalFields,
			SoundSuccessURL:        seed.SoundSuccessURL,
			SoundDuplicateURL:      seed.SoundDuplicateURL,
			SoundFailureURL:        seed.SoundFailureURL,
		})
	}

	return sites, nil
}

// Seed loads the YAML file at path and upserts every site. Upserts match
// on the site name, so re-running against the same file is idempotent.
func Seed(ctx context.Context, store Store, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	sites, err := Load(path)
	if err != nil {
		return err
	}

	for _, site := range sites {
		if err := store.UpsertSiteConfig(ctx, site); err != nil {
			return fmt.Errorf("failed to seed site %q: %w", site.Name, err)
		}
	}

	logger.Info("seeded site configurations",
		zap.String("path", path),
		zap.Int("sites", len(sites)))

	return nil
}
