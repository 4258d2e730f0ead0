package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// GuildConfig describes the roles, channels and categories of the guild the
// bot serves.
type GuildConfig struct {
	AdminRoleIDs          []string            `yaml:"admin_role_ids" validate:"min=1,dive,required"`
	SupportRoleID         string              `yaml:"support_role_id" validate:"required"`
	PriceManagerRoleIDs   []string            `yaml:"price_manager_role_ids" validate:"omitempty,dive,required"`
	LogChannelID          string              `yaml:"log_channel_id" validate:"required"`
	NotificationChannelID string              `yaml:"notification_channel_id"`
	PanelChannelID        string              `yaml:"panel_channel_id"`
	CompletedCategoryID   string              `yaml:"completed_category_id"`
	VouchChannelID        string              `yaml:"vouch_channel_id"`
	VouchUserID           string              `yaml:"vouch_user_id"`
	Categories            map[string][]string `yaml:"categories" validate:"required"`
	Tiers                 []TierConfig        `yaml:"tiers" validate:"omitempty,dive"`
}

// TierConfig maps a lifetime-spend threshold to a role.
type TierConfig struct {
	Threshold string `yaml:"threshold" validate:"required,numeric"`
	RoleID    string `yaml:"role_id" validate:"required"`
}

// LoadGuild reads and validates the YAML guild layout at path.
func LoadGuild(path string) (*GuildConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guild config: %w", err)
	}
	return ParseGuild(raw)
}

// ParseGuild decodes and validates a YAML guild layout.
func ParseGuild(raw []byte) (*GuildConfig, error) {
	var cfg GuildConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse guild config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid guild config: %w", err)
	}
	for _, tier := range cfg.Tiers {
		if _, err := decimal.NewFromString(tier.Threshold); err != nil {
			return nil, fmt.Errorf("invalid tier threshold %q: %w", tier.Threshold, err)
		}
	}
	return &cfg, nil
}

// CategoryIDs returns the configured category channels for key, in
// preference order.
func (g *GuildConfig) CategoryIDs(key domain.CategoryKey) []string {
	return g.Categories[string(key)]
}

// CategoryID returns the first configured category channel for key.
func (g *GuildConfig) CategoryID(key domain.CategoryKey) (string, bool) {
	ids := g.CategoryIDs(key)
	if len(ids) == 0 || ids[0] == "" {
		return "", false
	}
	return ids[0], true
}

// SortedTiers returns the spend tiers ordered by threshold, highest first.
func (g *GuildConfig) SortedTiers() []domain.Tier {
	tiers := make([]domain.Tier, 0, len(g.Tiers))
	for _, t := range g.Tiers {
		tiers = append(tiers, domain.Tier{
			Threshold: decimal.RequireFromString(t.Threshold),
			RoleID:    t.RoleID,
		})
	}
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].Threshold.GreaterThan(tiers[j].Threshold)
	})
	return tiers
}
