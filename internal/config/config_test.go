package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const sampleGuild = `
admin_role_ids: ["111", "112"]
support_role_id: "222"
log_channel_id: "333"
notification_channel_id: "444"
completed_category_id: "555"
categories:
  robux_gamepass: ["601", "602"]
  needs_gamepass: ["701"]
  other: ["609"]
tiers:
  - threshold: "100"
    role_id: "r100"
  - threshold: "10000"
    role_id: "r10000"
  - threshold: "1000"
    role_id: "r1000"
`

func TestLoadGuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guild.yaml")
	if err := os.WriteFile(path, []byte(sampleGuild), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadGuild(path)
	if err != nil {
		t.Fatalf("LoadGuild: %v", err)
	}
	if got := cfg.CategoryIDs(domain.CategoryGamepass); len(got) != 2 || got[0] != "601" {
		t.Fatalf("unexpected gamepass categories %v", got)
	}
	if _, ok := cfg.CategoryID(domain.CategoryNeedsInGame); ok {
		t.Fatalf("unconfigured category resolved")
	}

	tiers := cfg.SortedTiers()
	if len(tiers) != 3 || tiers[0].RoleID != "r10000" || tiers[2].RoleID != "r100" {
		t.Fatalf("tiers not sorted descending: %+v", tiers)
	}
}

func TestParseGuildRejectsMissingSupportRole(t *testing.T) {
	raw := strings.Replace(sampleGuild, `support_role_id: "222"`, "", 1)
	if _, err := ParseGuild([]byte(raw)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseGuildRejectsBadThreshold(t *testing.T) {
	raw := strings.Replace(sampleGuild, `threshold: "100"`, `threshold: "lots"`, 1)
	if _, err := ParseGuild([]byte(raw)); err == nil {
		t.Fatalf("expected threshold error")
	}
}

func TestLoadAppliesPolicyDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_ID", "guild")
	t.Setenv("INACTIVITY_GRACE", "12h")
	t.Setenv("TICKET_QUOTA", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Policy.TicketQuota != 3 {
		t.Fatalf("expected default quota 3, got %d", cfg.Policy.TicketQuota)
	}
	if cfg.Policy.InactivityGrace != 12*time.Hour {
		t.Fatalf("expected 12h grace, got %v", cfg.Policy.InactivityGrace)
	}
	if cfg.Policy.InactivityWarnAfter != 72*time.Hour {
		t.Fatalf("expected 72h warn threshold, got %v", cfg.Policy.InactivityWarnAfter)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DISCORD_GUILD_ID", "guild")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing token error")
	}
}
