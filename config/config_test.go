package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SETTINGS_PATH", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DISCORD_SCOPES", "")
	t.Setenv("SESSION_TTL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SettingsPath != "data/settings.json" {
		t.Errorf("SettingsPath = %q, want default", cfg.SettingsPath)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.DiscordScopes != "identify guilds" {
		t.Errorf("DiscordScopes = %q, want identify guilds", cfg.DiscordScopes)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
}

func TestLoadSessionTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "2h")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, want 2h", cfg.SessionTTL)
	}

	t.Setenv("SESSION_TTL", "nonsense")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for invalid SESSION_TTL")
	}
}

func TestValidateBotReady(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	cfg, _ := Load()
	if err := cfg.ValidateBotReady(); err != nil {
		t.Errorf("expected valid bot config, got %v", err)
	}
	t.Setenv("DISCORD_BOT_TOKEN", "")
	cfg, _ = Load()
	if err := cfg.ValidateBotReady(); err == nil {
		t.Errorf("expected error when missing DISCORD_BOT_TOKEN")
	}
}

func TestValidateOAuthReady(t *testing.T) {
	t.Setenv("DISCORD_CLIENT_ID", "id")
	t.Setenv("DISCORD_CLIENT_SECRET", "secret")
	t.Setenv("DISCORD_REDIRECT_URI", "http://localhost/callback")
	cfg, _ := Load()
	if err := cfg.ValidateOAuthReady(); err != nil {
		t.Errorf("expected valid oauth config, got %v", err)
	}
	t.Setenv("DISCORD_CLIENT_SECRET", "")
	cfg, _ = Load()
	if err := cfg.ValidateOAuthReady(); err == nil {
		t.Errorf("expected error when missing oauth envs")
	}
}
