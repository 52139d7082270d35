// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For the bot credentials, use ValidateBotReady; the dashboard OAuth flow checks its own fields.
package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	// Discord bot
	DiscordBotToken string

	// Discord OAuth (dashboard login)
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string
	DiscordScopes       string

	// Settings persistence
	SettingsPath string

	// HTTP
	HTTPAddr string

	// Dashboard static files
	StaticDir string

	// Session lifetime for dashboard logins
	SessionTTL time.Duration
}

// Load reads environment variables and applies defaults. It doesn't fail if the bot token is
// missing; use ValidateBotReady() when you require the gateway connection. Missing OAuth
// variables disable the dashboard login (the API then rejects authenticated routes).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.DiscordClientID = os.Getenv("DISCORD_CLIENT_ID")
	cfg.DiscordClientSecret = os.Getenv("DISCORD_CLIENT_SECRET")
	cfg.DiscordRedirectURI = os.Getenv("DISCORD_REDIRECT_URI")
	cfg.DiscordScopes = os.Getenv("DISCORD_SCOPES")
	if cfg.DiscordScopes == "" {
		// identify for the session principal, guilds for the guild picker
		cfg.DiscordScopes = "identify guilds"
	}

	cfg.SettingsPath = os.Getenv("SETTINGS_PATH")
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "data/settings.json"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.StaticDir = os.Getenv("STATIC_DIR")
	if cfg.StaticDir == "" {
		cfg.StaticDir = "web"
	}

	cfg.SessionTTL = 24 * time.Hour
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL (duration): %w", err)
		}
		cfg.SessionTTL = d
	}

	return cfg, nil
}

// ValidateBotReady checks required fields for the gateway connection.
func (c *Config) ValidateBotReady() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("missing discord env: require DISCORD_BOT_TOKEN")
	}
	return nil
}

// ValidateOAuthReady checks required fields for the dashboard login flow.
func (c *Config) ValidateOAuthReady() error {
	if c.DiscordClientID == "" || c.DiscordClientSecret == "" || c.DiscordRedirectURI == "" {
		return fmt.Errorf("missing discord oauth env: require DISCORD_CLIENT_ID, DISCORD_CLIENT_SECRET, DISCORD_REDIRECT_URI")
	}
	return nil
}
