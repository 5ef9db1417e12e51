// Package config loads runtime settings from the environment and the
// role seed file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the ticket system reads from the environment.
type Config struct {
	// DBPath overrides the default database location when set.
	DBPath string `env:"TICKETS_DB"`

	// RolesFile points at the YAML role seed applied on startup.
	RolesFile string `env:"TICKETS_ROLES_FILE"`

	// WebhookURL is the lifecycle event sink. Empty disables delivery.
	WebhookURL string `env:"TICKETS_WEBHOOK_URL"`

	// WebhookUsername names the poster in the webhook payload.
	WebhookUsername string `env:"TICKETS_WEBHOOK_NAME" envDefault:"tickets"`

	// WebhookChannelID is passed through in the payload for routing.
	WebhookChannelID string `env:"TICKETS_WEBHOOK_CHANNEL"`

	// CooldownSeconds is the minimum interval between commands per actor.
	CooldownSeconds int `env:"TICKETS_COOLDOWN" envDefault:"5"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CooldownSeconds < 0 {
		return Config{}, fmt.Errorf("cooldown must not be negative, got %d", cfg.CooldownSeconds)
	}
	return cfg, nil
}

// Cooldown returns the per-actor command cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}
