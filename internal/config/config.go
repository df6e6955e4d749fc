package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	RelayBaseURL string
	RelayWSURL   string

	BotPrefix string

	RedisURL    string
	DatabaseURL string

	InviteLinkBase string

	PingCooldown time.Duration
	SessionTTL   time.Duration
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		PingCooldown: 30 * time.Minute,
		SessionTTL:   30 * 24 * time.Hour,
	}

	cfg.RelayBaseURL = strings.TrimSpace(os.Getenv("RELAY_BASE_URL"))
	cfg.RelayWSURL = strings.TrimSpace(os.Getenv("RELAY_WS_URL"))
	cfg.BotPrefix = strings.TrimSpace(os.Getenv("BOT_PREFIX"))
	if cfg.BotPrefix == "" {
		cfg.BotPrefix = "/"
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.InviteLinkBase = strings.TrimSpace(os.Getenv("INVITE_LINK_BASE"))

	if v := strings.TrimSpace(os.Getenv("PING_COOLDOWN_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PingCooldown = time.Duration(n) * time.Minute
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_HOURS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Hour
		}
	}

	if cfg.RelayBaseURL == "" {
		return nil, errors.New("RELAY_BASE_URL is required")
	}
	if cfg.RelayWSURL == "" {
		return nil, errors.New("RELAY_WS_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
