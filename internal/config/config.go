package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	WSAddr  string
	APIAddr string

	RedisURL    string
	DatabaseURL string

	AuthSecret string

	SessionGrace  time.Duration
	SweepInterval time.Duration
	SnapshotTTL   time.Duration

	BridgeQueueSize   int
	BridgeMaxAttempts int

	MessageOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		WSAddr:            ":5000",
		APIAddr:           ":5001",
		SessionGrace:      10 * time.Minute,
		SweepInterval:     time.Minute,
		SnapshotTTL:       24 * time.Hour,
		BridgeQueueSize:   256,
		BridgeMaxAttempts: 3,
	}

	if v := strings.TrimSpace(os.Getenv("WS_ADDR")); v != "" {
		cfg.WSAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("API_ADDR")); v != "" {
		cfg.APIAddr = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.AuthSecret = strings.TrimSpace(os.Getenv("AUTH_SECRET"))
	cfg.MessageOverrideDir = strings.TrimSpace(os.Getenv("MESSAGE_OVERRIDE_DIR"))

	if v := strings.TrimSpace(os.Getenv("SESSION_GRACE")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionGrace = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_SWEEP_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SnapshotTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("BRIDGE_QUEUE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BridgeQueueSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("BRIDGE_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BridgeMaxAttempts = n
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
