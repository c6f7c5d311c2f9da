// Package config loads process configuration from the environment into
// an injectable struct, so nothing downstream reads env vars directly.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/clweng/ledgerbot/internal/backup"
)

// Config is everything the server needs at startup.
type Config struct {
	// Port the HTTP server listens on.
	Port int

	// DBPath is the SQLite file holding durable ledger snapshots.
	DBPath string

	// ChannelSecret signs inbound webhook bodies (HMAC-SHA256).
	ChannelSecret string

	// ChannelAccessToken authorizes replies to the chat platform.
	ChannelAccessToken string

	// Backup endpoints and credentials for the secondary target.
	// Empty BackupUploadURL disables replication entirely.
	BackupUploadURL  string
	BackupProbeURL   string
	BackupRefreshURL string
	BackupCreds      backup.Credentials

	// EchoUnrecognized restores the legacy behavior of echoing
	// unrecognized text back verbatim instead of staying silent.
	EchoUnrecognized bool
}

// Load reads the environment. Only PORT is validated; everything else
// is passed through and failures surface where the value is used.
func Load() (Config, error) {
	cfg := Config{
		Port:               8080,
		DBPath:             getEnv("DB_PATH", "./data/ledger.db"),
		ChannelSecret:      os.Getenv("CHANNEL_SECRET"),
		ChannelAccessToken: os.Getenv("CHANNEL_ACCESS_TOKEN"),
		BackupUploadURL:    os.Getenv("BACKUP_UPLOAD_URL"),
		BackupProbeURL:     os.Getenv("BACKUP_PROBE_URL"),
		BackupRefreshURL:   os.Getenv("BACKUP_REFRESH_URL"),
		BackupCreds: backup.Credentials{
			AccessToken:  os.Getenv("BACKUP_ACCESS_TOKEN"),
			RefreshToken: os.Getenv("BACKUP_REFRESH_TOKEN"),
		},
		EchoUnrecognized: os.Getenv("ECHO_UNRECOGNIZED") == "true",
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Port = p
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
