package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/clweng/ledgerbot/internal/backup"
	"github.com/clweng/ledgerbot/internal/config"
	"github.com/clweng/ledgerbot/internal/engine"
	"github.com/clweng/ledgerbot/internal/ledger"
	"github.com/clweng/ledgerbot/internal/storage/sqlite"
	"github.com/clweng/ledgerbot/internal/webhook"
	"github.com/clweng/ledgerbot/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite snapshot storage
	snaps, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer snaps.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	// Secondary backup target is optional; a bad credential only
	// disables replication, never the bot.
	opts := []engine.Option{}
	if cfg.BackupUploadURL != "" {
		client := backup.New(cfg.BackupUploadURL, cfg.BackupProbeURL, cfg.BackupRefreshURL, cfg.BackupCreds)
		if err := client.Validate(context.Background()); err != nil {
			slog.Warn("Backup credential validation failed", "error", err)
		}
		opts = append(opts, engine.WithReplicator(client))
		slog.Info("Backup replication enabled", "target", cfg.BackupUploadURL)
	}
	if cfg.EchoUnrecognized {
		opts = append(opts, engine.WithEchoUnrecognized())
	}

	eng := engine.New(ledger.New(), snaps, opts...)
	if err := eng.Restore(context.Background()); err != nil {
		slog.Error("Failed to restore ledger", "error", err)
		os.Exit(1)
	}

	replies := webhook.NewReplyClient("", cfg.ChannelAccessToken)
	handler := webhook.NewHandler(eng, cfg.ChannelSecret, replies)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /callback", handler.Callback)
	mux.HandleFunc("GET /", handler.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	loggedHandler := webhook.LoggingMiddleware(mux)

	// Wrap with h2c for HTTP/2 without TLS
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("Server starting", "address", addr)
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
