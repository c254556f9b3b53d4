package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads .env files without overriding variables already set.
func loadEnvFiles() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("Failed to load env file", "file", f, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "file", f)
	}
}

// applyEnvOverrides maps NOTESBUILD_* variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NOTESBUILD_ROOT"); v != "" {
		cfg.Paths.Root = v
	}
	if v := os.Getenv("NOTESBUILD_SITE_URL"); v != "" {
		cfg.Site.URL = v
	}
	if v := os.Getenv("NOTESBUILD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Build.Workers = n
		}
	}
	if v := os.Getenv("NOTESBUILD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = LogLevel(v)
	}
	if v := os.Getenv("NATS_URL"); v != "" && cfg.Notify.URL == "" {
		cfg.Notify.URL = v
	}
}
