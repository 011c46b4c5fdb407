package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override configuration values.
const (
	EnvProxy      = "THEMEBUILDER_PROXY"
	EnvPort       = "THEMEBUILDER_PORT"
	EnvSassBinary = "THEMEBUILDER_SASS_BINARY"
	EnvLogLevel   = "THEMEBUILDER_LOG_LEVEL"
)

// envFiles are tried in order; existing process variables are never overwritten.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", "file", name, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "file", name)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvProxy); v != "" {
		cfg.Server.Proxy = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			slog.Warn("Ignoring invalid port override", "var", EnvPort, "value", v)
		}
	}
	if v := os.Getenv(EnvSassBinary); v != "" {
		cfg.Styles.SassBinary = v
	}
}
