package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server's tunable parameters (§4.14, §6). All fields have
// defaults matching the spec's configuration table; environment variables
// override them, and a .env file in the working directory (if present) is
// loaded first so real environment variables always win.
type Config struct {
	Host                 string
	Port                 string
	FilePort             string
	AdminPort            string
	SessionTimeout       time.Duration
	PresenceScanInterval time.Duration
	DBPath               string
	LogLevel             string
}

// LoadConfig reads .env (if present, silently ignored otherwise) and then
// the process environment into a Config.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: .env load failed", "err", err)
	}

	return Config{
		Host:                 envOr("SERVER_HOST", "0.0.0.0"),
		Port:                 envOr("SERVER_PORT", "8088"),
		FilePort:             envOr("SERVER_FILE_PORT", "9090"),
		AdminPort:            envOr("SERVER_ADMIN_PORT", "8081"),
		SessionTimeout:       envSeconds("SERVER_SESSION_TIMEOUT", 30),
		PresenceScanInterval: envSeconds("SERVER_PRESENCE_SCAN_INTERVAL", 5),
		DBPath:               envOr("SERVER_DB_PATH", "data/server.db"),
		LogLevel:             envOr("SERVER_LOG_LEVEL", "INFO"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		slog.Warn("config: invalid integer, using default", "key", key, "value", v, "default", def)
	}
	return time.Duration(def) * time.Second
}

// SlogLevel maps the configured textual level to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
