package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Run history store (SurrealDB); empty URL disables it
	HistoryURL       string
	HistoryNamespace string
	HistoryDatabase  string
	HistoryUser      string
	HistoryPass      string
	HistoryAuthLevel string

	// Harness defaults
	Workers int
	LogDir  string

	// Server / client
	ServerPort     int
	ServerURL      string
	RequestTimeout time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		HistoryURL:       getEnv("HEATS_DB_URL", ""),
		HistoryNamespace: getEnv("HEATS_DB_NAMESPACE", "heats"),
		HistoryDatabase:  getEnv("HEATS_DB_DATABASE", "runs"),
		HistoryUser:      getEnv("HEATS_DB_USER", "root"),
		HistoryPass:      getEnv("HEATS_DB_PASS", "root"),
		HistoryAuthLevel: getEnv("HEATS_DB_AUTH_LEVEL", "root"),

		Workers: getEnvInt("HEATS_WORKERS", 0), // 0 means one per CPU
		LogDir:  getEnv("HEATS_LOG_DIR", "./heats-logs"),

		ServerPort:     getEnvInt("HEATS_SERVER_PORT", 8844),
		ServerURL:      getEnv("HEATS_SERVER_URL", "http://localhost:8844"),
		RequestTimeout: getEnvDuration("HEATS_REQUEST_TIMEOUT", 30*time.Second),

		LogFile:  getEnv("HEATS_LOG_FILE", "/tmp/heats.log"),
		LogLevel: parseLogLevel(getEnv("HEATS_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
