package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"garbage", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Empty values read as unset.
	t.Setenv("HEATS_SERVER_PORT", "")
	t.Setenv("HEATS_DB_URL", "")
	t.Setenv("HEATS_REQUEST_TIMEOUT", "")

	cfg := Load()
	if cfg.ServerPort != 8844 {
		t.Errorf("ServerPort = %d, want 8844", cfg.ServerPort)
	}
	if cfg.HistoryURL != "" {
		t.Errorf("HistoryURL = %q, want empty (history disabled)", cfg.HistoryURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HEATS_WORKERS", "6")
	t.Setenv("HEATS_REQUEST_TIMEOUT", "5s")
	t.Setenv("HEATS_LOG_LEVEL", "DEBUG")
	t.Setenv("HEATS_DB_URL", "ws://localhost:8000/rpc")

	cfg := Load()
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d, want 6", cfg.Workers)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.HistoryURL == "" {
		t.Error("HistoryURL not picked up from env")
	}
}

func TestGetEnvInt_Invalid(t *testing.T) {
	t.Setenv("HEATS_WORKERS", "many")
	if got := getEnvInt("HEATS_WORKERS", 4); got != 4 {
		t.Errorf("getEnvInt with bad value = %d, want default 4", got)
	}
}

func TestSetupLoggerWithWriters_FanoutBothSinks(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("drain finished", "jobs", 3)
	logger.Debug("suppressed")

	if !strings.Contains(stderr.String(), "drain finished") {
		t.Errorf("stderr sink missing message: %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "suppressed") {
		t.Error("debug line leaked through info-level handler")
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file sink is not JSON: %v", err)
	}
	if entry["msg"] != "drain finished" {
		t.Errorf("file entry msg = %v, want %q", entry["msg"], "drain finished")
	}
	if entry["jobs"] != float64(3) {
		t.Errorf("file entry jobs = %v, want 3", entry["jobs"])
	}
}
