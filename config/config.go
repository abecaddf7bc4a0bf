// Package config loads server settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Settlement SettlementConfig
}

type AppConfig struct {
	Port           int
	LogLevel       slog.Level
	LogFormat      string // "text" or "json"
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Path string
}

// SettlementConfig holds the engine options.
type SettlementConfig struct {
	RetrievalTimeout time.Duration
	Concurrency      int
	Strict           bool
	AbortOnFailure   bool

	// OverdueAfter is the grace period after a period ends before a PENDING
	// settlement is marked OVERDUE. Zero disables the sweep.
	OverdueAfter time.Duration
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	format := strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", format)
	}

	timeout, err := time.ParseDuration(getEnv("RETRIEVAL_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRIEVAL_TIMEOUT: %w", err)
	}

	concurrency, err := strconv.Atoi(getEnv("SETTLEMENT_CONCURRENCY", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLEMENT_CONCURRENCY: %w", err)
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("invalid SETTLEMENT_CONCURRENCY: must be at least 1, got %d", concurrency)
	}

	strict, err := getEnvBool("SETTLEMENT_STRICT", false)
	if err != nil {
		return nil, err
	}
	abort, err := getEnvBool("FINALIZE_ABORT_ON_FAILURE", false)
	if err != nil {
		return nil, err
	}

	overdue, err := time.ParseDuration(getEnv("OVERDUE_AFTER", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid OVERDUE_AFTER: %w", err)
	}
	if overdue < 0 {
		return nil, fmt.Errorf("invalid OVERDUE_AFTER: must not be negative, got %s", overdue)
	}

	return &Config{
		App: AppConfig{
			Port:           port,
			LogLevel:       level,
			LogFormat:      format,
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "settlements.db"),
		},
		Settlement: SettlementConfig{
			RetrievalTimeout: timeout,
			Concurrency:      concurrency,
			Strict:           strict,
			AbortOnFailure:   abort,
			OverdueAfter:     overdue,
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
