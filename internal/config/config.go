package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the call-risk service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	RetentionWindow time.Duration
	JanitorInterval time.Duration

	ScoringMode       string
	ScoringURL        string
	ScoringTimeout    time.Duration
	ScoringMaxRetries int

	MaxChunkBytes   int64
	EventBufferSize int

	DatabaseURL     string
	AuditMaxRecords int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "scaiguard"),
		AllowAnyOrigin:   false,
		// Closed sessions stay queryable for this long before the janitor
		// evicts them.
		RetentionWindow: 10 * time.Minute,
		JanitorInterval: time.Minute,
		ScoringMode:     envOrDefault("SCORING_MODE", "auto"),
		ScoringURL:      stringsTrimSpace("SCORING_URL"),
		ScoringTimeout:  10 * time.Second,
		// 10 MB covers roughly a minute of 16 kHz PCM with headroom.
		MaxChunkBytes:     10 << 20,
		EventBufferSize:   256,
		ScoringMaxRetries: 3,
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		AuditMaxRecords:   4096,
		ShutdownTimeout:   15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionWindow, err = durationFromEnv("APP_RETENTION_WINDOW", cfg.RetentionWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.JanitorInterval, err = durationFromEnv("APP_JANITOR_INTERVAL", cfg.JanitorInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ScoringTimeout, err = durationFromEnv("SCORING_TIMEOUT", cfg.ScoringTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ScoringMaxRetries, err = intFromEnv("SCORING_MAX_RETRIES", cfg.ScoringMaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxChunkBytes, err = int64FromEnv("APP_MAX_CHUNK_BYTES", cfg.MaxChunkBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.EventBufferSize, err = intFromEnv("APP_EVENT_BUFFER_SIZE", cfg.EventBufferSize)
	if err != nil {
		return Config{}, err
	}
	cfg.AuditMaxRecords, err = intFromEnv("AUDIT_MAX_RECORDS", cfg.AuditMaxRecords)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch cfg.ScoringMode {
	case "auto", "http", "heuristic":
	default:
		return Config{}, fmt.Errorf("SCORING_MODE must be auto, http or heuristic")
	}
	if cfg.ScoringMode == "http" && cfg.ScoringURL == "" {
		return Config{}, fmt.Errorf("SCORING_URL is required when SCORING_MODE=http")
	}
	if cfg.RetentionWindow < 10*time.Second {
		return Config{}, fmt.Errorf("APP_RETENTION_WINDOW must be at least 10s")
	}
	if cfg.JanitorInterval <= 0 {
		return Config{}, fmt.Errorf("APP_JANITOR_INTERVAL must be positive")
	}
	if cfg.ScoringMaxRetries <= 0 {
		return Config{}, fmt.Errorf("SCORING_MAX_RETRIES must be positive")
	}
	if cfg.MaxChunkBytes <= 0 {
		return Config{}, fmt.Errorf("APP_MAX_CHUNK_BYTES must be positive")
	}
	if cfg.EventBufferSize <= 0 {
		return Config{}, fmt.Errorf("APP_EVENT_BUFFER_SIZE must be positive")
	}
	if cfg.AuditMaxRecords <= 0 {
		return Config{}, fmt.Errorf("AUDIT_MAX_RECORDS must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func int64FromEnv(key string, fallback int64) (int64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
