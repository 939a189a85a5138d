/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	APIURL      string // public base URL embedded into PLAY payload media URLs
	LogLevel    string

	DBBackend DatabaseBackend
	DBDSN     string
	MediaRoot string

	// Producer-facing defaults and retention policy.
	DefaultDurationSec   int
	PairingCodeTTL       time.Duration
	PlaybackJobRetention time.Duration
	MediaCacheTTL        time.Duration
	IngestEnabled        bool
	JWTSigningKey        string // ingest producer bearer auth

	// Scheduler tunables. The defaults match production behavior; integration
	// tests override them to shorten timeouts.
	LockPadding    time.Duration
	StaleGrace     time.Duration
	MinBusyLock    time.Duration
	SnapshotMaxAge time.Duration

	// Optional Redis cache for token claims and guild policy.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Tracing configuration.
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("SKALD_ENV", "development"),
		HTTPBind:    getEnv("SKALD_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("SKALD_HTTP_PORT", 8080),
		APIURL:      getEnvAny([]string{"SKALD_API_URL", "API_URL"}, ""),
		LogLevel:    getEnvAny([]string{"SKALD_LOG", "LOG"}, ""),

		DBBackend: DatabaseBackend(getEnv("SKALD_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("SKALD_DB_DSN", "skald.db"),
		MediaRoot: getEnv("SKALD_MEDIA_ROOT", "./media"),

		DefaultDurationSec:   getEnvIntAny([]string{"SKALD_DEFAULT_DURATION", "DEFAULT_DURATION"}, 10),
		PairingCodeTTL:       time.Duration(getEnvIntAny([]string{"SKALD_PAIRING_CODE_TTL_MINUTES", "PAIRING_CODE_TTL_MINUTES"}, 10)) * time.Minute,
		PlaybackJobRetention: time.Duration(getEnvIntAny([]string{"SKALD_PLAYBACK_JOB_RETENTION_HOURS", "PLAYBACK_JOB_RETENTION_HOURS"}, 72)) * time.Hour,
		MediaCacheTTL:        time.Duration(getEnvIntAny([]string{"SKALD_MEDIA_CACHE_TTL_HOURS", "MEDIA_CACHE_TTL_HOURS"}, 168)) * time.Hour,
		IngestEnabled:        getEnvBool("SKALD_INGEST_ENABLED", true),
		JWTSigningKey:        getEnv("SKALD_JWT_SIGNING_KEY", ""),

		LockPadding:    time.Duration(getEnvInt("SKALD_LOCK_PADDING_MS", 250)) * time.Millisecond,
		StaleGrace:     time.Duration(getEnvInt("SKALD_STALE_GRACE_MS", 10_000)) * time.Millisecond,
		MinBusyLock:    time.Duration(getEnvInt("SKALD_MIN_BUSY_LOCK_MS", 5_000)) * time.Millisecond,
		SnapshotMaxAge: time.Duration(getEnvInt("SKALD_SNAPSHOT_MAX_AGE_MS", 15_000)) * time.Millisecond,

		RedisAddr:     getEnv("SKALD_REDIS_ADDR", ""),
		RedisPassword: getEnv("SKALD_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("SKALD_REDIS_DB", 0),

		TracingEnabled:    getEnvBool("SKALD_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SKALD_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SKALD_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SKALD_DB_DSN must be provided")
	}

	if cfg.DefaultDurationSec < 1 {
		return nil, fmt.Errorf("DEFAULT_DURATION must be at least 1 second")
	}

	if cfg.IngestEnabled && cfg.JWTSigningKey == "" && strings.EqualFold(cfg.Environment, "production") {
		return nil, fmt.Errorf("SKALD_JWT_SIGNING_KEY must be set when the ingest API is enabled in production")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
