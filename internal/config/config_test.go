/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("environment = %q, want development", cfg.Environment)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("port = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.DBBackend)
	}
	if cfg.DefaultDurationSec != 10 {
		t.Errorf("default duration = %d, want 10", cfg.DefaultDurationSec)
	}
	if cfg.PairingCodeTTL != 10*time.Minute {
		t.Errorf("pairing ttl = %v, want 10m", cfg.PairingCodeTTL)
	}
	if cfg.PlaybackJobRetention != 72*time.Hour {
		t.Errorf("job retention = %v, want 72h", cfg.PlaybackJobRetention)
	}
	if !cfg.IngestEnabled {
		t.Error("ingest disabled by default")
	}
	if cfg.StaleGrace != 10*time.Second {
		t.Errorf("stale grace = %v, want 10s", cfg.StaleGrace)
	}
	if cfg.TracingEnabled {
		t.Error("tracing enabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SKALD_ENV", "staging")
	t.Setenv("SKALD_HTTP_PORT", "9090")
	t.Setenv("SKALD_DB_BACKEND", "postgres")
	t.Setenv("SKALD_DB_DSN", "host=db user=skald")
	t.Setenv("SKALD_DEFAULT_DURATION", "30")
	t.Setenv("SKALD_STALE_GRACE_MS", "2500")
	t.Setenv("SKALD_INGEST_ENABLED", "no")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Environment != "staging" {
		t.Errorf("environment = %q", cfg.Environment)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("port = %d", cfg.HTTPPort)
	}
	if cfg.DBBackend != DatabasePostgres {
		t.Errorf("backend = %q", cfg.DBBackend)
	}
	if cfg.DefaultDurationSec != 30 {
		t.Errorf("default duration = %d", cfg.DefaultDurationSec)
	}
	if cfg.StaleGrace != 2500*time.Millisecond {
		t.Errorf("stale grace = %v", cfg.StaleGrace)
	}
	if cfg.IngestEnabled {
		t.Error("ingest override ignored")
	}
}

func TestLoadLegacyEnvFallback(t *testing.T) {
	t.Setenv("DEFAULT_DURATION", "20")
	t.Setenv("API_URL", "https://skald.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultDurationSec != 20 {
		t.Errorf("default duration = %d, want legacy fallback 20", cfg.DefaultDurationSec)
	}
	if cfg.APIURL != "https://skald.example.com" {
		t.Errorf("api url = %q, want legacy fallback", cfg.APIURL)
	}

	// The namespaced variable wins over the legacy one.
	t.Setenv("SKALD_DEFAULT_DURATION", "25")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultDurationSec != 25 {
		t.Errorf("default duration = %d, want namespaced 25", cfg.DefaultDurationSec)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("SKALD_DB_BACKEND", "oracle")
	if _, err := Load(); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SKALD_DEFAULT_DURATION", "0")
	if _, err := Load(); err == nil {
		t.Error("zero default duration accepted")
	}
}

func TestLoadProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("SKALD_ENV", "production")
	if _, err := Load(); err == nil {
		t.Error("production without signing key accepted")
	}

	t.Setenv("SKALD_JWT_SIGNING_KEY", "secret")
	if _, err := Load(); err != nil {
		t.Errorf("production with signing key rejected: %v", err)
	}

	// Disabling ingest also lifts the requirement.
	t.Setenv("SKALD_JWT_SIGNING_KEY", "")
	t.Setenv("SKALD_INGEST_ENABLED", "false")
	if _, err := Load(); err != nil {
		t.Errorf("production with ingest disabled rejected: %v", err)
	}
}
