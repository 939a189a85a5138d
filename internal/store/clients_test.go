/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"testing"
	"time"

	"github.com/friendsincode/skald_overlay/internal/models"
)

func TestConsumePairingCodeOneShot(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	code := &models.PairingCode{
		GuildID:   "g1",
		Label:     "main",
		Code:      "ABCD2345",
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := s.CreatePairingCode(t.Context(), code); err != nil {
		t.Fatalf("create code: %v", err)
	}

	got, err := s.ConsumePairingCode(t.Context(), "ABCD2345", now)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got == nil || got.GuildID != "g1" {
		t.Fatalf("consume = %+v, want guild g1", got)
	}

	// Second consume burns out.
	got, err = s.ConsumePairingCode(t.Context(), "ABCD2345", now)
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if got != nil {
		t.Error("code consumed twice")
	}
}

func TestConsumePairingCodeExpired(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	code := &models.PairingCode{
		GuildID:   "g1",
		Label:     "main",
		Code:      "EXPIRED1",
		ExpiresAt: now.Add(-time.Minute),
	}
	if err := s.CreatePairingCode(t.Context(), code); err != nil {
		t.Fatalf("create code: %v", err)
	}

	got, err := s.ConsumePairingCode(t.Context(), "EXPIRED1", now)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got != nil {
		t.Error("expired code should not consume")
	}
}

func TestConsumePairingCodeUnknown(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.ConsumePairingCode(t.Context(), "NOPE1234", time.Now().UTC())
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got != nil {
		t.Error("unknown code should not consume")
	}
}

func TestRevokedClientNotFoundByTokenHash(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	client := &models.OverlayClient{
		GuildID:   "g1",
		Label:     "main",
		TokenHash: "hash-1",
	}
	if err := s.CreateOverlayClient(t.Context(), client); err != nil {
		t.Fatalf("create client: %v", err)
	}

	found, err := s.FindOverlayClientByTokenHash(t.Context(), "hash-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil {
		t.Fatal("client not found before revocation")
	}

	revoked, err := s.RevokeOverlayClients(t.Context(), "g1", "main", now)
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked != 1 {
		t.Errorf("revoked %d clients, want 1", revoked)
	}

	found, err = s.FindOverlayClientByTokenHash(t.Context(), "hash-1")
	if err != nil {
		t.Fatalf("find after revoke: %v", err)
	}
	if found != nil {
		t.Error("revoked client still resolves by token hash")
	}
}

func TestRevokeScopedToLabel(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	main := &models.OverlayClient{GuildID: "g1", Label: "main", TokenHash: "hash-main"}
	alerts := &models.OverlayClient{GuildID: "g1", Label: "alerts", TokenHash: "hash-alerts"}
	for _, c := range []*models.OverlayClient{main, alerts} {
		if err := s.CreateOverlayClient(t.Context(), c); err != nil {
			t.Fatalf("create client: %v", err)
		}
	}

	if _, err := s.RevokeOverlayClients(t.Context(), "g1", "main", now); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	found, err := s.FindOverlayClientByTokenHash(t.Context(), "hash-alerts")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil {
		t.Error("revocation of one label must not touch others")
	}
}
