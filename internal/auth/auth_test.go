/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateOverlayToken(t *testing.T) {
	plaintext, client, err := GenerateOverlayToken("g1", "main")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !strings.HasPrefix(plaintext, TokenPrefix) {
		t.Errorf("token %q missing %q prefix", plaintext, TokenPrefix)
	}
	if len(plaintext) != len(TokenPrefix)+TokenRandomBytes*2 {
		t.Errorf("token length = %d, want %d", len(plaintext), len(TokenPrefix)+TokenRandomBytes*2)
	}
	if client.GuildID != "g1" || client.Label != "main" {
		t.Errorf("client = %+v, want guild g1 label main", client)
	}
	if client.TokenHash != HashToken(plaintext) {
		t.Error("stored hash does not match token")
	}
	if client.TokenHash == plaintext {
		t.Error("plaintext stored as hash")
	}

	other, _, err := GenerateOverlayToken("g1", "main")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if other == plaintext {
		t.Error("two generated tokens collided")
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	if HashToken("ovl_abc") != HashToken("ovl_abc") {
		t.Error("same token hashed differently")
	}
	if HashToken("ovl_abc") == HashToken("ovl_abd") {
		t.Error("different tokens collided")
	}
	if len(HashToken("ovl_abc")) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(HashToken("ovl_abc")))
	}
}

func TestGeneratePairingCode(t *testing.T) {
	code, err := GeneratePairingCode("g1", "main", 10*time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(code.Code) != PairingCodeLength {
		t.Errorf("code length = %d, want %d", len(code.Code), PairingCodeLength)
	}
	for _, r := range code.Code {
		if !strings.ContainsRune(pairingCodeAlphabet, r) {
			t.Errorf("code %q contains %q outside the alphabet", code.Code, r)
		}
	}
	if code.GuildID != "g1" || code.Label != "main" {
		t.Errorf("code = %+v, want guild g1 label main", code)
	}

	until := time.Until(code.ExpiresAt)
	if until < 9*time.Minute || until > 11*time.Minute {
		t.Errorf("expiry %v from now, want about 10m", until)
	}
}

func TestProducerJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := Issue(secret, ProducerClaims{
		ProducerID: "bot-1",
		Guilds:     []string{"g1", "g2"},
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ProducerID != "bot-1" {
		t.Errorf("producer id = %q, want bot-1", claims.ProducerID)
	}
	if !claims.AllowsGuild("g1") || !claims.AllowsGuild("g2") {
		t.Error("listed guilds not allowed")
	}
	if claims.AllowsGuild("g3") {
		t.Error("unlisted guild allowed")
	}
}

func TestProducerJWTEmptyGuildsAllowsAll(t *testing.T) {
	secret := []byte("test-secret")

	token, err := Issue(secret, ProducerClaims{ProducerID: "admin"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.AllowsGuild("anything") {
		t.Error("empty guild list should allow all guilds")
	}
}

func TestProducerJWTWrongSecret(t *testing.T) {
	token, err := Issue([]byte("right"), ProducerClaims{ProducerID: "bot-1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse([]byte("wrong"), token); err == nil {
		t.Error("token accepted with wrong secret")
	}
}

func TestProducerJWTExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, ProducerClaims{ProducerID: "bot-1"}, -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Parse(secret, token); err == nil {
		t.Error("expired token accepted")
	}
}
