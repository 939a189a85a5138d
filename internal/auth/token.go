/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package auth issues overlay tokens, pairing codes, and producer JWTs.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"time"

	"github.com/friendsincode/skald_overlay/internal/models"
	"github.com/google/uuid"
)

// Overlay token constants
const (
	TokenPrefix      = "ovl_"
	TokenRandomBytes = 24 // 192 bits of entropy
)

// Pairing codes are short and human-typeable; they expire quickly and burn on
// first use, so the small alphabet is acceptable.
const (
	PairingCodeLength   = 8
	pairingCodeAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"
)

// HashToken derives the stored lookup hash for an overlay token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateOverlayToken creates a new overlay client token.
// Returns the plaintext token (shown to the overlay once) and the model to
// store.
func GenerateOverlayToken(guildID, label string) (string, *models.OverlayClient, error) {
	randomBytes := make([]byte, TokenRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", nil, err
	}

	plaintext := TokenPrefix + hex.EncodeToString(randomBytes)

	client := &models.OverlayClient{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		Label:     label,
		TokenHash: HashToken(plaintext),
	}

	return plaintext, client, nil
}

// GeneratePairingCode creates a one-shot pairing code valid for ttl.
func GeneratePairingCode(guildID, label string, ttl time.Duration) (*models.PairingCode, error) {
	code := make([]byte, PairingCodeLength)
	max := big.NewInt(int64(len(pairingCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, err
		}
		code[i] = pairingCodeAlphabet[n.Int64()]
	}

	return &models.PairingCode{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		Label:     label,
		Code:      string(code),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}
