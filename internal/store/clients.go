/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"time"

	"github.com/friendsincode/skald_overlay/internal/models"
	"github.com/google/uuid"
)

// FindOverlayClientByTokenHash looks up a non-revoked overlay client.
func (s *Store) FindOverlayClientByTokenHash(ctx context.Context, tokenHash string) (*models.OverlayClient, error) {
	var client models.OverlayClient
	err := s.withCtx(ctx).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		First(&client).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &client, nil
}

// TouchOverlayClientSeen updates the last-seen marker.
func (s *Store) TouchOverlayClientSeen(ctx context.Context, clientID string, at time.Time) error {
	return s.withCtx(ctx).
		Model(&models.OverlayClient{}).
		Where("id = ?", clientID).
		Update("last_seen_at", at).Error
}

// RevokeOverlayClients revokes all pairings for the same guild and label so a
// re-pair supersedes older tokens.
func (s *Store) RevokeOverlayClients(ctx context.Context, guildID, label string, at time.Time) (int64, error) {
	result := s.withCtx(ctx).
		Model(&models.OverlayClient{}).
		Where("guild_id = ? AND label = ? AND revoked_at IS NULL", guildID, label).
		Update("revoked_at", at)
	return result.RowsAffected, result.Error
}

// CreateOverlayClient persists a new pairing record.
func (s *Store) CreateOverlayClient(ctx context.Context, client *models.OverlayClient) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	return s.withCtx(ctx).Create(client).Error
}

// CreatePairingCode stores a one-shot pairing code.
func (s *Store) CreatePairingCode(ctx context.Context, code *models.PairingCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	return s.withCtx(ctx).Create(code).Error
}

// ConsumePairingCode atomically marks the code consumed and returns its row.
// Returns nil when the code is unknown, expired, or already consumed.
func (s *Store) ConsumePairingCode(ctx context.Context, code string, now time.Time) (*models.PairingCode, error) {
	var row models.PairingCode
	err := s.withCtx(ctx).
		Where("code = ?", code).
		First(&row).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	if !row.IsUsable(now) {
		return nil, nil
	}

	result := s.withCtx(ctx).
		Model(&models.PairingCode{}).
		Where("id = ? AND consumed_at IS NULL", row.ID).
		Update("consumed_at", now)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to a concurrent consume.
		return nil, nil
	}
	row.ConsumedAt = &now
	return &row, nil
}
