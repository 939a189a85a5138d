/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"time"

	"github.com/friendsincode/skald_overlay/internal/models"
	"gorm.io/gorm"
)

// GetGuild loads a guild row, or nil when unknown.
func (s *Store) GetGuild(ctx context.Context, guildID string) (*models.Guild, error) {
	var guild models.Guild
	err := s.withCtx(ctx).First(&guild, "id = ?", guildID).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &guild, nil
}

// EnsureGuild creates the guild row if it does not exist and returns it.
func (s *Store) EnsureGuild(ctx context.Context, guildID string, defaultMediaTime int) (*models.Guild, error) {
	var guild models.Guild
	err := s.withCtx(ctx).First(&guild, "id = ?", guildID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		guild = models.Guild{ID: guildID, DefaultMediaTime: defaultMediaTime, ShowTextDefault: true}
		if err := s.withCtx(ctx).Create(&guild).Error; err != nil {
			return nil, err
		}
		return &guild, nil
	}
	if err != nil {
		return nil, err
	}
	return &guild, nil
}

// UpsertGuildBusyUntil writes the advisory busy lease; nil clears it.
func (s *Store) UpsertGuildBusyUntil(ctx context.Context, guildID string, until *time.Time) error {
	result := s.withCtx(ctx).
		Model(&models.Guild{}).
		Where("id = ?", guildID).
		Update("busy_until", until)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		guild := models.Guild{ID: guildID, BusyUntil: until}
		return s.withCtx(ctx).Create(&guild).Error
	}
	return nil
}
