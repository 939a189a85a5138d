/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"time"

	"github.com/friendsincode/skald_overlay/internal/models"
)

// GetMediaAsset loads an asset by id, or nil when unknown.
func (s *Store) GetMediaAsset(ctx context.Context, assetID string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	err := s.withCtx(ctx).First(&asset, "id = ?", assetID).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &asset, nil
}

// TouchMediaAccess records that the asset was read. Fire-and-forget callers
// may ignore the error.
func (s *Store) TouchMediaAccess(ctx context.Context, assetID string, at time.Time) error {
	return s.withCtx(ctx).
		Model(&models.MediaAsset{}).
		Where("id = ?", assetID).
		Update("last_accessed_at", at).Error
}

// AssetReferencedByGuild reports whether a playback job or meme board item of
// the guild references the asset. Gate for the media streaming endpoint.
func (s *Store) AssetReferencedByGuild(ctx context.Context, guildID, assetID string) (bool, error) {
	var count int64
	err := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Where("guild_id = ? AND media_asset_id = ?", guildID, assetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}

	err = s.withCtx(ctx).
		Model(&models.MemeBoardItem{}).
		Where("guild_id = ? AND media_asset_id = ?", guildID, assetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindMemeBoardItem resolves a meme board item scoped to its guild.
func (s *Store) FindMemeBoardItem(ctx context.Context, guildID, itemID string) (*models.MemeBoardItem, error) {
	var item models.MemeBoardItem
	err := s.withCtx(ctx).
		Where("guild_id = ? AND id = ?", guildID, itemID).
		First(&item).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &item, nil
}

// DeleteExpiredAssets removes assets past their expiry that no meme board
// item pins. Pinned assets carry a far-future expiry and never match.
func (s *Store) DeleteExpiredAssets(ctx context.Context, now time.Time) (int64, error) {
	result := s.withCtx(ctx).
		Where("expires_at < ?", now).
		Where("id NOT IN (?)", s.db.Model(&models.MemeBoardItem{}).Select("media_asset_id")).
		Delete(&models.MediaAsset{})
	return result.RowsAffected, result.Error
}
