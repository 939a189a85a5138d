/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// JobStatus tracks the playback job lifecycle.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobPlaying JobStatus = "PLAYING"
	JobDone    JobStatus = "DONE"
	JobFailed  JobStatus = "FAILED"
)

// MediaKind enumerates playable asset categories.
type MediaKind string

const (
	MediaImage MediaKind = "IMAGE"
	MediaAudio MediaKind = "AUDIO"
	MediaVideo MediaKind = "VIDEO"
)

// MediaStatus tracks ingestion progress of an asset.
type MediaStatus string

const (
	MediaProcessing MediaStatus = "PROCESSING"
	MediaReady      MediaStatus = "READY"
	MediaFailed     MediaStatus = "FAILED"
)

// Guild is the tenant boundary: one queue, one busy-lock, one overlay room.
type Guild struct {
	ID               string     `gorm:"primaryKey"`
	BusyUntil        *time.Time // advisory lease; a PLAYING row is the truth
	DefaultMediaTime int
	MaxMediaTime     *int
	ShowTextDefault  bool `gorm:"default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MediaAsset is an ingested media file the scheduler can dispatch.
type MediaAsset struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	SourceHash     string `gorm:"uniqueIndex"`
	SourceURL      string
	Kind           MediaKind `gorm:"type:varchar(16)"`
	Mime           string    `gorm:"type:varchar(64)"`
	DurationSec    *int
	Width          int
	Height         int
	IsVertical     bool
	SizeBytes      int64
	StoragePath    string
	Status         MediaStatus `gorm:"type:varchar(16);index"`
	ExpiresAt      time.Time   `gorm:"index"`
	LastAccessedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsReady reports whether the asset may be dispatched to overlays.
func (a MediaAsset) IsReady() bool {
	return a.Status == MediaReady
}

// PlaybackJob is the scheduler's unit of work.
type PlaybackJob struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	GuildID      string  `gorm:"index:idx_jobs_guild_status_finished,priority:1;index:idx_jobs_guild_status_resumes,priority:1;index:idx_jobs_guild_status_exec,priority:1"`
	MediaAssetID *string `gorm:"type:uuid"`
	Text         string  `gorm:"type:text"`
	ShowText     bool
	AuthorName   *string
	AuthorImage  *string

	DurationSec int
	Priority    int        `gorm:"default:0"`
	Status      JobStatus  `gorm:"type:varchar(16);index:idx_jobs_guild_status_finished,priority:2;index:idx_jobs_guild_status_resumes,priority:2;index:idx_jobs_guild_status_exec,priority:2"`
	FinishedAt  *time.Time `gorm:"index:idx_jobs_guild_status_finished,priority:3"`

	// SubmissionDate is the store-assigned enqueue time and breaks FIFO ties;
	// ExecutionDate is the earliest dispatch time for root jobs.
	SubmissionDate time.Time
	ExecutionDate  time.Time `gorm:"index:idx_jobs_guild_status_exec,priority:3"`
	ScheduledAt    time.Time

	StartedAt           *time.Time
	RemainingMsSnapshot *int64
	LastPlaybackStateAt *time.Time

	// Resume linkage: non-nil means this job is the suspended tail of a
	// preempted job and runs only once its predecessor is terminal.
	ResumesAfterJobID *string `gorm:"type:uuid;index:idx_jobs_guild_status_resumes,priority:3"`
	ResumeOffsetSec   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal reports whether the job reached DONE or FAILED.
func (j PlaybackJob) IsTerminal() bool {
	return j.Status == JobDone || j.Status == JobFailed
}

// IsRoot reports whether the job entered the queue directly rather than as a
// resume child.
func (j PlaybackJob) IsRoot() bool {
	return j.ResumesAfterJobID == nil
}

// OverlayClient is a paired display endpoint.
type OverlayClient struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	GuildID     string `gorm:"index"`
	Label       string
	TokenHash   string `gorm:"index"`
	RevokedAt   *time.Time
	LastSeenAt  *time.Time
	AuthorName  *string
	AuthorImage *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRevoked reports whether the pairing was revoked.
func (c OverlayClient) IsRevoked() bool {
	return c.RevokedAt != nil
}

// MemeBoardItem pins an asset to a guild's meme board so overlays can trigger
// it by id or shortcut.
type MemeBoardItem struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	GuildID      string `gorm:"uniqueIndex:idx_memeboard_guild_asset,priority:1"`
	MediaAssetID string `gorm:"type:uuid;uniqueIndex:idx_memeboard_guild_asset,priority:2"`
	Name         string
	Shortcut     string `gorm:"type:varchar(32)"`
	Text         string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PairingCode is a one-shot code exchanged for an overlay client token.
type PairingCode struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	GuildID    string `gorm:"index"`
	Label      string
	Code       string `gorm:"uniqueIndex"`
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// IsUsable reports whether the code can still be consumed.
func (p PairingCode) IsUsable(now time.Time) bool {
	return p.ConsumedAt == nil && now.Before(p.ExpiresAt)
}
