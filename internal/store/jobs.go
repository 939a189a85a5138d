/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/friendsincode/skald_overlay/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// priorityOrder is the PENDING root ordering: highest priority first, then
// oldest submission, then id as the final tie-break.
const priorityOrder = "priority DESC, submission_date ASC, id ASC"

// CreateJobArgs are the producer-supplied fields of a new playback job.
type CreateJobArgs struct {
	GuildID      string
	MediaAssetID *string
	Text         string
	ShowText     bool
	AuthorName   *string
	AuthorImage  *string
	DurationSec  int
	Priority     int
}

// CreateJob inserts a PENDING root job with execution date now.
func (s *Store) CreateJob(ctx context.Context, args CreateJobArgs) (*models.PlaybackJob, error) {
	if args.GuildID == "" {
		return nil, fmt.Errorf("guild id required")
	}
	if args.DurationSec < 1 {
		return nil, fmt.Errorf("duration must be at least 1 second")
	}

	now := time.Now().UTC()
	job := models.PlaybackJob{
		ID:             uuid.NewString(),
		GuildID:        args.GuildID,
		MediaAssetID:   args.MediaAssetID,
		Text:           args.Text,
		ShowText:       args.ShowText,
		AuthorName:     args.AuthorName,
		AuthorImage:    args.AuthorImage,
		DurationSec:    args.DurationSec,
		Priority:       args.Priority,
		Status:         models.JobPending,
		SubmissionDate: now,
		ExecutionDate:  now,
		ScheduledAt:    now,
	}
	if err := s.withCtx(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob loads a job by id scoped to a guild.
func (s *Store) GetJob(ctx context.Context, guildID, jobID string) (*models.PlaybackJob, error) {
	var job models.PlaybackJob
	err := s.withCtx(ctx).
		Where("guild_id = ? AND id = ?", guildID, jobID).
		First(&job).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &job, nil
}

// FindActivePlayingJob returns the single PLAYING row for the guild, if any.
// Ordered by started_at so a duplicate (which the conditional writes prevent)
// would still resolve deterministically.
func (s *Store) FindActivePlayingJob(ctx context.Context, guildID string) (*models.PlaybackJob, error) {
	var job models.PlaybackJob
	err := s.withCtx(ctx).
		Where("guild_id = ? AND status = ? AND finished_at IS NULL", guildID, models.JobPlaying).
		Order("started_at ASC").
		First(&job).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &job, nil
}

// FindNextPendingRoot returns the first dispatchable root by the priority
// tuple, or nil when no root is due.
func (s *Store) FindNextPendingRoot(ctx context.Context, guildID string, now time.Time) (*models.PlaybackJob, error) {
	var job models.PlaybackJob
	err := s.withCtx(ctx).
		Where("guild_id = ? AND status = ? AND resumes_after_job_id IS NULL AND execution_date <= ?",
			guildID, models.JobPending, now).
		Order(priorityOrder).
		First(&job).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &job, nil
}

// FindResumedChildOf returns the PENDING resume child of the given parent.
func (s *Store) FindResumedChildOf(ctx context.Context, guildID, parentID string) (*models.PlaybackJob, error) {
	var job models.PlaybackJob
	err := s.withCtx(ctx).
		Where("guild_id = ? AND status = ? AND resumes_after_job_id = ?",
			guildID, models.JobPending, parentID).
		Order(priorityOrder).
		First(&job).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	return &job, nil
}

// FindOrphanedResumedChildren returns PENDING resume children whose parent is
// terminal or missing. Recovery path after crashes and missed releases.
func (s *Store) FindOrphanedResumedChildren(ctx context.Context, guildID string) ([]models.PlaybackJob, error) {
	var jobs []models.PlaybackJob
	err := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Joins("LEFT JOIN playback_jobs parents ON parents.id = playback_jobs.resumes_after_job_id").
		Where("playback_jobs.guild_id = ? AND playback_jobs.status = ? AND playback_jobs.resumes_after_job_id IS NOT NULL",
			guildID, models.JobPending).
		Where("parents.id IS NULL OR parents.status IN ?", []models.JobStatus{models.JobDone, models.JobFailed}).
		Order("playback_jobs.priority DESC, playback_jobs.submission_date ASC, playback_jobs.id ASC").
		Find(&jobs).Error
	return jobs, err
}

// PromoteData carries the fields written when a job goes PLAYING.
type PromoteData struct {
	StartedAt       time.Time
	DurationSec     int
	ResumeOffsetSec int
}

// PromoteToPlaying conditionally moves a PENDING job to PLAYING. Returns the
// affected row count; zero means the job already left PENDING.
func (s *Store) PromoteToPlaying(ctx context.Context, guildID, jobID string, data PromoteData) (int64, error) {
	result := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Where("id = ? AND guild_id = ? AND status = ? AND finished_at IS NULL",
			jobID, guildID, models.JobPending).
		Updates(map[string]any{
			"status":                 models.JobPlaying,
			"started_at":             data.StartedAt,
			"duration_sec":           data.DurationSec,
			"resume_offset_sec":      data.ResumeOffsetSec,
			"execution_date":         data.StartedAt,
			"remaining_ms_snapshot":  gorm.Expr("NULL"),
			"last_playback_state_at": gorm.Expr("NULL"),
		})
	return result.RowsAffected, result.Error
}

// SuspendData carries the fields written when a PLAYING job is preempted.
type SuspendData struct {
	RemainingSec    int
	PreemptingJobID string
	NextOffsetSec   int
	ExecutionDate   time.Time
}

// SuspendForPreemption conditionally turns a PLAYING job into the PENDING
// resume child of the preempting job. Zero rows means it already stopped.
func (s *Store) SuspendForPreemption(ctx context.Context, guildID, jobID string, data SuspendData) (int64, error) {
	result := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Where("id = ? AND guild_id = ? AND status = ?", jobID, guildID, models.JobPlaying).
		Updates(map[string]any{
			"status":                 models.JobPending,
			"started_at":             gorm.Expr("NULL"),
			"duration_sec":           data.RemainingSec,
			"resumes_after_job_id":   data.PreemptingJobID,
			"resume_offset_sec":      data.NextOffsetSec,
			"execution_date":         data.ExecutionDate,
			"remaining_ms_snapshot":  gorm.Expr("NULL"),
			"last_playback_state_at": gorm.Expr("NULL"),
		})
	return result.RowsAffected, result.Error
}

// ReleasePlayingJob conditionally finishes the PLAYING job with the given id.
func (s *Store) ReleasePlayingJob(ctx context.Context, guildID, jobID string, terminal models.JobStatus, finishedAt time.Time) (int64, error) {
	result := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Where("id = ? AND guild_id = ? AND status = ?", jobID, guildID, models.JobPlaying).
		Updates(map[string]any{
			"status":      terminal,
			"finished_at": finishedAt,
		})
	return result.RowsAffected, result.Error
}

// ReleaseAllPlaying finishes every PLAYING job of the guild. Used for stop
// events that do not carry a known job id.
func (s *Store) ReleaseAllPlaying(ctx context.Context, guildID string, terminal models.JobStatus, finishedAt time.Time) (int64, error) {
	result := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Where("guild_id = ? AND status = ?", guildID, models.JobPlaying).
		Updates(map[string]any{
			"status":      terminal,
			"finished_at": finishedAt,
		})
	return result.RowsAffected, result.Error
}

// FailPendingJob conditionally fails a PENDING job (media unavailable, no
// overlay connected).
func (s *Store) FailPendingJob(ctx context.Context, guildID, jobID string, finishedAt time.Time) (int64, error) {
	result := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Where("id = ? AND guild_id = ? AND status = ?", jobID, guildID, models.JobPending).
		Updates(map[string]any{
			"status":      models.JobFailed,
			"finished_at": finishedAt,
		})
	return result.RowsAffected, result.Error
}

// UpdatePlaybackSnapshot refreshes the remaining-time snapshot of the PLAYING
// job. jobID may be empty to target whatever is playing.
func (s *Store) UpdatePlaybackSnapshot(ctx context.Context, guildID, jobID string, remainingMs *int64, at time.Time) error {
	query := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Where("guild_id = ? AND status = ?", guildID, models.JobPlaying)
	if jobID != "" {
		query = query.Where("id = ?", jobID)
	}
	return query.Updates(map[string]any{
		"remaining_ms_snapshot":  remainingMs,
		"last_playback_state_at": at,
	}).Error
}

// RecomputeRootExecutionDates serializes pending roots so the queue reads as a
// predictable timeline. Purely observational; the single-playing invariant is
// enforced by the conditional writes, never by execution dates.
func (s *Store) RecomputeRootExecutionDates(ctx context.Context, guildID string, anchor time.Time, padding time.Duration) error {
	var roots []models.PlaybackJob
	err := s.withCtx(ctx).
		Where("guild_id = ? AND status = ? AND resumes_after_job_id IS NULL",
			guildID, models.JobPending).
		Order(priorityOrder).
		Find(&roots).Error
	if err != nil {
		return err
	}

	cursor := time.Now().UTC()
	if anchor.After(cursor) {
		cursor = anchor
	}
	for _, root := range roots {
		if err := s.withCtx(ctx).
			Model(&models.PlaybackJob{}).
			Where("id = ? AND status = ?", root.ID, models.JobPending).
			Updates(map[string]any{
				"execution_date": cursor,
				"scheduled_at":   cursor,
			}).Error; err != nil {
			return err
		}
		cursor = cursor.Add(time.Duration(root.DurationSec)*time.Second + padding)
	}
	return nil
}

// NextPendingRootExecution returns the earliest pending root execution date,
// or nil when the root queue is empty. Drives the wake timer.
func (s *Store) NextPendingRootExecution(ctx context.Context, guildID string) (*time.Time, error) {
	var job models.PlaybackJob
	err := s.withCtx(ctx).
		Where("guild_id = ? AND status = ? AND resumes_after_job_id IS NULL",
			guildID, models.JobPending).
		Order("execution_date ASC").
		First(&job).Error
	if err != nil {
		return nil, notFoundAsNil(err)
	}
	t := job.ExecutionDate
	return &t, nil
}

// ListPendingRoots returns the root queue in dispatch order.
func (s *Store) ListPendingRoots(ctx context.Context, guildID string) ([]models.PlaybackJob, error) {
	var jobs []models.PlaybackJob
	err := s.withCtx(ctx).
		Where("guild_id = ? AND status = ? AND resumes_after_job_id IS NULL",
			guildID, models.JobPending).
		Order(priorityOrder).
		Find(&jobs).Error
	return jobs, err
}

// GuildIDsWithOpenJobs returns the guilds that have non-terminal jobs. Used by
// bootstrap to re-enter every queue after a restart.
func (s *Store) GuildIDsWithOpenJobs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.withCtx(ctx).
		Model(&models.PlaybackJob{}).
		Distinct("guild_id").
		Where("status IN ?", []models.JobStatus{models.JobPending, models.JobPlaying}).
		Pluck("guild_id", &ids).Error
	return ids, err
}

// DeleteTerminalJobsBefore removes DONE/FAILED jobs finished before cutoff.
func (s *Store) DeleteTerminalJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.withCtx(ctx).
		Where("status IN ? AND finished_at < ?",
			[]models.JobStatus{models.JobDone, models.JobFailed}, cutoff).
		Delete(&models.PlaybackJob{})
	return result.RowsAffected, result.Error
}
