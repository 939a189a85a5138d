/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler owns playback dispatch: one job plays per guild, the
// highest priority pending work preempts lower priority playback, and stale
// playback is released by a watchdog. All state transitions go through
// conditional store writes, so concurrent passes cannot double-dispatch.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/skald_overlay/internal/events"
	"github.com/friendsincode/skald_overlay/internal/hub"
	"github.com/friendsincode/skald_overlay/internal/media"
	"github.com/friendsincode/skald_overlay/internal/models"
	"github.com/friendsincode/skald_overlay/internal/richtext"
	"github.com/friendsincode/skald_overlay/internal/store"
	"github.com/friendsincode/skald_overlay/internal/telemetry"
	"github.com/rs/zerolog"
)

// RoomSender is the overlay fan-out the scheduler dispatches through.
// Implemented by the hub.
type RoomSender interface {
	RoomSize(guildID string) int
	SendPlay(guildID string, ev hub.PlayEvent)
	SendStop(guildID, jobID, reason string)
}

const maxRemainingMs = int64(24 * time.Hour / time.Millisecond)

// Scheduler drives per-guild playback. Public methods are fire-and-forget;
// work for the same guild runs strictly serialized.
type Scheduler struct {
	store  *store.Store
	rooms  RoomSender
	bus    *events.Bus
	urls   *media.URLBuilder
	logger zerolog.Logger
	tun    Tunables

	tasks *serializer

	timerMu   sync.Mutex
	watchdogs map[string]*time.Timer
	wakes     map[string]*time.Timer
	closed    bool
}

// selectors bias candidate selection within one scheduling pass.
type selectors struct {
	// preferredJobID dispatches this job next if it is still PENDING.
	preferredJobID string
	// justFinished routes to the resume child of a job that just ended.
	justFinished string
}

// New creates a scheduler.
func New(st *store.Store, rooms RoomSender, bus *events.Bus, urls *media.URLBuilder, logger zerolog.Logger, tun Tunables) *Scheduler {
	return &Scheduler{
		store:     st,
		rooms:     rooms,
		bus:       bus,
		urls:      urls,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		tun:       tun,
		tasks:     newSerializer(logger),
		watchdogs: make(map[string]*time.Timer),
		wakes:     make(map[string]*time.Timer),
	}
}

// OnJobEnqueued schedules a dispatch pass for the guild.
func (s *Scheduler) OnJobEnqueued(guildID string) {
	s.tasks.submit(guildID, "enqueue", func() error {
		return s.runGuild(context.Background(), guildID, selectors{})
	})
}

// OnPlaybackState handles an overlay progress report.
func (s *Scheduler) OnPlaybackState(guildID, jobID, state string, remainingMs *int64) {
	s.tasks.submit(guildID, "playback-state", func() error {
		return s.handlePlaybackState(context.Background(), guildID, jobID, state, remainingMs)
	})
}

// OnPlaybackStopped handles an overlay-reported stop. An empty or unknown job
// id releases everything playing for the guild.
func (s *Scheduler) OnPlaybackStopped(guildID, jobID, reason string) {
	s.tasks.submit(guildID, "stopped", func() error {
		return s.handleStopped(context.Background(), guildID, jobID, models.JobDone, "")
	})
}

// OnPlaybackError fails the playing job after a client-side playback error.
func (s *Scheduler) OnPlaybackError(guildID, jobID string) {
	s.tasks.submit(guildID, "playback-error", func() error {
		return s.handleStopped(context.Background(), guildID, jobID, models.JobFailed, "client_error")
	})
}

// OnManualStop stops current playback on operator request. The queue keeps
// draining afterwards.
func (s *Scheduler) OnManualStop(guildID string) {
	s.tasks.submit(guildID, "manual-stop", func() error {
		return s.handleManualStop(context.Background(), guildID)
	})
}

// TriggerMeme enqueues a meme board item at meme priority, preempting current
// playback.
func (s *Scheduler) TriggerMeme(guildID, itemID string) {
	s.tasks.submit(guildID, "meme-trigger", func() error {
		return s.handleMemeTrigger(context.Background(), guildID, itemID)
	})
}

// Bootstrap re-enters every guild queue that has open jobs. Called once on
// startup; a PLAYING row left by a previous process is trusted and watched.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	ids, err := s.store.GuildIDsWithOpenJobs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.OnJobEnqueued(id)
	}
	s.logger.Info().Int("guilds", len(ids)).Msg("scheduler bootstrap complete")
	return nil
}

// Sync blocks until all previously submitted work for the guild has run.
// Test hook.
func (s *Scheduler) Sync(guildID string) {
	<-s.tasks.submit(guildID, "sync", func() error { return nil })
}

// Close stops all timers. In-flight passes finish on their own.
func (s *Scheduler) Close() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.closed = true
	for id, t := range s.watchdogs {
		t.Stop()
		delete(s.watchdogs, id)
	}
	for id, t := range s.wakes {
		t.Stop()
		delete(s.wakes, id)
	}
}

// runGuild is one scheduling pass. Each iteration settles at most one queue
// entry; the loop continues while candidates fail validation or playback goes
// stale.
func (s *Scheduler) runGuild(ctx context.Context, guildID string, sel selectors) error {
	for i := 0; i < s.tun.MaxRunIterations; i++ {
		now := time.Now().UTC()

		playing, err := s.store.FindActivePlayingJob(ctx, guildID)
		if err != nil {
			return err
		}

		if playing != nil {
			deadline := s.staleDeadline(now, playing)
			if now.After(deadline) {
				// The overlay may have played the job to the end and gone
				// silent, so the release is DONE, not FAILED.
				rows, err := s.store.ReleasePlayingJob(ctx, guildID, playing.ID, models.JobDone, now)
				if err != nil {
					return err
				}
				if rows > 0 {
					s.logger.Warn().
						Str("guild", guildID).
						Str("job", playing.ID).
						Time("deadline", deadline).
						Msg("watchdog released stale playback")
					s.rooms.SendStop(guildID, playing.ID, "watchdog")
					s.bus.Publish(events.EventWatchdogFired, events.Payload{
						"guild_id": guildID,
						"job_id":   playing.ID,
					})
					telemetry.WatchdogReleases.WithLabelValues(guildID).Inc()
					s.reanchorRoots(ctx, guildID, now)
				}
				sel.justFinished = playing.ID
				continue
			}

			// A confirmed preempting job suspends playback regardless of
			// relative priority, so a meme can cut off another meme.
			if sel.preferredJobID != "" {
				pre, err := s.store.GetJob(ctx, guildID, sel.preferredJobID)
				if err != nil {
					return err
				}
				if pre != nil && pre.Status == models.JobPending {
					if err := s.preempt(ctx, now, playing, pre.ID); err != nil {
						return err
					}
					continue
				}
				sel.preferredJobID = ""
			}

			// Higher priority pending work preempts.
			roots, err := s.store.ListPendingRoots(ctx, guildID)
			if err != nil {
				return err
			}
			if len(roots) > 0 && roots[0].Priority > playing.Priority {
				if err := s.preempt(ctx, now, playing, roots[0].ID); err != nil {
					return err
				}
				sel.preferredJobID = roots[0].ID
				continue
			}

			// Keep root execution dates queued behind the active playback.
			started := playing.ExecutionDate
			if playing.StartedAt != nil {
				started = *playing.StartedAt
			}
			anchor := started.Add(time.Duration(playing.DurationSec)*time.Second + s.tun.LockPadding)
			if err := s.store.RecomputeRootExecutionDates(ctx, guildID, anchor, s.tun.LockPadding); err != nil {
				s.logger.Warn().Err(err).Str("guild", guildID).Msg("execution date recompute failed")
			}

			s.armWatchdog(guildID, deadline)
			return nil
		}

		candidate, err := s.nextCandidate(ctx, guildID, &sel, now)
		if err != nil {
			return err
		}
		if candidate == nil {
			return s.settleIdle(ctx, guildID)
		}

		ok, err := s.dispatch(ctx, now, candidate)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}

	s.logger.Warn().Str("guild", guildID).Msg("dispatch pass hit iteration cap")
	return nil
}

// nextCandidate picks the job to dispatch. Resume children of the job that
// just finished come first, then an explicitly preferred job, then orphaned
// resume children, then the due root queue.
func (s *Scheduler) nextCandidate(ctx context.Context, guildID string, sel *selectors, now time.Time) (*models.PlaybackJob, error) {
	if sel.justFinished != "" {
		parentID := sel.justFinished
		sel.justFinished = ""
		child, err := s.store.FindResumedChildOf(ctx, guildID, parentID)
		if err != nil {
			return nil, err
		}
		if child != nil {
			return child, nil
		}
	}

	if sel.preferredJobID != "" {
		jobID := sel.preferredJobID
		sel.preferredJobID = ""
		job, err := s.store.GetJob(ctx, guildID, jobID)
		if err != nil {
			return nil, err
		}
		if job != nil && job.Status == models.JobPending {
			return job, nil
		}
	}

	orphans, err := s.store.FindOrphanedResumedChildren(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if len(orphans) > 0 {
		job := orphans[0]
		return &job, nil
	}

	return s.store.FindNextPendingRoot(ctx, guildID, now)
}

// settleIdle handles a pass that found nothing playable right now: either arm
// a wake timer for a future root or clear all guild state.
func (s *Scheduler) settleIdle(ctx context.Context, guildID string) error {
	next, err := s.store.NextPendingRootExecution(ctx, guildID)
	if err != nil {
		return err
	}
	if next != nil {
		s.armWake(guildID, *next)
		return nil
	}

	s.clearTimers(guildID)
	if err := s.store.UpsertGuildBusyUntil(ctx, guildID, nil); err != nil {
		s.logger.Warn().Err(err).Str("guild", guildID).Msg("busy lease clear failed")
	}
	return nil
}

// dispatch promotes the candidate and broadcasts the play event. Returns
// false when the candidate was consumed without playing (failed validation or
// lost the promote race) and the pass should continue.
func (s *Scheduler) dispatch(ctx context.Context, now time.Time, job *models.PlaybackJob) (bool, error) {
	var asset *models.MediaAsset
	if job.MediaAssetID != nil {
		var err error
		asset, err = s.store.GetMediaAsset(ctx, *job.MediaAssetID)
		if err != nil {
			return false, err
		}
		if asset == nil || !asset.IsReady() {
			return false, s.failJob(ctx, now, job, "media_unavailable")
		}
	}

	if s.rooms.RoomSize(job.GuildID) == 0 {
		return false, s.failJob(ctx, now, job, "no_overlay")
	}

	payload := richtext.Decode(job.Text)

	offset := job.ResumeOffsetSec
	legacyOffset := offset == 0 && payload.StartOffsetSec > 0 && asset != nil && asset.Kind != models.MediaImage
	if legacyOffset {
		offset = payload.StartOffsetSec
	}

	duration := job.DurationSec
	if duration < 1 {
		duration = s.tun.DefaultDurationSec
	}
	// A legacy payload offset skips into the media, so the remaining play
	// time shrinks by the same amount.
	if legacyOffset {
		duration -= offset
		if duration < 1 {
			duration = 1
		}
	}

	rows, err := s.store.PromoteToPlaying(ctx, job.GuildID, job.ID, store.PromoteData{
		StartedAt:       now,
		DurationSec:     duration,
		ResumeOffsetSec: offset,
	})
	if err != nil {
		return false, err
	}
	if rows == 0 {
		// The job left PENDING since selection.
		return false, nil
	}

	lease := now.Add(time.Duration(duration)*time.Second + s.tun.LockPadding)
	if err := s.store.UpsertGuildBusyUntil(ctx, job.GuildID, &lease); err != nil {
		s.logger.Warn().Err(err).Str("guild", job.GuildID).Msg("busy lease write failed")
	}

	ev := hub.PlayEvent{
		JobID:          job.ID,
		GuildID:        job.GuildID,
		DurationSec:    duration,
		StartOffsetSec: offset,
		Priority:       job.Priority,
	}
	if asset != nil {
		ev.Media = &hub.PlayMedia{
			AssetID:    asset.ID,
			URL:        s.urls.PlaybackURL(asset.ID, offset),
			Kind:       string(asset.Kind),
			Mime:       asset.Mime,
			Width:      asset.Width,
			Height:     asset.Height,
			IsVertical: asset.IsVertical,
		}
		if err := s.store.TouchMediaAccess(ctx, asset.ID, now); err != nil {
			s.logger.Warn().Err(err).Str("asset", asset.ID).Msg("media access touch failed")
		}
	}
	if job.ShowText || payload.Kind == richtext.KindTweet {
		ev.Text = &hub.PlayText{Body: payload.DisplayText()}
		if payload.Kind == richtext.KindTweet {
			ev.Text.Tweet = payload.Tweet
		}
	}
	if job.AuthorName != nil || job.AuthorImage != nil {
		author := &hub.PlayAuthor{}
		if job.AuthorName != nil {
			author.Name = *job.AuthorName
		}
		if job.AuthorImage != nil {
			author.Image = *job.AuthorImage
		}
		ev.Author = author
	}

	s.rooms.SendPlay(job.GuildID, ev)

	eventType := events.EventJobDispatched
	if !job.IsRoot() {
		eventType = events.EventJobResumed
	}
	s.bus.Publish(eventType, events.Payload{
		"guild_id": job.GuildID,
		"job_id":   job.ID,
		"priority": job.Priority,
	})
	telemetry.JobsDispatched.WithLabelValues(job.GuildID).Inc()

	s.logger.Info().
		Str("guild", job.GuildID).
		Str("job", job.ID).
		Int("duration_sec", duration).
		Int("offset_sec", offset).
		Int("priority", job.Priority).
		Msg("job dispatched")

	s.armWatchdog(job.GuildID, now.Add(time.Duration(duration)*time.Second+s.tun.StaleGrace))

	if err := s.store.RecomputeRootExecutionDates(ctx, job.GuildID, lease, s.tun.LockPadding); err != nil {
		s.logger.Warn().Err(err).Str("guild", job.GuildID).Msg("execution date recompute failed")
	}

	return true, nil
}

func (s *Scheduler) failJob(ctx context.Context, now time.Time, job *models.PlaybackJob, reason string) error {
	rows, err := s.store.FailPendingJob(ctx, job.GuildID, job.ID, now)
	if err != nil {
		return err
	}
	if rows > 0 {
		s.logger.Warn().
			Str("guild", job.GuildID).
			Str("job", job.ID).
			Str("reason", reason).
			Msg("job failed before dispatch")
		s.bus.Publish(events.EventJobFailed, events.Payload{
			"guild_id": job.GuildID,
			"job_id":   job.ID,
			"reason":   reason,
		})
		telemetry.JobsFailed.WithLabelValues(job.GuildID, reason).Inc()
	}
	return nil
}

// preempt suspends the playing job as the resume child of the preempting one.
// A job with nothing left to play is finished instead of suspended.
func (s *Scheduler) preempt(ctx context.Context, now time.Time, playing *models.PlaybackJob, preemptingID string) error {
	remainingMs := s.estimateRemainingMs(now, playing)
	remainingSec := int((remainingMs + 999) / 1000)

	if remainingSec < 1 {
		rows, err := s.store.ReleasePlayingJob(ctx, playing.GuildID, playing.ID, models.JobDone, now)
		if err != nil {
			return err
		}
		if rows > 0 {
			s.bus.Publish(events.EventJobFinished, events.Payload{
				"guild_id": playing.GuildID,
				"job_id":   playing.ID,
			})
		}
		return nil
	}

	elapsedSec := playing.DurationSec - remainingSec
	if elapsedSec < 0 {
		elapsedSec = 0
	}

	rows, err := s.store.SuspendForPreemption(ctx, playing.GuildID, playing.ID, store.SuspendData{
		RemainingSec:    remainingSec,
		PreemptingJobID: preemptingID,
		NextOffsetSec:   playing.ResumeOffsetSec + elapsedSec,
		ExecutionDate:   now,
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		// Already stopped on its own.
		return nil
	}

	s.rooms.SendStop(playing.GuildID, playing.ID, "preempted")
	s.bus.Publish(events.EventJobPreempted, events.Payload{
		"guild_id":      playing.GuildID,
		"job_id":        playing.ID,
		"preempted_by":  preemptingID,
		"remaining_sec": remainingSec,
	})
	telemetry.JobsPreempted.WithLabelValues(playing.GuildID).Inc()

	s.logger.Info().
		Str("guild", playing.GuildID).
		Str("job", playing.ID).
		Str("preempted_by", preemptingID).
		Int("remaining_sec", remainingSec).
		Msg("job preempted")
	return nil
}

func (s *Scheduler) handlePlaybackState(ctx context.Context, guildID, jobID, state string, remainingMs *int64) error {
	now := time.Now().UTC()

	playing, err := s.store.FindActivePlayingJob(ctx, guildID)
	if err != nil {
		return err
	}
	if playing == nil {
		return nil
	}
	if jobID != "" && jobID != playing.ID {
		// Stale report from a previous job.
		return nil
	}

	if state == "ended" {
		rows, err := s.store.ReleasePlayingJob(ctx, guildID, playing.ID, models.JobDone, now)
		if err != nil {
			return err
		}
		if rows > 0 {
			s.bus.Publish(events.EventJobFinished, events.Payload{
				"guild_id": guildID,
				"job_id":   playing.ID,
			})
			s.reanchorRoots(ctx, guildID, now)
		}
		s.clearWatchdog(guildID)
		return s.runGuild(ctx, guildID, selectors{justFinished: playing.ID})
	}

	// Unknown states count as still playing.
	var clamped *int64
	if remainingMs != nil {
		v := *remainingMs
		if v < 0 {
			v = 0
		}
		if v > maxRemainingMs {
			v = maxRemainingMs
		}
		clamped = &v
	}
	if err := s.store.UpdatePlaybackSnapshot(ctx, guildID, playing.ID, clamped, now); err != nil {
		return err
	}

	ext := s.tun.MinBusyLock
	if clamped != nil {
		if rem := time.Duration(*clamped) * time.Millisecond; rem > ext {
			ext = rem
		}
	}
	lease := now.Add(ext + s.tun.LockPadding)
	if err := s.store.UpsertGuildBusyUntil(ctx, guildID, &lease); err != nil {
		s.logger.Warn().Err(err).Str("guild", guildID).Msg("busy lease write failed")
	}

	s.armWatchdog(guildID, now.Add(ext+s.tun.StaleGrace))
	return nil
}

// handleStopped releases playback after an overlay stop or error. A known job
// id releases just that job; an empty or unknown id releases everything
// playing for the guild.
func (s *Scheduler) handleStopped(ctx context.Context, guildID, jobID string, terminal models.JobStatus, failReason string) error {
	now := time.Now().UTC()
	sel := selectors{}

	targeted := false
	if jobID != "" {
		job, err := s.store.GetJob(ctx, guildID, jobID)
		if err != nil {
			return err
		}
		targeted = job != nil
	}

	var released int64
	var err error
	if targeted {
		released, err = s.store.ReleasePlayingJob(ctx, guildID, jobID, terminal, now)
	} else {
		released, err = s.store.ReleaseAllPlaying(ctx, guildID, terminal, now)
	}
	if err != nil {
		return err
	}
	if targeted && released > 0 {
		// Only a job that actually left PLAYING unlocks its resume child.
		sel.justFinished = jobID
	}

	if released > 0 {
		if terminal == models.JobFailed {
			s.bus.Publish(events.EventJobFailed, events.Payload{
				"guild_id": guildID,
				"job_id":   jobID,
				"reason":   failReason,
			})
			telemetry.JobsFailed.WithLabelValues(guildID, failReason).Inc()
		} else {
			s.bus.Publish(events.EventJobFinished, events.Payload{
				"guild_id": guildID,
				"job_id":   jobID,
			})
		}
		s.reanchorRoots(ctx, guildID, now)
	}

	s.clearWatchdog(guildID)
	return s.runGuild(ctx, guildID, sel)
}

func (s *Scheduler) handleManualStop(ctx context.Context, guildID string) error {
	now := time.Now().UTC()

	released, err := s.store.ReleaseAllPlaying(ctx, guildID, models.JobDone, now)
	if err != nil {
		return err
	}
	if released > 0 {
		s.rooms.SendStop(guildID, "", "manual-stop")
		s.bus.Publish(events.EventJobFinished, events.Payload{
			"guild_id": guildID,
			"manual":   true,
		})
	}
	s.reanchorRoots(ctx, guildID, now)

	s.clearWatchdog(guildID)
	if err := s.store.UpsertGuildBusyUntil(ctx, guildID, nil); err != nil {
		s.logger.Warn().Err(err).Str("guild", guildID).Msg("busy lease clear failed")
	}
	return s.runGuild(ctx, guildID, selectors{})
}

func (s *Scheduler) handleMemeTrigger(ctx context.Context, guildID, itemID string) error {
	item, err := s.store.FindMemeBoardItem(ctx, guildID, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		s.logger.Warn().Str("guild", guildID).Str("item", itemID).Msg("unknown meme board item")
		return nil
	}

	asset, err := s.store.GetMediaAsset(ctx, item.MediaAssetID)
	if err != nil {
		return err
	}
	if asset == nil || !asset.IsReady() {
		s.logger.Warn().Str("guild", guildID).Str("item", itemID).Msg("meme asset not playable")
		return nil
	}

	guild, err := s.store.EnsureGuild(ctx, guildID, s.tun.DefaultDurationSec)
	if err != nil {
		return err
	}

	duration := s.tun.DefaultDurationSec
	if asset.DurationSec != nil && *asset.DurationSec > 0 {
		duration = *asset.DurationSec
	}
	if guild.MaxMediaTime != nil && duration > *guild.MaxMediaTime {
		duration = *guild.MaxMediaTime
	}

	job, err := s.store.CreateJob(ctx, store.CreateJobArgs{
		GuildID:      guildID,
		MediaAssetID: &item.MediaAssetID,
		Text:         item.Text,
		ShowText:     item.Text != "",
		DurationSec:  duration,
		Priority:     s.tun.MemePriority,
	})
	if err != nil {
		return err
	}

	return s.runGuild(ctx, guildID, selectors{preferredJobID: job.ID})
}

// reanchorRoots pulls pending root execution dates back to now after playback
// releases, so the queue is immediately due again.
func (s *Scheduler) reanchorRoots(ctx context.Context, guildID string, now time.Time) {
	if err := s.store.RecomputeRootExecutionDates(ctx, guildID, now, s.tun.LockPadding); err != nil {
		s.logger.Warn().Err(err).Str("guild", guildID).Msg("execution date recompute failed")
	}
}

// staleDeadline is the instant past which a PLAYING job counts as stuck. A
// fresh remaining-time snapshot beats the wall-clock projection.
func (s *Scheduler) staleDeadline(now time.Time, j *models.PlaybackJob) time.Time {
	started := j.ExecutionDate
	if j.StartedAt != nil {
		started = *j.StartedAt
	}
	expectedEnd := started.Add(time.Duration(j.DurationSec) * time.Second)

	if j.RemainingMsSnapshot != nil && j.LastPlaybackStateAt != nil &&
		now.Sub(*j.LastPlaybackStateAt) <= s.tun.SnapshotMaxAge {
		expectedEnd = j.LastPlaybackStateAt.Add(time.Duration(*j.RemainingMsSnapshot) * time.Millisecond)
	}
	return expectedEnd.Add(s.tun.StaleGrace)
}

// estimateRemainingMs returns how much playback time the job has left, from a
// fresh snapshot when available, otherwise from the clock.
func (s *Scheduler) estimateRemainingMs(now time.Time, j *models.PlaybackJob) int64 {
	if j.RemainingMsSnapshot != nil && j.LastPlaybackStateAt != nil &&
		now.Sub(*j.LastPlaybackStateAt) <= s.tun.SnapshotMaxAge {
		ms := *j.RemainingMsSnapshot - now.Sub(*j.LastPlaybackStateAt).Milliseconds()
		if ms < 0 {
			ms = 0
		}
		return ms
	}

	started := j.ExecutionDate
	if j.StartedAt != nil {
		started = *j.StartedAt
	}
	ms := int64(j.DurationSec)*1000 - now.Sub(started).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return ms
}

func (s *Scheduler) armWatchdog(guildID string, at time.Time) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.closed {
		return
	}
	if t := s.watchdogs[guildID]; t != nil {
		t.Stop()
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	s.watchdogs[guildID] = time.AfterFunc(d, func() {
		s.tasks.submit(guildID, "watchdog", func() error {
			return s.runGuild(context.Background(), guildID, selectors{})
		})
	})
}

func (s *Scheduler) armWake(guildID string, at time.Time) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.closed {
		return
	}
	if t := s.wakes[guildID]; t != nil {
		t.Stop()
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	s.wakes[guildID] = time.AfterFunc(d, func() {
		s.tasks.submit(guildID, "wake", func() error {
			return s.runGuild(context.Background(), guildID, selectors{})
		})
	})
}

func (s *Scheduler) clearWatchdog(guildID string) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if t := s.watchdogs[guildID]; t != nil {
		t.Stop()
		delete(s.watchdogs, guildID)
	}
}

func (s *Scheduler) clearTimers(guildID string) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if t := s.watchdogs[guildID]; t != nil {
		t.Stop()
		delete(s.watchdogs, guildID)
	}
	if t := s.wakes[guildID]; t != nil {
		t.Stop()
		delete(s.wakes, guildID)
	}
}
