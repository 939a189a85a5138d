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

func TestCreateJobValidation(t *testing.T) {
	s := setupTestStore(t)

	if _, err := s.CreateJob(t.Context(), CreateJobArgs{DurationSec: 5}); err == nil {
		t.Error("expected error for missing guild id")
	}
	if _, err := s.CreateJob(t.Context(), CreateJobArgs{GuildID: "g1", DurationSec: 0}); err == nil {
		t.Error("expected error for zero duration")
	}

	job := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "hello", DurationSec: 5})
	if job.Status != models.JobPending {
		t.Errorf("new job status = %s, want PENDING", job.Status)
	}
	if job.ID == "" {
		t.Error("new job has no id")
	}
	if !job.IsRoot() {
		t.Error("new job should be a root")
	}
}

func TestFindNextPendingRootOrdering(t *testing.T) {
	s := setupTestStore(t)

	// Same priority resolves by submission order, higher priority wins
	// regardless of age.
	first := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "a", DurationSec: 5})
	time.Sleep(2 * time.Millisecond)
	mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "b", DurationSec: 5})
	time.Sleep(2 * time.Millisecond)
	urgent := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "c", DurationSec: 5, Priority: 50})

	next, err := s.FindNextPendingRoot(t.Context(), "g1", time.Now().UTC())
	if err != nil {
		t.Fatalf("find next: %v", err)
	}
	if next == nil || next.ID != urgent.ID {
		t.Fatalf("next root = %+v, want urgent job %s", next, urgent.ID)
	}

	if rows, err := s.FailPendingJob(t.Context(), "g1", urgent.ID, time.Now().UTC()); err != nil || rows != 1 {
		t.Fatalf("fail urgent: rows=%d err=%v", rows, err)
	}

	next, err = s.FindNextPendingRoot(t.Context(), "g1", time.Now().UTC())
	if err != nil {
		t.Fatalf("find next: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("next root after urgent gone = %+v, want oldest job %s", next, first.ID)
	}
}

func TestFindNextPendingRootHonorsExecutionDate(t *testing.T) {
	s := setupTestStore(t)

	job := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "later", DurationSec: 5})

	future := time.Now().UTC().Add(time.Hour)
	err := s.db.Model(&models.PlaybackJob{}).Where("id = ?", job.ID).
		Update("execution_date", future).Error
	if err != nil {
		t.Fatalf("set execution date: %v", err)
	}

	next, err := s.FindNextPendingRoot(t.Context(), "g1", time.Now().UTC())
	if err != nil {
		t.Fatalf("find next: %v", err)
	}
	if next != nil {
		t.Errorf("got job %s before its execution date", next.ID)
	}

	at, err := s.NextPendingRootExecution(t.Context(), "g1")
	if err != nil {
		t.Fatalf("next execution: %v", err)
	}
	if at == nil || !at.Equal(future) {
		t.Errorf("next execution = %v, want %v", at, future)
	}
}

func TestPromoteToPlayingConditional(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	job := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "x", DurationSec: 10})
	mustPromote(t, s, job, now)

	// A second promote must not fire: the row already left PENDING.
	rows, err := s.PromoteToPlaying(t.Context(), "g1", job.ID, PromoteData{StartedAt: now, DurationSec: 10})
	if err != nil {
		t.Fatalf("second promote: %v", err)
	}
	if rows != 0 {
		t.Errorf("second promote affected %d rows, want 0", rows)
	}

	playing, err := s.FindActivePlayingJob(t.Context(), "g1")
	if err != nil {
		t.Fatalf("find playing: %v", err)
	}
	if playing == nil || playing.ID != job.ID {
		t.Fatalf("playing = %+v, want %s", playing, job.ID)
	}
	if playing.StartedAt == nil {
		t.Error("promoted job has no started_at")
	}
	if playing.RemainingMsSnapshot != nil || playing.LastPlaybackStateAt != nil {
		t.Error("promote should clear playback snapshot fields")
	}
}

func TestSuspendForPreemption(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	job := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "long", DurationSec: 60})
	mustPromote(t, s, job, now)

	rows, err := s.SuspendForPreemption(t.Context(), "g1", job.ID, SuspendData{
		RemainingSec:    20,
		PreemptingJobID: "meme-job",
		NextOffsetSec:   40,
		ExecutionDate:   now,
	})
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if rows != 1 {
		t.Fatalf("suspend affected %d rows, want 1", rows)
	}

	child, err := s.GetJob(t.Context(), "g1", job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if child.Status != models.JobPending {
		t.Errorf("suspended status = %s, want PENDING", child.Status)
	}
	if child.DurationSec != 20 {
		t.Errorf("suspended duration = %d, want remaining 20", child.DurationSec)
	}
	if child.ResumeOffsetSec != 40 {
		t.Errorf("suspended offset = %d, want 40", child.ResumeOffsetSec)
	}
	if child.ResumesAfterJobID == nil || *child.ResumesAfterJobID != "meme-job" {
		t.Errorf("resumes_after = %v, want meme-job", child.ResumesAfterJobID)
	}
	if child.StartedAt != nil {
		t.Error("suspended job still has started_at")
	}

	// Already suspended, nothing left to suspend.
	rows, err = s.SuspendForPreemption(t.Context(), "g1", job.ID, SuspendData{RemainingSec: 5, PreemptingJobID: "other"})
	if err != nil {
		t.Fatalf("second suspend: %v", err)
	}
	if rows != 0 {
		t.Errorf("second suspend affected %d rows, want 0", rows)
	}
}

func TestResumedChildGatedBehindParent(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	parent := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "parent", DurationSec: 10, Priority: 50})
	suspended := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "suspended", DurationSec: 60})
	mustPromote(t, s, suspended, now)
	if _, err := s.SuspendForPreemption(t.Context(), "g1", suspended.ID, SuspendData{
		RemainingSec: 30, PreemptingJobID: parent.ID, NextOffsetSec: 30, ExecutionDate: now,
	}); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	// The child must not surface as a root.
	next, err := s.FindNextPendingRoot(t.Context(), "g1", now.Add(time.Second))
	if err != nil {
		t.Fatalf("find next: %v", err)
	}
	if next == nil || next.ID != parent.ID {
		t.Fatalf("next root = %+v, want parent %s", next, parent.ID)
	}

	// Parent still pending: no orphans yet.
	orphans, err := s.FindOrphanedResumedChildren(t.Context(), "g1")
	if err != nil {
		t.Fatalf("orphans: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("got %d orphans with live parent, want 0", len(orphans))
	}

	child, err := s.FindResumedChildOf(t.Context(), "g1", parent.ID)
	if err != nil {
		t.Fatalf("find child: %v", err)
	}
	if child == nil || child.ID != suspended.ID {
		t.Fatalf("child = %+v, want %s", child, suspended.ID)
	}
}

func TestFindOrphanedResumedChildren(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	// Child whose parent reached DONE.
	parent := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "p", DurationSec: 5})
	mustPromote(t, s, parent, now)
	doneChild := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "c1", DurationSec: 30})
	mustPromote(t, s, doneChild, now)
	if _, err := s.SuspendForPreemption(t.Context(), "g1", doneChild.ID, SuspendData{
		RemainingSec: 10, PreemptingJobID: parent.ID, NextOffsetSec: 20, ExecutionDate: now,
	}); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if _, err := s.ReleasePlayingJob(t.Context(), "g1", parent.ID, models.JobDone, now); err != nil {
		t.Fatalf("release parent: %v", err)
	}

	// Child whose parent row is gone entirely. Higher priority, so it must
	// come back first despite being younger.
	lostChild := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "c2", DurationSec: 30, Priority: 5})
	mustPromote(t, s, lostChild, now)
	if _, err := s.SuspendForPreemption(t.Context(), "g1", lostChild.ID, SuspendData{
		RemainingSec: 10, PreemptingJobID: "vanished", NextOffsetSec: 0, ExecutionDate: now,
	}); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	orphans, err := s.FindOrphanedResumedChildren(t.Context(), "g1")
	if err != nil {
		t.Fatalf("orphans: %v", err)
	}
	if len(orphans) != 2 {
		t.Fatalf("got %d orphans, want 2", len(orphans))
	}
	if orphans[0].ID != lostChild.ID || orphans[1].ID != doneChild.ID {
		t.Errorf("orphan order = [%s %s], want priority first [%s %s]",
			orphans[0].ID, orphans[1].ID, lostChild.ID, doneChild.ID)
	}
}

func TestReleaseAllPlaying(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	job := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "x", DurationSec: 10})
	mustPromote(t, s, job, now)
	other := mustCreateJob(t, s, CreateJobArgs{GuildID: "g2", Text: "y", DurationSec: 10})
	mustPromote(t, s, other, now)

	rows, err := s.ReleaseAllPlaying(t.Context(), "g1", models.JobDone, now)
	if err != nil {
		t.Fatalf("release all: %v", err)
	}
	if rows != 1 {
		t.Errorf("released %d rows, want 1", rows)
	}

	// The other guild is untouched.
	playing, err := s.FindActivePlayingJob(t.Context(), "g2")
	if err != nil {
		t.Fatalf("find playing g2: %v", err)
	}
	if playing == nil {
		t.Error("g2 playback should survive a g1 release")
	}
}

func TestUpdatePlaybackSnapshot(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	job := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "x", DurationSec: 30})
	mustPromote(t, s, job, now)

	remaining := int64(12_000)
	if err := s.UpdatePlaybackSnapshot(t.Context(), "g1", job.ID, &remaining, now); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	got, err := s.GetJob(t.Context(), "g1", job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RemainingMsSnapshot == nil || *got.RemainingMsSnapshot != remaining {
		t.Errorf("snapshot = %v, want %d", got.RemainingMsSnapshot, remaining)
	}
	if got.LastPlaybackStateAt == nil {
		t.Error("snapshot timestamp not written")
	}
}

func TestRecomputeRootExecutionDates(t *testing.T) {
	s := setupTestStore(t)

	a := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "a", DurationSec: 10})
	time.Sleep(2 * time.Millisecond)
	b := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "b", DurationSec: 20})

	anchor := time.Now().UTC().Add(time.Minute)
	padding := time.Second
	if err := s.RecomputeRootExecutionDates(t.Context(), "g1", anchor, padding); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	gotA, _ := s.GetJob(t.Context(), "g1", a.ID)
	gotB, _ := s.GetJob(t.Context(), "g1", b.ID)

	if !gotA.ExecutionDate.Equal(anchor) {
		t.Errorf("first root execution = %v, want anchor %v", gotA.ExecutionDate, anchor)
	}
	wantB := anchor.Add(10*time.Second + padding)
	if !gotB.ExecutionDate.Equal(wantB) {
		t.Errorf("second root execution = %v, want %v", gotB.ExecutionDate, wantB)
	}
}

func TestGuildIDsWithOpenJobs(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "a", DurationSec: 5})
	done := mustCreateJob(t, s, CreateJobArgs{GuildID: "g2", Text: "b", DurationSec: 5})
	mustPromote(t, s, done, now)
	if _, err := s.ReleasePlayingJob(t.Context(), "g2", done.ID, models.JobDone, now); err != nil {
		t.Fatalf("release: %v", err)
	}

	ids, err := s.GuildIDsWithOpenJobs(t.Context())
	if err != nil {
		t.Fatalf("guild ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "g1" {
		t.Errorf("open guilds = %v, want [g1]", ids)
	}
}

func TestDeleteTerminalJobsBefore(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()

	old := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "old", DurationSec: 5})
	mustPromote(t, s, old, now.Add(-2*time.Hour))
	if _, err := s.ReleasePlayingJob(t.Context(), "g1", old.ID, models.JobDone, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("release: %v", err)
	}

	fresh := mustCreateJob(t, s, CreateJobArgs{GuildID: "g1", Text: "fresh", DurationSec: 5})
	mustPromote(t, s, fresh, now)
	if _, err := s.ReleasePlayingJob(t.Context(), "g1", fresh.ID, models.JobDone, now); err != nil {
		t.Fatalf("release: %v", err)
	}

	deleted, err := s.DeleteTerminalJobsBefore(t.Context(), now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d jobs, want 1", deleted)
	}

	if got, _ := s.GetJob(t.Context(), "g1", fresh.ID); got == nil {
		t.Error("recent terminal job should survive retention")
	}
}
