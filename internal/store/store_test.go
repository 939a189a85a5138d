/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"testing"
	"time"

	"github.com/friendsincode/skald_overlay/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	err = db.AutoMigrate(
		&models.Guild{},
		&models.MediaAsset{},
		&models.PlaybackJob{},
		&models.OverlayClient{},
		&models.MemeBoardItem{},
		&models.PairingCode{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}

	return New(db)
}

func mustCreateJob(t *testing.T, s *Store, args CreateJobArgs) *models.PlaybackJob {
	t.Helper()
	job, err := s.CreateJob(t.Context(), args)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func mustPromote(t *testing.T, s *Store, job *models.PlaybackJob, at time.Time) {
	t.Helper()
	rows, err := s.PromoteToPlaying(t.Context(), job.GuildID, job.ID, PromoteData{
		StartedAt:       at,
		DurationSec:     job.DurationSec,
		ResumeOffsetSec: job.ResumeOffsetSec,
	})
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if rows != 1 {
		t.Fatalf("promote affected %d rows, want 1", rows)
	}
}
