/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"time"

	"github.com/friendsincode/skald_overlay/internal/store"
	"github.com/friendsincode/skald_overlay/internal/telemetry"
	"github.com/rs/zerolog"
)

const purgeInterval = time.Minute

// Purger removes terminal jobs past retention and expired media assets.
type Purger struct {
	store        *store.Store
	logger       zerolog.Logger
	jobRetention time.Duration
}

// NewPurger creates the retention worker.
func NewPurger(st *store.Store, logger zerolog.Logger, jobRetention time.Duration) *Purger {
	return &Purger{
		store:        st,
		logger:       logger.With().Str("component", "purger").Logger(),
		jobRetention: jobRetention,
	}
}

// Run loops until the context is cancelled. Errors are logged, never fatal.
func (p *Purger) Run(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	p.logger.Info().Dur("job_retention", p.jobRetention).Msg("purge worker started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("purge worker stopped")
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Purger) sweep(ctx context.Context) {
	now := time.Now().UTC()

	jobs, err := p.store.DeleteTerminalJobsBefore(ctx, now.Add(-p.jobRetention))
	if err != nil {
		p.logger.Error().Err(err).Msg("job purge failed")
	} else if jobs > 0 {
		telemetry.PurgedJobs.Add(float64(jobs))
		p.logger.Debug().Int64("jobs", jobs).Msg("purged terminal jobs")
	}

	assets, err := p.store.DeleteExpiredAssets(ctx, now)
	if err != nil {
		p.logger.Error().Err(err).Msg("asset purge failed")
	} else if assets > 0 {
		telemetry.PurgedAssets.Add(float64(assets))
		p.logger.Debug().Int64("assets", assets).Msg("purged expired assets")
	}
}
