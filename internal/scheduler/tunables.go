/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"time"

	"github.com/friendsincode/skald_overlay/internal/config"
)

// Tunables are the scheduler's timing knobs. Production uses the defaults;
// integration tests shrink them to keep runs fast.
type Tunables struct {
	// LockPadding is the slack added between consecutive jobs when projecting
	// root execution dates and busy leases.
	LockPadding time.Duration

	// StaleGrace is how far past its expected end a PLAYING job may run before
	// the watchdog releases it.
	StaleGrace time.Duration

	// MinBusyLock is the floor for busy lease extensions driven by playback
	// state reports.
	MinBusyLock time.Duration

	// SnapshotMaxAge bounds how old a remaining-time snapshot may be before
	// preemption falls back to wall-clock estimation.
	SnapshotMaxAge time.Duration

	// MaxRunIterations caps the dispatch loop per scheduling pass. Each
	// iteration consumes at most one queue entry, so the cap only matters when
	// a long run of jobs fails validation back to back.
	MaxRunIterations int

	// MemePriority is the priority assigned to meme board triggers.
	MemePriority int

	// DefaultDurationSec is the fallback playback duration.
	DefaultDurationSec int
}

// DefaultTunables returns production defaults.
func DefaultTunables() Tunables {
	return Tunables{
		LockPadding:        250 * time.Millisecond,
		StaleGrace:         10 * time.Second,
		MinBusyLock:        5 * time.Second,
		SnapshotMaxAge:     15 * time.Second,
		MaxRunIterations:   25,
		MemePriority:       100,
		DefaultDurationSec: 10,
	}
}

// TunablesFromConfig maps process configuration onto scheduler tunables.
func TunablesFromConfig(cfg *config.Config) Tunables {
	t := DefaultTunables()
	t.LockPadding = cfg.LockPadding
	t.StaleGrace = cfg.StaleGrace
	t.MinBusyLock = cfg.MinBusyLock
	t.SnapshotMaxAge = cfg.SnapshotMaxAge
	t.DefaultDurationSec = cfg.DefaultDurationSec
	return t
}
