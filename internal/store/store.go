/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store is the durable record of jobs, media assets, guilds, and
// overlay clients. The scheduler uses it both as queue and as state machine:
// every state transition is a conditional row update, and zero affected rows
// means the state already moved, never an error.
package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Store wraps the database with row-level atomic operations.
type Store struct {
	db *gorm.DB
}

// New constructs a store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying gorm handle for wiring and tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// notFoundAsNil converts gorm's record-not-found into a nil result.
func notFoundAsNil(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (s *Store) withCtx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
