/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// serializer runs tasks for the same guild strictly in submission order while
// letting different guilds progress in parallel. Each guild gets a drain
// goroutine that exits when its queue empties, so idle guilds cost nothing.
type serializer struct {
	logger zerolog.Logger

	mu      sync.Mutex
	queues  map[string][]queuedTask
	running map[string]bool
}

type queuedTask struct {
	name string
	fn   func() error
	done chan error
}

func newSerializer(logger zerolog.Logger) *serializer {
	return &serializer{
		logger:  logger.With().Str("component", "serializer").Logger(),
		queues:  make(map[string][]queuedTask),
		running: make(map[string]bool),
	}
}

// submit enqueues a task for the guild and returns a channel that receives the
// task's result. A task failure is logged and does not poison the queue.
func (s *serializer) submit(guildID, name string, fn func() error) <-chan error {
	task := queuedTask{name: name, fn: fn, done: make(chan error, 1)}

	s.mu.Lock()
	s.queues[guildID] = append(s.queues[guildID], task)
	if !s.running[guildID] {
		s.running[guildID] = true
		go s.drain(guildID)
	}
	s.mu.Unlock()

	return task.done
}

func (s *serializer) drain(guildID string) {
	for {
		s.mu.Lock()
		queue := s.queues[guildID]
		if len(queue) == 0 {
			delete(s.queues, guildID)
			delete(s.running, guildID)
			s.mu.Unlock()
			return
		}
		task := queue[0]
		s.queues[guildID] = queue[1:]
		s.mu.Unlock()

		s.run(guildID, task)
	}
}

func (s *serializer) run(guildID string, task queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task panic: %v", r)
			s.logger.Error().Str("guild", guildID).Str("task", task.name).Msg(err.Error())
			task.done <- err
		}
	}()

	err := task.fn()
	if err != nil {
		s.logger.Error().Err(err).Str("guild", guildID).Str("task", task.name).Msg("scheduler task failed")
	}
	task.done <- err
}
