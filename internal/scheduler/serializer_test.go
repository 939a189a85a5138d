/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSerializerRunsInSubmissionOrder(t *testing.T) {
	s := newSerializer(zerolog.Nop())

	var mu sync.Mutex
	var order []int
	var dones []<-chan error

	for i := range 20 {
		dones = append(dones, s.submit("g1", "task", func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	for _, done := range dones {
		<-done
	}

	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d, want %d", i, got, i)
		}
	}
}

func TestSerializerGuildsRunConcurrently(t *testing.T) {
	s := newSerializer(zerolog.Nop())

	g1Started := make(chan struct{})
	release := make(chan struct{})

	s.submit("g1", "block", func() error {
		close(g1Started)
		<-release
		return nil
	})
	<-g1Started

	// g2 must not wait behind g1's blocked task.
	done := s.submit("g2", "fast", func() error { return nil })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("g2 task blocked behind another guild")
	}

	close(release)
}

func TestSerializerErrorDoesNotPoisonQueue(t *testing.T) {
	s := newSerializer(zerolog.Nop())

	boom := errors.New("boom")
	failDone := s.submit("g1", "fail", func() error { return boom })

	ran := false
	okDone := s.submit("g1", "after", func() error {
		ran = true
		return nil
	})

	if err := <-failDone; !errors.Is(err, boom) {
		t.Errorf("failed task returned %v, want boom", err)
	}
	if err := <-okDone; err != nil {
		t.Errorf("follow-up task returned %v", err)
	}
	if !ran {
		t.Error("follow-up task did not run after a failure")
	}
}

func TestSerializerPanicIsRecovered(t *testing.T) {
	s := newSerializer(zerolog.Nop())

	panicDone := s.submit("g1", "panic", func() error { panic("kaput") })
	okDone := s.submit("g1", "after", func() error { return nil })

	if err := <-panicDone; err == nil {
		t.Error("panicking task returned nil error")
	}
	if err := <-okDone; err != nil {
		t.Errorf("follow-up task returned %v", err)
	}
}

func TestSerializerIdleGuildsShutDown(t *testing.T) {
	s := newSerializer(zerolog.Nop())

	<-s.submit("g1", "once", func() error { return nil })

	// The drain goroutine removes its bookkeeping when the queue empties.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		idle := !s.running["g1"] && len(s.queues["g1"]) == 0
		s.mu.Unlock()
		if idle {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("drain goroutine never shut down")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
