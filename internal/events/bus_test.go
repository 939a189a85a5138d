/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventJobDispatched)

	bus.Publish(EventJobDispatched, Payload{"guild_id": "g1"})

	select {
	case payload := <-sub:
		if payload["guild_id"] != "g1" {
			t.Errorf("payload = %v", payload)
		}
	default:
		t.Fatal("subscriber received nothing")
	}
}

func TestPublishIsTypeScoped(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventJobFinished)

	bus.Publish(EventJobDispatched, Payload{"guild_id": "g1"})

	select {
	case payload := <-sub:
		t.Fatalf("subscriber got %v for another event type", payload)
	default:
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventJobDispatched)

	// Twice the channel capacity; Publish must never block.
	for i := 0; i < cap(sub)*2; i++ {
		bus.Publish(EventJobDispatched, Payload{"i": i})
	}

	if got := len(sub); got != cap(sub) {
		t.Errorf("buffered = %d, want full capacity %d", got, cap(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventJobDispatched)
	bus.Unsubscribe(EventJobDispatched, sub)

	if _, open := <-sub; open {
		t.Error("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	bus.Publish(EventJobDispatched, Payload{"guild_id": "g1"})
}
