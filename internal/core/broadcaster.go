// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"log/slog"
	"sync"
)

// DefaultMailboxSize is the send queue length of a room subscription.
const DefaultMailboxSize = 256

// Broadcaster routes envelopes to the mailboxes subscribed to a room.
type Broadcaster struct {
	mu          sync.RWMutex
	rooms       map[string][]chan Envelope
	mailboxSize int
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithMailboxSize sets the buffer length of each subscription.
func WithMailboxSize(n int) BroadcasterOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.mailboxSize = n
		}
	}
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster(opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		rooms:       make(map[string][]chan Envelope),
		mailboxSize: DefaultMailboxSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe joins a new mailbox to room and returns it.
func (b *Broadcaster) Subscribe(room string) chan Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Envelope, b.mailboxSize)
	b.rooms[room] = append(b.rooms[room], ch)
	return ch
}

// Unsubscribe removes ch from room and closes it. Unknown channels are
// ignored so the call is safe to repeat.
func (b *Broadcaster) Unsubscribe(room string, ch chan Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.rooms[room]
	for i, sub := range subs {
		if sub != ch {
			continue
		}
		if len(subs) == 1 {
			delete(b.rooms, room)
		} else {
			rest := make([]chan Envelope, 0, len(subs)-1)
			rest = append(rest, subs[:i]...)
			b.rooms[room] = append(rest, subs[i+1:]...)
		}
		close(ch)
		return
	}
}

// Broadcast queues env on every mailbox in its room without blocking and
// returns how many mailboxes accepted it. A full mailbox misses the event.
func (b *Broadcaster) Broadcast(env Envelope) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.rooms[env.Room] {
		select {
		case ch <- env:
			delivered++
			Deliveries.WithLabelValues(string(env.Event)).Inc()
		default:
			DeliveriesDropped.WithLabelValues(string(env.Event)).Inc()
			slog.Warn("event dropped: mailbox full",
				"room", env.Room,
				"event", string(env.Event),
			)
		}
	}
	return delivered
}

// Rooms returns the number of rooms with at least one member.
func (b *Broadcaster) Rooms() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms)
}
