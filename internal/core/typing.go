// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTypingTimeout is how long a typing signal lives without a refresh
// before the server ends it.
const DefaultTypingTimeout = 5 * time.Second

// TypingSignal is the payload of inbound typing and stop-typing frames.
// The sender is never taken from the payload.
type TypingSignal struct {
	RecipientID    string `json:"recipientId" validate:"required,max=128"`
	ConversationID string `json:"conversationId" validate:"required,max=128"`
}

type typingKey struct {
	sender       string
	recipient    string
	conversation string
}

// TypingRelay forwards typing indicators from a sender to a recipient's
// room. With a positive timeout it also owns an expiry timer per
// (sender, recipient, conversation): typing re-arms it, stop-typing cancels
// it, and expiry relays user-stop-typing on the sender's behalf.
// Relays and expiries for one key are serialized so a recipient never
// observes an expiry after a newer typing signal. Different keys never wait
// on each other, even while an emit is in flight.
type TypingRelay struct {
	emitter Emitter
	timeout time.Duration

	mu      sync.Mutex // guards slots and slot refs
	slots   map[typingKey]*typingSlot
	pending atomic.Int64
	closed  atomic.Bool
}

// typingSlot serializes the signals of one key. refs counts the goroutines
// holding or waiting for mu; a slot without refs or timer is dropped.
type typingSlot struct {
	mu    sync.Mutex
	timer *time.Timer
	refs  int
}

// NewTypingRelay creates a relay emitting through e. A timeout of zero or
// less disables server-side expiry.
func NewTypingRelay(e Emitter, timeout time.Duration) *TypingRelay {
	return &TypingRelay{
		emitter: e,
		timeout: timeout,
		slots:   make(map[typingKey]*typingSlot),
	}
}

// Typing relays user-typing from senderID to the signal's recipient.
// Signals addressed to the sender are ignored.
func (t *TypingRelay) Typing(ctx context.Context, senderID string, sig TypingSignal) {
	if !validSignal(senderID, sig) {
		return
	}
	key := typingKey{sender: senderID, recipient: sig.RecipientID, conversation: sig.ConversationID}

	slot := t.acquire(key)
	defer t.release(key, slot)

	t.stopLocked(slot)
	t.emitter.EmitToUser(ctx, sig.RecipientID, UserTyping{
		UserID:         senderID,
		ConversationID: sig.ConversationID,
	})
	if t.timeout > 0 && !t.closed.Load() {
		t.armLocked(key, slot)
	}
}

// StopTyping relays user-stop-typing from senderID to the signal's
// recipient and cancels any pending expiry.
func (t *TypingRelay) StopTyping(ctx context.Context, senderID string, sig TypingSignal) {
	if !validSignal(senderID, sig) {
		return
	}
	key := typingKey{sender: senderID, recipient: sig.RecipientID, conversation: sig.ConversationID}

	slot := t.acquire(key)
	defer t.release(key, slot)

	t.stopLocked(slot)
	t.emitter.EmitToUser(ctx, sig.RecipientID, UserStopTyping{
		UserID:         senderID,
		ConversationID: sig.ConversationID,
	})
}

// Pending returns the number of armed expiry timers.
func (t *TypingRelay) Pending() int {
	return int(t.pending.Load())
}

// Close stops every pending timer without relaying anything. Later signals
// are still relayed but never expire.
func (t *TypingRelay) Close() {
	t.closed.Store(true)

	t.mu.Lock()
	keys := make([]typingKey, 0, len(t.slots))
	for key := range t.slots {
		keys = append(keys, key)
	}
	t.mu.Unlock()

	for _, key := range keys {
		slot := t.acquire(key)
		t.stopLocked(slot)
		t.release(key, slot)
	}
}

// acquire returns key's slot with its mutex held.
func (t *TypingRelay) acquire(key typingKey) *typingSlot {
	t.mu.Lock()
	slot, ok := t.slots[key]
	if !ok {
		slot = &typingSlot{}
		t.slots[key] = slot
	}
	slot.refs++
	t.mu.Unlock()

	slot.mu.Lock()
	return slot
}

// release unlocks slot, dropping it when nothing else needs it.
func (t *TypingRelay) release(key typingKey, slot *typingSlot) {
	t.mu.Lock()
	slot.refs--
	if slot.refs == 0 && slot.timer == nil {
		delete(t.slots, key)
	}
	t.mu.Unlock()
	slot.mu.Unlock()
}

func (t *TypingRelay) armLocked(key typingKey, slot *typingSlot) {
	var timer *time.Timer
	timer = time.AfterFunc(t.timeout, func() {
		t.expire(key, timer)
	})
	slot.timer = timer
	t.pending.Add(1)
}

func (t *TypingRelay) stopLocked(slot *typingSlot) {
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
		t.pending.Add(-1)
	}
}

// expire runs on the timer goroutine. A timer that was replaced or
// cancelled after it fired finds a different timer in the slot and does
// nothing.
func (t *TypingRelay) expire(key typingKey, timer *time.Timer) {
	slot := t.acquire(key)
	defer t.release(key, slot)

	if slot.timer != timer {
		return
	}
	slot.timer = nil
	t.pending.Add(-1)
	TypingExpired.Inc()
	t.emitter.EmitToUser(context.Background(), key.recipient, UserStopTyping{
		UserID:         key.sender,
		ConversationID: key.conversation,
	})
}

func validSignal(senderID string, sig TypingSignal) bool {
	return senderID != "" &&
		sig.RecipientID != "" &&
		sig.ConversationID != "" &&
		sig.RecipientID != senderID
}
