// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"context"
	"sync"
)

type emission struct {
	userID string
	event  Event
}

// recordingEmitter captures emissions in order.
type recordingEmitter struct {
	mu   sync.Mutex
	sent []emission
}

func (r *recordingEmitter) EmitToUser(_ context.Context, userID string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, emission{userID: userID, event: ev})
}

func (r *recordingEmitter) EmitToMultipleUsers(ctx context.Context, userIDs []string, ev Event) {
	for _, id := range userIDs {
		r.EmitToUser(ctx, id, ev)
	}
}

func (r *recordingEmitter) emissions() []emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]emission, len(r.sent))
	copy(out, r.sent)
	return out
}
