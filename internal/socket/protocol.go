// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/chirpx/realtime/internal/core"
)

// handleFrame processes one inbound frame from senderID. Frames that cannot
// be decoded, fail validation or name an unknown event are dropped; the
// protocol has no channel to report them on. It returns the outcome
// recorded in the inbound frames metric.
func (s *Server) handleFrame(ctx context.Context, senderID string, data []byte) string {
	var frame core.Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		return s.recordFrame(ctx, "", statusMalformed, senderID)
	}

	switch frame.Event {
	case core.EventTyping, core.EventStopTyping:
		var sig core.TypingSignal
		if err := json.Unmarshal(frame.Data, &sig); err != nil {
			return s.recordFrame(ctx, frame.Event, statusMalformed, senderID)
		}
		if err := s.validate.Struct(sig); err != nil {
			return s.recordFrame(ctx, frame.Event, statusInvalid, senderID)
		}
		if frame.Event == core.EventTyping {
			s.typing.Typing(ctx, senderID, sig)
		} else {
			s.typing.StopTyping(ctx, senderID, sig)
		}
		return s.recordFrame(ctx, frame.Event, statusOK, senderID)
	default:
		return s.recordFrame(ctx, frame.Event, statusUnknown, senderID)
	}
}

func (s *Server) recordFrame(ctx context.Context, event core.EventName, status, senderID string) string {
	label := string(event)
	if status == statusUnknown || label == "" {
		// client-chosen names stay out of metric labels
		label = "unknown"
	}
	InboundFrames.WithLabelValues(label, status).Inc()
	if status != statusOK {
		slog.DebugContext(ctx, "inbound frame ignored",
			"user_id", senderID,
			"event", string(event),
			"status", status,
		)
	}
	return status
}
