// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chirpx/realtime/internal/core"
	"github.com/chirpx/realtime/pkg/errutil"
)

// EmitRequest is the body of POST /internal/emit.
type EmitRequest struct {
	UserIDs []string        `json:"userIds" validate:"required,min=1,max=10000,dive,required,max=128"`
	Event   core.EventName  `json:"event" validate:"required"`
	Data    json.RawMessage `json:"data"`
}

// EmitResponse acknowledges an accepted emit request. Acceptance says
// nothing about delivery.
type EmitResponse struct {
	Accepted bool `json:"accepted"`
}

func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	if !s.internalTokenValid(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	ev, req, err := s.decodeEmit(w, r)
	if err != nil {
		errutil.LogErrorContext(r.Context(), slog.Default(), slog.LevelInfo, "emit request rejected", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid emit request",
			"detail": err.Error(),
		})
		return
	}

	// the emit outlives the request, so drop its cancellation
	ctx := context.WithoutCancel(r.Context())
	if len(req.UserIDs) == 1 {
		s.emitter.EmitToUser(ctx, req.UserIDs[0], ev)
	} else {
		s.emitter.EmitToMultipleUsers(ctx, req.UserIDs, ev)
	}

	writeJSON(w, http.StatusAccepted, EmitResponse{Accepted: true})
}

func (s *Server) decodeEmit(w http.ResponseWriter, r *http.Request) (core.Event, EmitRequest, error) {
	var req EmitRequest
	body := http.MaxBytesReader(w, r.Body, DefaultMaxEmitBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, req, ErrInvalidEmitRequest("body is not valid JSON", err)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, req, ErrInvalidEmitRequest("validation failed", err)
	}
	ev, err := core.DecodeEvent(req.Event, req.Data)
	if err != nil {
		return nil, req, ErrInvalidEmitRequest("event rejected", err)
	}
	return ev, req, nil
}

func (s *Server) internalTokenValid(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.InternalToken)) == 1
}
