// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chirpx/realtime/internal/auth"
	"github.com/chirpx/realtime/internal/core"
	"github.com/chirpx/realtime/pkg/errutil"
)

var tracer = otel.Tracer("chirpx/socket")

// authErrorBody is the body of every rejected handshake. It does not say
// why the credential failed.
var authErrorBody = map[string]string{"error": "Authentication error"}

// Config holds the collaborators of a Server.
type Config struct {
	Registry    *core.Registry
	Broadcaster *core.Broadcaster
	Emitter     core.Emitter
	Typing      *core.TypingRelay
	Verifier    auth.Verifier
	Options     Options
}

// Server is the connection lifecycle manager. It owns every live
// connection on this node.
type Server struct {
	registry    *core.Registry
	broadcaster *core.Broadcaster
	emitter     core.Emitter
	typing      *core.TypingRelay
	verifier    auth.Verifier
	opts        Options
	upgrader    websocket.Upgrader
	validate    *validator.Validate

	mu      sync.Mutex
	conns   map[ulid.ULID]*conn
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates a server. Every collaborator is required.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Registry == nil:
		return nil, errMissingDependency("registry")
	case cfg.Broadcaster == nil:
		return nil, errMissingDependency("broadcaster")
	case cfg.Emitter == nil:
		return nil, errMissingDependency("emitter")
	case cfg.Typing == nil:
		return nil, errMissingDependency("typing relay")
	case cfg.Verifier == nil:
		return nil, errMissingDependency("verifier")
	}

	s := &Server{
		registry:    cfg.Registry,
		broadcaster: cfg.Broadcaster,
		emitter:     cfg.Emitter,
		typing:      cfg.Typing,
		verifier:    cfg.Verifier,
		opts:        cfg.Options.withDefaults(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		conns:       make(map[ulid.ULID]*conn),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.opts.AllowedOrigins, r)
		},
	}
	return s, nil
}

// Router returns the HTTP routes of the server.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/ws", s.handleWS)
	r.Get("/api/health", s.handleHealth)
	if s.opts.InternalToken != "" {
		r.Post("/internal/emit", s.handleEmit)
	}
	return r
}

// healthResponse is returned by GET /api/health.
type healthResponse struct {
	Status      string `json:"status"`
	OnlineUsers int    `json:"online_users"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		OnlineUsers: stats.Users,
		Connections: stats.Connections,
		Rooms:       s.broadcaster.Rooms(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !originAllowed(s.opts.AllowedOrigins, r) {
		ConnectionsTotal.WithLabelValues(resultRejected).Inc()
		slog.InfoContext(r.Context(), "handshake rejected: origin not allowed",
			"origin", r.Header.Get("Origin"),
		)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Origin not allowed"})
		return
	}

	userID, viaProtocol, err := s.authenticate(r)
	if err != nil {
		ConnectionsTotal.WithLabelValues(resultRejected).Inc()
		errutil.LogErrorContext(r.Context(), slog.Default(), slog.LevelInfo, "handshake rejected", err)
		writeJSON(w, http.StatusUnauthorized, authErrorBody)
		return
	}

	if !s.acquire() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Server shutting down"})
		return
	}
	defer s.wg.Done()

	var header http.Header
	if viaProtocol {
		header = http.Header{protocolHeader: []string{accessTokenProtocol}}
	}
	ws, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		// the upgrader has already answered the request
		slog.DebugContext(r.Context(), "websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	ConnectionsTotal.WithLabelValues(resultAccepted).Inc()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	c := newConn(s, ws, userID)
	s.track(c)
	defer s.untrack(c)
	c.serve(ctx)
}

// authenticate resolves the handshake credential to a user id, bounded by
// the handshake timeout.
func (s *Server) authenticate(r *http.Request) (userID string, viaProtocol bool, err error) {
	ctx, span := tracer.Start(r.Context(), "realtime.handshake",
		trace.WithAttributes(attribute.String("remote_addr", r.RemoteAddr)),
	)
	defer span.End()

	credential, viaProtocol := credentialFromRequest(r)
	if credential == "" {
		err = auth.ErrMissingCredential()
		span.SetStatus(codes.Error, "missing credential")
		return "", false, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancel()

	userID, err = s.verifier.Verify(ctx, credential)
	if err == nil && userID == "" {
		err = auth.ErrInvalidCredential("empty identity", nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		return "", false, err
	}
	span.SetAttributes(attribute.String("user_id", userID))
	return userID, viaProtocol, nil
}

// acquire reserves a slot for a new connection unless the server is
// shutting down.
func (s *Server) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) track(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.id] = c
	if s.closing {
		c.goAway()
	}
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c.id)
}

// ConnectionCount returns the number of connections served by this node.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown refuses new connections, sends every live connection a going
// away close frame and waits for their cleanup to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for _, c := range s.conns {
		c.goAway()
	}
	live := len(s.conns)
	s.mu.Unlock()

	slog.Info("closing websocket connections", "connections", live)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code(CodeShutdownTimeout).
			With("connections", s.ConnectionCount()).
			Wrapf(ctx.Err(), "waiting for connections to close")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "status", statusCode, "error", fmt.Errorf("encode: %w", err))
	}
}

// closeGrace is how long a closing connection waits for the peer's close
// frame before the socket is torn down.
const closeGrace = time.Second
