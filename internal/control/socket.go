// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

// Package control provides the HTTP-over-Unix-socket control plane used by
// the chirpx status command.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/samber/oops"

	"github.com/chirpx/realtime/internal/core"
	"github.com/chirpx/realtime/internal/xdg"
)

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is returned by the /status endpoint.
type StatusResponse struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Component     string `json:"component,omitempty"`
	NodeID        string `json:"node_id,omitempty"`
	OnlineUsers   int    `json:"online_users"`
	Connections   int    `json:"connections"`
}

// UserPresence is one online user as reported by /presence.
type UserPresence struct {
	UserID       string    `json:"user_id"`
	Connections  []string  `json:"connections"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}

// PresenceResponse is returned by the /presence endpoint.
type PresenceResponse struct {
	Users []UserPresence `json:"users"`
}

// ErrorResponse is returned with a non-200 status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ShutdownResponse is returned by the /shutdown endpoint.
type ShutdownResponse struct {
	Message string `json:"message"`
}

// ShutdownFunc is called when shutdown is requested.
type ShutdownFunc func()

// Option configures a Server.
type Option func(*Server)

// WithPresence adds presence counts to /status and serves /presence from p.
func WithPresence(p core.PresenceService) Option {
	return func(s *Server) { s.presence = p }
}

// WithNodeID adds the relay node id to /status.
func WithNodeID(id string) Option {
	return func(s *Server) { s.nodeID = id }
}

// Server runs HTTP over a Unix socket for process management.
type Server struct {
	component    string
	nodeID       string
	startTime    time.Time
	listener     net.Listener
	httpServer   *http.Server
	socketPath   string
	shutdownFunc ShutdownFunc
	presence     core.PresenceService
	running      atomic.Bool
}

// NewServer creates a new control socket server.
// component names the socket, e.g. "server".
func NewServer(component string, shutdownFunc ShutdownFunc, opts ...Option) *Server {
	s := &Server{
		component:    component,
		startTime:    time.Now(),
		shutdownFunc: shutdownFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.running.Store(true)
	return s
}

// SocketPath returns the path to the Unix socket.
// Returns an error if the runtime directory cannot be determined.
func SocketPath(component string) (string, error) {
	runtimeDir, err := xdg.RuntimeDir()
	if err != nil {
		return "", oops.With("component", component).Wrapf(err, "runtime directory")
	}
	return filepath.Join(runtimeDir, fmt.Sprintf("chirpx-%s.sock", component)), nil
}

// Router returns the control endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/presence", s.handlePresence)
	r.Post("/shutdown", s.handleShutdown)
	return r
}

// Start begins listening on the Unix socket.
func (s *Server) Start() error {
	socketPath, err := SocketPath(s.component)
	if err != nil {
		return err
	}
	s.socketPath = socketPath

	if err := xdg.EnsureDir(filepath.Dir(socketPath)); err != nil {
		return oops.With("path", socketPath).Wrapf(err, "create runtime directory")
	}

	// A stale socket from a crashed process blocks Listen.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return oops.With("path", socketPath).Wrapf(err, "remove existing socket")
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return oops.With("path", socketPath).Wrapf(err, "listen on control socket")
	}
	s.listener = listener

	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return oops.With("path", socketPath).Wrapf(err, "set socket permissions")
	}

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control socket server error",
				"component", s.component,
				"error", err,
			)
		}
	}()

	slog.Info("control socket listening", "component", s.component, "path", socketPath)
	return nil
}

// Stop gracefully shuts down the control socket server.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return oops.With("component", s.component).Wrapf(err, "shutdown control socket")
		}
	}

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("failed to close control socket listener",
				"component", s.component,
				"error", err,
			)
		}
	}

	if s.socketPath != "" {
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove control socket file",
				"component", s.component,
				"path", s.socketPath,
				"error", err,
			)
		}
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeJSON(w, resp); err != nil {
		slog.Error("failed to write health response",
			"component", s.component,
			"error", err,
		)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Component:     s.component,
		NodeID:        s.nodeID,
	}
	if s.presence != nil {
		stats := s.presence.Stats()
		resp.OnlineUsers = stats.Users
		resp.Connections = stats.Connections
	}
	if err := writeJSON(w, resp); err != nil {
		slog.Error("failed to write status response",
			"component", s.component,
			"error", err,
		)
	}
}

// handlePresence lists online users. ?user=<id> narrows the list to one
// user and ?conn=<handle> to the owner of a connection handle.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	if s.presence == nil {
		s.writeError(w, http.StatusNotFound, "presence not available")
		return
	}

	query := r.URL.Query()
	userID, connID := query.Get("user"), query.Get("conn")
	filtered := userID != "" || connID != ""

	var users []string
	switch {
	case connID != "":
		handle, err := core.ParseConnectionID(connID)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid connection id")
			return
		}
		owner, ok := s.presence.Owner(handle)
		if !ok || (userID != "" && owner != userID) {
			s.writeError(w, http.StatusNotFound, "connection not found")
			return
		}
		users = []string{owner}
	case userID != "":
		users = []string{userID}
	default:
		users = s.presence.OnlineUsers()
	}

	resp := PresenceResponse{Users: make([]UserPresence, 0, len(users))}
	for _, id := range users {
		// users can go offline between the listing and the lookup
		p := s.presence.Presence(id)
		if p == nil {
			continue
		}
		resp.Users = append(resp.Users, UserPresence{
			UserID:       p.UserID,
			Connections:  lo.Map(p.Connections, func(c ulid.ULID, _ int) string { return c.String() }),
			ConnectedAt:  p.ConnectedAt,
			LastActivity: p.LastActivity,
		})
	}
	if filtered && len(resp.Users) == 0 {
		s.writeError(w, http.StatusNotFound, "user offline")
		return
	}

	if err := writeJSON(w, resp); err != nil {
		slog.Error("failed to write presence response",
			"component", s.component,
			"error", err,
		)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	if err := writeJSONStatus(w, status, ErrorResponse{Error: msg}); err != nil {
		slog.Error("failed to write error response",
			"component", s.component,
			"status", status,
			"error", err,
		)
	}
}

// handleShutdown answers first and then triggers shutdown asynchronously.
func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	resp := ShutdownResponse{
		Message: "shutdown initiated",
	}
	if err := writeJSON(w, resp); err != nil {
		slog.Error("failed to write shutdown response",
			"component", s.component,
			"error", err,
		)
	}

	if s.shutdownFunc != nil {
		go s.shutdownFunc()
	}
}

func writeJSON(w http.ResponseWriter, v any) error {
	return writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Wrapf(err, "failed to encode JSON response")
	}
	return nil
}
