// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/chirpx/realtime/internal/auth"
	"github.com/chirpx/realtime/internal/config"
	"github.com/chirpx/realtime/internal/control"
	"github.com/chirpx/realtime/internal/core"
	"github.com/chirpx/realtime/internal/logging"
	"github.com/chirpx/realtime/internal/observability"
	"github.com/chirpx/realtime/internal/relay"
	"github.com/chirpx/realtime/internal/socket"
)

// controlComponent names the server's control socket.
const controlComponent = "server"

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the realtime server",
		Long: `Start the WebSocket server. Clients connect to /ws with a JWT, and
backend services push events through POST /internal/emit when an internal
token is configured. Set redis_url to fan out across several nodes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.JWTSecret == "" {
		return oops.Code(config.CodeConfigInvalid).
			With("env", config.EnvJWTSecret).
			Errorf("%s (or %s) is required", config.EnvJWTSecret, config.EnvJWTSecretLegacy)
	}

	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = core.NewULID().String()
	}

	logging.SetDefault(logging.Options{
		Service: "chirpx",
		Version: version,
		NodeID:  nodeID,
		Format:  cfg.LogFormat,
		Level:   logging.ParseLevel(cfg.LogLevel),
	})

	slog.Info("starting realtime server",
		"listen_addr", cfg.ListenAddr,
		"relay", cfg.RedisURL != "",
		"internal_emit", cfg.InternalToken != "",
		"typing_timeout", cfg.TypingTimeout,
	)

	verifier, err := auth.NewJWTVerifier([]byte(cfg.JWTSecret))
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := core.NewRegistry()
	broadcaster := core.NewBroadcaster(core.WithMailboxSize(cfg.SendBuffer))

	var (
		rel     *relay.RedisRelay
		relayCh chan error
		opts    []core.DispatcherOption
	)
	if cfg.RedisURL != "" {
		var rdb redis.UniversalClient
		rdb, err = deps.RedisConnector(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				slog.Debug("error closing redis client", "error", closeErr)
			}
		}()
		rel = relay.New(rdb, cfg.RedisChannel, nodeID)
		opts = append(opts, core.WithRelay(rel))
	}
	dispatcher := core.NewDispatcher(broadcaster, opts...)

	if rel != nil {
		relayCh = make(chan error, 1)
		go func() {
			defer close(relayCh)
			if runErr := rel.Run(ctx, dispatcher); runErr != nil {
				relayCh <- runErr
			}
		}()
		go monitorServerErrors(ctx, cancel, relayCh, "relay")
	}

	typing := core.NewTypingRelay(dispatcher, cfg.TypingTimeout)
	defer typing.Close()

	srv, err := socket.NewServer(socket.Config{
		Registry:    registry,
		Broadcaster: broadcaster,
		Emitter:     dispatcher,
		Typing:      typing,
		Verifier:    verifier,
		Options: socket.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			WriteTimeout:     cfg.WriteTimeout,
			PongTimeout:      cfg.PongTimeout,
			PingInterval:     cfg.PingInterval,
			MaxMessageBytes:  cfg.MaxMessageBytes,
			HandshakeTimeout: cfg.HandshakeTimeout,
			InternalToken:    cfg.InternalToken,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create socket server: %w", err)
	}

	listener, err := deps.ListenerFactory("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	httpServer := &http.Server{
		Handler:           srv.Router(middleware.RequestID, middleware.RealIP, middleware.Recoverer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()
	slog.Info("websocket server listening", "addr", listener.Addr().String())

	var accepting atomic.Bool
	accepting.Store(true)
	ready := func() bool {
		if !accepting.Load() {
			return false
		}
		if rel == nil {
			return true
		}
		select {
		case <-rel.Subscribed():
			return true
		default:
			return false
		}
	}

	var controlServer ControlServer
	if cfg.ControlSocket {
		controlServer = deps.ControlServerFactory(controlComponent, func() { cancel() },
			control.WithPresence(registry),
			control.WithNodeID(nodeID),
		)
		if err := controlServer.Start(); err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("failed to start control socket: %w", err)
		}
	}

	var obsServer ObservabilityServer
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready,
			observability.BuildInfo{Version: version, Commit: commit, NodeID: nodeID},
			core.RegisterMetrics,
			registry.RegisterMetrics,
			socket.RegisterMetrics,
			relay.RegisterMetrics,
		)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			_ = httpServer.Close()
			stopControl(controlServer)
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Realtime server started")
	slog.Info("realtime server ready", "node_id", nodeID)
	if deps.Ready != nil {
		deps.Ready(listener.Addr().String())
	}

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case serveErr = <-errChan:
		slog.Error("http server error, shutting down", "error", serveErr)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	accepting.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Sockets are hijacked, so http.Server.Shutdown does not wait for them.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error closing websocket connections", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping http server", "error", err)
	}
	typing.Close()
	cancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
	stopControl(controlServer)

	if serveErr != nil {
		return fmt.Errorf("http server error: %w", serveErr)
	}
	slog.Info("shutdown complete")
	return nil
}

func stopControl(s ControlServer) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		slog.Warn("error stopping control socket", "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
