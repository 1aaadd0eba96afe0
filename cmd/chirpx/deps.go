// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package main

import (
	"context"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/chirpx/realtime/internal/control"
	"github.com/chirpx/realtime/internal/observability"
	"github.com/chirpx/realtime/internal/relay"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// RedisConnector opens the relay's redis client.
	// Default: relay.Connect
	RedisConnector func(ctx context.Context, url string) (redis.UniversalClient, error)

	// ListenerFactory creates the HTTP/WebSocket listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// ControlServerFactory creates the control socket server.
	// Default: control.NewServer
	ControlServerFactory func(component string, shutdownFunc control.ShutdownFunc, opts ...control.Option) ControlServer

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker,
		info observability.BuildInfo, registrars ...observability.Registrar) ObservabilityServer

	// Ready, when set, receives the bound listen address once the server
	// accepts connections.
	Ready func(addr string)
}

// ControlServer interface wraps the methods used from control.Server.
type ControlServer interface {
	Start() error
	Stop(ctx context.Context) error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.RedisConnector == nil {
		out.RedisConnector = func(ctx context.Context, url string) (redis.UniversalClient, error) {
			return relay.Connect(ctx, url)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	if out.ControlServerFactory == nil {
		out.ControlServerFactory = func(component string, shutdownFunc control.ShutdownFunc, opts ...control.Option) ControlServer {
			return control.NewServer(component, shutdownFunc, opts...)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker,
			info observability.BuildInfo, registrars ...observability.Registrar,
		) ObservabilityServer {
			return observability.NewServer(addr, ready, info, registrars...)
		}
	}
	return &out
}
