// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"time"
)

// Default connection settings.
const (
	DefaultWriteTimeout     = 10 * time.Second
	DefaultPongTimeout      = 60 * time.Second
	DefaultPingInterval     = (DefaultPongTimeout * 9) / 10
	DefaultMaxMessageBytes  = 4096
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultMaxEmitBodyBytes = 1 << 20
)

// Options tunes connection handling.
type Options struct {
	// AllowedOrigins lists the Origin values accepted on upgrade.
	// Empty allows any origin.
	AllowedOrigins []string
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// PongTimeout closes a connection that has not answered a ping in time.
	PongTimeout time.Duration
	// PingInterval must be shorter than PongTimeout.
	PingInterval time.Duration
	// MaxMessageBytes caps inbound frames. Larger frames close the connection.
	MaxMessageBytes int64
	// HandshakeTimeout bounds credential verification.
	HandshakeTimeout time.Duration
	// InternalToken authenticates POST /internal/emit. Empty disables the route.
	InternalToken string
}

// DefaultOptions returns the built-in connection settings.
func DefaultOptions() Options {
	return Options{
		WriteTimeout:     DefaultWriteTimeout,
		PongTimeout:      DefaultPongTimeout,
		PingInterval:     DefaultPingInterval,
		MaxMessageBytes:  DefaultMaxMessageBytes,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = d.PongTimeout
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = (o.PongTimeout * 9) / 10
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = d.MaxMessageBytes
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	return o
}
