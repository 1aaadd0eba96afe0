// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package config

import (
	"github.com/samber/oops"
)

// CodeConfigInvalid is the error code for configuration problems.
const CodeConfigInvalid = "CONFIG_INVALID"

// minMaxMessageBytes leaves room for a typing frame with long ids.
const minMaxMessageBytes = 512

func invalid(field, format string, args ...any) error {
	return oops.Code(CodeConfigInvalid).
		With("field", field).
		Errorf(format, args...)
}

// Validate checks that the configuration is usable. The JWT secret is
// checked by the serve command, which is the only consumer.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return invalid("listen_addr", "listen_addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log_level", "log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.SendBuffer <= 0 {
		return invalid("send_buffer", "send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.WriteTimeout <= 0 {
		return invalid("write_timeout", "write_timeout must be positive")
	}
	if c.PongTimeout <= 0 {
		return invalid("pong_timeout", "pong_timeout must be positive")
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		return invalid("ping_interval", "ping_interval must be positive and below pong_timeout (%s)", c.PongTimeout)
	}
	if c.MaxMessageBytes < minMaxMessageBytes {
		return invalid("max_message_bytes", "max_message_bytes must be at least %d", minMaxMessageBytes)
	}
	if c.HandshakeTimeout <= 0 {
		return invalid("handshake_timeout", "handshake_timeout must be positive")
	}
	if c.TypingTimeout < 0 {
		return invalid("typing_timeout", "typing_timeout must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown_timeout", "shutdown_timeout must be positive")
	}
	if c.RedisURL != "" && c.RedisChannel == "" {
		return invalid("redis_channel", "redis_channel is required when redis_url is set")
	}
	return nil
}
