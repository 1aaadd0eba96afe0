// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

// Package config loads the chirpx server configuration.
//
// Values come from three layers, highest precedence first: command-line
// flags the user set explicitly, the YAML config file, and flag defaults.
// Secrets are only read from the environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/chirpx/realtime/internal/xdg"
)

// Environment variables holding secrets.
const (
	EnvJWTSecret       = "CHIRPX_JWT_SECRET"
	EnvJWTSecretLegacy = "JWT_SECRET"
	EnvInternalToken   = "CHIRPX_INTERNAL_TOKEN"
)

// Default values.
const (
	DefaultListenAddr       = ":5000"
	DefaultMetricsAddr      = "127.0.0.1:9100"
	DefaultLogFormat        = "json"
	DefaultLogLevel         = "info"
	DefaultSendBuffer       = 256
	DefaultWriteTimeout     = 10 * time.Second
	DefaultPongTimeout      = 60 * time.Second
	DefaultPingInterval     = 54 * time.Second
	DefaultMaxMessageBytes  = 4096
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultTypingTimeout    = 5 * time.Second
	DefaultRedisChannel     = "chirpx:realtime"
	DefaultShutdownTimeout  = 10 * time.Second
)

// Config is the effective server configuration.
type Config struct {
	ListenAddr       string        `koanf:"listen_addr" yaml:"listen_addr"`
	MetricsAddr      string        `koanf:"metrics_addr" yaml:"metrics_addr"`
	LogFormat        string        `koanf:"log_format" yaml:"log_format"`
	LogLevel         string        `koanf:"log_level" yaml:"log_level"`
	AllowedOrigins   []string      `koanf:"allowed_origins" yaml:"allowed_origins"`
	SendBuffer       int           `koanf:"send_buffer" yaml:"send_buffer"`
	WriteTimeout     time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	PongTimeout      time.Duration `koanf:"pong_timeout" yaml:"pong_timeout"`
	PingInterval     time.Duration `koanf:"ping_interval" yaml:"ping_interval"`
	MaxMessageBytes  int64         `koanf:"max_message_bytes" yaml:"max_message_bytes"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" yaml:"handshake_timeout"`
	TypingTimeout    time.Duration `koanf:"typing_timeout" yaml:"typing_timeout"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	InternalToken    string        `koanf:"internal_token" yaml:"internal_token,omitempty"`
	RedisURL         string        `koanf:"redis_url" yaml:"redis_url,omitempty"`
	RedisChannel     string        `koanf:"redis_channel" yaml:"redis_channel"`
	NodeID           string        `koanf:"node_id" yaml:"node_id,omitempty"`
	ControlSocket    bool          `koanf:"control_socket" yaml:"control_socket"`

	// JWTSecret is read from the environment only.
	JWTSecret string `koanf:"-" yaml:"-"`
}

// RegisterFlags defines a flag for every configuration key on fset.
func RegisterFlags(fset *pflag.FlagSet) {
	fset.String("listen-addr", DefaultListenAddr, "HTTP/WebSocket listen address")
	fset.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fset.String("log-format", DefaultLogFormat, "log format (json or text)")
	fset.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fset.StringSlice("allowed-origins", nil, "origins allowed to open sockets (empty = any)")
	fset.Int("send-buffer", DefaultSendBuffer, "per-connection send queue length")
	fset.Duration("write-timeout", DefaultWriteTimeout, "deadline for each socket write")
	fset.Duration("pong-timeout", DefaultPongTimeout, "close connections silent for this long")
	fset.Duration("ping-interval", DefaultPingInterval, "interval between pings (must be below pong-timeout)")
	fset.Int64("max-message-bytes", DefaultMaxMessageBytes, "largest inbound frame accepted")
	fset.Duration("handshake-timeout", DefaultHandshakeTimeout, "deadline for credential verification")
	fset.Duration("typing-timeout", DefaultTypingTimeout, "server-side typing expiry (0 = clients own expiry)")
	fset.Duration("shutdown-timeout", DefaultShutdownTimeout, "grace period for closing connections on shutdown")
	fset.String("internal-token", "", "bearer token for POST /internal/emit (empty = disabled)")
	fset.String("redis-url", "", "redis URL for multi-node fan-out (empty = single node)")
	fset.String("redis-channel", DefaultRedisChannel, "redis pub/sub channel")
	fset.String("node-id", "", "node id on the relay (default: random ULID)")
	fset.Bool("control-socket", true, "serve the unix control socket")
}

// DefaultPath returns $XDG_CONFIG_HOME/chirpx/config.yaml.
func DefaultPath() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds the configuration from path and fset. An empty path loads the
// default file if it exists; an explicit path must exist. fset must have been
// set up by RegisterFlags and parsed.
func Load(path string, fset *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	filePath, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeConfigInvalid).
				With("path", filePath).
				Wrapf(err, "load config file")
		}
	}

	// Flags fill keys the file left unset; flags set on the command line
	// override the file.
	flags := posflag.ProviderWithFlag(fset, ".", k, func(f *pflag.Flag) (string, any) {
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fset, f)
	})
	if err := k.Load(flags, nil); err != nil {
		return nil, oops.Code(CodeConfigInvalid).Wrapf(err, "load flags")
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code(CodeConfigInvalid).Wrapf(err, "decode config")
	}
	cfg.applyEnv(os.Getenv)
	return &cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", oops.Code(CodeConfigInvalid).
				With("path", path).
				Wrapf(err, "config file")
		}
		return path, nil
	}
	def, err := DefaultPath()
	if err != nil {
		return "", nil //nolint:nilerr // no config dir means no default file
	}
	if _, err := os.Stat(def); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", oops.Code(CodeConfigInvalid).With("path", def).Wrapf(err, "config file")
	}
	return def, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.JWTSecret = getenv(EnvJWTSecret)
	if c.JWTSecret == "" {
		c.JWTSecret = getenv(EnvJWTSecretLegacy)
	}
	if token := getenv(EnvInternalToken); token != "" {
		c.InternalToken = token
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.InternalToken != "" {
		c.InternalToken = "REDACTED"
	}
	c.JWTSecret = ""
	return c
}
