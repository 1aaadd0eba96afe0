// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package relay

import (
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/chirpx/realtime/internal/core"
)

// Error codes for the relay.
const (
	CodePublishFailed   = "RELAY_PUBLISH_FAILED"
	CodeSubscribeFailed = "RELAY_SUBSCRIBE_FAILED"
	CodeConnectFailed   = "RELAY_CONNECT_FAILED"
)

// ErrPublishFailed creates an error for a message that could not be
// published.
func ErrPublishFailed(channel string, cause error) error {
	return oops.Code(CodePublishFailed).
		With("channel", channel).
		Wrapf(cause, "publish to %s", channel)
}

// errNotPublished creates a publish error for a message that never left
// this node. It matches core.ErrRelayUnavailable.
func errNotPublished(channel string, cause error) error {
	return ErrPublishFailed(channel, fmt.Errorf("%w: %w", core.ErrRelayUnavailable, cause))
}

// neverSent reports whether err proves the PUBLISH command was not written
// to the server. Timeouts and reset connections are ambiguous: the server
// may already have fanned the message out.
func neverSent(err error) bool {
	if errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, redis.ErrPoolTimeout) ||
		errors.Is(err, redis.ErrPoolExhausted) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
