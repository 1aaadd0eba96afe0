// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

// Package relay fans emitted events out across nodes over Redis pub/sub.
//
// Every node publishes the events it emits and subscribes to the shared
// channel; each received event is delivered into the local rooms of the
// target user. The publishing node receives its own messages, so a user
// connected anywhere in the cluster sees every event exactly as a
// single-node deployment would. Delivery stays best-effort: messages
// published while a node is resubscribing are lost to that node, and a
// publish whose outcome is unknown is not retried or delivered locally.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/chirpx/realtime/internal/core"
)

// DefaultChannel is the pub/sub channel shared by all nodes.
const DefaultChannel = "chirpx:realtime"

// Deliverer delivers an encoded event into local rooms.
type Deliverer interface {
	DeliverFrame(userID string, name core.EventName, frame []byte) int
}

// message is the pub/sub payload.
type message struct {
	Origin string          `json:"origin"`
	UserID string          `json:"userId"`
	Event  core.EventName  `json:"event"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisRelay publishes and receives events on a Redis channel.
type RedisRelay struct {
	rdb     redis.UniversalClient
	channel string
	nodeID  string
	backoff func() retry.Backoff

	subscribedOnce sync.Once
	subscribed     chan struct{}
}

// Option configures a RedisRelay.
type Option func(*RedisRelay)

// WithBackoff sets the resubscribe backoff. newBackoff is called each time
// Run starts.
func WithBackoff(newBackoff func() retry.Backoff) Option {
	return func(r *RedisRelay) {
		r.backoff = newBackoff
	}
}

// DefaultBackoff retries forever, starting at 100ms and capped at 5s, with
// jitter so restarted nodes do not resubscribe in lockstep.
func DefaultBackoff() retry.Backoff {
	b := retry.NewExponential(100 * time.Millisecond)
	b = retry.WithCappedDuration(5*time.Second, b)
	return retry.WithJitterPercent(10, b)
}

// New creates a relay on channel. nodeID tags published messages.
func New(rdb redis.UniversalClient, channel, nodeID string, opts ...Option) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	r := &RedisRelay{
		rdb:        rdb,
		channel:    channel,
		nodeID:     nodeID,
		backoff:    DefaultBackoff,
		subscribed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Channel returns the pub/sub channel name.
func (r *RedisRelay) Channel() string {
	return r.channel
}

// Publish implements core.Relay. Errors match core.ErrRelayUnavailable
// only when the message certainly did not reach Redis.
func (r *RedisRelay) Publish(ctx context.Context, userID string, name core.EventName, frame []byte) error {
	if err := ctx.Err(); err != nil {
		Messages.WithLabelValues(directionPublished, statusFailed).Inc()
		return errNotPublished(r.channel, err)
	}
	payload, err := json.Marshal(message{
		Origin: r.nodeID,
		UserID: userID,
		Event:  name,
		Frame:  frame,
	})
	if err != nil {
		Messages.WithLabelValues(directionPublished, statusFailed).Inc()
		return errNotPublished(r.channel, err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		Messages.WithLabelValues(directionPublished, statusFailed).Inc()
		if neverSent(err) {
			return errNotPublished(r.channel, err)
		}
		return ErrPublishFailed(r.channel, err)
	}
	Messages.WithLabelValues(directionPublished, statusOK).Inc()
	return nil
}

// Subscribed is closed once the first subscription is confirmed.
func (r *RedisRelay) Subscribed() <-chan struct{} {
	return r.subscribed
}

// Run delivers received events to d until ctx is cancelled, resubscribing
// with backoff when the subscription fails. It returns nil on cancellation.
func (r *RedisRelay) Run(ctx context.Context, d Deliverer) error {
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		err := r.subscribe(ctx, d)
		if ctx.Err() != nil {
			return nil
		}
		slog.WarnContext(ctx, "relay subscription lost, resubscribing",
			"channel", r.channel,
			"error", err,
		)
		return retry.RetryableError(err)
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return oops.Code(CodeSubscribeFailed).
			With("channel", r.channel).
			Wrapf(err, "relay subscription")
	}
	return nil
}

func (r *RedisRelay) subscribe(ctx context.Context, d Deliverer) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer func() {
		_ = sub.Close()
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.subscribedOnce.Do(func() { close(r.subscribed) })
	slog.InfoContext(ctx, "relay subscribed", "channel", r.channel, "node_id", r.nodeID)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			r.handle(ctx, msg.Payload, d)
		}
	}
}

func (r *RedisRelay) handle(ctx context.Context, payload string, d Deliverer) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil || m.UserID == "" || len(m.Frame) == 0 {
		Messages.WithLabelValues(directionReceived, statusMalformed).Inc()
		slog.WarnContext(ctx, "relay message ignored: malformed",
			"channel", r.channel,
			"error", err,
		)
		return
	}
	Messages.WithLabelValues(directionReceived, statusOK).Inc()
	d.DeliverFrame(m.UserID, m.Event, m.Frame)
}

var _ core.Relay = (*RedisRelay)(nil)
