// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chirpx/realtime/pkg/errutil"
)

var tracer = otel.Tracer("chirpx/core")

// Emitter pushes events to users' rooms. Delivery is best-effort and
// at-most-once: there is no acknowledgment, retry or offline queue, so the
// methods return nothing. An offline target is a silent no-op.
type Emitter interface {
	EmitToUser(ctx context.Context, userID string, ev Event)
	EmitToMultipleUsers(ctx context.Context, userIDs []string, ev Event)
}

// ErrRelayUnavailable marks a Publish error where the message provably
// never reached the relay transport. Only such errors fall back to local
// delivery; any other error may follow a successful publish, and the
// origin node would then receive the event twice.
var ErrRelayUnavailable = errors.New("relay unavailable")

// Relay carries an encoded event to every node of a cluster, which then
// calls DeliverFrame locally. The origin node receives its own messages.
type Relay interface {
	Publish(ctx context.Context, userID string, name EventName, frame []byte) error
}

// Dispatcher is the Emitter backed by the local room broadcaster and an
// optional cluster relay.
type Dispatcher struct {
	broadcaster *Broadcaster
	relay       Relay // optional, nil means single node
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithRelay routes emitted events through r instead of delivering them
// locally. Local delivery then happens when the relay calls DeliverFrame,
// or directly when Publish fails with ErrRelayUnavailable.
func WithRelay(r Relay) DispatcherOption {
	return func(d *Dispatcher) {
		d.relay = r
	}
}

// NewDispatcher creates a dispatcher that delivers into b's rooms.
func NewDispatcher(b *Broadcaster, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{broadcaster: b}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EmitToUser routes ev into userID's room.
func (d *Dispatcher) EmitToUser(ctx context.Context, userID string, ev Event) {
	d.EmitToMultipleUsers(ctx, []string{userID}, ev)
}

// EmitToMultipleUsers applies EmitToUser to each id independently. Ids are
// not deduplicated; blank ids are skipped.
func (d *Dispatcher) EmitToMultipleUsers(ctx context.Context, userIDs []string, ev Event) {
	if ev == nil || len(userIDs) == 0 {
		return
	}
	name := ev.Name()

	ctx, span := tracer.Start(ctx, "realtime.emit",
		trace.WithAttributes(
			attribute.String("event.name", string(name)),
			attribute.Int("event.targets", len(userIDs)),
		),
	)
	defer span.End()

	frame, err := EncodeFrame(ev)
	if err != nil {
		span.RecordError(err)
		errutil.LogErrorContext(ctx, slog.Default(), slog.LevelError, "emit failed: event not encodable", err)
		return
	}

	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		EventsEmitted.WithLabelValues(string(name)).Inc()
		d.route(ctx, userID, name, frame)
	}
}

func (d *Dispatcher) route(ctx context.Context, userID string, name EventName, frame []byte) {
	if d.relay != nil {
		err := d.relay.Publish(ctx, userID, name, frame)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrRelayUnavailable) {
			slog.WarnContext(ctx, "relay publish outcome unknown, not delivering locally",
				"user_id", userID,
				"event", string(name),
				"error", err,
			)
			return
		}
		slog.WarnContext(ctx, "relay unavailable, delivering locally",
			"user_id", userID,
			"event", string(name),
			"error", err,
		)
	}
	d.DeliverFrame(userID, name, frame)
}

// DeliverFrame queues an encoded event on every local connection of userID
// and returns the number of connections reached.
func (d *Dispatcher) DeliverFrame(userID string, name EventName, frame []byte) int {
	return d.broadcaster.Broadcast(Envelope{
		Room:  RoomName(userID),
		Event: name,
		Frame: frame,
	})
}
