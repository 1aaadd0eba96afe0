// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

// Package core contains the real-time fan-out core: the connection
// registry, per-user rooms, the event dispatcher and the typing relay.
package core

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// EventName identifies an event on the wire.
type EventName string

// Server-emitted events.
const (
	EventNewMessage     EventName = "new-message"
	EventNotification   EventName = "notification"
	EventNewTweet       EventName = "new-tweet"
	EventUserTyping     EventName = "user-typing"
	EventUserStopTyping EventName = "user-stop-typing"
	EventConnected      EventName = "connected"
)

// Client-emitted events.
const (
	EventTyping     EventName = "typing"
	EventStopTyping EventName = "stop-typing"
)

// Event is an event that can be delivered to a user's room.
// The set of implementations is closed; see the types below.
type Event interface {
	Name() EventName
	isEvent()
}

// NewMessage is emitted to conversation participants when a message is posted.
type NewMessage struct {
	ConversationID string          `json:"conversationId"`
	Message        json.RawMessage `json:"message"`
}

// NotificationType is the kind of social interaction a notification records.
type NotificationType string

// Notification types.
const (
	NotificationLike    NotificationType = "like"
	NotificationRetweet NotificationType = "retweet"
	NotificationReply   NotificationType = "reply"
	NotificationQuote   NotificationType = "quote"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationRetweet, NotificationReply,
		NotificationQuote, NotificationFollow, NotificationMention:
		return true
	default:
		return false
	}
}

// Notification is the notification record pushed to its recipient.
// Sender and Tweet are either ids or populated documents.
type Notification struct {
	ID        string           `json:"_id,omitempty"`
	Recipient string           `json:"recipient"`
	Sender    json.RawMessage  `json:"sender"`
	Type      NotificationType `json:"type"`
	Tweet     json.RawMessage  `json:"tweet,omitempty"`
	Message   string           `json:"message,omitempty"`
	IsRead    bool             `json:"isRead"`
	Link      string           `json:"link,omitempty"`
	CreatedAt *time.Time       `json:"createdAt,omitempty"`
}

// NewTweet carries a full tweet record to a follower. It encodes as the
// record itself.
type NewTweet struct {
	Tweet json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (t NewTweet) MarshalJSON() ([]byte, error) {
	if len(t.Tweet) == 0 {
		return []byte("null"), nil
	}
	return t.Tweet, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *NewTweet) UnmarshalJSON(b []byte) error {
	t.Tweet = append(json.RawMessage(nil), b...)
	return nil
}

// UserTyping tells a recipient that UserID is typing in ConversationID.
type UserTyping struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// UserStopTyping tells a recipient that UserID stopped typing.
type UserStopTyping struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// Connected acknowledges a successful handshake to the connection itself.
type Connected struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

// Name implements Event.
func (NewMessage) Name() EventName { return EventNewMessage }

// Name implements Event.
func (Notification) Name() EventName { return EventNotification }

// Name implements Event.
func (NewTweet) Name() EventName { return EventNewTweet }

// Name implements Event.
func (UserTyping) Name() EventName { return EventUserTyping }

// Name implements Event.
func (UserStopTyping) Name() EventName { return EventUserStopTyping }

// Name implements Event.
func (Connected) Name() EventName { return EventConnected }

func (NewMessage) isEvent()     {}
func (Notification) isEvent()   {}
func (NewTweet) isEvent()       {}
func (UserTyping) isEvent()     {}
func (UserStopTyping) isEvent() {}
func (Connected) isEvent()      {}

// DecodeEvent builds a typed event from a name and JSON payload supplied by
// an application caller. Only events that application code may push are
// accepted; typing events originate from sockets and are rejected.
func DecodeEvent(name EventName, data json.RawMessage) (Event, error) {
	switch name {
	case EventNewMessage:
		var ev NewMessage
		if err := decodeStrict(name, data, &ev); err != nil {
			return nil, err
		}
		if ev.ConversationID == "" {
			return nil, ErrInvalidPayload(name, "conversationId is required")
		}
		return ev, nil
	case EventNotification:
		var ev Notification
		if err := decodeStrict(name, data, &ev); err != nil {
			return nil, err
		}
		if !ev.Type.Valid() {
			return nil, ErrInvalidPayload(name, "unknown notification type "+string(ev.Type))
		}
		return ev, nil
	case EventNewTweet:
		if len(data) == 0 || string(data) == "null" {
			return nil, ErrInvalidPayload(name, "tweet record is required")
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, ErrInvalidPayload(name, "tweet record must be an object")
		}
		return NewTweet{Tweet: append(json.RawMessage(nil), data...)}, nil
	default:
		return nil, ErrUnknownEvent(name)
	}
}

func decodeStrict(name EventName, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return ErrInvalidPayload(name, "payload is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return oops.Code(CodeInvalidPayload).
			With("event", string(name)).
			Wrapf(err, "decode %s payload", name)
	}
	return nil
}
