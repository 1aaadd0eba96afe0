// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"context"
	"encoding/json"

	"github.com/samber/lo"
)

// NotifyNewMessage emits new-message to every participant of a conversation
// except its sender.
func NotifyNewMessage(ctx context.Context, e Emitter, participants []string, senderID, conversationID string, message json.RawMessage) {
	recipients := lo.Filter(participants, func(id string, _ int) bool {
		return id != senderID
	})
	e.EmitToMultipleUsers(ctx, recipients, NewMessage{
		ConversationID: conversationID,
		Message:        message,
	})
}

// BroadcastNewTweet emits new-tweet to the author's followers.
func BroadcastNewTweet(ctx context.Context, e Emitter, followers []string, tweet json.RawMessage) {
	e.EmitToMultipleUsers(ctx, followers, NewTweet{Tweet: tweet})
}

// Notify emits a notification record to its recipient.
func Notify(ctx context.Context, e Emitter, n Notification) {
	e.EmitToUser(ctx, n.Recipient, n)
}
