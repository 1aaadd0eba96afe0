// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/chirpx/realtime/internal/core"
)

var _ = Describe("Single node fan-out", func() {
	var n *node

	BeforeEach(func() {
		n = startNode(nodeOptions{typingTimeout: 300 * time.Millisecond})
	})

	AfterEach(func() {
		n.stop()
	})

	It("delivers to every connection of a user until the last one leaves", func() {
		ctx := context.Background()
		c1 := n.connect("A")
		c2 := n.connect("A")
		Expect(c1.connID).NotTo(Equal(c2.connID))
		Expect(connectionsOf(n, "A")).To(Equal(2))

		n.dispatcher.EmitToUser(ctx, "A", core.Notification{Message: "hi", Type: core.NotificationMention})
		for _, c := range []*client{c1, c2} {
			f := c.next()
			Expect(f.Event).To(Equal(core.EventNotification))
			var got core.Notification
			Expect(json.Unmarshal(f.Data, &got)).To(Succeed())
			Expect(got.Message).To(Equal("hi"))
		}

		c1.close()
		Eventually(func() int { return connectionsOf(n, "A") }).Should(Equal(1))

		n.dispatcher.EmitToUser(ctx, "A", core.Notification{Message: "again", Type: core.NotificationMention})
		f := c2.next()
		Expect(f.Event).To(Equal(core.EventNotification))
		Expect(string(f.Data)).To(ContainSubstring("again"))

		c2.close()
		Eventually(func() bool { return n.registry.IsOnline("A") }).Should(BeFalse())
		Expect(n.registry.OnlineUsers()).NotTo(ContainElement("A"))

		Expect(func() {
			n.dispatcher.EmitToUser(ctx, "A", core.Notification{Message: "nobody", Type: core.NotificationMention})
		}).NotTo(Panic())
	})

	It("relays typing and expires it on the server", func() {
		alice := n.connect("alice")
		bob := n.connect("bob")

		alice.send(core.EventTyping, core.TypingSignal{RecipientID: "bob", ConversationID: "c1"})

		f := bob.next()
		Expect(f.Event).To(Equal(core.EventUserTyping))
		Expect(string(f.Data)).To(MatchJSON(`{"userId":"alice","conversationId":"c1"}`))

		f = bob.next()
		Expect(f.Event).To(Equal(core.EventUserStopTyping))
		Expect(string(f.Data)).To(MatchJSON(`{"userId":"alice","conversationId":"c1"}`))

		alice.expectSilence(100 * time.Millisecond)
	})

	It("accepts backend emits over the internal API", func() {
		carol := n.connect("carol")

		Expect(postEmit(n, `{"userIds":["carol","offline"],"event":"new-message",`+
			`"data":{"conversationId":"c9","message":{"_id":"m1","content":"yo"}}}`)).
			To(Equal(http.StatusAccepted))

		f := carol.next()
		Expect(f.Event).To(Equal(core.EventNewMessage))
		Expect(string(f.Data)).To(MatchJSON(`{"conversationId":"c9","message":{"_id":"m1","content":"yo"}}`))

		Expect(postEmit(n, `{"userIds":["carol"],"event":"bogus","data":{}}`)).
			To(Equal(http.StatusBadRequest))
	})

	It("rejects sockets without a valid credential", func() {
		resp, err := http.Get(n.url("/ws?token=not-a-jwt"))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body).To(HaveKeyWithValue("error", "Authentication error"))
	})
})
