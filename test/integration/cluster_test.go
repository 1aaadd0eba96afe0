// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chirpx/realtime/internal/core"
	"github.com/chirpx/realtime/internal/relay"
)

var _ = Describe("Two nodes sharing a redis relay", Ordered, func() {
	var (
		ctx       context.Context
		container testcontainers.Container
		rdbA      *redis.Client
		rdbB      *redis.Client
		nodeA     *node
		nodeB     *node
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor: wait.ForLog("Ready to accept connections").
					WithStartupTimeout(30 * time.Second),
			},
			Started: true,
		})
		Expect(err).NotTo(HaveOccurred())

		endpoint, err := container.Endpoint(ctx, "redis")
		Expect(err).NotTo(HaveOccurred())

		rdbA, err = relay.Connect(ctx, endpoint)
		Expect(err).NotTo(HaveOccurred())
		rdbB, err = relay.Connect(ctx, endpoint)
		Expect(err).NotTo(HaveOccurred())

		nodeA = startNode(nodeOptions{rdb: rdbA, channel: "chirpx:it", nodeID: "node-a"})
		nodeB = startNode(nodeOptions{rdb: rdbB, channel: "chirpx:it", nodeID: "node-b"})
	})

	AfterAll(func() {
		for _, n := range []*node{nodeA, nodeB} {
			if n != nil {
				n.stop()
			}
		}
		for _, rdb := range []*redis.Client{rdbA, rdbB} {
			if rdb != nil {
				_ = rdb.Close()
			}
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("reaches a user connected to the other node", func() {
		dana := nodeB.connect("dana")

		nodeA.dispatcher.EmitToUser(ctx, "dana", core.NewTweet{Tweet: json.RawMessage(`{"_id":"t42"}`)})

		f := dana.next()
		Expect(f.Event).To(Equal(core.EventNewTweet))
		Expect(string(f.Data)).To(MatchJSON(`{"_id":"t42"}`))
		dana.close()
	})

	It("reaches every connection of a user spread across nodes exactly once", func() {
		onA := nodeA.connect("erin")
		onB := nodeB.connect("erin")

		nodeB.dispatcher.EmitToUser(ctx, "erin", core.Notification{Message: "both", Type: core.NotificationLike})

		for _, c := range []*client{onA, onB} {
			f := c.next()
			Expect(f.Event).To(Equal(core.EventNotification))
			c.expectSilence(200 * time.Millisecond)
		}
		onA.close()
		onB.close()
	})

	It("relays typing between users on different nodes", func() {
		frank := nodeA.connect("frank")
		gina := nodeB.connect("gina")

		frank.send(core.EventTyping, core.TypingSignal{RecipientID: "gina", ConversationID: "c7"})
		f := gina.next()
		Expect(f.Event).To(Equal(core.EventUserTyping))
		Expect(string(f.Data)).To(MatchJSON(`{"userId":"frank","conversationId":"c7"}`))

		frank.send(core.EventStopTyping, core.TypingSignal{RecipientID: "gina", ConversationID: "c7"})
		f = gina.next()
		Expect(f.Event).To(Equal(core.EventUserStopTyping))

		frank.close()
		gina.close()
	})

	It("accepts an emit on one node for a user on the other", func() {
		hank := nodeA.connect("hank")

		Expect(postEmit(nodeB, `{"userIds":["hank"],"event":"new-tweet","data":{"_id":"t1"}}`)).To(Equal(202))
		Expect(hank.next().Event).To(Equal(core.EventNewTweet))
		hank.close()
	})
})
