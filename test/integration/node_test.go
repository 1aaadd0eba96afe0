// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/onsi/gomega" //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"

	"github.com/chirpx/realtime/internal/auth"
	"github.com/chirpx/realtime/internal/core"
	"github.com/chirpx/realtime/internal/relay"
	"github.com/chirpx/realtime/internal/socket"
)

const (
	jwtSecret     = "integration-secret"
	internalToken = "integration-internal"
)

// node is one fully wired realtime server on an httptest listener.
type node struct {
	registry   *core.Registry
	dispatcher *core.Dispatcher
	typing     *core.TypingRelay
	server     *socket.Server
	http       *httptest.Server
	relay      *relay.RedisRelay
	cancel     context.CancelFunc
	relayDone  chan struct{}
}

type nodeOptions struct {
	rdb           redis.UniversalClient
	channel       string
	nodeID        string
	typingTimeout time.Duration
}

func startNode(opts nodeOptions) *node {
	verifier, err := auth.NewJWTVerifier([]byte(jwtSecret))
	Expect(err).NotTo(HaveOccurred())

	n := &node{registry: core.NewRegistry()}
	broadcaster := core.NewBroadcaster()

	var dispatchOpts []core.DispatcherOption
	if opts.rdb != nil {
		n.relay = relay.New(opts.rdb, opts.channel, opts.nodeID)
		dispatchOpts = append(dispatchOpts, core.WithRelay(n.relay))
	}
	n.dispatcher = core.NewDispatcher(broadcaster, dispatchOpts...)
	n.typing = core.NewTypingRelay(n.dispatcher, opts.typingTimeout)

	n.server, err = socket.NewServer(socket.Config{
		Registry:    n.registry,
		Broadcaster: broadcaster,
		Emitter:     n.dispatcher,
		Typing:      n.typing,
		Verifier:    verifier,
		Options: socket.Options{
			InternalToken: internalToken,
		},
	})
	Expect(err).NotTo(HaveOccurred())
	n.http = httptest.NewServer(n.server.Router())

	if n.relay != nil {
		ctx, cancel := context.WithCancel(context.Background())
		n.cancel = cancel
		n.relayDone = make(chan struct{})
		go func() {
			defer close(n.relayDone)
			_ = n.relay.Run(ctx, n.dispatcher)
		}()
		Eventually(n.relay.Subscribed()).WithTimeout(5 * time.Second).Should(BeClosed())
	}
	return n
}

func (n *node) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = n.server.Shutdown(ctx)
	n.http.Close()
	n.typing.Close()
	if n.cancel != nil {
		n.cancel()
		<-n.relayDone
	}
}

func (n *node) url(path string) string {
	return n.http.URL + path
}

// client is an authenticated WebSocket connection.
type client struct {
	ws     *websocket.Conn
	connID string
}

func (n *node) connect(userID string) *client {
	token, err := auth.IssueToken([]byte(jwtSecret), userID, time.Minute)
	Expect(err).NotTo(HaveOccurred())

	wsURL := "ws" + strings.TrimPrefix(n.http.URL, "http") + "/ws?token=" + token
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	Expect(err).NotTo(HaveOccurred())
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	f := readFrame(ws)
	Expect(f.Event).To(Equal(core.EventConnected))
	var ack core.Connected
	Expect(json.Unmarshal(f.Data, &ack)).To(Succeed())
	Expect(ack.UserID).To(Equal(userID))
	return &client{ws: ws, connID: ack.ConnectionID}
}

func (c *client) close() {
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.ws.Close()
}

func (c *client) send(event core.EventName, data any) {
	raw, err := json.Marshal(data)
	Expect(err).NotTo(HaveOccurred())
	b, err := json.Marshal(core.Frame{Event: event, Data: raw})
	Expect(err).NotTo(HaveOccurred())
	Expect(c.ws.WriteMessage(websocket.TextMessage, b)).To(Succeed())
}

func (c *client) next() core.Frame {
	return readFrame(c.ws)
}

// expectSilence asserts nothing arrives within d.
func (c *client) expectSilence(d time.Duration) {
	Expect(c.ws.SetReadDeadline(time.Now().Add(d))).To(Succeed())
	_, data, err := c.ws.ReadMessage()
	Expect(err).To(HaveOccurred(), "unexpected frame %s", string(data))
}

func readFrame(ws *websocket.Conn) core.Frame {
	Expect(ws.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())
	_, data, err := ws.ReadMessage()
	Expect(err).NotTo(HaveOccurred())
	var f core.Frame
	Expect(json.Unmarshal(data, &f)).To(Succeed())
	return f
}

func postEmit(n *node, body string) int {
	req, err := http.NewRequest(http.MethodPost, n.url("/internal/emit"), strings.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Authorization", "Bearer "+internalToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	_ = resp.Body.Close()
	return resp.StatusCode
}

func connectionsOf(n *node, userID string) int {
	p := n.registry.Presence(userID)
	if p == nil {
		return 0
	}
	return len(p.Connections)
}
