// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/chirpx/realtime/internal/core"
)

// conn is one authenticated WebSocket connection. The user id is bound at
// handshake and never changes.
type conn struct {
	id      ulid.ULID
	userID  string
	room    string
	ws      *websocket.Conn
	srv     *Server
	mailbox chan core.Envelope

	away     chan struct{}
	awayOnce sync.Once
}

func newConn(s *Server, ws *websocket.Conn, userID string) *conn {
	return &conn{
		id:     core.NewULID(),
		userID: userID,
		room:   core.RoomName(userID),
		ws:     ws,
		srv:    s,
		away:   make(chan struct{}),
	}
}

// goAway asks the writer to close the connection with 1001.
func (c *conn) goAway() {
	c.awayOnce.Do(func() { close(c.away) })
}

func (c *conn) logger() *slog.Logger {
	return slog.Default().With("user_id", c.userID, "conn_id", c.id.String())
}

// serve runs the connection until the socket fails or is closed, then
// cleans up: the mailbox leaves the room, the handle leaves the registry,
// and the socket is closed.
func (c *conn) serve(ctx context.Context) {
	c.srv.registry.Connect(c.userID, c.id)
	c.mailbox = c.srv.broadcaster.Subscribe(c.room)
	c.logger().Info("connection established")

	writerDone := make(chan struct{})
	defer func() {
		c.srv.broadcaster.Unsubscribe(c.room, c.mailbox)
		<-writerDone
		offline := c.srv.registry.Disconnect(c.userID, c.id)
		_ = c.ws.Close()
		c.logger().Info("connection closed", "user_offline", offline)
	}()

	if err := c.sendConnected(); err != nil {
		c.logger().Debug("connected acknowledgement failed", "error", err)
		close(writerDone)
		return
	}

	go func() {
		defer close(writerDone)
		c.writePump()
	}()
	c.readPump(ctx)
}

// sendConnected writes the handshake acknowledgement. It runs before the
// writer starts so it is always the first frame on the socket.
func (c *conn) sendConnected() error {
	frame, err := core.EncodeFrame(core.Connected{UserID: c.userID, ConnectionID: c.id.String()})
	if err != nil {
		return err
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// readPump handles inbound frames sequentially until the socket fails.
func (c *conn) readPump(ctx context.Context) {
	c.ws.SetReadLimit(c.srv.opts.MaxMessageBytes)
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.extendReadDeadline()
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		c.srv.registry.Touch(c.userID)
		c.srv.handleFrame(ctx, c.userID, data)
	}
}

// extendReadDeadline pushes the read deadline out by the pong timeout,
// unless the connection is closing and already on its grace deadline.
func (c *conn) extendReadDeadline() {
	select {
	case <-c.away:
		return
	default:
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.srv.opts.PongTimeout))
}

func (c *conn) logReadError(err error) {
	var netErr net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger().Debug("peer closed connection", "error", err)
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger().Info("frame exceeds size limit, closing", "limit", c.srv.opts.MaxMessageBytes)
	case errors.As(err, &netErr) && netErr.Timeout():
		c.logger().Debug("read timeout", "error", err)
	default:
		c.logger().Debug("read failed", "error", err)
	}
}

// writePump is the only writer of the socket after the handshake. It exits
// when the mailbox is closed, a write fails, or the server asks it to go
// away. A failed write closes the socket so readPump returns as well.
func (c *conn) writePump() {
	opts := c.srv.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-c.mailbox:
			if !ok {
				c.writeClose(websocket.CloseNormalClosure, "")
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, env.Frame); err != nil {
				c.logger().Debug("write failed", "event", string(env.Event), "error", err)
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteTimeout)); err != nil {
				c.logger().Debug("ping failed", "error", err)
				_ = c.ws.Close()
				return
			}
		case <-c.away:
			c.writeClose(websocket.CloseGoingAway, "server shutting down")
			// give the peer a moment to answer before readPump gives up
			_ = c.ws.SetReadDeadline(time.Now().Add(closeGrace))
			return
		}
	}
}

func (c *conn) writeClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.srv.opts.WriteTimeout))
}
