// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/chirpx/realtime/internal/auth"
	"github.com/chirpx/realtime/internal/core"
)

const testInternalToken = "internal-secret"

// tokenVerifier accepts credentials of the form "token-<userID>".
var tokenVerifier = auth.VerifierFunc(func(_ context.Context, credential string) (string, error) {
	userID, ok := strings.CutPrefix(credential, "token-")
	if !ok || userID == "" {
		return "", auth.ErrInvalidCredential("unknown token", nil)
	}
	return userID, nil
})

type harness struct {
	registry   *core.Registry
	dispatcher *core.Dispatcher
	typing     *core.TypingRelay
	server     *Server
	http       *httptest.Server
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	opts := DefaultOptions()
	opts.InternalToken = testInternalToken
	for _, m := range mutate {
		m(&opts)
	}

	registry := core.NewRegistry()
	broadcaster := core.NewBroadcaster()
	dispatcher := core.NewDispatcher(broadcaster)
	typing := core.NewTypingRelay(dispatcher, 0)

	srv, err := NewServer(Config{
		Registry:    registry,
		Broadcaster: broadcaster,
		Emitter:     dispatcher,
		Typing:      typing,
		Verifier:    tokenVerifier,
		Options:     opts,
	})
	require.NoError(t, err)

	h := &harness{
		registry:   registry,
		dispatcher: dispatcher,
		typing:     typing,
		server:     srv,
		http:       httptest.NewServer(srv.Router()),
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		h.http.Close()
		typing.Close()
	})
	return h
}

func (h *harness) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

// dial connects as userID and consumes the connected acknowledgement.
func (h *harness) dial(t *testing.T, userID string) (*websocket.Conn, core.Connected) {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(h.wsURL("token=token-"+userID), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })

	f := readFrame(t, ws)
	require.Equal(t, core.EventConnected, f.Event)
	var ack core.Connected
	require.NoError(t, json.Unmarshal(f.Data, &ack))
	return ws, ack
}

func readFrame(t *testing.T, ws *websocket.Conn) core.Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var f core.Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func sendFrame(t *testing.T, ws *websocket.Conn, event core.EventName, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	b, err := json.Marshal(core.Frame{Event: event, Data: raw})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, b))
}

// marker emits a distinguishable event to userID. Reading it next proves
// nothing else was queued before it.
func (h *harness) marker(userID, tag string) {
	h.dispatcher.EmitToUser(context.Background(), userID, core.NewTweet{Tweet: json.RawMessage(`{"marker":"` + tag + `"}`)})
}

func requireMarker(t *testing.T, ws *websocket.Conn, tag string) {
	t.Helper()
	f := readFrame(t, ws)
	require.Equal(t, core.EventNewTweet, f.Event, "expected marker, got %s %s", f.Event, string(f.Data))
	require.JSONEq(t, `{"marker":"`+tag+`"}`, string(f.Data))
}

func readAll(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}
