// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	tokenQueryParam     = "token"
	accessTokenProtocol = "access_token"
	protocolHeader      = "Sec-Websocket-Protocol"
)

// credentialFromRequest extracts the handshake credential. Browsers cannot
// set headers on a WebSocket upgrade, so the token travels either as the
// token query parameter or as the subprotocol pair "access_token, <token>".
// viaProtocol reports the latter, which must be echoed on upgrade.
func credentialFromRequest(r *http.Request) (credential string, viaProtocol bool) {
	if token := r.URL.Query().Get(tokenQueryParam); token != "" {
		return token, false
	}
	protocols := websocket.Subprotocols(r)
	for i := 0; i+1 < len(protocols); i++ {
		if protocols[i] == accessTokenProtocol {
			return protocols[i+1], true
		}
	}
	return "", false
}

// originAllowed reports whether r's Origin is acceptable. Requests without
// an Origin come from non-browser clients and are allowed.
func originAllowed(allowed []string, r *http.Request) bool {
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return lo.Contains(allowed, "*") || lo.Contains(allowed, origin)
}
