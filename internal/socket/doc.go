// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

// Package socket serves the real-time WebSocket endpoint.
//
// A connection is authenticated before the HTTP upgrade. Once established
// it is recorded in the registry, joins its user's room, and is served by
// one reader loop and one writer goroutine. The reader handles inbound
// frames one at a time; the writer owns every write to the socket.
//
// The same router exposes POST /internal/emit so application services can
// push events without linking this package.
package socket
