// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package socket

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Handshake results.
const (
	resultAccepted = "accepted"
	resultRejected = "rejected"
)

// Inbound frame outcomes.
const (
	statusOK        = "ok"
	statusMalformed = "malformed"
	statusInvalid   = "invalid"
	statusUnknown   = "unknown"
)

// ConnectionsTotal counts connection attempts by handshake result.
var ConnectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpx_connections_total",
		Help: "Total number of connection attempts by result",
	},
	[]string{"result"},
)

// InboundFrames counts client frames by event and outcome.
var InboundFrames = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpx_inbound_frames_total",
		Help: "Total number of inbound frames by event and status",
	},
	[]string{"event", "status"},
)

// RegisterMetrics registers socket metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ConnectionsTotal)
	reg.MustRegister(InboundFrames)
}
