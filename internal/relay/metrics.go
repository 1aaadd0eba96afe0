// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	directionPublished = "published"
	directionReceived  = "received"

	statusOK        = "ok"
	statusFailed    = "failed"
	statusMalformed = "malformed"
)

// Messages counts relay traffic by direction and outcome.
var Messages = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpx_relay_messages_total",
		Help: "Total number of relay messages by direction and status",
	},
	[]string{"direction", "status"},
)

// RegisterMetrics registers relay metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Messages)
}
