// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EventsEmitted counts dispatcher calls per target user.
var EventsEmitted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpx_events_emitted_total",
		Help: "Total number of events emitted to a target user",
	},
	[]string{"event"},
)

// Deliveries counts events handed to a connection's send queue.
var Deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpx_deliveries_total",
		Help: "Total number of events queued to a connection",
	},
	[]string{"event"},
)

// DeliveriesDropped counts events dropped because a send queue was full.
var DeliveriesDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chirpx_deliveries_dropped_total",
		Help: "Total number of events dropped because a connection's queue was full",
	},
	[]string{"event"},
)

// TypingExpired counts typing signals terminated by the server timer.
var TypingExpired = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "chirpx_typing_expired_total",
		Help: "Total number of typing signals expired by the server",
	},
)

// RegisterMetrics registers the package-level core metrics with the given
// Prometheus registry. Presence gauges are collected by each Registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(EventsEmitted)
	reg.MustRegister(Deliveries)
	reg.MustRegister(DeliveriesDropped)
	reg.MustRegister(TypingExpired)
}
