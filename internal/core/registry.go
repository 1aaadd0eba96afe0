// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package core

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

// Presence is a user's entry in the registry: the connections currently
// attributed to that user.
type Presence struct {
	UserID       string
	Connections  []ulid.ULID // Live connection handles, in connect order
	ConnectedAt  time.Time   // When the entry was created
	LastActivity time.Time   // Last connect or inbound frame
}

// RegistryStats summarizes the registry.
type RegistryStats struct {
	Users       int `json:"online_users"`
	Connections int `json:"connections"`
}

// PresenceService is the read-only view of the registry offered to code
// outside the connection lifecycle.
type PresenceService interface {
	// IsOnline reports whether userID has at least one live connection.
	IsOnline(userID string) bool
	// Presence returns a copy of userID's entry, or nil if offline.
	Presence(userID string) *Presence
	// Owner returns the user bound to a connection handle.
	Owner(connID ulid.ULID) (string, bool)
	// OnlineUsers returns the ids of all online users.
	OnlineUsers() []string
	// Stats returns user and connection counts.
	Stats() RegistryStats
}

var (
	onlineUsersDesc = prometheus.NewDesc(
		"chirpx_online_users",
		"Number of users with at least one live connection",
		nil, nil,
	)
	activeConnectionsDesc = prometheus.NewDesc(
		"chirpx_connections_active",
		"Number of live socket connections",
		nil, nil,
	)
)

func copyPresence(p *Presence) *Presence {
	connections := make([]ulid.ULID, len(p.Connections))
	copy(connections, p.Connections)
	return &Presence{
		UserID:       p.UserID,
		Connections:  connections,
		ConnectedAt:  p.ConnectedAt,
		LastActivity: p.LastActivity,
	}
}

// Registry maps user ids to their live connection handles. A user appears
// in the registry iff at least one of their connections is live.
// Only the connection lifecycle mutates it.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]*Presence
	owners map[ulid.ULID]string // connection handle -> user id
	conns  int
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]*Presence),
		owners: make(map[ulid.ULID]string),
		now:    time.Now,
	}
}

// Connect records connID under userID, creating the user's entry if needed.
// A handle is bound to one user for its lifetime; rebinding it panics.
// Returns a copy of the entry.
func (r *Registry) Connect(userID string, connID ulid.ULID) *Presence {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, bound := r.owners[connID]; bound {
		if owner != userID {
			panic(fmt.Sprintf("registry: connection %s already bound to user %s, cannot bind to %s",
				connID, owner, userID))
		}
		return copyPresence(r.users[userID])
	}

	now := r.now()
	p, exists := r.users[userID]
	if !exists {
		p = &Presence{
			UserID:      userID,
			Connections: make([]ulid.ULID, 0, 1),
			ConnectedAt: now,
		}
		r.users[userID] = p
	}
	p.Connections = append(p.Connections, connID)
	p.LastActivity = now
	r.owners[connID] = userID
	r.conns++

	return copyPresence(p)
}

// Disconnect removes connID from userID's entry and drops the entry when it
// was the user's last connection. Returns true if the user went offline.
// Removing a handle that is bound to a different user panics.
func (r *Registry) Disconnect(userID string, connID ulid.ULID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, bound := r.owners[connID]
	if !bound {
		slog.Debug("disconnect called for unknown connection",
			"user_id", userID,
			"conn_id", connID.String(),
		)
		return false
	}
	if owner != userID {
		panic(fmt.Sprintf("registry: connection %s belongs to user %s, not %s",
			connID, owner, userID))
	}

	p, exists := r.users[userID]
	if !exists {
		panic(fmt.Sprintf("registry: connection %s bound to user %s with no entry", connID, userID))
	}
	delete(r.owners, connID)
	r.conns--
	p.Connections = lo.Without(p.Connections, connID)

	offline := len(p.Connections) == 0
	if offline {
		delete(r.users, userID)
	}
	return offline
}

// Touch refreshes the last activity time of userID's entry.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, exists := r.users[userID]; exists {
		p.LastActivity = r.now()
	}
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.users[userID]
	return exists
}

// Presence returns a copy of userID's entry, or nil if the user is offline.
func (r *Registry) Presence(userID string) *Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.users[userID]
	if !exists {
		return nil
	}
	return copyPresence(p)
}

// Connections returns the live connection handles for userID.
func (r *Registry) Connections(userID string) []ulid.ULID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.users[userID]
	if !exists {
		return nil
	}
	result := make([]ulid.ULID, len(p.Connections))
	copy(result, p.Connections)
	return result
}

// Owner returns the user bound to connID.
func (r *Registry) Owner(connID ulid.ULID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.owners[connID]
	return userID, ok
}

// OnlineUsers returns the ids of all online users, sorted.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	users := lo.Keys(r.users)
	r.mu.RUnlock()
	slices.Sort(users)
	return users
}

// Stats returns user and connection counts.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegistryStats{Users: len(r.users), Connections: r.conns}
}

// RegisterMetrics registers the registry's presence gauges with reg.
func (r *Registry) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(r)
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- onlineUsersDesc
	ch <- activeConnectionsDesc
}

// Collect implements prometheus.Collector. The gauges belong to this
// registry, so independent registries never overwrite each other.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	stats := r.Stats()
	ch <- prometheus.MustNewConstMetric(onlineUsersDesc, prometheus.GaugeValue, float64(stats.Users))
	ch <- prometheus.MustNewConstMetric(activeConnectionsDesc, prometheus.GaugeValue, float64(stats.Connections))
}
