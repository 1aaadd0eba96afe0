// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/chirpx/realtime/internal/control"
)

// ProcessStatus holds the status information for a process.
type ProcessStatus struct {
	Component     string `json:"component"`
	Running       bool   `json:"running"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	NodeID        string `json:"node_id,omitempty"`
	OnlineUsers   int    `json:"online_users"`
	Connections   int    `json:"connections"`
	Error         string `json:"error,omitempty"`

	Users []control.UserPresence `json:"users,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
	users      bool
	userID     string
	connID     string
}

// wantsUsers reports whether the presence listing was requested.
func (c *statusConfig) wantsUsers() bool {
	return c.users || c.userID != "" || c.connID != ""
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running chirpx server",
		Long: `Query the local control socket for uptime and presence counts.

With --users the online users and their connection handles are listed as
well; --user and --conn narrow the listing to one user or to the owner of
one connection handle.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "control socket request timeout")
	cmd.Flags().BoolVar(&cfg.users, "users", false, "list online users and their connections")
	cmd.Flags().StringVar(&cfg.userID, "user", "", "list only this user (implies --users)")
	cmd.Flags().StringVar(&cfg.connID, "conn", "", "list only the owner of this connection handle (implies --users)")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.timeout)
	defer cancel()

	status := queryProcessStatus(ctx, controlComponent)
	if status.Running && cfg.wantsUsers() {
		queryPresence(ctx, &status, cfg.userID, cfg.connID)
	}

	if cfg.jsonOutput {
		output, err := formatStatusJSON(status)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), formatStatusTable(status))
	if status.Running && cfg.wantsUsers() {
		if status.Error != "" {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\n"+status.Error)
			return nil
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), "\n", formatPresenceTable(status.Users))
	}
	return nil
}

// queryPresence adds the presence listing to a running status. A failed
// lookup, such as an offline user, is reported in Error.
func queryPresence(ctx context.Context, status *ProcessStatus, userID, connID string) {
	socketPath, err := control.SocketPath(status.Component)
	if err != nil {
		status.Error = fmt.Sprintf("failed to get socket path: %v", err)
		return
	}
	resp, err := control.NewClient(socketPath).Presence(ctx, userID, connID)
	if err != nil {
		status.Error = fmt.Sprintf("presence lookup failed: %v", err)
		return
	}
	status.Users = resp.Users
}

// formatPresenceTable formats online users, one connection handle per line.
func formatPresenceTable(users []control.UserPresence) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "USER\tCONNECTION\tONLINE SINCE\tLAST ACTIVITY")
	if len(users) == 0 {
		_, _ = fmt.Fprintln(w, "-\t-\t-\t-")
	}
	for _, u := range users {
		for i, conn := range u.Connections {
			user, since, active := u.UserID, formatTime(u.ConnectedAt), formatTime(u.LastActivity)
			if i > 0 {
				user, since, active = "", "", ""
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", user, conn, since, active)
		}
	}

	_ = w.Flush()
	return buf.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// queryProcessStatus queries the control socket of component.
func queryProcessStatus(ctx context.Context, component string) ProcessStatus {
	status := ProcessStatus{Component: component}

	socketPath, err := control.SocketPath(component)
	if err != nil {
		status.Error = fmt.Sprintf("failed to get socket path: %v", err)
		return status
	}
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		status.Error = "socket not found"
		return status
	}

	resp, err := control.NewClient(socketPath).Status(ctx)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}

	status.Running = resp.Running
	status.PID = resp.PID
	status.UptimeSeconds = resp.UptimeSeconds
	status.NodeID = resp.NodeID
	status.OnlineUsers = resp.OnlineUsers
	status.Connections = resp.Connections
	return status
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ProcessStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROCESS\tSTATUS\tPID\tUPTIME\tUSERS\tCONNECTIONS\tNODE")
	if status.Running {
		_, _ = fmt.Fprintf(w, "%s\trunning\t%d\t%s\t%d\t%d\t%s\n",
			status.Component, status.PID, formatUptime(status.UptimeSeconds),
			status.OnlineUsers, status.Connections, status.NodeID)
	} else {
		reason := "not running"
		if status.Error != "" {
			reason = status.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tstopped\t-\t-\t-\t-\t%s\n", status.Component, reason)
	}

	_ = w.Flush()
	return buf.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ProcessStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}

// formatUptime formats seconds into a human-readable duration.
func formatUptime(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// newStopCmd creates the stop subcommand.
func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Gracefully stop the running chirpx server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			socketPath, err := control.SocketPath(controlComponent)
			if err != nil {
				return fmt.Errorf("failed to get socket path: %w", err)
			}
			ctx, cancel := context.WithTimeout(commandContext(cmd), 5*time.Second)
			defer cancel()
			if err := control.NewClient(socketPath).Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to stop server: %w", err)
			}
			cmd.Println("shutdown initiated")
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
