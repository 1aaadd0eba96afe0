// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ChirpX Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the chirpx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chirpx",
		Short: "ChirpX realtime notification server",
		Long: `chirpx pushes notifications, chat messages, tweets and typing
indicators to connected users over WebSockets and tracks who is online.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/chirpx/config.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newTokenCmd())

	return cmd
}
