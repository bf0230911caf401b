// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sweeparr/sweeparr/internal/buildinfo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sweeparr",
		Short: "Watchlist-driven media library reconciliation",
		Long:  "sweeparr keeps Sonarr and Radarr libraries aligned with Plex watchlists, removing content nobody watches anymore under configurable safety rails.",
	}

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunReconcileCommand())
	rootCmd.AddCommand(RunVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(buildinfo.String())
			cmd.Printf("Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
