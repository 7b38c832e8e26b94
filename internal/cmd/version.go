// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/dotandev/lockup/internal/store"
	"github.com/spf13/cobra"
)

var (
	// Version will be set by the main package
	Version = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of saled",
	Long:  `Display the saled version and the ledger schema version it writes.`,
	// The version command needs no configuration.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "saled version %s (ledger schema %d)\n", Version, store.SchemaVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
