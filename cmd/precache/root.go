package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for precache.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "precache",
		Short: "Offline pre-caching for the news API",
		Long: `precache stores the news API responses and article images an offline
reader needs, and remembers whether that already happened.

Settings come from .precache (current or home directory), the file given
with --config, and PRECACHE_* environment variables, in that order.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .precache in current or home directory)")
	cmd.PersistentFlags().String("log-format", "auto", "Log format: auto, text or json")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewCacheCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
