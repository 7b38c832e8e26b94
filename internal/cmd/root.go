// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dotandev/lockup/internal/config"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/dotandev/lockup/internal/shutdown"
	"github.com/spf13/cobra"
)

// Global flag variables
var (
	ConfigFlag   string
	LogLevelFlag string
)

// hostConfig is loaded once per invocation by PersistentPreRunE.
var hostConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "saled",
	Short: "Token sale with vesting lock-up",
	Long: `saled runs a single token sale: it accepts contributions while the sale
window is open, records every participant's allocation and releases the
purchased tokens on a vesting schedule once the sale has ended.

Examples:
  saled serve                         Serve the sale described by sale.json
  saled serve --sale ./launch.json    Serve a specific sale document
  saled status                        Show the persisted sale
  saled status --participant alice    Include one participant's allocation`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if ConfigFlag != "" {
			if err := os.Setenv("SALED_CONFIG", ConfigFlag); err != nil {
				return err
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if LogLevelFlag != "" {
			cfg.LogLevel = LogLevelFlag
		}

		logger.SetOutput(os.Stderr, cfg.LogFormat == "json")
		logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
		logger.Logger.Debug("Configuration loaded", "config", cfg.String())

		hostConfig = cfg
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree until it returns or SIGINT/SIGTERM arrives,
// then drains the shutdown hooks.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return executeWithSignals(ctx, cancel, sigCh, shutdown.NewCoordinator(), func(execCtx context.Context) error {
		return rootCmd.ExecuteContext(execCtx)
	})
}

func executeWithSignals(
	ctx context.Context,
	cancel context.CancelFunc,
	sigCh <-chan os.Signal,
	coordinator *shutdown.Coordinator,
	run func(context.Context) error,
) error {
	defer installShutdownCoordinator(coordinator)()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	var err error
	select {
	case err = <-done:
	case sig := <-sigCh:
		logger.Logger.Info("Received signal, shutting down", "signal", sig.String())
		cancel()
		<-done
		err = ErrInterrupted
	}

	runShutdownHooksWithTimeout(coordinator, shutdownTimeout)
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ConfigFlag, "config", "", "Path to a saled TOML config file")
	rootCmd.PersistentFlags().StringVar(&LogLevelFlag, "log-level", "", "Override the log level (debug, info, warn, error)")
}
