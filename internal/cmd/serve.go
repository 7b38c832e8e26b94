// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"

	"github.com/dotandev/lockup/internal/daemon"
	"github.com/dotandev/lockup/internal/eventbus"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/dotandev/lockup/internal/sale"
	"github.com/dotandev/lockup/internal/store"
	"github.com/dotandev/lockup/internal/telemetry"
	"github.com/dotandev/lockup/internal/webhook"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	serveSalePath string
	serveListen   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the sale over JSON-RPC",
	Long: `Open the sale ledger, bind it to the configured asset ledgers and serve
the Sale JSON-RPC 2.0 service until interrupted.

Methods (POST /rpc, Authorization: Bearer <token>):
  Sale.Contribute    {"amount": "500"}
  Sale.Claim         {}
  Sale.AllocationOf  {"participant": "alice"}
  Sale.ClaimableOf   {"participant": "alice"}
  Sale.Totals, Sale.Config, Sale.Phase, Sale.Participants

Example:
  saled serve --sale ./launch.json --listen 127.0.0.1:8645`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := hostConfig
		if serveSalePath != "" {
			cfg.SaleConfigPath = serveSalePath
		}
		if serveListen != "" {
			cfg.ListenAddr = serveListen
		}
		return runServe(cmd.Context(), cmd)
	},
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg := hostConfig

	cleanup, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry,
		ExporterURL: cfg.OTLPEndpoint,
		ServiceName: "saled",
		Version:     Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	registerShutdownHook("telemetry", func(context.Context) error {
		cleanup()
		return nil
	})

	saleCfg, err := sale.LoadConfigFile(cfg.SaleConfigPath)
	if err != nil {
		return err
	}
	if err := validateAdmin(cfg.LedgerBackend, saleCfg.Admin); err != nil {
		return err
	}

	ledgers, err := buildLedgers(cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.DBPath, Version)
	if err != nil {
		return err
	}
	registerCloseHook("store", st)

	bus := eventbus.New()
	bus.SubscribeAll(logEvent)
	if cfg.WebhookURL != "" {
		notifier, err := webhook.NewNotifier(webhook.NotifierConfig{
			Webhooks: []webhook.Config{{URL: cfg.WebhookURL, Type: webhook.WebhookType(cfg.WebhookType), Retries: 3}},
		})
		if err != nil {
			return fmt.Errorf("failed to create webhook notifier: %w", err)
		}
		notifier.Attach(bus)
		registerShutdownHook("webhook", notifier.Close)
	}

	contract, err := sale.New(ctx, saleCfg, st, ledgers.Ledgers, sale.WithEventBus(bus))
	if err != nil {
		return err
	}
	if err := ledgers.seed(ctx, contract); err != nil {
		return err
	}
	checkSolvency(ctx, contract)

	server, err := daemon.NewServer(contract, daemon.Config{
		ListenAddr: cfg.ListenAddr,
		Tokens:     cfg.APITokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Serving sale on %s\n", color.CyanString(cfg.ListenAddr))
	fmt.Fprintf(out, "Phase:   %s\n", phaseColor(contract.Phase()))
	fmt.Fprintf(out, "Backend: %s\n", cfg.LedgerBackend)
	fmt.Fprintf(out, "Ledger:  %s\n", st.Path())
	if len(cfg.APITokens) == 0 {
		fmt.Fprintln(out, color.YellowString("No API tokens configured; every call will be rejected"))
	}

	return server.Start(ctx)
}

func logEvent(ev eventbus.Event) {
	switch p := ev.Payload.(type) {
	case sale.ContributedEvent:
		logger.Logger.Info("Contribution",
			"event", ev.ID,
			"participant", p.Receipt.Participant,
			"accepted", p.Receipt.Accepted.String(),
			"tokens", p.Receipt.Tokens.String(),
			"sold", p.Totals.Allocated.String(),
		)
	case sale.ClaimedEvent:
		logger.Logger.Info("Claim",
			"event", ev.ID,
			"participant", p.Receipt.Participant,
			"amount", p.Receipt.Amount.String(),
			"claimed", p.Receipt.Claimed.String(),
		)
	}
}

func checkSolvency(ctx context.Context, c *sale.Contract) {
	balance, outstanding, err := c.Solvency(ctx)
	if err != nil {
		logger.Logger.Warn("Could not check custody balance", "error", err)
		return
	}
	if balance.Cmp(outstanding) < 0 {
		logger.Logger.Warn("Custody holds fewer tokens than the sale owes",
			"balance", balance.String(),
			"outstanding", outstanding.String(),
		)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveSalePath, "sale", "", "Path to the sale JSON document (overrides sale_config)")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (overrides listen_addr)")

	rootCmd.AddCommand(serveCmd)
}
