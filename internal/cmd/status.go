// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/sale"
	"github.com/dotandev/lockup/internal/store"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	statusParticipant string
	statusAt          string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted sale",
	Long: `Read the sale ledger database and print the sale window, lifecycle phase
and totals. With --participant the allocation and the currently claimable
amount for that participant are included. --at evaluates phase and vesting
at another instant (RFC3339).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		if statusAt != "" {
			t, err := time.Parse(time.RFC3339, statusAt)
			if err != nil {
				return errors.WrapValidationError(fmt.Sprintf("--at: %v", err))
			}
			now = t
		}

		snap, err := loadSnapshot(cmd.Context(), hostConfig.DBPath, statusParticipant)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), snap, now)
		return nil
	},
}

type snapshot struct {
	config      *sale.SaleConfig
	totals      *sale.SaleTotals
	record      *sale.AllocationRecord
	participant string
}

func loadSnapshot(ctx context.Context, path, participant string) (*snapshot, error) {
	st, err := store.Open(ctx, path, Version)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	snap := &snapshot{participant: participant}
	err = st.View(ctx, func(tx sale.ReadTx) error {
		var err error
		if snap.config, err = tx.SaleConfig(); err != nil {
			return err
		}
		if snap.totals, err = tx.Totals(); err != nil {
			return err
		}
		if participant != "" {
			snap.record, err = tx.Allocation(participant)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if snap.config == nil {
		return nil, errors.WrapConfigError("no sale has been served from "+path, nil)
	}
	return snap, nil
}

func printStatus(w io.Writer, snap *snapshot, now time.Time) {
	cfg := snap.config
	t := snap.totals

	fmt.Fprintf(w, "Phase:        %s\n", phaseColor(cfg.PhaseAt(now)))
	fmt.Fprintf(w, "Window:       %s .. %s\n", cfg.Start.Format(time.RFC3339), cfg.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Fully vested: %s\n", cfg.FullyVestedAt().Format(time.RFC3339))
	fmt.Fprintf(w, "Admin:        %s\n", cfg.Admin)
	fmt.Fprintf(w, "Price:        %s payment / %s tokens\n", cfg.Price.PaymentUnits, cfg.Price.TokenUnits)
	fmt.Fprintf(w, "Sold:         %s / %s (%s remaining)\n",
		t.Allocated, cfg.TotalSupply, new(big.Int).Sub(cfg.TotalSupply, t.Allocated))
	fmt.Fprintf(w, "Raised:       %s\n", t.Contributed)
	fmt.Fprintf(w, "Claimed:      %s\n", t.Claimed)
	fmt.Fprintf(w, "Participants: %d\n", t.Participants)

	if snap.participant == "" {
		return
	}
	fmt.Fprintln(w)
	if snap.record == nil {
		fmt.Fprintf(w, "%s: %s\n", snap.participant, color.YellowString("no allocation"))
		return
	}
	rec := snap.record
	fmt.Fprintf(w, "Participant:  %s\n", rec.Participant)
	fmt.Fprintf(w, "Contributed:  %s\n", rec.Contributed)
	fmt.Fprintf(w, "Allocated:    %s\n", rec.Allocated)
	fmt.Fprintf(w, "Released:     %s\n", sale.Released(rec.Allocated, cfg, now))
	fmt.Fprintf(w, "Claimed:      %s\n", rec.Claimed)
	fmt.Fprintf(w, "Claimable:    %s\n", color.GreenString(sale.Claimable(rec, cfg, now).String()))
}

func phaseColor(p sale.Phase) string {
	switch p {
	case sale.PhasePending:
		return color.YellowString(p.String())
	case sale.PhaseOpen:
		return color.GreenString(p.String())
	case sale.PhaseClosed:
		return color.RedString(p.String())
	case sale.PhaseReleasing:
		return color.CyanString(p.String())
	default:
		return color.New(color.Bold).Sprint(p.String())
	}
}

func init() {
	statusCmd.Flags().StringVar(&statusParticipant, "participant", "", "Show this participant's allocation")
	statusCmd.Flags().StringVar(&statusAt, "at", "", "Evaluate at this RFC3339 instant instead of now")

	rootCmd.AddCommand(statusCmd)
}
