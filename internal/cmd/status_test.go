// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/sale"
	"github.com/dotandev/lockup/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintStatus(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := &sale.SaleConfig{
		Admin:       "admin",
		Start:       start,
		End:         start.Add(time.Hour),
		Price:       sale.NewPrice(10),
		TotalSupply: big.NewInt(100),
		AccountCap:  big.NewInt(1000),
		Vesting:     sale.VestingSchedule{Linear: 100 * time.Second},
	}
	snap := &snapshot{
		config: cfg,
		totals: &sale.SaleTotals{
			Contributed:  big.NewInt(500),
			Allocated:    big.NewInt(50),
			Claimed:      big.NewInt(0),
			Participants: 1,
		},
		record: &sale.AllocationRecord{
			Participant: "alice",
			Contributed: big.NewInt(500),
			Allocated:   big.NewInt(50),
			Claimed:     big.NewInt(0),
		},
		participant: "alice",
	}

	var out bytes.Buffer
	printStatus(&out, snap, cfg.End.Add(50*time.Second))
	s := out.String()
	assert.Contains(t, s, "Phase:        releasing")
	assert.Contains(t, s, "Sold:         50 / 100 (50 remaining)")
	assert.Contains(t, s, "Released:     25")
	assert.Contains(t, s, "Claimable:    25")

	out.Reset()
	snap.record = nil
	snap.participant = "bob"
	printStatus(&out, snap, start.Add(-time.Minute))
	assert.Contains(t, out.String(), "Phase:        pending")
	assert.Contains(t, out.String(), "bob: no allocation")
}

func TestLoadSnapshot_EmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	st, err := store.Open(context.Background(), path, Version)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = loadSnapshot(context.Background(), path, "")
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "saled version dev (ledger schema 1)")
}
