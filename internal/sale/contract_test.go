// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/dotandev/lockup/internal/asset"
	"github.com/dotandev/lockup/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PersistsConfigOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ledgers := Ledgers{
		Payment: asset.NewMemoryLedger("PAY", custody),
		Token:   asset.NewMemoryLedger("TKN", custody),
		Custody: custody,
	}

	_, err := New(ctx, scenarioConfig(), store, ledgers)
	require.NoError(t, err)

	// Same config binds again.
	_, err = New(ctx, scenarioConfig(), store, ledgers)
	require.NoError(t, err)

	changed := scenarioConfig()
	changed.AccountCap = big.NewInt(5000)
	_, err = New(ctx, changed, store, ledgers)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConfigMismatch)
	assert.Equal(t, errors.ErrConfig, errors.Kind(err))
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	ledgers := Ledgers{
		Payment: asset.NewMemoryLedger("PAY", custody),
		Token:   asset.NewMemoryLedger("TKN", custody),
	}

	_, err := New(ctx, nil, NewMemoryStore(), ledgers)
	assert.ErrorIs(t, err, errors.ErrConfig)

	bad := scenarioConfig()
	bad.TotalSupply = big.NewInt(0)
	_, err = New(ctx, bad, NewMemoryStore(), ledgers)
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = New(ctx, scenarioConfig(), nil, ledgers)
	assert.ErrorIs(t, err, errors.ErrConfig)

	_, err = New(ctx, scenarioConfig(), NewMemoryStore(), Ledgers{Payment: ledgers.Payment})
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestContract_ConfigIsCopy(t *testing.T) {
	h := newHarness(t, scenarioConfig())

	cfg := h.contract.Config()
	cfg.TotalSupply.SetInt64(1)
	cfg.AllowList = append(cfg.AllowList, "mallory")

	again := h.contract.Config()
	assert.Equal(t, "100", again.TotalSupply.String())
	assert.Empty(t, again.AllowList)
}

func TestContract_Phase(t *testing.T) {
	h := newHarness(t, scenarioConfig())

	h.clock.SetTime(saleStart.Add(-time.Minute))
	assert.Equal(t, PhasePending, h.contract.Phase())

	h.at(time.Minute)
	assert.Equal(t, PhaseOpen, h.contract.Phase())

	h.afterEnd(time.Second)
	assert.Equal(t, PhaseReleasing, h.contract.Phase())

	h.afterEnd(100 * time.Second)
	assert.Equal(t, PhaseFullyVested, h.contract.Phase())
}

func TestContract_Queries(t *testing.T) {
	h := newHarness(t, scenarioConfig())
	ctx := context.Background()
	h.fund("bob", 100)
	h.fund("alice", 100)
	h.at(time.Minute)

	_, found, err := h.contract.AllocationOf(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = h.contract.ClaimableOf(ctx, "alice")
	assert.ErrorIs(t, err, errors.ErrNoAllocation)

	_, err = h.contract.Claim(ctx, "alice")
	assert.ErrorIs(t, err, errors.ErrNoAllocation)
	assert.Equal(t, errors.ErrNotFound, errors.Kind(err))

	_, err = h.contribute("bob", 30)
	require.NoError(t, err)
	_, err = h.contribute("alice", 20)
	require.NoError(t, err)

	rec, found, err := h.contract.AllocationOf(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "20", rec.Contributed.String())
	assert.Equal(t, "2", rec.Allocated.String())

	participants, err := h.contract.Participants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, participants)

	totals := h.totals()
	assert.Equal(t, "50", totals.Contributed.String())
	assert.Equal(t, "5", totals.Allocated.String())
	assert.Equal(t, "95", totals.Remaining.String())
	assert.Equal(t, 2, totals.Participants)

	balance, outstanding, err := h.contract.Solvency(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())
	assert.Equal(t, "100", outstanding.String())
}
