// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_DepositWithdraw(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger("PAY", "custody")
	l.Mint("alice", big.NewInt(100))

	require.NoError(t, l.Deposit(ctx, "alice", big.NewInt(40)))

	bal, err := l.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "60", bal.String())

	bal, err = l.BalanceOf(ctx, "custody")
	require.NoError(t, err)
	assert.Equal(t, "40", bal.String())

	require.NoError(t, l.Withdraw(ctx, "bob", big.NewInt(15)))
	bal, err = l.BalanceOf(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "15", bal.String())

	assert.Equal(t, "100", l.Supply().String())
}

func TestMemoryLedger_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger("PAY", "custody")
	l.Mint("alice", big.NewInt(10))

	err := l.Deposit(ctx, "alice", big.NewInt(11))
	require.Error(t, err)

	var insufficient *InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "alice", insufficient.Account)
	assert.Equal(t, "10", insufficient.Balance)

	bal, _ := l.BalanceOf(ctx, "alice")
	assert.Equal(t, "10", bal.String())
}

func TestMemoryLedger_RejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger("PAY", "custody")
	l.Mint("alice", big.NewInt(10))

	assert.Error(t, l.Deposit(ctx, "alice", big.NewInt(0)))
	assert.Error(t, l.Deposit(ctx, "alice", big.NewInt(-1)))
	assert.Error(t, l.Deposit(ctx, "alice", nil))
}

func TestMemoryLedger_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewMemoryLedger("PAY", "custody")
	l.Mint("alice", big.NewInt(10))

	assert.ErrorIs(t, l.Deposit(ctx, "alice", big.NewInt(1)), context.Canceled)
	_, err := l.BalanceOf(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryLedger_BalanceIsCopy(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger("PAY", "custody")
	l.Mint("alice", big.NewInt(10))

	bal, _ := l.BalanceOf(ctx, "alice")
	bal.SetInt64(1000)

	again, _ := l.BalanceOf(ctx, "alice")
	assert.Equal(t, "10", again.String())
}
