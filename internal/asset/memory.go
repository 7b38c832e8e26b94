// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"context"
	"fmt"
	"math/big"
	"sync"
)

// MemoryLedger is an in-process balance sheet for one asset. It never
// creates value except through Mint.
type MemoryLedger struct {
	mu       sync.Mutex
	code     string
	custody  string
	balances map[string]*big.Int
}

func NewMemoryLedger(code, custody string) *MemoryLedger {
	return &MemoryLedger{
		code:     code,
		custody:  custody,
		balances: make(map[string]*big.Int),
	}
}

// Custody is the account Deposit pays into and Withdraw pays out of.
func (l *MemoryLedger) Custody() string {
	return l.custody
}

// Mint credits account with amount.
func (l *MemoryLedger) Mint(account string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, amount)
}

func (l *MemoryLedger) Deposit(ctx context.Context, from string, amount *big.Int) error {
	return l.Transfer(ctx, from, l.custody, amount)
}

func (l *MemoryLedger) Withdraw(ctx context.Context, to string, amount *big.Int) error {
	return l.Transfer(ctx, l.custody, to, amount)
}

// Transfer moves amount between two accounts.
func (l *MemoryLedger) Transfer(ctx context.Context, from, to string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%s: transfer amount must be positive", l.code)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balance(from)
	if bal.Cmp(amount) < 0 {
		return &InsufficientFundsError{Asset: l.code, Account: from, Balance: bal.String(), Amount: amount.String()}
	}

	l.balances[from] = new(big.Int).Sub(bal, amount)
	l.credit(to, amount)
	return nil
}

func (l *MemoryLedger) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(account)), nil
}

// Supply is the sum of every balance.
func (l *MemoryLedger) Supply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := new(big.Int)
	for _, b := range l.balances {
		total.Add(total, b)
	}
	return total
}

func (l *MemoryLedger) balance(account string) *big.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (l *MemoryLedger) credit(account string, amount *big.Int) {
	l.balances[account] = new(big.Int).Add(l.balance(account), amount)
}

// InsufficientFundsError is returned when an account cannot cover a transfer.
type InsufficientFundsError struct {
	Asset   string
	Account string
	Balance string
	Amount  string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: insufficient funds in %s: balance %s, need %s", e.Asset, e.Account, e.Balance, e.Amount)
}
