// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/dotandev/lockup/internal/asset"
	"github.com/dotandev/lockup/internal/eventbus"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

const custody = "sale-custody"

var saleStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// scenarioConfig is price 10, cap 1000, supply 100, no cliff, linear over
// 100 seconds, with a one hour sale window.
func scenarioConfig() *SaleConfig {
	return &SaleConfig{
		Admin:       "admin",
		Start:       saleStart,
		End:         saleStart.Add(time.Hour),
		Price:       NewPrice(10),
		TotalSupply: big.NewInt(100),
		AccountCap:  big.NewInt(1000),
		Vesting: VestingSchedule{
			Linear: 100 * time.Second,
		},
	}
}

type harness struct {
	t        *testing.T
	contract *Contract
	store    Store
	clock    *clock.TestClock
	payment  *asset.MemoryLedger
	token    *asset.MemoryLedger
	bus      *eventbus.Bus
}

func newHarness(t *testing.T, cfg *SaleConfig) *harness {
	return newHarnessWithStore(t, cfg, NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, cfg *SaleConfig, store Store) *harness {
	t.Helper()

	h := &harness{
		t:       t,
		store:   store,
		clock:   clock.NewTestClock(cfg.Start),
		payment: asset.NewMemoryLedger("PAY", custody),
		token:   asset.NewMemoryLedger("TKN", custody),
		bus:     eventbus.New(),
	}
	h.token.Mint(custody, cfg.TotalSupply)

	c, err := New(context.Background(), cfg, store, Ledgers{
		Payment: h.payment,
		Token:   h.token,
		Custody: custody,
	}, WithClock(h.clock), WithEventBus(h.bus))
	require.NoError(t, err)
	h.contract = c
	return h
}

func (h *harness) fund(participant string, amount int64) {
	h.payment.Mint(participant, big.NewInt(amount))
}

func (h *harness) at(offset time.Duration) {
	h.clock.SetTime(h.contract.cfg.Start.Add(offset))
}

func (h *harness) afterEnd(offset time.Duration) {
	h.clock.SetTime(h.contract.cfg.End.Add(offset))
}

func (h *harness) contribute(participant string, amount int64) (*Receipt, error) {
	return h.contract.Contribute(context.Background(), participant, big.NewInt(amount))
}

func (h *harness) totals() *SaleTotals {
	h.t.Helper()
	totals, err := h.contract.SaleTotals(context.Background())
	require.NoError(h.t, err)
	return totals
}

func (h *harness) tokenBalance(account string) string {
	h.t.Helper()
	bal, err := h.token.BalanceOf(context.Background(), account)
	require.NoError(h.t, err)
	return bal.String()
}

func (h *harness) paymentBalance(account string) string {
	h.t.Helper()
	bal, err := h.payment.BalanceOf(context.Background(), account)
	require.NoError(h.t, err)
	return bal.String()
}

var errInjected = errors.New("injected failure")

// failingLedger wraps a ledger and fails the selected operations.
type failingLedger struct {
	AssetLedger
	failDeposit  bool
	failWithdraw bool
	withdrawals  int
}

func (l *failingLedger) Deposit(ctx context.Context, from string, amount *big.Int) error {
	if l.failDeposit {
		return errInjected
	}
	return l.AssetLedger.Deposit(ctx, from, amount)
}

func (l *failingLedger) Withdraw(ctx context.Context, to string, amount *big.Int) error {
	l.withdrawals++
	if l.failWithdraw {
		return errInjected
	}
	return l.AssetLedger.Withdraw(ctx, to, amount)
}

// commitFailStore runs fn against the real store and then refuses to
// commit, so staged writes are discarded after fn succeeded.
type commitFailStore struct {
	*MemoryStore
	fail bool
}

func (s *commitFailStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if !s.fail {
		return s.MemoryStore.Update(ctx, fn)
	}
	return s.MemoryStore.Update(ctx, func(tx Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errInjected
	})
}
