// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"context"
	"math/big"
	"sync"

	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/eventbus"
	"github.com/dotandev/lockup/internal/telemetry"
	"github.com/lightningnetwork/lnd/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AssetLedger moves one fungible asset into and out of contract custody.
type AssetLedger interface {
	// Deposit moves amount from the account into custody.
	Deposit(ctx context.Context, from string, amount *big.Int) error
	// Withdraw moves amount from custody to the account.
	Withdraw(ctx context.Context, to string, amount *big.Int) error
	BalanceOf(ctx context.Context, account string) (*big.Int, error)
}

// Ledgers are the external asset ledgers a contract instructs. Custody is
// the contract's own account on both.
type Ledgers struct {
	Payment AssetLedger
	Token   AssetLedger
	Custody string
}

// Contract owns one sale. Every method runs under a single mutex so calls
// are applied in one total order.
type Contract struct {
	mu sync.Mutex

	cfg     *SaleConfig
	allowed map[string]struct{}
	store   Store
	ledgers Ledgers
	clock   clock.Clock
	bus     *eventbus.Bus
	tracer  trace.Tracer
}

type Option func(*Contract)

// WithClock sets the time source. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(ct *Contract) { ct.clock = c }
}

// WithEventBus publishes contribution and claim events to bus.
func WithEventBus(bus *eventbus.Bus) Option {
	return func(ct *Contract) { ct.bus = bus }
}

// New validates cfg and binds it to store. A store that already holds a
// config must hold this exact config.
func New(ctx context.Context, cfg *SaleConfig, store Store, ledgers Ledgers, opts ...Option) (*Contract, error) {
	if cfg == nil {
		return nil, errors.WrapConfigError("sale config is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || ledgers.Payment == nil || ledgers.Token == nil {
		return nil, errors.WrapConfigError("store and both asset ledgers are required", nil)
	}

	c := &Contract{
		cfg:     cfg.Clone(),
		allowed: make(map[string]struct{}, len(cfg.AllowList)),
		store:   store,
		ledgers: ledgers,
		clock:   clock.NewDefaultClock(),
		tracer:  telemetry.GetTracer(),
	}
	for _, p := range cfg.AllowList {
		c.allowed[p] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}

	err := store.Update(ctx, func(tx Tx) error {
		existing, err := tx.SaleConfig()
		if err != nil {
			return err
		}
		if existing == nil {
			return tx.PutSaleConfig(c.cfg)
		}
		if !existing.Equal(c.cfg) {
			return errors.ErrConfigMismatch
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Config returns a copy of the sale config.
func (c *Contract) Config() *SaleConfig {
	return c.cfg.Clone()
}

// Phase derives the lifecycle phase from the clock.
func (c *Contract) Phase() Phase {
	return c.cfg.PhaseAt(c.clock.Now())
}

// AllocationOf returns participant's record, or found=false when the
// participant never contributed.
func (c *Contract) AllocationOf(ctx context.Context, participant string) (rec *AllocationRecord, found bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.store.View(ctx, func(tx ReadTx) error {
		rec, err = tx.Allocation(participant)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return rec, rec != nil, nil
}

// ClaimableOf is what Claim would pay participant right now.
func (c *Contract) ClaimableOf(ctx context.Context, participant string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	var out *big.Int
	err := c.store.View(ctx, func(tx ReadTx) error {
		rec, err := tx.Allocation(participant)
		if err != nil {
			return err
		}
		if rec == nil {
			return errors.WrapNoAllocation(participant)
		}
		out = Claimable(rec, c.cfg, now)
		return nil
	})
	return out, err
}

// SaleTotals returns the aggregate ledger with Remaining filled in.
func (c *Contract) SaleTotals(ctx context.Context) (*SaleTotals, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totals *SaleTotals
	err := c.store.View(ctx, func(tx ReadTx) error {
		var err error
		totals, err = tx.Totals()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.withRemaining(totals), nil
}

// Participants lists every identity with a record.
func (c *Contract) Participants(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	err := c.store.View(ctx, func(tx ReadTx) error {
		var err error
		out, err = tx.Participants()
		return err
	})
	return out, err
}

// Solvency reports custody's sale-token balance against what is still owed
// to participants.
func (c *Contract) Solvency(ctx context.Context) (balance, outstanding *big.Int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totals *SaleTotals
	err = c.store.View(ctx, func(tx ReadTx) error {
		totals, err = tx.Totals()
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	balance, err = c.ledgers.Token.BalanceOf(ctx, c.ledgers.Custody)
	if err != nil {
		return nil, nil, errors.WrapTransferFailed("balance", err)
	}

	// Tokens not yet sold are still owed to the sale itself.
	outstanding = sub(c.cfg.TotalSupply, totals.Claimed)
	return balance, outstanding, nil
}

func (c *Contract) withRemaining(t *SaleTotals) *SaleTotals {
	t.Remaining = sub(c.cfg.TotalSupply, t.Allocated)
	return t
}

func (c *Contract) startSpan(ctx context.Context, name, participant string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("sale.participant", participant),
		attribute.String("sale.phase", c.cfg.PhaseAt(c.clock.Now()).String()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
