// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/rs/xid"
)

// admission is the outcome of checking one contribution against the ledger.
type admission struct {
	accepted *big.Int
	tokens   *big.Int
	record   *AllocationRecord
	totals   *SaleTotals
}

// checkCaller runs the checks that need no ledger state.
func (c *Contract) checkCaller(participant string, amount *big.Int, now time.Time) error {
	if phase := c.cfg.PhaseAt(now); phase != PhaseOpen {
		return errors.WrapSaleNotOpen(phase.String())
	}
	if participant == "" {
		return errors.WrapValidationError("participant identity is required")
	}
	if c.cfg.AllowListEnabled {
		if _, ok := c.allowed[participant]; !ok {
			return errors.WrapNotAllowListed(participant)
		}
	}
	if amount == nil {
		return errors.WrapMalformedAmount("<nil>")
	}
	if amount.Sign() < 0 {
		return errors.WrapMalformedAmount(amount.String())
	}
	if amount.Sign() == 0 {
		return errors.ErrZeroAmount
	}
	return nil
}

// admit checks caps and supply for amount on top of rec, and returns the
// record and totals as they will be after the contribution.
func (c *Contract) admit(rec *AllocationRecord, totals *SaleTotals, amount *big.Int, now time.Time) (*admission, error) {
	contributed := add(rec.Contributed, amount)
	if contributed.Cmp(c.cfg.AccountCap) > 0 {
		return nil, errors.WrapAccountCapExceeded(rec.Participant, contributed.String(), c.cfg.AccountCap.String())
	}

	price := c.cfg.Price
	allocated := price.TokensFor(contributed)
	tokens := sub(allocated, rec.Allocated)
	remaining := sub(c.cfg.TotalSupply, totals.Allocated)
	accepted := clone(amount)

	if tokens.Cmp(remaining) > 0 {
		if c.cfg.fillPolicy() != FillPartial {
			return nil, errors.WrapSupplyExceeded(tokens.String(), remaining.String())
		}

		// Largest cumulative contribution whose allocation still fits, then
		// the cheapest contribution reaching that same allocation.
		limit := add(rec.Allocated, remaining)
		maxContrib := new(big.Int).Mul(add(limit, big.NewInt(1)), price.PaymentUnits)
		maxContrib.Sub(maxContrib, big.NewInt(1))
		maxContrib.Quo(maxContrib, price.TokenUnits)

		allocated = price.TokensFor(maxContrib)
		if allocated.Cmp(rec.Allocated) <= 0 {
			return nil, errors.WrapSupplyExceeded(tokens.String(), remaining.String())
		}
		contributed = price.CostOf(allocated)
		accepted = sub(contributed, rec.Contributed)
		tokens = sub(allocated, rec.Allocated)
	}

	next := rec.Clone()
	next.Contributed = contributed
	next.Allocated = allocated
	next.UpdatedAt = now

	nextTotals := totals.Clone()
	nextTotals.Contributed = add(totals.Contributed, accepted)
	nextTotals.Allocated = add(totals.Allocated, tokens)
	if rec.Contributed.Sign() == 0 {
		nextTotals.Participants++
	}

	return &admission{accepted: accepted, tokens: tokens, record: next, totals: nextTotals}, nil
}

// Contribute admits amount of the payment asset from participant. Either
// every effect commits, the ledger writes and the deposit into custody, or
// none does. A deposit whose outcome is unknown keeps the ledger writes and
// returns errors.ErrTransferPending without a receipt.
func (c *Contract) Contribute(ctx context.Context, participant string, amount *big.Int) (receipt *Receipt, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := c.startSpan(ctx, "sale.contribute", participant)
	defer func() { endSpan(span, err) }()

	now := c.clock.Now()
	if err := c.checkCaller(participant, amount, now); err != nil {
		logger.Logger.Warn("Contribution rejected", "participant", participant, "error", err)
		return nil, err
	}

	var (
		adm       *admission
		deposited bool
		pending   error
	)
	err = c.store.Update(ctx, func(tx Tx) error {
		rec, err := tx.Allocation(participant)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = newRecord(participant, now)
		}
		totals, err := tx.Totals()
		if err != nil {
			return err
		}

		adm, err = c.admit(rec, totals, amount, now)
		if err != nil {
			return err
		}

		if err := tx.PutAllocation(adm.record); err != nil {
			return err
		}
		if err := tx.PutTotals(adm.totals); err != nil {
			return err
		}

		// The deposit runs last inside the write transaction so a failed
		// deposit discards the staged writes. Writers wait on the store for
		// its round trip; c.mu serializes them already.
		if err := c.ledgers.Payment.Deposit(ctx, participant, adm.accepted); err != nil {
			if !stderrors.Is(err, errors.ErrTransferPending) {
				return errors.WrapTransferFailed("deposit", err)
			}
			// The deposit may have landed, so the records commit with it.
			pending = fmt.Errorf("deposit: %w", err)
		}
		deposited = true
		return nil
	})
	if err != nil {
		switch {
		case pending != nil:
			logger.Logger.Error("Unresolved deposit not recorded",
				"participant", participant,
				"amount", adm.accepted.String(),
				"deposit_error", pending,
				"error", err,
			)
		case deposited:
			c.refund(context.WithoutCancel(ctx), participant, adm.accepted, err)
		}
		logger.Logger.Warn("Contribution rejected", "participant", participant, "amount", amount.String(), "error", err)
		return nil, err
	}
	if pending != nil {
		logger.Logger.Error("Deposit unresolved, contribution recorded",
			"participant", participant,
			"amount", adm.accepted.String(),
			"error", pending,
		)
		return nil, pending
	}

	receipt = &Receipt{
		ID:          xid.New().String(),
		Participant: participant,
		Requested:   clone(amount),
		Accepted:    adm.accepted,
		Refunded:    sub(amount, adm.accepted),
		Tokens:      adm.tokens,
		Contributed: clone(adm.record.Contributed),
		Allocated:   clone(adm.record.Allocated),
		At:          now,
	}

	logger.Logger.Debug("Contribution accepted",
		"participant", participant,
		"accepted", receipt.Accepted.String(),
		"tokens", receipt.Tokens.String(),
		"allocated", receipt.Allocated.String(),
	)

	c.bus.Publish(TopicContributed, ContributedEvent{Receipt: *receipt, Totals: *c.withRemaining(adm.totals.Clone())})
	return receipt, nil
}

// refund returns a deposit whose ledger commit failed.
func (c *Contract) refund(ctx context.Context, participant string, amount *big.Int, cause error) {
	if err := c.ledgers.Payment.Withdraw(ctx, participant, amount); err != nil {
		logger.Logger.Error("Refund after failed commit did not complete",
			"participant", participant,
			"amount", amount.String(),
			"commit_error", cause,
			"error", err,
		)
		return
	}
	logger.Logger.Warn("Refunded deposit after failed commit", "participant", participant, "amount", amount.String())
}
