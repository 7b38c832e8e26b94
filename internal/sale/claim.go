// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"

	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/rs/xid"
)

// Claim pays participant everything released and not yet claimed.
//
// The claimed counter is reserved in one commit before the transfer and
// released again if the transfer fails, so a storage failure can leave a
// participant underpaid but never paid twice. A transfer whose outcome
// is unknown keeps the reservation and returns errors.ErrTransferPending.
func (c *Contract) Claim(ctx context.Context, participant string) (receipt *ClaimReceipt, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := c.startSpan(ctx, "sale.claim", participant)
	defer func() { endSpan(span, err) }()

	now := c.clock.Now()

	var (
		amount *big.Int
		rec    *AllocationRecord
		totals *SaleTotals
	)
	err = c.store.Update(ctx, func(tx Tx) error {
		var err error
		rec, err = tx.Allocation(participant)
		if err != nil {
			return err
		}
		if rec == nil {
			return errors.WrapNoAllocation(participant)
		}

		amount = Claimable(rec, c.cfg, now)
		if amount.Sign() == 0 {
			return errors.WrapNothingClaimable(participant)
		}

		totals, err = tx.Totals()
		if err != nil {
			return err
		}

		rec.Claimed = add(rec.Claimed, amount)
		rec.UpdatedAt = now
		totals.Claimed = add(totals.Claimed, amount)

		if err := tx.PutAllocation(rec); err != nil {
			return err
		}
		return tx.PutTotals(totals)
	})
	if err != nil {
		logger.Logger.Warn("Claim rejected", "participant", participant, "error", err)
		return nil, err
	}

	if err := c.ledgers.Token.Withdraw(ctx, participant, amount); err != nil {
		if stderrors.Is(err, errors.ErrTransferPending) {
			err = fmt.Errorf("withdraw: %w", err)
			logger.Logger.Error("Claim payout unresolved, reservation kept",
				"participant", participant,
				"amount", amount.String(),
				"error", err,
			)
			return nil, err
		}
		c.release(ctx, participant, amount)
		err = errors.WrapTransferFailed("withdraw", err)
		logger.Logger.Warn("Claim rejected", "participant", participant, "amount", amount.String(), "error", err)
		return nil, err
	}

	receipt = &ClaimReceipt{
		ID:          xid.New().String(),
		Participant: participant,
		Amount:      amount,
		Claimed:     clone(rec.Claimed),
		Allocated:   clone(rec.Allocated),
		At:          now,
	}

	logger.Logger.Debug("Claim paid",
		"participant", participant,
		"amount", amount.String(),
		"claimed", receipt.Claimed.String(),
		"allocated", receipt.Allocated.String(),
	)

	c.bus.Publish(TopicClaimed, ClaimedEvent{Receipt: *receipt, Totals: *c.withRemaining(totals.Clone())})
	return receipt, nil
}

// release undoes a claim reservation after the transfer failed.
func (c *Contract) release(ctx context.Context, participant string, amount *big.Int) {
	err := c.store.Update(context.WithoutCancel(ctx), func(tx Tx) error {
		rec, err := tx.Allocation(participant)
		if err != nil {
			return err
		}
		totals, err := tx.Totals()
		if err != nil {
			return err
		}

		rec.Claimed = sub(rec.Claimed, amount)
		totals.Claimed = sub(totals.Claimed, amount)

		if err := tx.PutAllocation(rec); err != nil {
			return err
		}
		return tx.PutTotals(totals)
	})
	if err != nil {
		logger.Logger.Error("Failed to release claim reservation",
			"participant", participant,
			"amount", amount.String(),
			"error", err,
		)
	}
}
