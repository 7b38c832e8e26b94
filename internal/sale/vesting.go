// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"math/big"
	"time"
)

// InitialUnlock is the share of allocated released as soon as the sale ends.
func InitialUnlock(allocated *big.Int, bps uint32) *big.Int {
	if bps == 0 || allocated.Sign() <= 0 {
		return zero()
	}
	return mulDiv(allocated, big.NewInt(int64(bps)), big.NewInt(BpsBase))
}

// Released returns how much of allocated has unlocked at now. It never
// exceeds allocated and never decreases as now advances.
func Released(allocated *big.Int, cfg *SaleConfig, now time.Time) *big.Int {
	if allocated == nil || allocated.Sign() <= 0 || !now.After(cfg.End) {
		return zero()
	}

	v := cfg.Vesting
	initial := InitialUnlock(allocated, v.InitialUnlockBps)

	cliffEnd := cfg.CliffEnd()
	if now.Before(cliffEnd) {
		return initial
	}

	elapsed := now.Sub(cliffEnd)
	if v.Linear <= 0 || elapsed >= v.Linear {
		return clone(allocated)
	}
	if v.ReleaseInterval > 0 {
		elapsed -= elapsed % v.ReleaseInterval
	}

	locked := sub(allocated, initial)
	linear := mulDiv(locked, big.NewInt(int64(elapsed)), big.NewInt(int64(v.Linear)))

	return minInt(add(initial, linear), allocated)
}

// Claimable is released(now) minus what rec has already claimed, floored
// at zero and capped so claimed never passes allocated.
func Claimable(rec *AllocationRecord, cfg *SaleConfig, now time.Time) *big.Int {
	if rec == nil {
		return zero()
	}

	released := Released(rec.Allocated, cfg, now)
	out := sub(released, rec.Claimed)
	if out.Sign() <= 0 {
		return zero()
	}

	return minInt(out, rec.Unclaimed())
}
