// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/dotandev/lockup/internal/asset"
	"github.com/lightningnetwork/lnd/clock"
	"pgregory.net/rapid"
)

// Any interleaving of contributions, claims and clock movement conserves
// both assets and never over-allocates or over-claims.
func TestContract_ConservationProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()

		cfg := scenarioConfig()
		cfg.Price = Price{
			PaymentUnits: big.NewInt(rapid.Int64Range(1, 20).Draw(t, "payment_units")),
			TokenUnits:   big.NewInt(rapid.Int64Range(1, 5).Draw(t, "token_units")),
		}
		cfg.TotalSupply = big.NewInt(rapid.Int64Range(1, 500).Draw(t, "supply"))
		cfg.AccountCap = big.NewInt(rapid.Int64Range(1, 2000).Draw(t, "cap"))
		cfg.Vesting = VestingSchedule{
			Cliff:            time.Duration(rapid.Int64Range(0, 50).Draw(t, "cliff")) * time.Second,
			Linear:           time.Duration(rapid.Int64Range(0, 200).Draw(t, "linear")) * time.Second,
			InitialUnlockBps: uint32(rapid.IntRange(0, BpsBase).Draw(t, "bps")),
		}
		if rapid.Bool().Draw(t, "partial") {
			cfg.FillPolicy = FillPartial
		}

		participants := []string{"alice", "bob", "carol"}
		const funding = 5000

		clk := clock.NewTestClock(cfg.Start)
		payment := asset.NewMemoryLedger("PAY", custody)
		token := asset.NewMemoryLedger("TKN", custody)
		token.Mint(custody, cfg.TotalSupply)
		for _, p := range participants {
			payment.Mint(p, big.NewInt(funding))
		}

		c, err := New(ctx, cfg, NewMemoryStore(), Ledgers{Payment: payment, Token: token, Custody: custody}, WithClock(clk))
		if err != nil {
			t.Fatalf("new contract: %v", err)
		}

		now := cfg.Start.Add(-10 * time.Second)
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			now = now.Add(time.Duration(rapid.Int64Range(0, 400).Draw(t, "advance")) * time.Second / 10)
			clk.SetTime(now)

			p := rapid.SampledFrom(participants).Draw(t, "participant")
			if rapid.Bool().Draw(t, "contribute") {
				_, _ = c.Contribute(ctx, p, big.NewInt(rapid.Int64Range(-5, 900).Draw(t, "amount")))
			} else {
				_, _ = c.Claim(ctx, p)
			}

			checkInvariants(t, c, payment, token, participants, funding)
		}
	})
}

func checkInvariants(t *rapid.T, c *Contract, payment, token *asset.MemoryLedger, participants []string, funding int64) {
	ctx := context.Background()
	cfg := c.Config()

	totals, err := c.SaleTotals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Allocated.Cmp(cfg.TotalSupply) > 0 {
		t.Fatalf("allocated %s exceeds supply %s", totals.Allocated, cfg.TotalSupply)
	}

	sumContributed := new(big.Int)
	sumAllocated := new(big.Int)
	sumClaimed := new(big.Int)
	for _, p := range participants {
		rec, found, err := c.AllocationOf(ctx, p)
		if err != nil {
			t.Fatalf("allocation of %s: %v", p, err)
		}
		if !found {
			continue
		}
		if rec.Claimed.Cmp(rec.Allocated) > 0 {
			t.Fatalf("%s claimed %s of %s", p, rec.Claimed, rec.Allocated)
		}
		if rec.Contributed.Cmp(cfg.AccountCap) > 0 {
			t.Fatalf("%s contributed %s over cap %s", p, rec.Contributed, cfg.AccountCap)
		}
		if want := cfg.Price.TokensFor(rec.Contributed); want.Cmp(rec.Allocated) != 0 {
			t.Fatalf("%s allocated %s, price implies %s", p, rec.Allocated, want)
		}

		bal, _ := token.BalanceOf(ctx, p)
		if bal.Cmp(rec.Claimed) != 0 {
			t.Fatalf("%s holds %s tokens but claimed %s", p, bal, rec.Claimed)
		}
		paid, _ := payment.BalanceOf(ctx, p)
		if spent := new(big.Int).Sub(big.NewInt(funding), paid); spent.Cmp(rec.Contributed) != 0 {
			t.Fatalf("%s spent %s but contributed %s", p, spent, rec.Contributed)
		}

		sumContributed.Add(sumContributed, rec.Contributed)
		sumAllocated.Add(sumAllocated, rec.Allocated)
		sumClaimed.Add(sumClaimed, rec.Claimed)
	}

	if sumContributed.Cmp(totals.Contributed) != 0 || sumAllocated.Cmp(totals.Allocated) != 0 || sumClaimed.Cmp(totals.Claimed) != 0 {
		t.Fatalf("totals %+v disagree with records", totals)
	}

	held, _ := payment.BalanceOf(ctx, custody)
	if held.Cmp(totals.Contributed) != 0 {
		t.Fatalf("custody holds %s payment, contributed %s", held, totals.Contributed)
	}
	if token.Supply().Cmp(cfg.TotalSupply) != 0 {
		t.Fatalf("token supply changed to %s", token.Supply())
	}
}
