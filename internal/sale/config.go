// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/dotandev/lockup/internal/errors"
)

// FillPolicy decides what happens when a contribution would allocate more
// tokens than the sale has left.
type FillPolicy string

const (
	// FillReject fails the whole contribution. This is the default.
	FillReject FillPolicy = "reject"
	// FillPartial accepts only the part of the contribution the remaining
	// supply can cover and leaves the rest with the caller.
	FillPartial FillPolicy = "partial"
)

// Price is PaymentUnits of the payment asset per TokenUnits of the sale token.
type Price struct {
	PaymentUnits *big.Int
	TokenUnits   *big.Int
}

// NewPrice returns a price of payment units per single sale-token unit.
func NewPrice(paymentPerToken int64) Price {
	return Price{PaymentUnits: big.NewInt(paymentPerToken), TokenUnits: big.NewInt(1)}
}

// TokensFor returns floor(contributed * TokenUnits / PaymentUnits).
func (p Price) TokensFor(contributed *big.Int) *big.Int {
	return mulDiv(contributed, p.TokenUnits, p.PaymentUnits)
}

// CostOf returns the smallest contribution that buys tokens.
func (p Price) CostOf(tokens *big.Int) *big.Int {
	return mulDivCeil(tokens, p.PaymentUnits, p.TokenUnits)
}

func (p Price) String() string {
	return fmt.Sprintf("%s/%s", p.PaymentUnits, p.TokenUnits)
}

// VestingSchedule describes how allocated tokens unlock after the sale ends.
type VestingSchedule struct {
	// Cliff is the delay after the sale end before linear release starts.
	Cliff time.Duration
	// Linear is how long linear release takes once the cliff has passed.
	Linear time.Duration
	// InitialUnlockBps is the share, in basis points, claimable as soon as
	// the sale ends.
	InitialUnlockBps uint32
	// ReleaseInterval quantises linear release to whole steps. Zero releases
	// continuously.
	ReleaseInterval time.Duration
}

// SaleConfig is fixed at construction and never changes afterwards.
type SaleConfig struct {
	Admin            string
	Start            time.Time
	End              time.Time
	Price            Price
	TotalSupply      *big.Int
	AccountCap       *big.Int
	AllowListEnabled bool
	AllowList        []string
	FillPolicy       FillPolicy
	Vesting          VestingSchedule
}

// CliffEnd is the instant linear release begins.
func (c *SaleConfig) CliffEnd() time.Time {
	return c.End.Add(c.Vesting.Cliff)
}

// FullyVestedAt is the instant every allocation is fully released.
func (c *SaleConfig) FullyVestedAt() time.Time {
	return c.CliffEnd().Add(c.Vesting.Linear)
}

func (c *SaleConfig) fillPolicy() FillPolicy {
	if c.FillPolicy == "" {
		return FillReject
	}
	return c.FillPolicy
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// Validate checks the construction invariants.
func (c *SaleConfig) Validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return errors.WrapValidationError("start and end must be set")
	}
	if !c.Start.Before(c.End) {
		return errors.WrapValidationError("start must be before end")
	}
	if !positive(c.Price.PaymentUnits) || !positive(c.Price.TokenUnits) {
		return errors.WrapValidationError("price must be greater than zero")
	}
	if !positive(c.TotalSupply) {
		return errors.WrapValidationError("total supply must be greater than zero")
	}
	if !positive(c.AccountCap) {
		return errors.WrapValidationError("account cap must be greater than zero")
	}
	switch c.FillPolicy {
	case "", FillReject, FillPartial:
	default:
		return errors.WrapValidationError(fmt.Sprintf("unknown fill policy %q", c.FillPolicy))
	}

	v := c.Vesting
	if v.Cliff < 0 || v.Linear < 0 || v.ReleaseInterval < 0 {
		return errors.WrapValidationError("vesting durations cannot be negative")
	}
	if v.InitialUnlockBps > BpsBase {
		return errors.WrapValidationError(fmt.Sprintf("initial unlock %d bps exceeds %d", v.InitialUnlockBps, BpsBase))
	}
	if v.ReleaseInterval > 0 && v.ReleaseInterval > v.Linear {
		return errors.WrapValidationError("release interval cannot exceed linear duration")
	}

	for _, p := range c.AllowList {
		if p == "" {
			return errors.WrapValidationError("allow list contains an empty identity")
		}
	}

	return nil
}

// Clone returns a deep copy.
func (c *SaleConfig) Clone() *SaleConfig {
	out := *c
	out.Price = Price{PaymentUnits: clone(c.Price.PaymentUnits), TokenUnits: clone(c.Price.TokenUnits)}
	out.TotalSupply = clone(c.TotalSupply)
	out.AccountCap = clone(c.AccountCap)
	if c.AllowList != nil {
		out.AllowList = append([]string(nil), c.AllowList...)
	}
	return &out
}

// Equal reports whether both configs encode identically.
func (c *SaleConfig) Equal(other *SaleConfig) bool {
	a, errA := json.Marshal(c)
	b, errB := json.Marshal(other)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

type vestingJSON struct {
	Cliff            string `json:"cliff,omitempty"`
	Linear           string `json:"linear,omitempty"`
	InitialUnlockBps uint32 `json:"initial_unlock_bps,omitempty"`
	ReleaseInterval  string `json:"release_interval,omitempty"`
}

type saleConfigJSON struct {
	Admin             string      `json:"admin,omitempty"`
	Start             time.Time   `json:"start"`
	End               time.Time   `json:"end"`
	PricePaymentUnits string      `json:"price_payment_units"`
	PriceTokenUnits   string      `json:"price_token_units,omitempty"`
	TotalSupply       string      `json:"total_supply"`
	AccountCap        string      `json:"account_cap"`
	AllowListEnabled  bool        `json:"allow_list_enabled,omitempty"`
	AllowList         []string    `json:"allow_list,omitempty"`
	FillPolicy        FillPolicy  `json:"fill_policy,omitempty"`
	Vesting           vestingJSON `json:"vesting"`
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.WrapConfigError(fmt.Sprintf("invalid %s duration", field), err)
	}
	return d, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (c SaleConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(saleConfigJSON{
		Admin:             c.Admin,
		Start:             c.Start.UTC(),
		End:               c.End.UTC(),
		PricePaymentUnits: amountString(c.Price.PaymentUnits),
		PriceTokenUnits:   amountString(c.Price.TokenUnits),
		TotalSupply:       amountString(c.TotalSupply),
		AccountCap:        amountString(c.AccountCap),
		AllowListEnabled:  c.AllowListEnabled,
		AllowList:         c.AllowList,
		FillPolicy:        c.fillPolicy(),
		Vesting: vestingJSON{
			Cliff:            formatDuration(c.Vesting.Cliff),
			Linear:           formatDuration(c.Vesting.Linear),
			InitialUnlockBps: c.Vesting.InitialUnlockBps,
			ReleaseInterval:  formatDuration(c.Vesting.ReleaseInterval),
		},
	})
}

func (c *SaleConfig) UnmarshalJSON(data []byte) error {
	var raw saleConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WrapConfigError("failed to parse sale config", err)
	}

	if raw.PriceTokenUnits == "" {
		raw.PriceTokenUnits = "1"
	}

	var err error
	parsed := SaleConfig{
		Admin:            raw.Admin,
		Start:            raw.Start,
		End:              raw.End,
		AllowListEnabled: raw.AllowListEnabled,
		AllowList:        raw.AllowList,
		FillPolicy:       raw.FillPolicy,
	}
	if parsed.Price.PaymentUnits, err = ParseAmount(raw.PricePaymentUnits); err != nil {
		return errors.WrapConfigError("price_payment_units", err)
	}
	if parsed.Price.TokenUnits, err = ParseAmount(raw.PriceTokenUnits); err != nil {
		return errors.WrapConfigError("price_token_units", err)
	}
	if parsed.TotalSupply, err = ParseAmount(raw.TotalSupply); err != nil {
		return errors.WrapConfigError("total_supply", err)
	}
	if parsed.AccountCap, err = ParseAmount(raw.AccountCap); err != nil {
		return errors.WrapConfigError("account_cap", err)
	}
	if parsed.Vesting.Cliff, err = parseDuration("cliff", raw.Vesting.Cliff); err != nil {
		return err
	}
	if parsed.Vesting.Linear, err = parseDuration("linear", raw.Vesting.Linear); err != nil {
		return err
	}
	if parsed.Vesting.ReleaseInterval, err = parseDuration("release_interval", raw.Vesting.ReleaseInterval); err != nil {
		return err
	}
	parsed.Vesting.InitialUnlockBps = raw.Vesting.InitialUnlockBps

	*c = parsed
	return nil
}

// LoadConfigFile reads and validates a JSON sale config.
func LoadConfigFile(path string) (*SaleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError("failed to read sale config", err)
	}

	var cfg SaleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
