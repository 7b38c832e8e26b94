// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"math/big"
	"strings"

	"github.com/dotandev/lockup/internal/errors"
)

// BpsBase is the denominator for basis-point fractions.
const BpsBase = 10000

// ParseAmount parses a non-negative base-10 integer amount in smallest units.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.WrapMalformedAmount(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.WrapMalformedAmount(s)
	}
	return v, nil
}

func zero() *big.Int {
	return new(big.Int)
}

func clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

func sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return clone(a)
	}
	return clone(b)
}

// mulDiv returns floor(a*b/c) for non-negative operands.
func mulDiv(a, b, c *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Quo(r, c)
}

// mulDivCeil returns ceil(a*b/c) for non-negative operands.
func mulDivCeil(a, b, c *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	q, m := new(big.Int).QuoRem(r, c, new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
