// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"
)

// AllocationRecord is one participant's entry in the sale ledger. Records
// are never deleted, even once fully claimed.
type AllocationRecord struct {
	Participant string    `json:"participant"`
	Contributed *big.Int  `json:"contributed"`
	Allocated   *big.Int  `json:"allocated"`
	Claimed     *big.Int  `json:"claimed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newRecord(participant string, now time.Time) *AllocationRecord {
	return &AllocationRecord{
		Participant: participant,
		Contributed: zero(),
		Allocated:   zero(),
		Claimed:     zero(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Unclaimed is allocated minus claimed.
func (r *AllocationRecord) Unclaimed() *big.Int {
	return sub(r.Allocated, r.Claimed)
}

func (r *AllocationRecord) Clone() *AllocationRecord {
	out := *r
	out.Contributed = clone(r.Contributed)
	out.Allocated = clone(r.Allocated)
	out.Claimed = clone(r.Claimed)
	return &out
}

// SaleTotals aggregates every record. Remaining is derived from the config
// when totals are read through the contract.
type SaleTotals struct {
	Contributed  *big.Int `json:"contributed"`
	Allocated    *big.Int `json:"allocated"`
	Claimed      *big.Int `json:"claimed"`
	Remaining    *big.Int `json:"remaining,omitempty"`
	Participants int      `json:"participants"`
}

// NewSaleTotals returns all-zero totals.
func NewSaleTotals() *SaleTotals {
	return &SaleTotals{
		Contributed: zero(),
		Allocated:   zero(),
		Claimed:     zero(),
	}
}

func (t *SaleTotals) Clone() *SaleTotals {
	out := *t
	out.Contributed = clone(t.Contributed)
	out.Allocated = clone(t.Allocated)
	out.Claimed = clone(t.Claimed)
	if t.Remaining != nil {
		out.Remaining = clone(t.Remaining)
	}
	return &out
}

// ReadTx is a consistent read view of the sale ledger.
type ReadTx interface {
	// SaleConfig returns nil when no config has been written yet.
	SaleConfig() (*SaleConfig, error)
	// Allocation returns nil when participant has no record.
	Allocation(participant string) (*AllocationRecord, error)
	Totals() (*SaleTotals, error)
	// Participants lists every recorded identity in ascending order.
	Participants() ([]string, error)
}

// Tx stages writes that commit together or not at all.
type Tx interface {
	ReadTx
	PutSaleConfig(cfg *SaleConfig) error
	PutAllocation(rec *AllocationRecord) error
	PutTotals(totals *SaleTotals) error
}

// Store persists the sale ledger. Update commits only when fn returns nil.
type Store interface {
	View(ctx context.Context, fn func(tx ReadTx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	config  *SaleConfig
	totals  *SaleTotals
	records map[string]*AllocationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		totals:  NewSaleTotals(),
		records: make(map[string]*AllocationRecord),
	}
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{store: s})
}

func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, records: make(map[string]*AllocationRecord)}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.config != nil {
		s.config = tx.config
	}
	if tx.totals != nil {
		s.totals = tx.totals
	}
	for k, rec := range tx.records {
		s.records[k] = rec
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// memTx overlays staged writes on the store. A read-only tx has a nil
// records overlay.
type memTx struct {
	store   *MemoryStore
	config  *SaleConfig
	totals  *SaleTotals
	records map[string]*AllocationRecord
}

func (t *memTx) SaleConfig() (*SaleConfig, error) {
	if t.config != nil {
		return t.config.Clone(), nil
	}
	if t.store.config == nil {
		return nil, nil
	}
	return t.store.config.Clone(), nil
}

func (t *memTx) Allocation(participant string) (*AllocationRecord, error) {
	if rec, ok := t.records[participant]; ok {
		return rec.Clone(), nil
	}
	if rec, ok := t.store.records[participant]; ok {
		return rec.Clone(), nil
	}
	return nil, nil
}

func (t *memTx) Totals() (*SaleTotals, error) {
	if t.totals != nil {
		return t.totals.Clone(), nil
	}
	return t.store.totals.Clone(), nil
}

func (t *memTx) Participants() ([]string, error) {
	seen := make(map[string]struct{}, len(t.store.records)+len(t.records))
	for k := range t.store.records {
		seen[k] = struct{}{}
	}
	for k := range t.records {
		seen[k] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (t *memTx) PutSaleConfig(cfg *SaleConfig) error {
	t.config = cfg.Clone()
	return nil
}

func (t *memTx) PutAllocation(rec *AllocationRecord) error {
	t.records[rec.Participant] = rec.Clone()
	return nil
}

func (t *memTx) PutTotals(totals *SaleTotals) error {
	t.totals = totals.Clone()
	return nil
}
