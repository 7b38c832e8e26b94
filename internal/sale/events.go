// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import (
	"math/big"
	"time"

	"github.com/dotandev/lockup/internal/eventbus"
)

const (
	TopicContributed eventbus.Topic = "sale.contributed"
	TopicClaimed     eventbus.Topic = "sale.claimed"
)

// Receipt describes one accepted contribution.
type Receipt struct {
	ID          string    `json:"id"`
	Participant string    `json:"participant"`
	Requested   *big.Int  `json:"requested"`
	Accepted    *big.Int  `json:"accepted"`
	Refunded    *big.Int  `json:"refunded"`
	Tokens      *big.Int  `json:"tokens"`
	Contributed *big.Int  `json:"contributed"`
	Allocated   *big.Int  `json:"allocated"`
	At          time.Time `json:"at"`
}

// ClaimReceipt describes one successful claim.
type ClaimReceipt struct {
	ID          string    `json:"id"`
	Participant string    `json:"participant"`
	Amount      *big.Int  `json:"amount"`
	Claimed     *big.Int  `json:"claimed"`
	Allocated   *big.Int  `json:"allocated"`
	At          time.Time `json:"at"`
}

// ContributedEvent is published on TopicContributed after commit.
type ContributedEvent struct {
	Receipt Receipt
	Totals  SaleTotals
}

// ClaimedEvent is published on TopicClaimed after the transfer succeeded.
type ClaimedEvent struct {
	Receipt ClaimReceipt
	Totals  SaleTotals
}
