// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package daemon

import (
	"encoding/json"
	"time"

	"github.com/dotandev/lockup/internal/sale"
)

// Amounts cross the wire as base-10 strings.

type NoArgs struct{}

type ContributeArgs struct {
	Amount string `json:"amount"`
}

// ParticipantArgs defaults to the caller when Participant is empty.
type ParticipantArgs struct {
	Participant string `json:"participant,omitempty"`
}

func (a *ParticipantArgs) participant(caller string) string {
	if a == nil || a.Participant == "" {
		return caller
	}
	return a.Participant
}

type ReceiptReply struct {
	ID          string    `json:"id"`
	Participant string    `json:"participant"`
	Requested   string    `json:"requested"`
	Accepted    string    `json:"accepted"`
	Refunded    string    `json:"refunded"`
	Tokens      string    `json:"tokens"`
	Contributed string    `json:"contributed"`
	Allocated   string    `json:"allocated"`
	At          time.Time `json:"at"`
}

func newReceiptReply(r *sale.Receipt) ReceiptReply {
	return ReceiptReply{
		ID:          r.ID,
		Participant: r.Participant,
		Requested:   r.Requested.String(),
		Accepted:    r.Accepted.String(),
		Refunded:    r.Refunded.String(),
		Tokens:      r.Tokens.String(),
		Contributed: r.Contributed.String(),
		Allocated:   r.Allocated.String(),
		At:          r.At,
	}
}

type ClaimReply struct {
	ID          string    `json:"id"`
	Participant string    `json:"participant"`
	Amount      string    `json:"amount"`
	Claimed     string    `json:"claimed"`
	Allocated   string    `json:"allocated"`
	At          time.Time `json:"at"`
}

func newClaimReply(r *sale.ClaimReceipt) ClaimReply {
	return ClaimReply{
		ID:          r.ID,
		Participant: r.Participant,
		Amount:      r.Amount.String(),
		Claimed:     r.Claimed.String(),
		Allocated:   r.Allocated.String(),
		At:          r.At,
	}
}

type AllocationReply struct {
	Participant string `json:"participant"`
	Found       bool   `json:"found"`
	Contributed string `json:"contributed,omitempty"`
	Allocated   string `json:"allocated,omitempty"`
	Claimed     string `json:"claimed,omitempty"`
}

type AmountReply struct {
	Amount string `json:"amount"`
}

type TotalsReply struct {
	Contributed  string `json:"contributed"`
	Allocated    string `json:"allocated"`
	Claimed      string `json:"claimed"`
	Remaining    string `json:"remaining"`
	Participants int    `json:"participants"`
}

func newTotalsReply(t *sale.SaleTotals) TotalsReply {
	reply := TotalsReply{
		Contributed:  t.Contributed.String(),
		Allocated:    t.Allocated.String(),
		Claimed:      t.Claimed.String(),
		Participants: t.Participants,
	}
	if t.Remaining != nil {
		reply.Remaining = t.Remaining.String()
	}
	return reply
}

type ConfigReply struct {
	Config json.RawMessage `json:"config"`
}

type PhaseReply struct {
	Phase string `json:"phase"`
}

type ParticipantsReply struct {
	Participants []string `json:"participants"`
}
