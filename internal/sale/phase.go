// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package sale

import "time"

// Phase is derived from the clock on every query and never stored.
type Phase int

const (
	PhasePending Phase = iota
	PhaseOpen
	PhaseClosed
	PhaseReleasing
	PhaseFullyVested
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseOpen:
		return "open"
	case PhaseClosed:
		return "closed"
	case PhaseReleasing:
		return "releasing"
	case PhaseFullyVested:
		return "fully-vested"
	default:
		return "unknown"
	}
}

// PhaseAt places now on the sale timeline. The sale window is inclusive on
// both ends.
func (c *SaleConfig) PhaseAt(now time.Time) Phase {
	switch {
	case now.Before(c.Start):
		return PhasePending
	case !now.After(c.End):
		return PhaseOpen
	case now.Before(c.CliffEnd()):
		return PhaseClosed
	case now.Before(c.FullyVestedAt()):
		return PhaseReleasing
	default:
		return PhaseFullyVested
	}
}
