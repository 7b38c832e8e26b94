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

package errors

import (
	"errors"
	"fmt"
)

// Categories. Every error returned by a contract entry point wraps exactly
// one of these, so callers can branch on the category with errors.Is.
var (
	ErrPhase       = errors.New("phase error")
	ErrCap         = errors.New("cap error")
	ErrEligibility = errors.New("eligibility error")
	ErrValue       = errors.New("value error")
	ErrTransfer    = errors.New("transfer error")
	ErrNotFound    = errors.New("not found")

	ErrConfig       = errors.New("configuration error")
	ErrValidation   = errors.New("validation error")
	ErrStorage      = errors.New("storage error")
	ErrUnauthorized = errors.New("unauthorized")
)

// Reasons, each wrapping its category.
var (
	ErrSaleNotOpen        = fmt.Errorf("%w: sale not open", ErrPhase)
	ErrNotAllowListed     = fmt.Errorf("%w: participant not allow-listed", ErrEligibility)
	ErrZeroAmount         = fmt.Errorf("%w: amount must be greater than zero", ErrValue)
	ErrMalformedAmount    = fmt.Errorf("%w: malformed amount", ErrValue)
	ErrNothingClaimable   = fmt.Errorf("%w: nothing claimable", ErrValue)
	ErrAccountCapExceeded = fmt.Errorf("%w: per-account contribution cap exceeded", ErrCap)
	ErrSupplyExceeded     = fmt.Errorf("%w: sale supply exceeded", ErrCap)
	ErrTransferFailed     = fmt.Errorf("%w: asset transfer failed", ErrTransfer)
	ErrTransferPending    = fmt.Errorf("%w: asset transfer outcome unknown", ErrTransfer)
	ErrNoAllocation       = fmt.Errorf("%w: no allocation for participant", ErrNotFound)
	ErrConfigMismatch     = fmt.Errorf("%w: stored sale config differs", ErrConfig)
)

var categories = []error{
	ErrPhase,
	ErrCap,
	ErrEligibility,
	ErrValue,
	ErrTransfer,
	ErrNotFound,
	ErrConfig,
	ErrValidation,
	ErrStorage,
	ErrUnauthorized,
}

// Kind returns the category sentinel err belongs to, or nil when err does
// not carry one.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range categories {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

func WrapSaleNotOpen(phase string) error {
	return fmt.Errorf("%w (phase %s)", ErrSaleNotOpen, phase)
}

func WrapNotAllowListed(participant string) error {
	return fmt.Errorf("%w: %s", ErrNotAllowListed, participant)
}

func WrapMalformedAmount(value string) error {
	return fmt.Errorf("%w: %q", ErrMalformedAmount, value)
}

func WrapAccountCapExceeded(participant, requested, cap string) error {
	return fmt.Errorf("%w: %s would contribute %s, cap %s", ErrAccountCapExceeded, participant, requested, cap)
}

func WrapSupplyExceeded(requested, remaining string) error {
	return fmt.Errorf("%w: requested %s tokens, %s remaining", ErrSupplyExceeded, requested, remaining)
}

func WrapTransferFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransferFailed, op, err)
}

// WrapTransferPending marks a transfer that may or may not have landed.
// Callers keep the effects they staged for it rather than roll back.
func WrapTransferPending(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransferPending, op, err)
}

func WrapNoAllocation(participant string) error {
	return fmt.Errorf("%w: %s", ErrNoAllocation, participant)
}

func WrapNothingClaimable(participant string) error {
	return fmt.Errorf("%w: %s", ErrNothingClaimable, participant)
}

func WrapConfigError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrConfig, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrConfig, msg, err)
}

func WrapValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

func WrapStorageError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, msg, err)
}

func WrapUnauthorized(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
}
