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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonsWrapCategories(t *testing.T) {
	tests := []struct {
		reason   error
		category error
	}{
		{ErrSaleNotOpen, ErrPhase},
		{ErrNotAllowListed, ErrEligibility},
		{ErrZeroAmount, ErrValue},
		{ErrMalformedAmount, ErrValue},
		{ErrNothingClaimable, ErrValue},
		{ErrAccountCapExceeded, ErrCap},
		{ErrSupplyExceeded, ErrCap},
		{ErrTransferFailed, ErrTransfer},
		{ErrTransferPending, ErrTransfer},
		{ErrNoAllocation, ErrNotFound},
		{ErrConfigMismatch, ErrConfig},
	}

	for _, tt := range tests {
		t.Run(tt.reason.Error(), func(t *testing.T) {
			assert.True(t, errors.Is(tt.reason, tt.category))
			assert.Equal(t, tt.category, Kind(tt.reason))
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("ledger offline")

	wrappedErr := WrapTransferFailed("deposit", baseErr)
	assert.True(t, errors.Is(wrappedErr, ErrTransferFailed))
	assert.True(t, errors.Is(wrappedErr, ErrTransfer))
	assert.True(t, errors.Is(wrappedErr, baseErr))
	assert.Contains(t, wrappedErr.Error(), "deposit")

	wrappedErr = WrapTransferPending("withdraw", baseErr)
	assert.True(t, errors.Is(wrappedErr, ErrTransferPending))
	assert.False(t, errors.Is(wrappedErr, ErrTransferFailed))
	assert.Equal(t, ErrTransfer, Kind(wrappedErr))

	wrappedErr = WrapAccountCapExceeded("alice", "1200", "1000")
	assert.True(t, errors.Is(wrappedErr, ErrAccountCapExceeded))
	assert.Contains(t, wrappedErr.Error(), "cap 1000")

	wrappedErr = WrapSaleNotOpen("pending")
	assert.True(t, errors.Is(wrappedErr, ErrSaleNotOpen))
	assert.Equal(t, ErrPhase, Kind(wrappedErr))

	wrappedErr = WrapStorageError("commit", baseErr)
	assert.Equal(t, ErrStorage, Kind(wrappedErr))
	assert.True(t, errors.Is(wrappedErr, baseErr))

	wrappedErr = WrapConfigError("no file", nil)
	assert.Equal(t, ErrConfig, Kind(wrappedErr))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Nil(t, Kind(nil))
	assert.Nil(t, Kind(fmt.Errorf("plain")))
}

func TestErrorComparison(t *testing.T) {
	err1 := WrapNoAllocation("bob")
	err2 := WrapNothingClaimable("bob")

	assert.True(t, errors.Is(err1, ErrNotFound))
	assert.False(t, errors.Is(err1, ErrValue))

	assert.True(t, errors.Is(err2, ErrValue))
	assert.False(t, errors.Is(err2, ErrNotFound))
}
