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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dotandev/lockup/internal/asset"
	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/sale"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceToken = "token-alice-1"
	bobToken   = "token-bob-22"
)

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	server  *Server
	http    *httptest.Server
	clock   *clock.TestClock
	payment *asset.MemoryLedger
	token   *asset.MemoryLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &sale.SaleConfig{
		Admin:       "admin",
		Start:       start,
		End:         start.Add(time.Hour),
		Price:       sale.NewPrice(10),
		TotalSupply: big.NewInt(100),
		AccountCap:  big.NewInt(1000),
		Vesting:     sale.VestingSchedule{Linear: 100 * time.Second},
	}

	f := &fixture{
		clock:   clock.NewTestClock(start.Add(time.Minute)),
		payment: asset.NewMemoryLedger("PAY", "custody"),
		token:   asset.NewMemoryLedger("TKN", "custody"),
	}
	f.token.Mint("custody", cfg.TotalSupply)
	f.payment.Mint("alice", big.NewInt(1000))

	contract, err := sale.New(context.Background(), cfg, sale.NewMemoryStore(), sale.Ledgers{
		Payment: f.payment,
		Token:   f.token,
		Custody: "custody",
	}, sale.WithClock(f.clock))
	require.NoError(t, err)

	f.server, err = NewServer(contract, Config{
		Tokens: map[string]string{aliceToken: "alice", bobToken: "bob"},
	})
	require.NoError(t, err)

	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.http.Close)
	return f
}

// call returns the decoded JSON-RPC error, if any.
func (f *fixture) call(t *testing.T, token, method string, args, reply interface{}) error {
	t.Helper()
	auth := ""
	if token != "" {
		auth = "Bearer " + token
	}
	return f.callWithAuth(t, auth, method, args, reply)
}

func (f *fixture) callWithAuth(t *testing.T, auth, method string, args, reply interface{}) error {
	t.Helper()

	body, err := json2.EncodeClientRequest(method, args)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.http.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := f.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	return json2.DecodeClientResponse(resp.Body, reply)
}

func requireCode(t *testing.T, err error, code json2.ErrorCode, kind string) {
	t.Helper()
	require.Error(t, err)
	rpcErr, ok := err.(*json2.Error)
	require.True(t, ok, "expected *json2.Error, got %T", err)
	assert.Equal(t, code, rpcErr.Code)
	data, ok := rpcErr.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, kind, data["kind"])
}

func TestServer_ContributeAndClaim(t *testing.T) {
	f := newFixture(t)

	var receipt ReceiptReply
	require.NoError(t, f.call(t, aliceToken, "Sale.Contribute", &ContributeArgs{Amount: "500"}, &receipt))
	assert.Equal(t, "alice", receipt.Participant)
	assert.Equal(t, "500", receipt.Accepted)
	assert.Equal(t, "50", receipt.Tokens)
	assert.Equal(t, "0", receipt.Refunded)
	assert.NotEmpty(t, receipt.ID)

	var alloc AllocationReply
	require.NoError(t, f.call(t, bobToken, "Sale.AllocationOf", &ParticipantArgs{Participant: "alice"}, &alloc))
	assert.True(t, alloc.Found)
	assert.Equal(t, "50", alloc.Allocated)
	assert.Equal(t, "0", alloc.Claimed)

	var totals TotalsReply
	require.NoError(t, f.call(t, bobToken, "Sale.Totals", &NoArgs{}, &totals))
	assert.Equal(t, "500", totals.Contributed)
	assert.Equal(t, "50", totals.Allocated)
	assert.Equal(t, "50", totals.Remaining)
	assert.Equal(t, 1, totals.Participants)

	// Halfway through the linear release.
	f.clock.SetTime(start.Add(time.Hour + 50*time.Second))

	var claimable AmountReply
	require.NoError(t, f.call(t, aliceToken, "Sale.ClaimableOf", &ParticipantArgs{}, &claimable))
	assert.Equal(t, "25", claimable.Amount)

	var claim ClaimReply
	require.NoError(t, f.call(t, aliceToken, "Sale.Claim", &NoArgs{}, &claim))
	assert.Equal(t, "25", claim.Amount)
	assert.Equal(t, "25", claim.Claimed)
	bal, err := f.token.BalanceOf(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "25", bal.String())

	err = f.call(t, aliceToken, "Sale.Claim", &NoArgs{}, &claim)
	requireCode(t, err, CodeValue, "value")
}

func TestServer_ErrorCodes(t *testing.T) {
	f := newFixture(t)
	var receipt ReceiptReply

	requireCode(t, f.call(t, "", "Sale.Contribute", &ContributeArgs{Amount: "10"}, &receipt), CodeUnauthorized, "unauthorized")
	requireCode(t, f.call(t, "wrong-token", "Sale.Phase", &NoArgs{}, &PhaseReply{}), CodeUnauthorized, "unauthorized")
	requireCode(t, f.call(t, aliceToken, "Sale.Contribute", &ContributeArgs{Amount: "ten"}, &receipt), CodeValue, "value")
	requireCode(t, f.call(t, aliceToken, "Sale.Contribute", &ContributeArgs{Amount: "1001"}, &receipt), CodeCap, "cap")

	// bob has no payment balance.
	requireCode(t, f.call(t, bobToken, "Sale.Contribute", &ContributeArgs{Amount: "10"}, &receipt), CodeTransfer, "transfer")

	requireCode(t, f.call(t, bobToken, "Sale.Claim", &NoArgs{}, &ClaimReply{}), CodeNotFound, "not_found")

	require.NoError(t, f.call(t, aliceToken, "Sale.Contribute", &ContributeArgs{Amount: "100"}, &receipt))
	requireCode(t, f.call(t, aliceToken, "Sale.Claim", &NoArgs{}, &ClaimReply{}), CodeValue, "value")

	f.clock.SetTime(start.Add(2 * time.Hour))
	requireCode(t, f.call(t, aliceToken, "Sale.Contribute", &ContributeArgs{Amount: "10"}, &receipt), CodePhase, "phase")
}

func TestServer_RequiresBearerScheme(t *testing.T) {
	f := newFixture(t)

	for _, auth := range []string{
		aliceToken,
		"Basic " + aliceToken,
		"Token " + aliceToken,
		"Bearer",
		"Bearer wrong-token",
	} {
		t.Run(auth, func(t *testing.T) {
			err := f.callWithAuth(t, auth, "Sale.Phase", &NoArgs{}, &PhaseReply{})
			requireCode(t, err, CodeUnauthorized, "unauthorized")
		})
	}

	var phase PhaseReply
	require.NoError(t, f.callWithAuth(t, "Bearer "+aliceToken, "Sale.Phase", &NoArgs{}, &phase))
	assert.Equal(t, "open", phase.Phase)
}

func TestRPCError_TransferPending(t *testing.T) {
	pending := fmt.Errorf("withdraw: %w", errors.WrapTransferPending("payment abc", context.DeadlineExceeded))
	rpcErr := rpcError(pending)
	assert.Equal(t, CodeTransferPending, rpcErr.Code)
	assert.Equal(t, map[string]string{"kind": "transfer_pending"}, rpcErr.Data)

	failed := rpcError(errors.WrapTransferFailed("withdraw", context.Canceled))
	assert.Equal(t, CodeTransfer, failed.Code)
	assert.Equal(t, map[string]string{"kind": "transfer"}, failed.Data)
}

func TestServer_Queries(t *testing.T) {
	f := newFixture(t)

	var phase PhaseReply
	require.NoError(t, f.call(t, aliceToken, "Sale.Phase", &NoArgs{}, &phase))
	assert.Equal(t, "open", phase.Phase)

	var participants ParticipantsReply
	require.NoError(t, f.call(t, aliceToken, "Sale.Participants", &NoArgs{}, &participants))
	assert.Empty(t, participants.Participants)
	assert.NotNil(t, participants.Participants)

	var alloc AllocationReply
	require.NoError(t, f.call(t, aliceToken, "Sale.AllocationOf", &ParticipantArgs{}, &alloc))
	assert.False(t, alloc.Found)
	assert.Equal(t, "alice", alloc.Participant)

	var cfgReply ConfigReply
	require.NoError(t, f.call(t, aliceToken, "Sale.Config", &NoArgs{}, &cfgReply))
	var cfg sale.SaleConfig
	require.NoError(t, json.Unmarshal(cfgReply.Config, &cfg))
	assert.Equal(t, "100", cfg.TotalSupply.String())
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)

	resp, err := f.http.Client().Get(f.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "open", body["phase"])
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServer_RequiresContract(t *testing.T) {
	_, err := NewServer(nil, Config{})
	assert.Error(t, err)
}
