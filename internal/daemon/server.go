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
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/dotandev/lockup/internal/sale"
	"github.com/dotandev/lockup/internal/telemetry"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds daemon configuration
type Config struct {
	ListenAddr string
	// Tokens maps bearer tokens to the account a caller acts as.
	Tokens map[string]string
}

// Server exposes one sale contract over JSON-RPC 2.0.
type Server struct {
	contract *sale.Contract
	tokens   map[string]string
	addr     string
	handler  http.Handler
}

// NewServer registers the Sale service for contract.
func NewServer(contract *sale.Contract, config Config) (*Server, error) {
	if contract == nil {
		return nil, errors.WrapConfigError("daemon needs a contract", nil)
	}

	s := &Server{
		contract: contract,
		tokens:   make(map[string]string, len(config.Tokens)),
		addr:     config.ListenAddr,
	}
	for tok, acct := range config.Tokens {
		s.tokens[tok] = acct
	}

	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(&SaleService{server: s, tracer: telemetry.GetTracer()}, "Sale"); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)
	mux.HandleFunc("/health", s.health)
	s.handler = mux

	return s, nil
}

// Handler returns the HTTP handler serving /rpc and /health.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// caller resolves the account bound to the request's bearer token.
func (s *Server) caller(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", errors.WrapUnauthorized("missing authorization")
	}

	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return "", errors.WrapUnauthorized("authorization must use the Bearer scheme")
	}
	acct, ok := s.tokens[strings.TrimSpace(token)]
	if !ok {
		return "", errors.WrapUnauthorized("unknown token")
	}
	return acct, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"phase":  s.contract.Phase().String(),
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Logger.Info("Starting JSON-RPC server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Logger.Error("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Logger.Info("Shutting down JSON-RPC server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// RPC error codes for each error kind.
const (
	CodeUnauthorized json2.ErrorCode = -32001
	CodePhase        json2.ErrorCode = -32010
	CodeCap          json2.ErrorCode = -32011
	CodeEligibility  json2.ErrorCode = -32012
	CodeValue        json2.ErrorCode = -32013
	CodeTransfer     json2.ErrorCode = -32014
	CodeNotFound     json2.ErrorCode = -32015

	// CodeTransferPending means the transfer may still land; do not retry
	// before it is reconciled.
	CodeTransferPending json2.ErrorCode = -32016
)

var kindCodes = []struct {
	kind error
	code json2.ErrorCode
	name string
}{
	{errors.ErrPhase, CodePhase, "phase"},
	{errors.ErrCap, CodeCap, "cap"},
	{errors.ErrEligibility, CodeEligibility, "eligibility"},
	{errors.ErrValue, CodeValue, "value"},
	{errors.ErrTransfer, CodeTransfer, "transfer"},
	{errors.ErrNotFound, CodeNotFound, "not_found"},
	{errors.ErrUnauthorized, CodeUnauthorized, "unauthorized"},
	{errors.ErrValidation, json2.E_INVALID_REQ, "validation"},
}

// rpcError maps err to a JSON-RPC error carrying its kind.
func rpcError(err error) *json2.Error {
	if stderrors.Is(err, errors.ErrTransferPending) {
		return &json2.Error{Code: CodeTransferPending, Message: err.Error(), Data: map[string]string{"kind": "transfer_pending"}}
	}
	kind := errors.Kind(err)
	for _, kc := range kindCodes {
		if kind == kc.kind {
			return &json2.Error{Code: kc.code, Message: err.Error(), Data: map[string]string{"kind": kc.name}}
		}
	}
	return &json2.Error{Code: json2.E_SERVER, Message: err.Error(), Data: map[string]string{"kind": "internal"}}
}

// SaleService is registered as "Sale".
type SaleService struct {
	server *Server
	tracer trace.Tracer
}

func (svc *SaleService) begin(r *http.Request, method string) (context.Context, trace.Span, string, error) {
	ctx, span := svc.tracer.Start(r.Context(), "rpc.Sale."+method)
	caller, err := svc.server.caller(r)
	if err != nil {
		return ctx, span, "", err
	}
	span.SetAttributes(attribute.String("rpc.caller", caller))
	return ctx, span, caller, nil
}

func finish(span trace.Span, method string, err error) error {
	defer span.End()
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Logger.Debug("RPC failed", "method", method, "error", err)
	return rpcError(err)
}

func (svc *SaleService) Contribute(r *http.Request, args *ContributeArgs, reply *ReceiptReply) (err error) {
	ctx, span, caller, err := svc.begin(r, "Contribute")
	defer func() { err = finish(span, "Contribute", err) }()
	if err != nil {
		return err
	}

	amount, err := sale.ParseAmount(args.Amount)
	if err != nil {
		return err
	}
	receipt, err := svc.server.contract.Contribute(ctx, caller, amount)
	if err != nil {
		return err
	}

	logger.Logger.Info("Contribution accepted", "participant", caller, "accepted", receipt.Accepted.String(), "receipt", receipt.ID)
	*reply = newReceiptReply(receipt)
	return nil
}

func (svc *SaleService) Claim(r *http.Request, args *NoArgs, reply *ClaimReply) (err error) {
	ctx, span, caller, err := svc.begin(r, "Claim")
	defer func() { err = finish(span, "Claim", err) }()
	if err != nil {
		return err
	}

	receipt, err := svc.server.contract.Claim(ctx, caller)
	if err != nil {
		return err
	}

	logger.Logger.Info("Claim paid", "participant", caller, "amount", receipt.Amount.String(), "receipt", receipt.ID)
	*reply = newClaimReply(receipt)
	return nil
}

func (svc *SaleService) AllocationOf(r *http.Request, args *ParticipantArgs, reply *AllocationReply) (err error) {
	ctx, span, caller, err := svc.begin(r, "AllocationOf")
	defer func() { err = finish(span, "AllocationOf", err) }()
	if err != nil {
		return err
	}

	who := args.participant(caller)
	rec, found, err := svc.server.contract.AllocationOf(ctx, who)
	if err != nil {
		return err
	}
	*reply = AllocationReply{Participant: who, Found: found}
	if found {
		reply.Contributed = rec.Contributed.String()
		reply.Allocated = rec.Allocated.String()
		reply.Claimed = rec.Claimed.String()
	}
	return nil
}

func (svc *SaleService) ClaimableOf(r *http.Request, args *ParticipantArgs, reply *AmountReply) (err error) {
	ctx, span, caller, err := svc.begin(r, "ClaimableOf")
	defer func() { err = finish(span, "ClaimableOf", err) }()
	if err != nil {
		return err
	}

	amount, err := svc.server.contract.ClaimableOf(ctx, args.participant(caller))
	if err != nil {
		return err
	}
	reply.Amount = amount.String()
	return nil
}

func (svc *SaleService) Totals(r *http.Request, args *NoArgs, reply *TotalsReply) (err error) {
	ctx, span, _, err := svc.begin(r, "Totals")
	defer func() { err = finish(span, "Totals", err) }()
	if err != nil {
		return err
	}

	totals, err := svc.server.contract.SaleTotals(ctx)
	if err != nil {
		return err
	}
	*reply = newTotalsReply(totals)
	return nil
}

func (svc *SaleService) Config(r *http.Request, args *NoArgs, reply *ConfigReply) (err error) {
	_, span, _, err := svc.begin(r, "Config")
	defer func() { err = finish(span, "Config", err) }()
	if err != nil {
		return err
	}

	cfg := svc.server.contract.Config()
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	reply.Config = data
	return nil
}

func (svc *SaleService) Phase(r *http.Request, args *NoArgs, reply *PhaseReply) (err error) {
	_, span, _, err := svc.begin(r, "Phase")
	defer func() { err = finish(span, "Phase", err) }()
	if err != nil {
		return err
	}

	reply.Phase = svc.server.contract.Phase().String()
	return nil
}

func (svc *SaleService) Participants(r *http.Request, args *NoArgs, reply *ParticipantsReply) (err error) {
	ctx, span, _, err := svc.begin(r, "Participants")
	defer func() { err = finish(span, "Participants", err) }()
	if err != nil {
		return err
	}

	list, err := svc.server.contract.Participants(ctx)
	if err != nil {
		return err
	}
	if list == nil {
		list = []string{}
	}
	reply.Participants = list
	return nil
}
