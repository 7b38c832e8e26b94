// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stellar/go/amount"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
)

// Descriptor names a Stellar asset: "native" or "CODE:ISSUER".
type Descriptor struct {
	Code   string
	Issuer string
}

func (d Descriptor) IsNative() bool {
	return d.Code == "" && d.Issuer == ""
}

func (d Descriptor) String() string {
	if d.IsNative() {
		return "native"
	}
	return d.Code + ":" + d.Issuer
}

func (d Descriptor) txnAsset() txnbuild.Asset {
	if d.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: d.Code, Issuer: d.Issuer}
}

// ParseDescriptor parses "native" or "CODE:ISSUER".
func ParseDescriptor(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "native") || strings.EqualFold(s, "xlm") {
		return Descriptor{}, nil
	}

	code, issuer, ok := strings.Cut(s, ":")
	if !ok || code == "" || issuer == "" {
		return Descriptor{}, fmt.Errorf("asset %q: expected native or CODE:ISSUER", s)
	}
	if len(code) > 12 {
		return Descriptor{}, fmt.Errorf("asset %q: code longer than 12 characters", s)
	}
	if !strkey.IsValidEd25519PublicKey(issuer) {
		return Descriptor{}, fmt.Errorf("asset %q: invalid issuer account", s)
	}
	return Descriptor{Code: code, Issuer: issuer}, nil
}

// Keyring holds the signing keys the ledger may use, by account address.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]*keypair.Full
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]*keypair.Full)}
}

// Add parses a secret seed and returns its account address.
func (k *Keyring) Add(seed string) (string, error) {
	kp, err := keypair.ParseFull(strings.TrimSpace(seed))
	if err != nil {
		return "", fmt.Errorf("invalid secret seed: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[kp.Address()] = kp
	return kp.Address(), nil
}

func (k *Keyring) get(address string) (*keypair.Full, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	kp, ok := k.keys[address]
	return kp, ok
}

const (
	defaultTxTimeout    = time.Minute
	defaultPollInterval = 2 * time.Second

	// A payment still unseen this long after its max time is expired.
	expirySlack = 30 * time.Second
)

// StellarLedger settles one asset as Stellar payments through Horizon.
// Amounts are in stroops, the asset's smallest unit.
//
// A submit that fails without result codes has an unknown outcome. The
// payment is then looked up by hash until it is found or its time bound
// has passed. If ctx ends first the error wraps errors.ErrTransferPending.
type StellarLedger struct {
	Horizon           horizonclient.ClientInterface
	NetworkPassphrase string
	Asset             Descriptor
	Custody           string
	Keys              *Keyring

	// TxTimeout bounds how long a payment may be applied. Default one minute.
	TxTimeout time.Duration
	// PollInterval paces lookups of a payment with an unknown outcome.
	PollInterval time.Duration
	Clock        clock.Clock
}

func (l *StellarLedger) clock() clock.Clock {
	if l.Clock == nil {
		return clock.NewDefaultClock()
	}
	return l.Clock
}

func (l *StellarLedger) txTimeout() time.Duration {
	if l.TxTimeout <= 0 {
		return defaultTxTimeout
	}
	return l.TxTimeout
}

func (l *StellarLedger) pollInterval() time.Duration {
	if l.PollInterval <= 0 {
		return defaultPollInterval
	}
	return l.PollInterval
}

func (l *StellarLedger) Deposit(ctx context.Context, from string, amt *big.Int) error {
	return l.pay(ctx, from, l.Custody, amt)
}

func (l *StellarLedger) Withdraw(ctx context.Context, to string, amt *big.Int) error {
	return l.pay(ctx, l.Custody, to, amt)
}

func (l *StellarLedger) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acct, err := l.Horizon.AccountDetail(horizonclient.AccountRequest{AccountID: account})
	if err != nil {
		return nil, describeHorizonError("account detail", err)
	}

	var raw string
	if l.Asset.IsNative() {
		raw, err = acct.GetNativeBalance()
		if err != nil {
			return nil, err
		}
	} else {
		raw = acct.GetCreditBalance(l.Asset.Code, l.Asset.Issuer)
	}
	if raw == "" {
		return new(big.Int), nil
	}

	stroops, err := amount.ParseInt64(raw)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return big.NewInt(stroops), nil
}

func (l *StellarLedger) pay(ctx context.Context, from, to string, amt *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amt == nil || amt.Sign() <= 0 {
		return fmt.Errorf("%s: payment amount must be positive", l.Asset)
	}
	if !amt.IsInt64() {
		return fmt.Errorf("%s: payment amount %s exceeds the stroop range", l.Asset, amt)
	}
	if !strkey.IsValidEd25519PublicKey(to) {
		return fmt.Errorf("invalid destination account %q", to)
	}

	kp, ok := l.Keys.get(from)
	if !ok {
		return fmt.Errorf("no signing key for %s", from)
	}

	source, err := l.Horizon.AccountDetail(horizonclient.AccountRequest{AccountID: from})
	if err != nil {
		return describeHorizonError("account detail", err)
	}

	maxTime := l.clock().Now().Add(l.txTimeout())
	tx, err := buildPayment(&source, to, amount.StringFromInt64(amt.Int64()), l.Asset.txnAsset(), maxTime)
	if err != nil {
		return err
	}
	tx, err = tx.Sign(l.NetworkPassphrase, kp)
	if err != nil {
		return fmt.Errorf("sign payment: %w", err)
	}
	hash, err := tx.HashHex(l.NetworkPassphrase)
	if err != nil {
		return fmt.Errorf("hash payment: %w", err)
	}

	if _, err := l.Horizon.SubmitTransaction(tx); err != nil {
		if rejected(err) {
			return describeHorizonError("submit payment", err)
		}
		logger.Logger.Warn("Payment outcome unknown, looking it up", "hash", hash, "error", err)
		if err := l.resolve(ctx, hash, maxTime, err); err != nil {
			return err
		}
	}

	logger.Logger.Debug("Payment submitted",
		"asset", l.Asset.String(),
		"from", from,
		"to", to,
		"amount", amt.String(),
		"hash", hash,
	)
	return nil
}

// resolve looks a submitted payment up by hash. It returns nil once the
// payment applied and a plain error once it failed or expired unapplied.
func (l *StellarLedger) resolve(ctx context.Context, hash string, maxTime time.Time, cause error) error {
	ticker := time.NewTicker(l.pollInterval())
	defer ticker.Stop()

	for {
		tx, err := l.Horizon.TransactionDetail(hash)
		switch {
		case err == nil && tx.Successful:
			return nil
		case err == nil:
			return fmt.Errorf("submit payment: %s failed in ledger %d", hash, tx.Ledger)
		case horizonclient.IsNotFoundError(err) && l.clock().Now().After(maxTime.Add(expirySlack)):
			return fmt.Errorf("submit payment: %s expired unapplied: %w", hash, cause)
		}

		select {
		case <-ctx.Done():
			logger.Logger.Error("Payment outcome still unknown", "hash", hash, "error", cause)
			return errors.WrapTransferPending("payment "+hash, cause)
		case <-ticker.C:
		}
	}
}

// rejected reports whether Horizon refused the transaction outright, so it
// can never apply.
func rejected(err error) bool {
	var hErr *horizonclient.Error
	if !stderrors.As(err, &hErr) {
		return false
	}
	codes, cerr := hErr.ResultCodes()
	return cerr == nil && codes != nil && codes.TransactionCode != ""
}

func buildPayment(source *hProtocol.Account, to, amt string, asset txnbuild.Asset, maxTime time.Time) (*txnbuild.Transaction, error) {
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        source,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{Destination: to, Amount: amt, Asset: asset},
		},
		BaseFee:       txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimebounds(0, maxTime.Unix())},
	})
	if err != nil {
		return nil, fmt.Errorf("build payment: %w", err)
	}
	return tx, nil
}

func describeHorizonError(op string, err error) error {
	if hErr, ok := err.(*horizonclient.Error); ok {
		codes, cerr := hErr.ResultCodes()
		if cerr == nil && codes != nil {
			return fmt.Errorf("%s: %s (tx=%s ops=%v)", op, hErr.Problem.Title, codes.TransactionCode, codes.OperationCodes)
		}
		return fmt.Errorf("%s: %s", op, hErr.Problem.Title)
	}
	return fmt.Errorf("%s: %w", op, err)
}
