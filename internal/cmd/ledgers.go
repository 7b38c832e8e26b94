// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/dotandev/lockup/internal/asset"
	"github.com/dotandev/lockup/internal/config"
	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/dotandev/lockup/internal/sale"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/strkey"
)

// hostLedgers are the asset ledgers for one backend. seed runs once the
// contract is open and may credit balances the backend cannot persist.
type hostLedgers struct {
	sale.Ledgers
	seed func(ctx context.Context, c *sale.Contract) error
}

func buildLedgers(cfg *config.Config) (*hostLedgers, error) {
	switch cfg.LedgerBackend {
	case config.BackendMemory:
		return memoryLedgers(cfg)
	case config.BackendStellar:
		return stellarLedgers(cfg)
	default:
		return nil, errors.WrapConfigError(fmt.Sprintf("unknown ledger backend %q", cfg.LedgerBackend), nil)
	}
}

// memoryLedgers keeps balances in process. On every start custody is
// credited with what the persisted sale says it should hold, and each API
// account receives DevFunding payment units.
func memoryLedgers(cfg *config.Config) (*hostLedgers, error) {
	payment := asset.NewMemoryLedger("PAY", cfg.CustodyAccount)
	token := asset.NewMemoryLedger("TKN", cfg.CustodyAccount)

	funding := new(big.Int)
	if cfg.DevFunding != "" {
		v, err := sale.ParseAmount(cfg.DevFunding)
		if err != nil {
			return nil, errors.WrapConfigError("dev_funding", err)
		}
		funding = v
	}

	seed := func(ctx context.Context, c *sale.Contract) error {
		totals, err := c.SaleTotals(ctx)
		if err != nil {
			return err
		}
		held := new(big.Int).Sub(c.Config().TotalSupply, totals.Claimed)
		token.Mint(cfg.CustodyAccount, held)
		payment.Mint(cfg.CustodyAccount, totals.Contributed)

		if funding.Sign() > 0 {
			for _, acct := range cfg.APITokens {
				payment.Mint(acct, funding)
			}
		}
		logger.Logger.Info("Memory ledgers seeded",
			"custody", cfg.CustodyAccount,
			"tokens", held.String(),
			"payments", totals.Contributed.String(),
			"dev_funding", funding.String(),
		)
		return nil
	}

	return &hostLedgers{
		Ledgers: sale.Ledgers{Payment: payment, Token: token, Custody: cfg.CustodyAccount},
		seed:    seed,
	}, nil
}

func stellarLedgers(cfg *config.Config) (*hostLedgers, error) {
	keys := asset.NewKeyring()
	custody, err := keys.Add(cfg.CustodySecret)
	if err != nil {
		return nil, errors.WrapConfigError("custody_secret", err)
	}
	for i, secret := range cfg.ParticipantSecrets {
		if _, err := keys.Add(secret); err != nil {
			return nil, errors.WrapConfigError(fmt.Sprintf("participant_secrets[%d]", i), err)
		}
	}

	payAsset, err := asset.ParseDescriptor(cfg.PaymentAsset)
	if err != nil {
		return nil, errors.WrapConfigError("payment_asset", err)
	}
	saleAsset, err := asset.ParseDescriptor(cfg.SaleAsset)
	if err != nil {
		return nil, errors.WrapConfigError("sale_asset", err)
	}

	horizon := &horizonclient.Client{
		HorizonURL: cfg.HorizonURL,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
	}

	logger.Logger.Info("Using Stellar ledgers",
		"horizon", cfg.HorizonURL,
		"custody", custody,
		"payment_asset", payAsset.String(),
		"sale_asset", saleAsset.String(),
	)

	return &hostLedgers{
		Ledgers: sale.Ledgers{
			Payment: &asset.StellarLedger{
				Horizon:           horizon,
				NetworkPassphrase: cfg.NetworkPassphrase,
				Asset:             payAsset,
				Custody:           custody,
				Keys:              keys,
			},
			Token: &asset.StellarLedger{
				Horizon:           horizon,
				NetworkPassphrase: cfg.NetworkPassphrase,
				Asset:             saleAsset,
				Custody:           custody,
				Keys:              keys,
			},
			Custody: custody,
		},
		seed: func(context.Context, *sale.Contract) error { return nil },
	}, nil
}

// validateAdmin rejects a sale whose admin is not an identity the backend
// can address.
func validateAdmin(backend config.LedgerBackend, admin string) error {
	if admin == "" {
		return errors.WrapValidationError("sale admin is required")
	}
	if backend == config.BackendStellar && !strkey.IsValidEd25519PublicKey(admin) {
		return errors.WrapValidationError(fmt.Sprintf("sale admin %q is not a Stellar account", admin))
	}
	return nil
}
