// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"

	"github.com/dotandev/lockup/internal/asset"
	"github.com/dotandev/lockup/internal/errors"
	"github.com/stellar/go/strkey"
)

// Validator validates a specific aspect of the configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// ServerValidator checks the listener and storage paths.
type ServerValidator struct{}

func (v ServerValidator) Validate(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return errors.WrapValidationError("listen_addr cannot be empty")
	}
	if cfg.DBPath == "" {
		return errors.WrapValidationError("db_path cannot be empty")
	}
	if cfg.SaleConfigPath == "" {
		return errors.WrapValidationError("sale_config cannot be empty")
	}
	return nil
}

// LogValidator checks that the log level and format are known values.
type LogValidator struct{}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (v LogValidator) Validate(cfg *Config) error {
	if cfg.LogLevel != "" && !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return errors.WrapValidationError("log_level must be one of: debug, info, warn, error")
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return errors.WrapValidationError("log_format must be text or json")
	}
	return nil
}

// TelemetryValidator requires an endpoint when tracing is on.
type TelemetryValidator struct{}

func (v TelemetryValidator) Validate(cfg *Config) error {
	if cfg.Telemetry && cfg.OTLPEndpoint == "" {
		return errors.WrapValidationError("otlp_endpoint is required when telemetry is enabled")
	}
	return nil
}

// TokenValidator checks the bearer token table.
type TokenValidator struct{}

func (v TokenValidator) Validate(cfg *Config) error {
	for token, account := range cfg.APITokens {
		if len(token) < 8 {
			return errors.WrapValidationError("api tokens must be at least 8 characters")
		}
		if cfg.LedgerBackend == BackendStellar && !strkey.IsValidEd25519PublicKey(account) {
			return errors.WrapValidationError(fmt.Sprintf("api token account %q is not a Stellar account", account))
		}
	}
	return nil
}

// LedgerValidator checks the backend-specific settings.
type LedgerValidator struct{}

func (v LedgerValidator) Validate(cfg *Config) error {
	switch cfg.LedgerBackend {
	case BackendMemory:
		if cfg.CustodyAccount == "" {
			return errors.WrapValidationError("custody_account cannot be empty")
		}
		return nil
	case BackendStellar:
	default:
		return errors.WrapValidationError(fmt.Sprintf("unknown ledger_backend %q", cfg.LedgerBackend))
	}

	if !strings.HasPrefix(cfg.HorizonURL, "http://") && !strings.HasPrefix(cfg.HorizonURL, "https://") {
		return errors.WrapValidationError("horizon_url must use http or https scheme")
	}
	if cfg.NetworkPassphrase == "" {
		return errors.WrapValidationError("network_passphrase cannot be empty")
	}
	if cfg.CustodySecret == "" {
		return errors.WrapValidationError("custody_secret is required for the stellar backend")
	}
	if _, err := asset.ParseDescriptor(cfg.PaymentAsset); err != nil {
		return errors.WrapValidationError("payment_asset: " + err.Error())
	}
	sale, err := asset.ParseDescriptor(cfg.SaleAsset)
	if err != nil {
		return errors.WrapValidationError("sale_asset: " + err.Error())
	}
	if sale.IsNative() {
		return errors.WrapValidationError("sale_asset must be an issued CODE:ISSUER asset")
	}
	return nil
}

// WebhookValidator checks the optional event webhook.
type WebhookValidator struct{}

func (v WebhookValidator) Validate(cfg *Config) error {
	if cfg.WebhookURL == "" {
		return nil
	}
	if !strings.HasPrefix(cfg.WebhookURL, "http://") && !strings.HasPrefix(cfg.WebhookURL, "https://") {
		return errors.WrapValidationError("webhook_url must use http or https scheme")
	}
	switch cfg.WebhookType {
	case "", "json", "slack", "discord":
	default:
		return errors.WrapValidationError("webhook_type must be json, slack or discord")
	}
	return nil
}

// DefaultValidators returns the standard set of validators.
func DefaultValidators() []Validator {
	return []Validator{
		ServerValidator{},
		LogValidator{},
		TelemetryValidator{},
		LedgerValidator{},
		TokenValidator{},
		WebhookValidator{},
	}
}

// RunValidators executes each validator against the config, returning the
// first error encountered.
func RunValidators(cfg *Config, validators []Validator) error {
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}
