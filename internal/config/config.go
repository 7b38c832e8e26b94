// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dotandev/lockup/internal/errors"
	"github.com/dotandev/lockup/internal/logger"
	"github.com/joho/godotenv"
)

type LedgerBackend string

const (
	BackendMemory  LedgerBackend = "memory"
	BackendStellar LedgerBackend = "stellar"
)

// Config is the saled host configuration. The sale itself is described by
// the JSON document at SaleConfigPath.
type Config struct {
	ListenAddr     string
	DBPath         string
	SaleConfigPath string
	LogLevel       string
	LogFormat      string

	Telemetry    bool
	OTLPEndpoint string

	// APITokens maps bearer tokens to the account the caller acts as.
	APITokens map[string]string

	LedgerBackend LedgerBackend
	// CustodyAccount names the contract account on the memory backend.
	CustodyAccount string
	// DevFunding is credited to every API account's payment balance on the
	// memory backend.
	DevFunding string

	Network           Network
	HorizonURL        string
	NetworkPassphrase string
	CustodySecret     string
	// ParticipantSecrets lets the stellar backend sign deposits on behalf of
	// participant accounts.
	ParticipantSecrets []string
	PaymentAsset       string
	SaleAsset          string

	// WebhookURL receives a notice for every accepted contribution and claim.
	WebhookURL  string
	WebhookType string
}

var defaultConfig = &Config{
	ListenAddr:     "127.0.0.1:8645",
	DBPath:         filepath.Join(os.ExpandEnv("$HOME"), ".saled", "ledger.db"),
	SaleConfigPath: "sale.json",
	LogLevel:       "info",
	LogFormat:      "text",
	OTLPEndpoint:   "localhost:4318",
	LedgerBackend:  BackendMemory,
	CustodyAccount: "custody",
	Network:        NetworkTestnet,
	PaymentAsset:   "native",
}

// DefaultConfig returns a copy of the built-in defaults.
func DefaultConfig() *Config {
	c := *defaultConfig
	c.APITokens = make(map[string]string)
	return &c
}

// Load builds the configuration from defaults, a .env file, SALED_*
// environment variables and finally a TOML file.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.loadFromFile(); err != nil {
		return nil, err
	}

	cfg.applyNetworkDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.WrapConfigError("failed to load "+path, err)
	}
	logger.Logger.Debug("Loaded environment file", "path", path)
	return nil
}

func (c *Config) loadFromEnv() error {
	c.ListenAddr = getEnv("SALED_LISTEN_ADDR", c.ListenAddr)
	c.DBPath = getEnv("SALED_DB_PATH", c.DBPath)
	c.SaleConfigPath = getEnv("SALED_SALE_CONFIG", c.SaleConfigPath)
	c.LogLevel = getEnv("SALED_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("SALED_LOG_FORMAT", c.LogFormat)
	c.OTLPEndpoint = getEnv("SALED_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.LedgerBackend = LedgerBackend(getEnv("SALED_LEDGER_BACKEND", string(c.LedgerBackend)))
	c.CustodyAccount = getEnv("SALED_CUSTODY_ACCOUNT", c.CustodyAccount)
	c.DevFunding = getEnv("SALED_DEV_FUNDING", c.DevFunding)
	c.Network = Network(getEnv("SALED_NETWORK", string(c.Network)))
	c.HorizonURL = getEnv("SALED_HORIZON_URL", c.HorizonURL)
	c.NetworkPassphrase = getEnv("SALED_NETWORK_PASSPHRASE", c.NetworkPassphrase)
	c.CustodySecret = getEnv("SALED_CUSTODY_SECRET", c.CustodySecret)
	c.PaymentAsset = getEnv("SALED_PAYMENT_ASSET", c.PaymentAsset)
	c.SaleAsset = getEnv("SALED_SALE_ASSET", c.SaleAsset)
	c.WebhookURL = getEnv("SALED_WEBHOOK_URL", c.WebhookURL)
	c.WebhookType = getEnv("SALED_WEBHOOK_TYPE", c.WebhookType)

	if v := os.Getenv("SALED_TELEMETRY"); v != "" {
		c.Telemetry = parseBool(v)
	}
	if v := os.Getenv("SALED_PARTICIPANT_SECRETS"); v != "" {
		c.ParticipantSecrets = splitList(v)
	}
	if v := os.Getenv("SALED_API_TOKENS"); v != "" {
		tokens, err := parseTokens(splitList(v))
		if err != nil {
			return err
		}
		c.APITokens = tokens
	}
	return nil
}

// loadFromFile reads SALED_CONFIG when set, otherwise the first of the
// default locations that exists.
func (c *Config) loadFromFile() error {
	if path := os.Getenv("SALED_CONFIG"); path != "" {
		if err := c.loadTOML(path); err != nil {
			return errors.WrapConfigError("failed to read "+path, err)
		}
		return nil
	}

	paths := []string{
		".saled.toml",
		filepath.Join(os.ExpandEnv("$HOME"), ".saled.toml"),
		"/etc/saled/config.toml",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := c.loadTOML(path); err != nil {
			return errors.WrapConfigError("failed to read "+path, err)
		}
		logger.Logger.Debug("Loaded config file", "path", path)
		return nil
	}
	return nil
}

func (c *Config) loadTOML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.parseTOML(string(data))
}

// fileConfig is the TOML file layout. Keys left out of the file keep the
// value loaded before it.
type fileConfig struct {
	ListenAddr         *string        `toml:"listen_addr"`
	DBPath             *string        `toml:"db_path"`
	SaleConfigPath     *string        `toml:"sale_config"`
	LogLevel           *string        `toml:"log_level"`
	LogFormat          *string        `toml:"log_format"`
	Telemetry          *bool          `toml:"telemetry"`
	OTLPEndpoint       *string        `toml:"otlp_endpoint"`
	LedgerBackend      *LedgerBackend `toml:"ledger_backend"`
	CustodyAccount     *string        `toml:"custody_account"`
	DevFunding         *string        `toml:"dev_funding"`
	Network            *Network       `toml:"network"`
	HorizonURL         *string        `toml:"horizon_url"`
	NetworkPassphrase  *string        `toml:"network_passphrase"`
	CustodySecret      *string        `toml:"custody_secret"`
	ParticipantSecrets stringList     `toml:"participant_secrets"`
	PaymentAsset       *string        `toml:"payment_asset"`
	SaleAsset          *string        `toml:"sale_asset"`
	WebhookURL         *string        `toml:"webhook_url"`
	WebhookType        *string        `toml:"webhook_type"`
	APITokens          stringList     `toml:"api_tokens"`
}

// stringList accepts an array of strings or one comma separated string.
type stringList []string

func (l *stringList) UnmarshalTOML(v interface{}) error {
	switch v := v.(type) {
	case string:
		*l = splitList(v)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected a list of strings, got %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*l = out
	default:
		return fmt.Errorf("expected a string or a list of strings, got %T", v)
	}
	return nil
}

func (c *Config) parseTOML(content string) error {
	var fc fileConfig
	md, err := toml.Decode(content, &fc)
	if err != nil {
		return err
	}
	for _, key := range md.Undecoded() {
		logger.Logger.Warn("Unknown config key", "key", key.String())
	}

	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.DBPath, fc.DBPath)
	setString(&c.SaleConfigPath, fc.SaleConfigPath)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	setString(&c.OTLPEndpoint, fc.OTLPEndpoint)
	setString(&c.CustodyAccount, fc.CustodyAccount)
	setString(&c.DevFunding, fc.DevFunding)
	setString(&c.HorizonURL, fc.HorizonURL)
	setString(&c.NetworkPassphrase, fc.NetworkPassphrase)
	setString(&c.CustodySecret, fc.CustodySecret)
	setString(&c.PaymentAsset, fc.PaymentAsset)
	setString(&c.SaleAsset, fc.SaleAsset)
	setString(&c.WebhookURL, fc.WebhookURL)
	setString(&c.WebhookType, fc.WebhookType)

	if fc.Telemetry != nil {
		c.Telemetry = *fc.Telemetry
	}
	if fc.LedgerBackend != nil {
		c.LedgerBackend = *fc.LedgerBackend
	}
	if fc.Network != nil {
		c.Network = *fc.Network
	}
	if fc.ParticipantSecrets != nil {
		c.ParticipantSecrets = fc.ParticipantSecrets
	}
	if fc.APITokens != nil {
		tokens, err := parseTokens(fc.APITokens)
		if err != nil {
			return err
		}
		c.APITokens = tokens
	}
	return nil
}

func setString(dst, v *string) {
	if v != nil {
		*dst = *v
	}
}

// applyNetworkDefaults fills Horizon URL and passphrase from the named
// network when they were not set explicitly.
func (c *Config) applyNetworkDefaults() {
	preset, ok := LookupNetwork(c.Network)
	if !ok {
		return
	}
	if c.HorizonURL == "" {
		c.HorizonURL = preset.HorizonURL
	}
	if c.NetworkPassphrase == "" {
		c.NetworkPassphrase = preset.NetworkPassphrase
	}
}

// Validate runs the default validators.
func (c *Config) Validate() error {
	return RunValidators(c, DefaultValidators())
}

// Account returns the account bound to token.
func (c *Config) Account(token string) (string, bool) {
	acct, ok := c.APITokens[token]
	return acct, ok
}

// String omits secrets.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Listen: %s, DB: %s, Sale: %s, Backend: %s, Network: %s, Tokens: %d}",
		c.ListenAddr, c.DBPath, c.SaleConfigPath, c.LedgerBackend, c.Network, len(c.APITokens),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "yes" || v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseTokens reads "token=account" pairs.
func parseTokens(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		token, account, ok := strings.Cut(pair, "=")
		token, account = strings.TrimSpace(token), strings.TrimSpace(account)
		if !ok || token == "" || account == "" {
			return nil, errors.WrapConfigError("api token entries must be token=account", nil)
		}
		out[token] = account
	}
	return out, nil
}
