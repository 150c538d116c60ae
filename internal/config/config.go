// Package config loads and validates the full application
// configuration. A bad config is fatal at startup; the process never
// degrades into unguarded trading.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quantgate-lab/quantgate/internal/risk"
	"github.com/quantgate-lab/quantgate/internal/status"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
	"github.com/quantgate-lab/quantgate/pkg/marketdata/provider"
	"github.com/quantgate-lab/quantgate/pkg/schema"
)

// Model types accepted in the models section.
const (
	ModelMomentum      = "momentum"
	ModelMeanReversion = "mean_reversion"
	ModelHTTP          = "http"
)

// Venue types accepted in the venue section.
const (
	VenueBinance = "binance"
	VenueBridge  = "bridge"
)

// ModelConfig declares one member of the ensemble.
type ModelConfig struct {
	// Type selects the implementation.
	Type string `yaml:"type" json:"type" jsonschema:"enum=momentum,enum=mean_reversion,enum=http" validate:"required,oneof=momentum mean_reversion http"`

	// Name identifies the model in votes and logs. Defaults to Type.
	Name string `yaml:"name" json:"name"`

	// Endpoint is the base URL of an HTTP model service. Required for
	// type http.
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required_if=Type http,omitempty,url"`
}

// VenueConfig declares the execution backend.
type VenueConfig struct {
	// Type selects the venue implementation.
	Type string `yaml:"type" json:"type" jsonschema:"enum=binance,enum=bridge" validate:"required,oneof=binance bridge"`

	// APIKey and SecretKey authenticate against Binance.
	APIKey    string `yaml:"api_key" json:"api_key" validate:"required_if=Type binance"`
	SecretKey string `yaml:"secret_key" json:"secret_key" validate:"required_if=Type binance"`

	// ReqURL and PubURL are the bridge's request and publish channel
	// websocket endpoints.
	ReqURL string `yaml:"req_url" json:"req_url" validate:"required_if=Type bridge,omitempty,url"`
	PubURL string `yaml:"pub_url" json:"pub_url" validate:"required_if=Type bridge,omitempty,url"`

	// Symbol is the single instrument a bridge terminal trades.
	Symbol string `yaml:"symbol" json:"symbol" validate:"required_if=Type bridge"`
}

// Config is the root application configuration.
type Config struct {
	// Symbols is the set of instruments to trade.
	Symbols []string `yaml:"symbols" json:"symbols" validate:"required,min=1,dive,required"`

	// Interval is the bar interval.
	Interval types.Interval `yaml:"interval" json:"interval" jsonschema:"default=1m"`

	// WarmupBars is the history depth fetched before going live.
	WarmupBars int `yaml:"warmup_bars" json:"warmup_bars" jsonschema:"default=64" validate:"gte=0"`

	// InitialBalanceUSD seeds the account when the venue cannot
	// report a balance.
	InitialBalanceUSD float64 `yaml:"initial_balance_usd" json:"initial_balance_usd" validate:"gt=0"`

	// Provider selects the market data source.
	Provider provider.ProviderType `yaml:"provider" json:"provider" jsonschema:"enum=binance,enum=polygon,enum=replay" validate:"required,oneof=binance polygon replay"`

	// ProviderConfig carries provider-specific settings.
	ProviderConfig provider.Config `yaml:"provider_config" json:"provider_config"`

	// Models declares the ensemble members.
	Models []ModelConfig `yaml:"models" json:"models" validate:"required,min=1,dive"`

	// Quorum is the minimum number of votes for consensus. Zero means
	// all configured models.
	Quorum int `yaml:"quorum" json:"quorum" validate:"gte=0"`

	// ModelTimeout bounds each per-tick ensemble evaluation.
	ModelTimeout types.Duration `yaml:"model_timeout" json:"model_timeout" validate:"gt=0"`

	// Risk configures the gate and the monitor.
	Risk risk.Config `yaml:"risk" json:"risk"`

	// Venue configures the execution backend.
	Venue VenueConfig `yaml:"venue" json:"venue" validate:"required"`

	// AuditDBPath is the DuckDB file for the decision log. Empty
	// disables persistence.
	AuditDBPath string `yaml:"audit_db_path" json:"audit_db_path"`

	// LogPath mirrors the structured log to a file. Empty keeps logs
	// on stdout only.
	LogPath string `yaml:"log_path" json:"log_path"`

	// Status configures the HTTP status surface. Empty addr disables
	// the server.
	Status status.Config `yaml:"status" json:"status" validate:"-"`
}

// Default returns the configuration skeleton with every defaultable
// field filled in. Load unmarshals on top of it, so omitted keys keep
// these values.
func Default() Config {
	return Config{
		Symbols:           nil,
		Interval:          types.Interval1m,
		WarmupBars:        64,
		InitialBalanceUSD: 100_000,
		Provider:          provider.ProviderBinance,
		ProviderConfig:    provider.Config{APIKey: "", ReplayDir: ""},
		Models:            nil,
		Quorum:            0,
		ModelTimeout:      types.Duration(2 * time.Second),
		Risk:              risk.DefaultConfig(),
		Venue:             VenueConfig{}, //nolint:exhaustruct // must come from the file
		AuditDBPath:       "",
		LogPath:           "",
		Status:            status.Config{Addr: "", ResumeToken: ""},
	}
}

// Load reads, parses and validates the config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	return Parse(string(raw))
}

// Parse parses and validates a YAML config document.
func Parse(raw string) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if _, err := types.ParseInterval(string(c.Interval)); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid interval", err)
	}

	if err := c.Risk.Validate(); err != nil {
		return err
	}

	if c.Quorum > len(c.Models) {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"quorum %d exceeds configured models (%d)", c.Quorum, len(c.Models))
	}

	return nil
}

// GetConfigSchema returns the JSON schema for Config.
func GetConfigSchema() (string, error) {
	return schema.ToJSONSchema(&Config{}) //nolint:exhaustruct // Empty config for schema generation
}
