// Package provider delivers candles to the decision core: an
// append-only, timestamp-ordered sequence per symbol, finite in
// replay mode and unbounded in live mode.
package provider

import (
	"context"
	"iter"
	"time"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderBinance ProviderType = "binance"
	ProviderPolygon ProviderType = "polygon"
	ProviderReplay  ProviderType = "replay"
)

// Provider is a source of candles.
type Provider interface {
	// Name identifies the provider in logs and config.
	Name() string
	// History returns closed candles for warmup, oldest first.
	History(ctx context.Context, symbol string, from, to time.Time, interval types.Interval) ([]types.Candle, error)
	// Stream yields closed candles as they complete, in increasing
	// timestamp order per symbol. The iterator ends when ctx is
	// cancelled, or when a finite source is exhausted.
	Stream(ctx context.Context, symbols []string, interval types.Interval) iter.Seq2[types.Candle, error]
}

// Config carries the provider-specific settings the factory needs.
type Config struct {
	// APIKey authenticates against providers that require one.
	APIKey string `yaml:"api_key" json:"api_key"`
	// ReplayDir is the directory of per-symbol CSV files for the
	// replay provider.
	ReplayDir string `yaml:"replay_dir" json:"replay_dir"`
}

// NewProvider creates a market data provider of the given type.
func NewProvider(providerType ProviderType, cfg Config) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceProvider(), nil
	case ProviderPolygon:
		if cfg.APIKey == "" {
			return nil, errors.New(errors.ErrCodeInvalidProvider, "polygon provider requires an api key")
		}

		return NewPolygonProvider(cfg.APIKey), nil
	case ProviderReplay:
		if cfg.ReplayDir == "" {
			return nil, errors.New(errors.ErrCodeInvalidProvider, "replay provider requires a data directory")
		}

		return NewReplayProvider(cfg.ReplayDir), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}
