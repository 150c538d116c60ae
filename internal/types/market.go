package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Candle is a single OHLCV bar for one symbol. Bid and Ask are only
// populated by providers that carry quote data alongside bars; spread
// features fall back to zero when they are absent.
type Candle struct {
	Symbol string                   `yaml:"symbol" json:"symbol" validate:"required"`
	Time   time.Time                `yaml:"time" json:"time" validate:"required"`
	Open   float64                  `yaml:"open" json:"open" validate:"required,gt=0"`
	High   float64                  `yaml:"high" json:"high" validate:"required,gt=0"`
	Low    float64                  `yaml:"low" json:"low" validate:"required,gt=0"`
	Close  float64                  `yaml:"close" json:"close" validate:"required,gt=0"`
	Volume float64                  `yaml:"volume" json:"volume" validate:"gte=0"`
	Bid    optional.Option[float64] `yaml:"bid" json:"bid"`
	Ask    optional.Option[float64] `yaml:"ask" json:"ask"`
}

// Validate validates the Candle struct.
func (c *Candle) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid candle", err)
	}

	if c.High < c.Low {
		return errors.Newf(errors.ErrCodeInvalidParameter, "candle high %f below low %f", c.High, c.Low)
	}

	return nil
}

// Mid returns the quote midpoint when both sides are present.
func (c *Candle) Mid() (float64, bool) {
	if c.Bid.IsNone() || c.Ask.IsNone() {
		return 0, false
	}

	return (c.Bid.Unwrap() + c.Ask.Unwrap()) / 2, true
}

// ParseInterval parses a string into a supported Interval.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case Interval1m, Interval5m, Interval15m, Interval1h, Interval4h, Interval1d:
		return Interval(s), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", s)
	}
}

// Duration returns the bar length of the interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}
