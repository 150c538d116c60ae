package provider

import (
	"context"
	"iter"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// PolygonProvider serves candles from the Polygon aggregates API.
// Polygon has no push feed on the REST surface, so Stream polls at
// the bar interval and emits bars whose close time has passed.
type PolygonProvider struct {
	client *polygon.Client
}

var _ Provider = (*PolygonProvider)(nil)

// NewPolygonProvider creates a provider authenticated with the given
// API key.
func NewPolygonProvider(apiKey string) *PolygonProvider {
	return &PolygonProvider{
		client: polygon.New(apiKey),
	}
}

// Name implements Provider.
func (p *PolygonProvider) Name() string {
	return string(ProviderPolygon)
}

// History implements Provider.
func (p *PolygonProvider) History(ctx context.Context, symbol string, from, to time.Time, interval types.Interval) ([]types.Candle, error) {
	multiplier, timespan, err := polygonTimespan(interval)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithLimit(50000)

	var out []types.Candle

	aggs := p.client.ListAggs(ctx, params)
	for aggs.Next() {
		agg := aggs.Item()
		out = append(out, types.Candle{
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if aggs.Err() != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "error iterating polygon aggregates", aggs.Err())
	}

	return out, nil
}

// Stream implements Provider by polling History once per bar interval
// and yielding bars not seen before. Bars still in progress are held
// back until their close time has passed.
func (p *PolygonProvider) Stream(ctx context.Context, symbols []string, interval types.Interval) iter.Seq2[types.Candle, error] {
	return func(yield func(types.Candle, error) bool) {
		barDuration := interval.Duration()

		lastSeen := make(map[string]time.Time, len(symbols))
		for _, symbol := range symbols {
			lastSeen[symbol] = time.Now().Add(-2 * barDuration)
		}

		ticker := time.NewTicker(barDuration)
		defer ticker.Stop()

		for {
			for _, symbol := range symbols {
				now := time.Now()

				candles, err := p.History(ctx, symbol, lastSeen[symbol].Add(time.Millisecond), now, interval)
				if err != nil {
					if !yield(types.Candle{}, err) {
						return
					}

					continue
				}

				for _, candle := range candles {
					// Skip the bar currently forming.
					if candle.Time.Add(barDuration).After(now) {
						continue
					}

					if !candle.Time.After(lastSeen[symbol]) {
						continue
					}

					if !yield(candle, nil) {
						return
					}

					lastSeen[symbol] = candle.Time
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}

func polygonTimespan(interval types.Interval) (int, models.Timespan, error) {
	switch interval {
	case types.Interval1m:
		return 1, models.Minute, nil
	case types.Interval5m:
		return 5, models.Minute, nil
	case types.Interval15m:
		return 15, models.Minute, nil
	case types.Interval1h:
		return 1, models.Hour, nil
	case types.Interval4h:
		return 4, models.Hour, nil
	case types.Interval1d:
		return 1, models.Day, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported polygon interval: %s", interval)
	}
}
