// Package feature turns a stream of closed candles into fixed-shape
// feature vectors. One Pipeline serves one symbol; it keeps a bounded
// ring of recent candles and emits nothing until the longest lookback
// is covered.
package feature

import (
	"math"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

const (
	momentumShortLookback = 5
	momentumLongLookback  = 20
	volWindow             = 20
	rsiPeriod             = 14
	atrPeriod             = 14

	// window must cover the longest lookback plus the extra bar the
	// return-based features need.
	window = 32

	// annualization factor for 1m bars, sqrt(minutes per 365d year)
	minutesPerYear = 365 * 24 * 60
)

// Pipeline computes the feature vector for a single symbol. Not safe
// for concurrent use; the engine drives each symbol from one goroutine.
type Pipeline struct {
	symbol  string
	candles []types.Candle
	// start and count implement the ring over candles
	start int
	count int

	// Wilder state for RSI and ATR, seeded once warm
	avgGain   float64
	avgLoss   float64
	avgTR     float64
	rsiSeeded bool
	atrSeeded bool
	lastClose float64
	haveClose bool
	annualize float64
}

// NewPipeline creates a pipeline for one symbol at the given bar
// interval. The interval only affects volatility annualization.
func NewPipeline(symbol string, interval types.Interval) *Pipeline {
	barsPerYear := float64(minutesPerYear)
	if d := interval.Duration(); d > 0 {
		barsPerYear = float64(minutesPerYear) / d.Minutes()
	}

	return &Pipeline{
		symbol:    symbol,
		candles:   make([]types.Candle, window),
		annualize: math.Sqrt(barsPerYear),
	}
}

// Symbol returns the symbol this pipeline serves.
func (p *Pipeline) Symbol() string {
	return p.symbol
}

// Warm reports whether enough history has accumulated to emit vectors.
func (p *Pipeline) Warm() bool {
	return p.count > momentumLongLookback
}

// Update ingests one closed candle and returns the feature vector for
// it. The second return is false while the pipeline is warming up.
// Candles must arrive in time order; an out-of-order candle is an
// error and mutates nothing.
func (p *Pipeline) Update(candle types.Candle) (types.FeatureVector, bool, error) {
	if candle.Symbol != p.symbol {
		return types.FeatureVector{}, false, errors.Newf(errors.ErrCodeInvalidSymbol,
			"pipeline for %s received candle for %s", p.symbol, candle.Symbol)
	}

	if p.count > 0 {
		last := p.at(p.count - 1)
		if !candle.Time.After(last.Time) {
			return types.FeatureVector{}, false, errors.Newf(errors.ErrCodeOutOfOrderCandle,
				"candle at %s does not advance past %s", candle.Time, last.Time)
		}
	}

	p.updateWilder(candle)
	p.push(candle)

	if !p.Warm() {
		return types.FeatureVector{}, false, nil
	}

	fv := types.FeatureVector{
		Symbol: p.symbol,
		Time:   candle.Time,
		Close:  candle.Close,
		Names: []string{
			types.FeatureMomentum5,
			types.FeatureMomentum20,
			types.FeatureRealizedVol,
			types.FeatureRSI14,
			types.FeatureATR14,
			types.FeatureSpreadBPS,
		},
		Values: []float64{
			p.momentum(momentumShortLookback),
			p.momentum(momentumLongLookback),
			p.realizedVol(),
			p.rsi(),
			p.atr(),
			spreadBPS(candle),
		},
	}

	return fv, true, nil
}

func (p *Pipeline) push(c types.Candle) {
	if p.count < window {
		p.candles[(p.start+p.count)%window] = c
		p.count++

		return
	}

	p.candles[p.start] = c
	p.start = (p.start + 1) % window
}

// at returns the i-th oldest buffered candle.
func (p *Pipeline) at(i int) types.Candle {
	return p.candles[(p.start+i)%window]
}

// momentum is close_t / close_{t-n} - 1. A zero reference close (flat
// or degenerate series) yields 0.
func (p *Pipeline) momentum(lookback int) float64 {
	cur := p.at(p.count - 1).Close
	ref := p.at(p.count - 1 - lookback).Close

	if ref == 0 {
		return 0
	}

	return cur/ref - 1
}

// realizedVol is the annualized standard deviation of log returns over
// the vol window. A flat series yields 0.
func (p *Pipeline) realizedVol() float64 {
	returns := make([]float64, 0, volWindow)

	for i := p.count - volWindow; i < p.count; i++ {
		prev := p.at(i - 1).Close
		cur := p.at(i).Close

		if prev <= 0 || cur <= 0 {
			returns = append(returns, 0)
			continue
		}

		returns = append(returns, math.Log(cur/prev))
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * p.annualize
}

// updateWilder advances the smoothed gain/loss and true-range averages
// before the candle enters the ring.
func (p *Pipeline) updateWilder(c types.Candle) {
	if p.haveClose {
		change := c.Close - p.lastClose

		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		tr := math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-p.lastClose), math.Abs(c.Low-p.lastClose)))

		if p.count >= rsiPeriod {
			if !p.rsiSeeded {
				// First smoothed value is a plain average of the seed
				// period; from then on Wilder smoothing applies.
				p.avgGain, p.avgLoss = p.seedGainLoss()
				p.rsiSeeded = true
			}

			p.avgGain = (p.avgGain*(rsiPeriod-1) + gain) / rsiPeriod
			p.avgLoss = (p.avgLoss*(rsiPeriod-1) + loss) / rsiPeriod
		}

		if p.count >= atrPeriod {
			if !p.atrSeeded {
				p.avgTR = p.seedTrueRange()
				p.atrSeeded = true
			}

			p.avgTR = (p.avgTR*(atrPeriod-1) + tr) / atrPeriod
		}
	}

	p.lastClose = c.Close
	p.haveClose = true
}

func (p *Pipeline) seedGainLoss() (float64, float64) {
	var gains, losses float64

	for i := p.count - rsiPeriod + 1; i < p.count; i++ {
		change := p.at(i).Close - p.at(i-1).Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	return gains / rsiPeriod, losses / rsiPeriod
}

func (p *Pipeline) seedTrueRange() float64 {
	var sum float64

	for i := p.count - atrPeriod + 1; i < p.count; i++ {
		prev := p.at(i - 1)
		cur := p.at(i)
		tr := math.Max(cur.High-cur.Low,
			math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
		sum += tr
	}

	return sum / atrPeriod
}

// rsi returns the Wilder RSI. A series with no losses reports 100, no
// gains reports 0, and a fully flat series reports 0.
func (p *Pipeline) rsi() float64 {
	if p.avgLoss == 0 && p.avgGain == 0 {
		return 0
	}

	if p.avgLoss == 0 {
		return 100
	}

	rs := p.avgGain / p.avgLoss

	return 100 - 100/(1+rs)
}

func (p *Pipeline) atr() float64 {
	return p.avgTR
}

// spreadBPS is (ask - bid) / mid in basis points, 0 when the candle
// carries no quote data.
func spreadBPS(c types.Candle) float64 {
	mid, ok := c.Mid()
	if !ok || mid == 0 {
		return 0
	}

	return (c.Ask.Unwrap() - c.Bid.Unwrap()) / mid * 10000
}
