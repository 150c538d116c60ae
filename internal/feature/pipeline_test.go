package feature

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

var testStart = time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)

func candleAt(i int, close float64) types.Candle {
	return types.Candle{
		Symbol: "BTCUSDT",
		Time:   testStart.Add(time.Duration(i) * time.Minute),
		Open:   close,
		High:   close * 1.001,
		Low:    close * 0.999,
		Close:  close,
		Volume: 10,
	}
}

func feedFlat(t *testing.T, p *Pipeline, n int, close float64) (types.FeatureVector, bool) {
	t.Helper()

	var (
		fv types.FeatureVector
		ok bool
	)

	for i := 0; i < n; i++ {
		c := types.Candle{
			Symbol: "BTCUSDT",
			Time:   testStart.Add(time.Duration(i) * time.Minute),
			Open:   close,
			High:   close,
			Low:    close,
			Close:  close,
			Volume: 10,
		}

		var err error
		fv, ok, err = p.Update(c)
		require.NoError(t, err)
	}

	return fv, ok
}

func TestPipelineWarmup(t *testing.T) {
	p := NewPipeline("BTCUSDT", types.Interval1m)

	for i := 0; i < 20; i++ {
		_, ok, err := p.Update(candleAt(i, 100+float64(i)))
		require.NoError(t, err)
		assert.False(t, ok, "vector before warmup at candle %d", i)
	}

	fv, ok, err := p.Update(candleAt(20, 121))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "BTCUSDT", fv.Symbol)
	assert.Len(t, fv.Values, len(fv.Names))
}

func TestPipelineFlatSeriesYieldsZeros(t *testing.T) {
	p := NewPipeline("BTCUSDT", types.Interval1m)

	fv, ok := feedFlat(t, p, 30, 100.0)
	require.True(t, ok)

	for _, name := range []string{
		types.FeatureMomentum5,
		types.FeatureMomentum20,
		types.FeatureRealizedVol,
		types.FeatureRSI14,
		types.FeatureATR14,
		types.FeatureSpreadBPS,
	} {
		v, found := fv.Get(name)
		require.True(t, found, name)
		assert.Zero(t, v, name)
	}
}

func TestPipelineRisingSeries(t *testing.T) {
	p := NewPipeline("BTCUSDT", types.Interval1m)

	var (
		fv types.FeatureVector
		ok bool
	)

	for i := 0; i < 40; i++ {
		var err error
		fv, ok, err = p.Update(candleAt(i, 100+float64(i)))
		require.NoError(t, err)
	}

	require.True(t, ok)

	mom5, _ := fv.Get(types.FeatureMomentum5)
	mom20, _ := fv.Get(types.FeatureMomentum20)
	rsi, _ := fv.Get(types.FeatureRSI14)
	vol, _ := fv.Get(types.FeatureRealizedVol)
	atr, _ := fv.Get(types.FeatureATR14)

	assert.InDelta(t, 5.0/134.0, mom5, 1e-9)
	assert.InDelta(t, 20.0/119.0, mom20, 1e-9)
	// Monotonically rising closes mean no down moves at all.
	assert.Equal(t, 100.0, rsi)
	assert.Greater(t, vol, 0.0)
	assert.Greater(t, atr, 0.0)
}

func TestPipelineFallingSeriesRSI(t *testing.T) {
	p := NewPipeline("BTCUSDT", types.Interval1m)

	var (
		fv types.FeatureVector
		ok bool
	)

	for i := 0; i < 40; i++ {
		var err error
		fv, ok, err = p.Update(candleAt(i, 200-float64(i)))
		require.NoError(t, err)
	}

	require.True(t, ok)

	rsi, _ := fv.Get(types.FeatureRSI14)
	assert.Equal(t, 0.0, rsi)
}

func TestPipelineSpreadFeature(t *testing.T) {
	p := NewPipeline("BTCUSDT", types.Interval1m)

	for i := 0; i < 25; i++ {
		c := candleAt(i, 100)
		c.Bid = optional.Some(99.0)
		c.Ask = optional.Some(101.0)

		fv, ok, err := p.Update(c)
		require.NoError(t, err)

		if ok {
			spread, found := fv.Get(types.FeatureSpreadBPS)
			require.True(t, found)
			// (101-99)/100 = 200 bps
			assert.InDelta(t, 200.0, spread, 1e-9)
		}
	}
}

func TestPipelineRejectsOutOfOrderCandle(t *testing.T) {
	p := NewPipeline("BTCUSDT", types.Interval1m)

	_, _, err := p.Update(candleAt(5, 100))
	require.NoError(t, err)

	_, _, err = p.Update(candleAt(3, 100))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeOutOfOrderCandle))

	// Same timestamp is also rejected.
	_, _, err = p.Update(candleAt(5, 101))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeOutOfOrderCandle))
}

func TestPipelineRejectsWrongSymbol(t *testing.T) {
	p := NewPipeline("BTCUSDT", types.Interval1m)

	c := candleAt(0, 100)
	c.Symbol = "ETHUSDT"

	_, _, err := p.Update(c)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidSymbol))
}
