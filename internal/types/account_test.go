package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountStateDrawdown(t *testing.T) {
	a := AccountState{Equity: 85000, PeakEquity: 100000}
	assert.InDelta(t, 0.15, a.Drawdown(), 1e-9)

	// Equity above peak never reports a negative drawdown.
	a = AccountState{Equity: 110000, PeakEquity: 100000}
	assert.Equal(t, 0.0, a.Drawdown())

	a = AccountState{Equity: 100, PeakEquity: 0}
	assert.Equal(t, 0.0, a.Drawdown())
}

func TestAccountStateExposure(t *testing.T) {
	a := AccountState{
		Positions: map[string]Position{
			"BTCUSDT": {Symbol: "BTCUSDT", Quantity: 0.5, LastPrice: 60000},
			"ETHUSDT": {Symbol: "ETHUSDT", Quantity: -10, LastPrice: 2000},
		},
	}

	assert.InDelta(t, 30000.0, a.Exposure("BTCUSDT"), 1e-9)
	// Short exposure counts as absolute notional.
	assert.InDelta(t, 20000.0, a.Exposure("ETHUSDT"), 1e-9)
	assert.Equal(t, 0.0, a.Exposure("SOLUSDT"))
	assert.InDelta(t, 50000.0, a.TotalExposure(), 1e-9)
}

func TestAccountStateDailyPnL(t *testing.T) {
	a := AccountState{Equity: 98000, DayStartEquity: 100000}
	assert.InDelta(t, -2000.0, a.DailyPnL(), 1e-9)
}

func TestAccountStateClone(t *testing.T) {
	a := AccountState{
		Equity: 100000,
		Positions: map[string]Position{
			"BTCUSDT": {Symbol: "BTCUSDT", Quantity: 1, LastPrice: 60000},
		},
		UpdatedAt: time.Now(),
	}

	b := a.Clone()
	b.Positions["BTCUSDT"] = Position{Symbol: "BTCUSDT", Quantity: 2, LastPrice: 60000}

	assert.Equal(t, 1.0, a.Positions["BTCUSDT"].Quantity)
	assert.Equal(t, 2.0, b.Positions["BTCUSDT"].Quantity)
}

func TestRiskStateStale(t *testing.T) {
	now := time.Now()

	r := RiskState{UpdatedAt: now.Add(-10 * time.Second)}
	assert.False(t, r.Stale(now, 15*time.Second))

	r = RiskState{UpdatedAt: now.Add(-20 * time.Second)}
	assert.True(t, r.Stale(now, 15*time.Second))

	// A zero snapshot is always stale.
	r = RiskState{}
	assert.True(t, r.Stale(now, 15*time.Second))
}
