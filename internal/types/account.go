package types

import (
	"math"
	"time"
)

// Position is one open position in the tracked portfolio.
type Position struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	// Quantity is the signed size in base units, negative for short
	Quantity float64 `json:"quantity" yaml:"quantity"`
	// AvgEntryPrice is the volume weighted average entry price
	AvgEntryPrice float64 `json:"avg_entry_price" yaml:"avg_entry_price"`
	// LastPrice is the most recent mark used for valuation
	LastPrice     float64   `json:"last_price" yaml:"last_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	OpenedAt      time.Time `json:"opened_at" yaml:"opened_at"`
}

// Notional returns the absolute market value of the position.
func (p *Position) Notional() float64 {
	return math.Abs(p.Quantity) * p.LastPrice
}

// AccountState is a snapshot of portfolio state the risk layer works
// from. Snapshots are immutable once handed out; only the monitor
// writes new ones.
type AccountState struct {
	// Balance is the current cash balance (excluding unrealized P&L)
	Balance float64 `json:"balance" yaml:"balance"`
	// Equity is the total account value (balance + unrealized P&L)
	Equity float64 `json:"equity" yaml:"equity"`
	// PeakEquity is the highest equity observed since start, never
	// decreasing
	PeakEquity float64 `json:"peak_equity" yaml:"peak_equity"`
	// DayStartEquity is the equity at the start of the current trading
	// day, used for the daily loss check
	DayStartEquity float64 `json:"day_start_equity" yaml:"day_start_equity"`
	// RealizedPnLToday is the realized profit/loss since day start
	RealizedPnLToday float64 `json:"realized_pnl_today" yaml:"realized_pnl_today"`
	// Positions is keyed by symbol
	Positions map[string]Position `json:"positions" yaml:"positions"`
	// UpdatedAt is when this snapshot was taken
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Exposure returns the absolute notional exposure held in one symbol.
func (a *AccountState) Exposure(symbol string) float64 {
	p, ok := a.Positions[symbol]
	if !ok {
		return 0
	}

	return p.Notional()
}

// TotalExposure returns the sum of absolute notional across positions.
func (a *AccountState) TotalExposure() float64 {
	var total float64
	for _, p := range a.Positions {
		total += p.Notional()
	}

	return total
}

// DailyPnL returns today's profit/loss relative to day start equity.
func (a *AccountState) DailyPnL() float64 {
	return a.Equity - a.DayStartEquity
}

// Drawdown returns the fractional decline from peak equity, in [0, 1].
func (a *AccountState) Drawdown() float64 {
	if a.PeakEquity <= 0 {
		return 0
	}

	dd := (a.PeakEquity - a.Equity) / a.PeakEquity
	if dd < 0 {
		return 0
	}

	return dd
}

// Clone returns a deep copy so callers can hand snapshots across
// goroutines without sharing the positions map.
func (a *AccountState) Clone() AccountState {
	out := *a
	out.Positions = make(map[string]Position, len(a.Positions))

	for k, v := range a.Positions {
		out.Positions[k] = v
	}

	return out
}
