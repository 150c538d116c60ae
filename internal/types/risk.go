package types

import "time"

// Gate rejection reasons, in the order the gate evaluates them.
const (
	ReasonTradingHalted    = "trading_halted"
	ReasonNoSignal         = "no_signal"
	ReasonLowConfidence    = "low_confidence"
	ReasonDailyLossLimit   = "daily_loss_limit"
	ReasonDrawdownExceeded = "drawdown_exceeded"
	ReasonExceedsSymbolCap = "exceeds_symbol_cap"
	ReasonStaleRiskState   = "stale_risk_state"
	ReasonApproved         = "approved"
)

// GateDecision is the risk gate's verdict on one signal.
type GateDecision struct {
	Approved bool `yaml:"approved" json:"approved"`
	// Reason is ReasonApproved on approval, otherwise the first check
	// that failed (halt reasons carry a suffix, e.g. "trading_halted:
	// drawdown limit breached")
	Reason string `yaml:"reason" json:"reason"`
	// Quantity is the approved size in base units, zero on rejection
	Quantity float64 `yaml:"quantity" json:"quantity"`
	// Notional is Quantity at the reference price, zero on rejection
	Notional float64 `yaml:"notional" json:"notional"`
}

// Halt reasons published by the portfolio monitor. The gate folds the
// active reason into its rejection as "trading_halted: <reason>".
const (
	HaltReasonDrawdown  = "drawdown_exceeded"
	HaltReasonDailyLoss = "daily_loss_limit"
	HaltReasonVaR       = "var_limit"
	HaltReasonVolSpike  = "vol_limit"
	HaltReasonManual    = "manual_halt"
)

// RiskState is the monitor's published view of portfolio risk. The
// gate fails closed when a snapshot is older than the configured
// maximum age.
type RiskState struct {
	Halted     bool      `yaml:"halted" json:"halted"`
	HaltReason string    `yaml:"halt_reason" json:"halt_reason"`
	HaltedAt   time.Time `yaml:"halted_at" json:"halted_at"`
	// Drawdown is the fractional decline from peak equity
	Drawdown float64 `yaml:"drawdown" json:"drawdown"`
	// DailyPnL is equity change since day start
	DailyPnL float64 `yaml:"daily_pnl" json:"daily_pnl"`
	// VaR is the historical-simulation value at risk at the configured
	// confidence and horizon, as a fraction of equity
	VaR float64 `yaml:"var" json:"var"`
	// PortfolioVol is the annualized realized volatility of equity
	// returns
	PortfolioVol float64   `yaml:"portfolio_vol" json:"portfolio_vol"`
	UpdatedAt    time.Time `yaml:"updated_at" json:"updated_at"`
}

// Stale reports whether the snapshot is older than maxAge at now.
func (r *RiskState) Stale(now time.Time, maxAge time.Duration) bool {
	if r.UpdatedAt.IsZero() {
		return true
	}

	return now.Sub(r.UpdatedAt) > maxAge
}

// RiskEvent is an audited state transition of the monitor.
type RiskEvent struct {
	Time   time.Time `yaml:"time" json:"time"`
	Kind   string    `yaml:"kind" json:"kind"`
	Reason string    `yaml:"reason" json:"reason"`
	// Detail carries the measured value that triggered the event
	Detail string `yaml:"detail" json:"detail"`
}

const (
	RiskEventHalt   = "halt"
	RiskEventResume = "resume"
)
