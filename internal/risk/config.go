package risk

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// Config holds every risk limit the gate and the monitor enforce.
// Thresholds are deliberately configuration, not constants; defaults
// are conservative.
type Config struct {
	// ConfidenceThreshold is the minimum consensus confidence for any
	// trade
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold" validate:"gte=0,lte=1"`
	// MaxDailyLossPct rejects new risk once today's loss exceeds this
	// fraction of equity
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct" json:"max_daily_loss_pct" validate:"gt=0,lte=1"`
	// MaxDrawdownPct halts trading once drawdown from peak exceeds it
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct" json:"max_drawdown_pct" validate:"gt=0,lte=1"`
	// PerSymbolNotionalCapUSD bounds total exposure per symbol
	PerSymbolNotionalCapUSD float64 `yaml:"per_symbol_notional_cap_usd" json:"per_symbol_notional_cap_usd" validate:"gt=0"`
	// TargetAnnualVolPct is the volatility target used for sizing
	TargetAnnualVolPct float64 `yaml:"target_annual_vol_pct" json:"target_annual_vol_pct" validate:"gt=0"`
	// VaRCeiling halts trading when the historical VaR estimate exceeds
	// this fraction of equity
	VaRCeiling float64 `yaml:"var_ceiling" json:"var_ceiling" validate:"gt=0,lte=1"`
	// VaRConfidence is the confidence level of the VaR estimate
	VaRConfidence float64 `yaml:"var_confidence" json:"var_confidence" validate:"gte=0.5,lt=1"`
	// VaRHorizonDays is the horizon the VaR estimate is scaled to
	VaRHorizonDays float64 `yaml:"var_horizon_days" json:"var_horizon_days" validate:"gt=0"`
	// PortfolioVolCeiling halts trading when annualized equity
	// volatility exceeds it
	PortfolioVolCeiling float64 `yaml:"portfolio_vol_ceiling" json:"portfolio_vol_ceiling" validate:"gt=0"`
	// StopLossPct and TakeProfitPct derive protective prices from the
	// entry price
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" validate:"gte=0,lt=1"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct" validate:"gte=0,lt=1"`
	// MaxStateAge is how old a RiskState snapshot may be before the
	// gate fails closed
	MaxStateAge types.Duration `yaml:"max_state_age" json:"max_state_age" validate:"gt=0"`
	// MonitorInterval is the monitor's evaluation period
	MonitorInterval types.Duration `yaml:"monitor_interval" json:"monitor_interval" validate:"gt=0"`
	// AutoLiquidate converts open positions to market exits on halt
	AutoLiquidate bool `yaml:"auto_liquidate" json:"auto_liquidate"`
}

// DefaultConfig returns the conservative defaults.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:     0.70,
		MaxDailyLossPct:         0.03,
		MaxDrawdownPct:          0.15,
		PerSymbolNotionalCapUSD: 25000,
		TargetAnnualVolPct:      0.20,
		VaRCeiling:              0.05,
		VaRConfidence:           0.95,
		VaRHorizonDays:          1,
		PortfolioVolCeiling:     0.50,
		StopLossPct:             0.02,
		TakeProfitPct:           0.04,
		MaxStateAge:             types.Duration(15 * time.Second),
		MonitorInterval:         types.Duration(5 * time.Second),
		AutoLiquidate:           false,
	}
}

// Validate validates the Config struct. A bad risk config is fatal at
// startup; the system never degrades into unguarded trading.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeRiskConfigError, "invalid risk config", err)
	}

	return nil
}
