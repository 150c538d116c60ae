package risk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

const (
	// equityHistory bounds the return window used for VaR and
	// portfolio volatility.
	equityHistory = 512
	// minReturnsForVaR is how many return samples VaR needs before it
	// reports anything but zero.
	minReturnsForVaR = 20
)

// EventSink receives halt and resume events as they happen.
type EventSink func(types.RiskEvent)

// Liquidator converts every open position into a market exit. Invoked
// only when auto-liquidation is enabled and a halt fires.
type Liquidator func(ctx context.Context, positions map[string]types.Position)

// Monitor owns RiskState. It samples account equity on a fixed
// schedule, maintains drawdown, VaR and volatility estimates, and
// trips the halt latch when any configured ceiling breaks. Once
// halted it stays halted until an operator calls Resume; there is no
// automatic recovery.
type Monitor struct {
	cfg     Config
	account *AccountHandle
	logger  *logger.Logger
	sink    EventSink
	liq     Liquidator

	mu      sync.RWMutex
	state   types.RiskState
	equity  []float64
	lastDay int

	now func() time.Time
}

// NewMonitor creates a monitor over the shared account handle. sink
// and liq may be nil.
func NewMonitor(cfg Config, account *AccountHandle, l *logger.Logger, sink EventSink, liq Liquidator) *Monitor {
	return &Monitor{
		cfg:     cfg,
		account: account,
		logger:  l,
		sink:    sink,
		liq:     liq,
		now:     time.Now,
	}
}

// Run evaluates on the configured interval until ctx is done. The
// first evaluation happens immediately so the gate never starts from
// a stale zero state.
func (m *Monitor) Run(ctx context.Context) error {
	m.Evaluate(ctx)

	ticker := time.NewTicker(m.cfg.MonitorInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Evaluate(ctx)
		}
	}
}

// State returns the latest published snapshot.
func (m *Monitor) State() types.RiskState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Evaluate runs one monitoring pass: advance the peak, recompute the
// measures, publish a fresh snapshot, and trip the halt latch when a
// ceiling breaks.
func (m *Monitor) Evaluate(ctx context.Context) {
	now := m.now()

	m.rollDayIfNeeded(now)
	m.account.AdvancePeak()

	account := m.account.Snapshot()

	m.mu.Lock()

	m.pushEquity(account.Equity)

	next := types.RiskState{
		Halted:       m.state.Halted,
		HaltReason:   m.state.HaltReason,
		HaltedAt:     m.state.HaltedAt,
		Drawdown:     account.Drawdown(),
		DailyPnL:     account.DailyPnL(),
		VaR:          m.historicalVaR(),
		PortfolioVol: m.portfolioVol(),
		UpdatedAt:    now,
	}

	reason, detail := m.breach(next, account)
	tripped := reason != "" && !next.Halted

	if tripped {
		next.Halted = true
		next.HaltReason = reason
		next.HaltedAt = now
	}

	m.state = next
	m.mu.Unlock()

	if !tripped {
		return
	}

	m.logger.Error("trading halted",
		zap.String("reason", reason),
		zap.String("detail", detail))

	m.emit(types.RiskEvent{
		Time:   now,
		Kind:   types.RiskEventHalt,
		Reason: reason,
		Detail: detail,
	})

	if m.cfg.AutoLiquidate && m.liq != nil && len(account.Positions) > 0 {
		m.liq(ctx, account.Positions)
	}
}

// breach returns the first breached ceiling, or "" when all are clear.
func (m *Monitor) breach(s types.RiskState, account types.AccountState) (string, string) {
	if s.Drawdown > m.cfg.MaxDrawdownPct {
		return types.HaltReasonDrawdown,
			fmt.Sprintf("drawdown %.4f > limit %.4f", s.Drawdown, m.cfg.MaxDrawdownPct)
	}

	if account.Equity > 0 && s.DailyPnL/account.Equity < -m.cfg.MaxDailyLossPct {
		return types.HaltReasonDailyLoss,
			fmt.Sprintf("daily pnl %.2f on equity %.2f breaches %.4f", s.DailyPnL, account.Equity, m.cfg.MaxDailyLossPct)
	}

	if s.VaR > m.cfg.VaRCeiling {
		return types.HaltReasonVaR,
			fmt.Sprintf("var %.4f > ceiling %.4f", s.VaR, m.cfg.VaRCeiling)
	}

	if s.PortfolioVol > m.cfg.PortfolioVolCeiling {
		return types.HaltReasonVolSpike,
			fmt.Sprintf("portfolio vol %.4f > ceiling %.4f", s.PortfolioVol, m.cfg.PortfolioVolCeiling)
	}

	return "", ""
}

// Halt trips the latch manually, e.g. from an operator endpoint.
func (m *Monitor) Halt(reason string) {
	now := m.now()

	m.mu.Lock()
	already := m.state.Halted
	if !already {
		m.state.Halted = true
		m.state.HaltReason = reason
		m.state.HaltedAt = now
		m.state.UpdatedAt = now
	}
	m.mu.Unlock()

	if already {
		return
	}

	m.emit(types.RiskEvent{Time: now, Kind: types.RiskEventHalt, Reason: reason, Detail: "manual"})
}

// Resume clears the halt latch. It requires an explicit operator call
// and fails when the monitor is not halted.
func (m *Monitor) Resume(operator string) error {
	now := m.now()

	m.mu.Lock()
	if !m.state.Halted {
		m.mu.Unlock()

		return errors.New(errors.ErrCodeResumeNotAllowed, "monitor is not halted")
	}

	prev := m.state.HaltReason
	m.state.Halted = false
	m.state.HaltReason = ""
	m.state.HaltedAt = time.Time{}
	m.state.UpdatedAt = now
	m.mu.Unlock()

	m.logger.Info("trading resumed",
		zap.String("operator", operator),
		zap.String("cleared_reason", prev))

	m.emit(types.RiskEvent{
		Time:   now,
		Kind:   types.RiskEventResume,
		Reason: prev,
		Detail: "resumed by " + operator,
	})

	return nil
}

func (m *Monitor) emit(ev types.RiskEvent) {
	if m.sink != nil {
		m.sink(ev)
	}
}

func (m *Monitor) rollDayIfNeeded(now time.Time) {
	day := now.UTC().YearDay() + now.UTC().Year()*1000

	m.mu.Lock()
	rolled := m.lastDay != 0 && day != m.lastDay
	m.lastDay = day
	m.mu.Unlock()

	if rolled {
		m.account.RollDay(now)
	}
}

func (m *Monitor) pushEquity(equity float64) {
	m.equity = append(m.equity, equity)
	if len(m.equity) > equityHistory {
		m.equity = m.equity[len(m.equity)-equityHistory:]
	}
}

// returns computes simple per-sample equity returns over the history.
func (m *Monitor) returns() []float64 {
	if len(m.equity) < 2 {
		return nil
	}

	out := make([]float64, 0, len(m.equity)-1)

	for i := 1; i < len(m.equity); i++ {
		prev := m.equity[i-1]
		if prev <= 0 {
			out = append(out, 0)
			continue
		}

		out = append(out, m.equity[i]/prev-1)
	}

	return out
}

// historicalVaR is the historical-simulation VaR as a positive
// fraction of equity: the negated (1 - confidence) percentile of the
// observed return distribution, scaled from the sampling interval to
// the configured horizon.
func (m *Monitor) historicalVaR() float64 {
	rets := m.returns()
	if len(rets) < minReturnsForVaR {
		return 0
	}

	sorted := make([]float64, len(rets))
	copy(sorted, rets)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - m.cfg.VaRConfidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	v := -sorted[idx]
	if v < 0 {
		return 0
	}

	samplesPerDay := float64(24*time.Hour) / float64(m.cfg.MonitorInterval.Std())

	return v * math.Sqrt(samplesPerDay*m.cfg.VaRHorizonDays)
}

// portfolioVol is the annualized standard deviation of equity returns.
func (m *Monitor) portfolioVol() float64 {
	rets := m.returns()
	if len(rets) < 2 {
		return 0
	}

	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets))

	samplesPerYear := float64(365*24*time.Hour) / float64(m.cfg.MonitorInterval.Std())

	return math.Sqrt(variance) * math.Sqrt(samplesPerYear)
}
