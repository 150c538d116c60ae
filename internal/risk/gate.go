// Package risk contains the two defensive layers of the decision core:
// a pure gate that every signal must pass before sizing, and a
// monitor that tracks portfolio-level limits and halts trading when
// any of them breaks.
package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"

	"github.com/quantgate-lab/quantgate/internal/types"
)

// Gate decides whether a consensus signal becomes an order. Evaluate
// is a pure function over its snapshot arguments; it does no I/O and
// never blocks.
type Gate struct {
	cfg Config
	// now is injected for stale-state checks in tests
	now func() time.Time
}

// NewGate creates a gate enforcing cfg.
func NewGate(cfg Config) *Gate {
	return &Gate{
		cfg: cfg,
		now: time.Now,
	}
}

// Evaluate runs the gate's checks in a fixed order and short-circuits
// on the first failure. Rejections are ordinary outcomes, never
// errors. On approval the decision carries a fully sized order.
func (g *Gate) Evaluate(signal types.Signal, account types.AccountState, state types.RiskState) (types.GateDecision, optional.Option[types.OrderSpec]) {
	none := optional.None[types.OrderSpec]()

	// A stale snapshot means the monitor may have missed a breach;
	// fail closed exactly as if halted.
	if state.Stale(g.now(), g.cfg.MaxStateAge.Std()) {
		return reject(types.ReasonTradingHalted + ": " + types.ReasonStaleRiskState), none
	}

	if state.Halted {
		return reject(types.ReasonTradingHalted + ": " + state.HaltReason), none
	}

	if !signal.Actionable() {
		return reject(types.ReasonNoSignal), none
	}

	if signal.Confidence < g.cfg.ConfidenceThreshold {
		return reject(types.ReasonLowConfidence), none
	}

	if account.Equity > 0 && account.DailyPnL()/account.Equity < -g.cfg.MaxDailyLossPct {
		return reject(types.ReasonDailyLossLimit), none
	}

	if state.Drawdown > g.cfg.MaxDrawdownPct {
		return reject(types.ReasonDrawdownExceeded), none
	}

	notional := g.size(signal, account)
	if notional+account.Exposure(signal.Symbol) > g.cfg.PerSymbolNotionalCapUSD {
		return reject(types.ReasonExceedsSymbolCap), none
	}

	price := signal.ReferencePrice
	if price <= 0 || notional <= 0 {
		return reject(types.ReasonNoSignal), none
	}

	spec := g.buildOrder(signal, notional, price)

	return types.GateDecision{
		Approved: true,
		Reason:   types.ReasonApproved,
		Quantity: spec.Quantity,
		Notional: notional,
	}, optional.Some(spec)
}

func reject(reason string) types.GateDecision {
	return types.GateDecision{Approved: false, Reason: reason}
}

// size applies volatility targeting, the per-symbol cap, and linear
// confidence scaling, in that order.
func (g *Gate) size(signal types.Signal, account types.AccountState) float64 {
	vol := signal.RealizedVol
	if vol <= 0 {
		// Without a volatility estimate the target ratio is undefined;
		// fall back to the cap and let confidence scale it down.
		vol = g.cfg.TargetAnnualVolPct
	}

	raw := account.Equity * (g.cfg.TargetAnnualVolPct / vol)
	if raw < 0 {
		raw = 0
	}

	if raw > g.cfg.PerSymbolNotionalCapUSD {
		raw = g.cfg.PerSymbolNotionalCapUSD
	}

	return raw * signal.Confidence
}

func (g *Gate) buildOrder(signal types.Signal, notional, price float64) types.OrderSpec {
	side := types.SideBuy
	if signal.Direction == types.DirectionSell {
		side = types.SideSell
	}

	spec := types.OrderSpec{
		ID:             uuid.New().String(),
		IdempotencyKey: IdempotencyKey(signal.Symbol, signal.Time, side),
		Symbol:         signal.Symbol,
		Side:           side,
		OrderType:      types.OrderTypeMarket,
		Quantity:       notional / price,
		Price:          price,
		DecisionTime:   signal.Time,
	}

	if g.cfg.StopLossPct > 0 {
		spec.StopLoss = optional.Some(protective(signal.Symbol, side, types.OrderTypeMarket,
			stopPrice(price, side, g.cfg.StopLossPct)))
	}

	if g.cfg.TakeProfitPct > 0 {
		spec.TakeProfit = optional.Some(protective(signal.Symbol, side, types.OrderTypeLimit,
			targetPrice(price, side, g.cfg.TakeProfitPct)))
	}

	return spec
}

func protective(symbol string, entrySide types.Side, orderType types.OrderType, price float64) types.ProtectiveOrder {
	exitSide := types.SideSell
	if entrySide == types.SideSell {
		exitSide = types.SideBuy
	}

	return types.ProtectiveOrder{
		Symbol:    symbol,
		Side:      exitSide,
		OrderType: orderType,
		Price:     price,
	}
}

// stopPrice is entry*(1-pct) for a long, entry*(1+pct) for a short.
func stopPrice(entry float64, side types.Side, pct float64) float64 {
	if side == types.SideBuy {
		return entry * (1 - pct)
	}

	return entry * (1 + pct)
}

// targetPrice is entry*(1+pct) for a long, entry*(1-pct) for a short.
func targetPrice(entry float64, side types.Side, pct float64) float64 {
	if side == types.SideBuy {
		return entry * (1 + pct)
	}

	return entry * (1 - pct)
}

// IdempotencyKey derives the stable dispatch key for one decision:
// sha256 over (symbol, decision timestamp in ms, side). Retries of the
// same decision always map to the same key, regardless of sizing.
func IdempotencyKey(symbol string, at time.Time, side types.Side) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", symbol, at.UnixMilli(), side))

	return hex.EncodeToString(sum[:])
}
