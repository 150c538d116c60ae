package risk

import (
	"math"
	"sync"
	"time"

	"github.com/quantgate-lab/quantgate/internal/types"
)

// AccountHandle is the single shared holder of AccountState. Writers
// are fixed by convention: the execution layer applies fills, the
// monitor applies marks and peak/day rollovers. Everyone else reads
// snapshots.
type AccountHandle struct {
	mu    sync.RWMutex
	state types.AccountState
}

// NewAccountHandle seeds the handle with starting balances. Peak and
// day-start equity both begin at the initial equity.
func NewAccountHandle(balance float64, now time.Time) *AccountHandle {
	return &AccountHandle{
		state: types.AccountState{
			Balance:        balance,
			Equity:         balance,
			PeakEquity:     balance,
			DayStartEquity: balance,
			Positions:      map[string]types.Position{},
			UpdatedAt:      now,
		},
	}
}

// Snapshot returns a deep copy of the current state.
func (h *AccountHandle) Snapshot() types.AccountState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.state.Clone()
}

// ApplyFill folds a confirmed fill into the position book. Called only
// by the execution layer.
func (h *AccountHandle) ApplyFill(spec types.OrderSpec, result types.OrderResult) {
	if result.Status != types.OrderStatusFilled {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	signed := result.FilledQuantity
	if spec.Side == types.SideSell {
		signed = -signed
	}

	pos, ok := h.state.Positions[spec.Symbol]
	if !ok {
		pos = types.Position{
			Symbol:   spec.Symbol,
			OpenedAt: result.SubmittedAt,
		}
	}

	newQty := pos.Quantity + signed
	switch {
	case newQty == 0:
		// Position closed; realize the P&L against the entry.
		realized := pos.Quantity * (result.FilledPrice - pos.AvgEntryPrice)
		h.state.RealizedPnLToday += realized
		h.state.Balance += realized

		delete(h.state.Positions, spec.Symbol)
	case pos.Quantity == 0 || sameSign(pos.Quantity, signed):
		// Opening or adding: move the average entry.
		total := pos.AvgEntryPrice*pos.Quantity + result.FilledPrice*signed
		pos.Quantity = newQty
		pos.AvgEntryPrice = total / newQty
		pos.LastPrice = result.FilledPrice

		h.state.Positions[spec.Symbol] = pos
	default:
		// Reduction or flip: realize P&L only on the units actually
		// held, never on the full fill quantity.
		closed := math.Min(math.Abs(signed), math.Abs(pos.Quantity))

		direction := 1.0
		if pos.Quantity < 0 {
			direction = -1
		}

		realized := closed * direction * (result.FilledPrice - pos.AvgEntryPrice)
		h.state.RealizedPnLToday += realized
		h.state.Balance += realized

		pos.Quantity = newQty
		if sameSign(newQty, signed) {
			// Flipped through zero: the surviving position is new
			// exposure opened at the fill price.
			pos.AvgEntryPrice = result.FilledPrice
			pos.OpenedAt = result.SubmittedAt
		}

		pos.LastPrice = result.FilledPrice
		h.state.Positions[spec.Symbol] = pos
	}

	h.state.Balance -= result.Fee
	h.refreshEquityLocked()
	h.state.UpdatedAt = time.Now()
}

// MarkPrice revalues one symbol at the latest observed price. Called
// only by the monitor's valuation pass.
func (h *AccountHandle) MarkPrice(symbol string, price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pos, ok := h.state.Positions[symbol]
	if !ok {
		return
	}

	pos.LastPrice = price
	pos.UnrealizedPnL = pos.Quantity * (price - pos.AvgEntryPrice)
	h.state.Positions[symbol] = pos

	h.refreshEquityLocked()
	h.state.UpdatedAt = time.Now()
}

// AdvancePeak lifts peak equity to current equity when exceeded. The
// peak never moves down. Called only by the monitor.
func (h *AccountHandle) AdvancePeak() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state.Equity > h.state.PeakEquity {
		h.state.PeakEquity = h.state.Equity
	}
}

// RollDay resets the daily baseline at a trading-day boundary. Called
// only by the monitor.
func (h *AccountHandle) RollDay(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.DayStartEquity = h.state.Equity
	h.state.RealizedPnLToday = 0
	h.state.UpdatedAt = now
}

func (h *AccountHandle) refreshEquityLocked() {
	var unrealized float64
	for _, p := range h.state.Positions {
		unrealized += p.Quantity * (p.LastPrice - p.AvgEntryPrice)
	}

	h.state.Equity = h.state.Balance + unrealized
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
