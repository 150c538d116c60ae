package execution

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/risk"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// AlertFunc raises an operator alert for reportable, non-fatal
// conditions such as a failed protective order.
type AlertFunc func(symbol, message string)

// ReconcileHook receives the settled result of a previously ambiguous
// order, so the caller can update its own records for the old key.
type ReconcileHook func(types.OrderResult)

// Adapter is the single dispatch path for approved orders. Every
// submission goes through the idempotency cache first: a key that
// already holds a terminal result is returned as-is, an in-flight key
// never dispatches twice, and an ambiguous key is reconciled against
// the venue before anything else may happen on it.
type Adapter struct {
	cache   *IdempotencyCache
	router  *Router
	account *risk.AccountHandle
	logger  *logger.Logger
	alert   AlertFunc
	hook    ReconcileHook
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]types.OrderSpec
}

// NewAdapter creates an adapter dispatching through router. alert may
// be nil.
func NewAdapter(router *Router, account *risk.AccountHandle, l *logger.Logger, alert AlertFunc, timeout time.Duration) *Adapter {
	return &Adapter{
		cache:   NewIdempotencyCache(),
		router:  router,
		account: account,
		logger:  l,
		alert:   alert,
		timeout: timeout,
		pending: map[string]types.OrderSpec{},
	}
}

// SetReconcileHook registers the callback fired when an ambiguous
// order settles to a terminal state. Must be set before the first
// Execute call.
func (a *Adapter) SetReconcileHook(h ReconcileHook) {
	a.hook = h
}

// Cache exposes the idempotency cache for external reconciliation
// jobs; they share the same compare-and-set semantics.
func (a *Adapter) Cache() *IdempotencyCache {
	return a.cache
}

// Execute submits spec to its venue at most once. Calling it again
// with the same idempotency key returns the cached outcome; an
// ambiguous prior outcome triggers a status reconciliation instead of
// a resend. While a symbol carries an unreconciled ambiguous order,
// no new order may dispatch on that symbol: the parked key is
// reconciled first, and Execute fails if it cannot be settled.
func (a *Adapter) Execute(ctx context.Context, spec types.OrderSpec) (types.OrderResult, error) {
	if err := spec.Validate(); err != nil {
		return types.OrderResult{}, err
	}

	if err := a.settlePending(ctx, spec); err != nil {
		return types.OrderResult{}, err
	}

	key := spec.IdempotencyKey

	if prior, ok := a.cache.Get(key); ok {
		return a.resolvePrior(ctx, spec, prior)
	}

	placeholder := types.OrderResult{
		IdempotencyKey: key,
		Status:         types.OrderStatusPending,
		SubmittedAt:    time.Now(),
	}

	stored, inserted := a.cache.PutIfAbsent(key, placeholder)
	if !inserted {
		// Lost the race to a concurrent attempt for the same key.
		return a.resolvePrior(ctx, spec, stored)
	}

	return a.dispatch(ctx, spec)
}

// settlePending reconciles any ambiguous order parked on the spec's
// symbol before a new key may dispatch there.
func (a *Adapter) settlePending(ctx context.Context, spec types.OrderSpec) error {
	a.mu.Lock()
	parked, ok := a.pending[spec.Symbol]
	a.mu.Unlock()

	if !ok || parked.IdempotencyKey == spec.IdempotencyKey {
		return nil
	}

	result, err := a.Reconcile(ctx, parked)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeReconcileFailed, err,
			"dispatch blocked on %s until key %s settles", spec.Symbol, parked.IdempotencyKey)
	}

	if !result.Status.Terminal() {
		return errors.Newf(errors.ErrCodeReconcileFailed,
			"dispatch blocked on %s: key %s still %s", spec.Symbol, parked.IdempotencyKey, result.Status)
	}

	return nil
}

// resolvePrior handles a key the cache already knows.
func (a *Adapter) resolvePrior(ctx context.Context, spec types.OrderSpec, prior types.OrderResult) (types.OrderResult, error) {
	switch {
	case prior.Status.Terminal():
		return prior, nil
	case prior.Status == types.OrderStatusFailedUnknown:
		return a.Reconcile(ctx, spec)
	default:
		return prior, errors.Newf(errors.ErrCodeDuplicateDispatch,
			"dispatch already in flight for key %s", spec.IdempotencyKey)
	}
}

func (a *Adapter) dispatch(ctx context.Context, spec types.OrderSpec) (types.OrderResult, error) {
	venue, err := a.router.Route(spec)
	if err != nil {
		result := failResult(spec, types.OrderStatusFailed, err.Error())
		a.cache.Update(spec.IdempotencyKey, result)

		return result, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := venue.PlaceOrder(callCtx, spec)
	if err != nil {
		return a.recordFailure(spec, venue, err), nil
	}

	result.IdempotencyKey = spec.IdempotencyKey
	result.Venue = venue.Name()
	a.cache.Update(spec.IdempotencyKey, result)

	if result.Status == types.OrderStatusFilled {
		a.settleFill(ctx, venue, spec, result)
	}

	return result, nil
}

// recordFailure classifies a venue error and caches the outcome. An
// ambiguous outcome is the one case that must never be retried by
// resending; it parks the key in FailedUnknown until reconciled.
func (a *Adapter) recordFailure(spec types.OrderSpec, venue Venue, err error) types.OrderResult {
	var result types.OrderResult

	switch {
	case errors.HasCode(err, errors.ErrCodeOrderAmbiguous):
		result = failResult(spec, types.OrderStatusFailedUnknown, err.Error())

		a.mu.Lock()
		a.pending[spec.Symbol] = spec
		a.mu.Unlock()

		a.logger.Warn("order outcome unknown, reconciliation required",
			zap.String("symbol", spec.Symbol),
			zap.String("key", spec.IdempotencyKey),
			zap.Error(err))
	case errors.HasCode(err, errors.ErrCodeVenueRejected):
		result = failResult(spec, types.OrderStatusRejected, err.Error())
	default:
		result = failResult(spec, types.OrderStatusFailed, err.Error())
	}

	result.Venue = venue.Name()
	a.cache.Update(spec.IdempotencyKey, result)

	return result
}

// Reconcile settles an ambiguous outcome by querying the venue for
// the order's true status. Until it returns something definitive the
// key stays in FailedUnknown and blocks further dispatch for it.
func (a *Adapter) Reconcile(ctx context.Context, spec types.OrderSpec) (types.OrderResult, error) {
	venue, err := a.router.Route(spec)
	if err != nil {
		return types.OrderResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := venue.OrderStatus(callCtx, spec.Symbol, spec.IdempotencyKey)
	if err != nil {
		prior, _ := a.cache.Get(spec.IdempotencyKey)

		return prior, errors.Wrapf(errors.ErrCodeReconcileFailed, err,
			"could not reconcile key %s on %s", spec.IdempotencyKey, venue.Name())
	}

	result.IdempotencyKey = spec.IdempotencyKey
	result.Venue = venue.Name()

	prior, _ := a.cache.Get(spec.IdempotencyKey)
	a.cache.Update(spec.IdempotencyKey, result)

	// Apply the fill only on the transition into Filled, so a repeat
	// reconciliation cannot double-book the position.
	if result.Status == types.OrderStatusFilled && prior.Status != types.OrderStatusFilled {
		a.settleFill(ctx, venue, spec, result)
	}

	if result.Status.Terminal() {
		a.mu.Lock()
		parked, ok := a.pending[spec.Symbol]
		settled := ok && parked.IdempotencyKey == spec.IdempotencyKey
		if settled {
			delete(a.pending, spec.Symbol)
		}
		a.mu.Unlock()

		if settled && a.hook != nil {
			a.hook(result)
		}
	}

	return result, nil
}

// settleFill books the fill into the account and attaches protective
// orders. Protective placement is best-effort: a failure alerts but
// never unwinds the fill.
func (a *Adapter) settleFill(ctx context.Context, venue Venue, spec types.OrderSpec, result types.OrderResult) {
	a.account.ApplyFill(spec, result)

	a.placeProtective(ctx, venue, spec, spec.StopLoss, "sl")
	a.placeProtective(ctx, venue, spec, spec.TakeProfit, "tp")
}

func (a *Adapter) placeProtective(ctx context.Context, venue Venue, parent types.OrderSpec, leg optional.Option[types.ProtectiveOrder], suffix string) {
	if leg.IsNone() {
		return
	}

	p := leg.Unwrap()

	spec := types.OrderSpec{
		ID:             parent.ID,
		IdempotencyKey: parent.IdempotencyKey + ":" + suffix,
		Symbol:         p.Symbol,
		Side:           p.Side,
		OrderType:      p.OrderType,
		Quantity:       parent.Quantity,
		Price:          p.Price,
		DecisionTime:   parent.DecisionTime,
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if _, err := venue.PlaceOrder(callCtx, spec); err != nil {
		wrapped := errors.Wrapf(errors.ErrCodeProtectiveOrderErr, err,
			"protective %s order failed for %s", suffix, parent.Symbol)

		a.logger.Error("protective order placement failed",
			zap.String("symbol", parent.Symbol),
			zap.String("leg", suffix),
			zap.Error(wrapped))

		if a.alert != nil {
			a.alert(parent.Symbol, wrapped.Error())
		}
	}
}

func failResult(spec types.OrderSpec, status types.OrderStatus, message string) types.OrderResult {
	return types.OrderResult{
		IdempotencyKey: spec.IdempotencyKey,
		Status:         status,
		SubmittedAt:    time.Now(),
		Message:        message,
	}
}

// Liquidate converts every open position into a market exit through
// the normal dispatch path. Shaped to serve as the monitor's halt
// liquidator.
func (a *Adapter) Liquidate(ctx context.Context, positions map[string]types.Position) {
	now := time.Now()

	for symbol, pos := range positions {
		if pos.Quantity == 0 {
			continue
		}

		side := types.SideSell
		if pos.Quantity < 0 {
			side = types.SideBuy
		}

		spec := types.OrderSpec{
			ID:             uuid.New().String(),
			IdempotencyKey: risk.IdempotencyKey(symbol, now, side),
			Symbol:         symbol,
			Side:           side,
			OrderType:      types.OrderTypeMarket,
			Quantity:       math.Abs(pos.Quantity),
			Price:          pos.LastPrice,
			DecisionTime:   now,
			TakeProfit:     optional.None[types.ProtectiveOrder](),
			StopLoss:       optional.None[types.ProtectiveOrder](),
		}

		if _, err := a.Execute(ctx, spec); err != nil {
			a.logger.Error("liquidation order failed",
				zap.String("symbol", symbol),
				zap.Error(err))

			if a.alert != nil {
				a.alert(symbol, "liquidation failed: "+err.Error())
			}
		}
	}
}
