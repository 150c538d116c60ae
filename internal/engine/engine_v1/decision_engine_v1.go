package engine_v1

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/engine"
	"github.com/quantgate-lab/quantgate/internal/ensemble"
	"github.com/quantgate-lab/quantgate/internal/execution"
	"github.com/quantgate-lab/quantgate/internal/feature"
	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/metrics"
	"github.com/quantgate-lab/quantgate/internal/risk"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
	"github.com/quantgate-lab/quantgate/pkg/marketdata/provider"
)

// Default configuration values.
const (
	DefaultWarmupBars = 64
	DefaultQueueSize  = 64
)

// DecisionEngineV1 implements the DecisionEngine interface. Each
// symbol gets its own worker goroutine consuming candles in order, so
// decision cycles for one symbol never overlap: the cycle for bar N+1
// starts only after bar N's dispatch has resolved.
type DecisionEngineV1 struct {
	config      engine.Config
	dataProv    provider.Provider
	ens         *ensemble.Ensemble
	adapter     *execution.Adapter
	monitor     *risk.Monitor
	account     *risk.AccountHandle
	store       engine.AuditSink
	metrics     *metrics.Metrics
	gate        *risk.Gate
	pipelines   map[string]*feature.Pipeline
	log         *logger.Logger
	initialized bool
}

// NewDecisionEngineV1 creates a DecisionEngineV1 instance.
func NewDecisionEngineV1() (engine.DecisionEngine, error) {
	log, err := logger.NewLogger()
	if err != nil {
		return nil, err
	}

	return &DecisionEngineV1{
		config:      engine.Config{}, //nolint:exhaustruct // initialized via Initialize()
		dataProv:    nil,
		ens:         nil,
		adapter:     nil,
		monitor:     nil,
		account:     nil,
		store:       nil,
		metrics:     nil,
		gate:        nil,
		pipelines:   nil,
		log:         log,
		initialized: false,
	}, nil
}

// Initialize implements engine.DecisionEngine.
func (e *DecisionEngineV1) Initialize(config engine.Config) error {
	if config.WarmupBars <= 0 {
		config.WarmupBars = DefaultWarmupBars
	}

	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	if len(config.Symbols) == 0 {
		return errors.New(errors.ErrCodeEngineInitFailed, "no symbols configured")
	}

	if _, err := types.ParseInterval(string(config.Interval)); err != nil {
		return errors.Wrap(errors.ErrCodeEngineInitFailed, "invalid interval", err)
	}

	if err := config.Risk.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeEngineInitFailed, "invalid risk configuration", err)
	}

	e.config = config
	e.gate = risk.NewGate(config.Risk)

	e.pipelines = make(map[string]*feature.Pipeline, len(config.Symbols))
	for _, symbol := range config.Symbols {
		e.pipelines[symbol] = feature.NewPipeline(symbol, config.Interval)
	}

	e.initialized = true

	e.log.Debug("Decision engine initialized",
		zap.Strings("symbols", config.Symbols),
		zap.String("interval", string(config.Interval)),
		zap.Int("warmup_bars", config.WarmupBars),
	)

	return nil
}

// SetMarketDataProvider implements engine.DecisionEngine.
func (e *DecisionEngineV1) SetMarketDataProvider(dataProv provider.Provider) error {
	e.dataProv = dataProv
	e.log.Debug("Market data provider set", zap.String("provider", dataProv.Name()))

	return nil
}

// SetEnsemble implements engine.DecisionEngine.
func (e *DecisionEngineV1) SetEnsemble(ens *ensemble.Ensemble) error {
	e.ens = ens
	e.log.Debug("Model ensemble set")

	return nil
}

// SetExecutionAdapter implements engine.DecisionEngine.
func (e *DecisionEngineV1) SetExecutionAdapter(adapter *execution.Adapter) error {
	e.adapter = adapter
	e.log.Debug("Execution adapter set")

	return nil
}

// SetRiskMonitor implements engine.DecisionEngine.
func (e *DecisionEngineV1) SetRiskMonitor(monitor *risk.Monitor, account *risk.AccountHandle) error {
	e.monitor = monitor
	e.account = account
	e.log.Debug("Risk monitor set")

	return nil
}

// SetAuditStore implements engine.DecisionEngine.
func (e *DecisionEngineV1) SetAuditStore(store engine.AuditSink) error {
	e.store = store
	e.log.Debug("Audit store set")

	return nil
}

// SetMetrics implements engine.DecisionEngine.
func (e *DecisionEngineV1) SetMetrics(m *metrics.Metrics) error {
	e.metrics = m

	return nil
}

// Run implements engine.DecisionEngine.
func (e *DecisionEngineV1) Run(ctx context.Context, callbacks engine.Callbacks) error {
	var runErr error

	defer func() {
		if callbacks.OnEngineStop != nil {
			(*callbacks.OnEngineStop)(runErr)
		}
	}()

	if err := e.preRunCheck(); err != nil {
		runErr = err

		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Ambiguous orders settle asynchronously, when the adapter blocks
	// a later dispatch on the same symbol to reconcile them. Route the
	// settled result back into the audit trail and the callbacks.
	e.adapter.SetReconcileHook(func(result types.OrderResult) {
		if e.store != nil {
			if err := e.store.UpdateOrderResult(result); err != nil {
				e.log.Error("Failed to persist reconciled order",
					zap.String("idempotency_key", result.IdempotencyKey),
					zap.Error(err),
				)
			}
		}

		if e.metrics != nil {
			e.metrics.ObserveOrderResult(result)
		}

		if callbacks.OnOrderResult != nil {
			if cbErr := (*callbacks.OnOrderResult)(result); cbErr != nil {
				e.log.Warn("OnOrderResult callback failed", zap.Error(cbErr))
			}
		}
	})

	// Seed a fresh risk snapshot before any candle is processed, so
	// the first decision never sees a stale state.
	e.monitor.Evaluate(runCtx)

	// The monitor evaluates portfolio limits on its own clock for the
	// lifetime of the run.
	go func() {
		if err := e.monitor.Run(runCtx); err != nil && runCtx.Err() == nil {
			e.log.Warn("Risk monitor stopped", zap.Error(err))
		}
	}()

	if err := e.warmup(runCtx); err != nil {
		runErr = err

		return err
	}

	if callbacks.OnEngineStart != nil {
		if err := (*callbacks.OnEngineStart)(e.config.Symbols, e.config.Interval); err != nil {
			runErr = errors.Wrap(errors.ErrCodeCallbackFailed, "OnEngineStart callback failed", err)

			return runErr
		}
	}

	// One worker and one queue per symbol. A blocking send keeps
	// per-symbol ordering when a worker lags behind its queue.
	queues := make(map[string]chan types.Candle, len(e.config.Symbols))

	var wg sync.WaitGroup

	for _, symbol := range e.config.Symbols {
		queue := make(chan types.Candle, e.config.QueueSize)
		queues[symbol] = queue

		wg.Add(1)

		go func() {
			defer wg.Done()

			for candle := range queue {
				e.processCandle(runCtx, candle, callbacks)
			}
		}()
	}

	stream := e.dataProv.Stream(runCtx, e.config.Symbols, e.config.Interval)

	for candle, err := range stream {
		select {
		case <-runCtx.Done():
			runErr = runCtx.Err()

			e.drainQueues(queues, &wg)

			return runErr
		default:
		}

		if err != nil {
			if callbacks.OnError != nil {
				(*callbacks.OnError)(err)
			}

			e.log.Warn("Stream error received", zap.Error(err))

			continue
		}

		if callbacks.OnCandle != nil {
			if cbErr := (*callbacks.OnCandle)(candle); cbErr != nil {
				runErr = errors.Wrap(errors.ErrCodeCallbackFailed, "OnCandle callback failed", cbErr)

				e.drainQueues(queues, &wg)

				return runErr
			}
		}

		queue, ok := queues[candle.Symbol]
		if !ok {
			e.log.Warn("Candle for unsubscribed symbol dropped", zap.String("symbol", candle.Symbol))

			continue
		}

		select {
		case queue <- candle:
		case <-runCtx.Done():
			runErr = runCtx.Err()

			e.drainQueues(queues, &wg)

			return runErr
		}
	}

	e.drainQueues(queues, &wg)

	if ctx.Err() != nil {
		runErr = ctx.Err()

		return runErr
	}

	return nil
}

// GetConfigSchema implements engine.DecisionEngine.
func (e *DecisionEngineV1) GetConfigSchema() (string, error) {
	return engine.GetConfigSchema()
}

func (e *DecisionEngineV1) drainQueues(queues map[string]chan types.Candle, wg *sync.WaitGroup) {
	for _, queue := range queues {
		close(queue)
	}

	wg.Wait()
}

// warmup replays recent history through the feature pipelines so the
// first live bars can already produce full vectors.
func (e *DecisionEngineV1) warmup(ctx context.Context) error {
	span := e.config.Interval.Duration() * time.Duration(e.config.WarmupBars)
	now := time.Now()

	for _, symbol := range e.config.Symbols {
		candles, err := e.dataProv.History(ctx, symbol, now.Add(-span), now, e.config.Interval)
		if err != nil {
			e.log.Warn("Warmup fetch failed, starting cold",
				zap.String("symbol", symbol),
				zap.Error(err),
			)

			continue
		}

		pipeline := e.pipelines[symbol]

		fed := 0

		for _, candle := range candles {
			if _, _, err := pipeline.Update(candle); err != nil {
				continue
			}

			fed++
		}

		e.log.Info("Warmup complete",
			zap.String("symbol", symbol),
			zap.Int("bars", fed),
			zap.Bool("warm", pipeline.Warm()),
		)
	}

	return nil
}

// processCandle runs one full decision cycle for one bar.
func (e *DecisionEngineV1) processCandle(ctx context.Context, candle types.Candle, callbacks engine.Callbacks) {
	started := time.Now()

	e.account.MarkPrice(candle.Symbol, candle.Close)

	pipeline := e.pipelines[candle.Symbol]

	fv, warm, err := pipeline.Update(candle)
	if err != nil {
		if callbacks.OnError != nil {
			(*callbacks.OnError)(err)
		}

		e.log.Warn("Feature pipeline rejected candle",
			zap.String("symbol", candle.Symbol),
			zap.Time("time", candle.Time),
			zap.Error(err),
		)

		return
	}

	if !warm {
		return
	}

	signal := e.ens.Evaluate(ctx, fv)
	signal.ReferencePrice = candle.Close

	if vol, ok := fv.Get(types.FeatureRealizedVol); ok {
		signal.RealizedVol = vol
	}

	riskState := e.monitor.State()
	account := e.account.Snapshot()

	decision, orderOpt := e.gate.Evaluate(signal, account, riskState)

	rec := types.DecisionRecord{
		ID:        uuid.New().String(),
		Symbol:    candle.Symbol,
		Time:      candle.Time,
		Features:  fv,
		Signal:    signal,
		Gate:      decision,
		Order:     orderOpt,
		Result:    optional.None[types.OrderResult](),
		CreatedAt: time.Now(),
	}

	if decision.Approved && orderOpt.IsSome() {
		result, execErr := e.adapter.Execute(ctx, orderOpt.Unwrap())
		if execErr != nil {
			if callbacks.OnError != nil {
				(*callbacks.OnError)(execErr)
			}

			e.log.Error("Order dispatch failed",
				zap.String("symbol", candle.Symbol),
				zap.String("idempotency_key", orderOpt.Unwrap().IdempotencyKey),
				zap.Error(execErr),
			)
		}

		if result.IdempotencyKey != "" {
			rec.Result = optional.Some(result)

			if callbacks.OnOrderResult != nil {
				if cbErr := (*callbacks.OnOrderResult)(result); cbErr != nil {
					e.log.Warn("OnOrderResult callback failed", zap.Error(cbErr))
				}
			}

			if e.metrics != nil {
				e.metrics.ObserveOrderResult(result)
			}
		}
	}

	if e.store != nil {
		if err := e.store.SaveDecision(rec); err != nil {
			e.log.Error("Failed to persist decision",
				zap.String("decision_id", rec.ID),
				zap.Error(err),
			)
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveDecision(rec)
		e.metrics.SetHalted(riskState.Halted)
		e.metrics.SetEquity(account.Equity)
		e.metrics.ObserveRiskState(riskState, time.Now())
		e.metrics.ObserveTickLatency(time.Since(started))
	}

	if callbacks.OnDecision != nil {
		if cbErr := (*callbacks.OnDecision)(rec); cbErr != nil {
			e.log.Warn("OnDecision callback failed", zap.Error(cbErr))
		}
	}
}

// preRunCheck validates that all required components are configured.
func (e *DecisionEngineV1) preRunCheck() error {
	if !e.initialized {
		return errors.New(errors.ErrCodeEngineNotReady, "engine not initialized - call Initialize() first")
	}

	if e.dataProv == nil {
		return errors.New(errors.ErrCodeEngineNotReady, "market data provider not set - call SetMarketDataProvider() first")
	}

	if e.ens == nil {
		return errors.New(errors.ErrCodeEngineNotReady, "model ensemble not set - call SetEnsemble() first")
	}

	if e.adapter == nil {
		return errors.New(errors.ErrCodeEngineNotReady, "execution adapter not set - call SetExecutionAdapter() first")
	}

	if e.monitor == nil || e.account == nil {
		return errors.New(errors.ErrCodeEngineNotReady, "risk monitor not set - call SetRiskMonitor() first")
	}

	return nil
}

// Verify DecisionEngineV1 implements the engine.DecisionEngine interface.
var _ engine.DecisionEngine = (*DecisionEngineV1)(nil)
