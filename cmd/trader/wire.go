package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/audit"
	"github.com/quantgate-lab/quantgate/internal/config"
	"github.com/quantgate-lab/quantgate/internal/engine"
	enginev1 "github.com/quantgate-lab/quantgate/internal/engine/engine_v1"
	"github.com/quantgate-lab/quantgate/internal/ensemble"
	"github.com/quantgate-lab/quantgate/internal/execution"
	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/metrics"
	"github.com/quantgate-lab/quantgate/internal/risk"
	"github.com/quantgate-lab/quantgate/internal/status"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
	"github.com/quantgate-lab/quantgate/pkg/marketdata/provider"
)

const venueTimeout = 10 * time.Second

// app holds every wired component for one process lifetime.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	engine  engine.DecisionEngine
	monitor *risk.Monitor
	account *risk.AccountHandle
	store   *audit.Store
	status  *status.Server
	closers []func() error
}

// buildApp wires the full decision core from a validated config.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	dataProvider, err := provider.NewProvider(cfg.Provider, cfg.ProviderConfig)
	if err != nil {
		return nil, err
	}

	models, err := buildModels(cfg)
	if err != nil {
		return nil, err
	}

	quorum := cfg.Quorum
	if quorum == 0 {
		quorum = len(models)
	}

	ens, err := ensemble.NewEnsemble(models, quorum, cfg.ModelTimeout.Std(), log)
	if err != nil {
		return nil, err
	}

	venue, err := a.buildVenue(cfg)
	if err != nil {
		return nil, err
	}

	a.account = risk.NewAccountHandle(a.seedBalance(ctx, venue), time.Now())

	if cfg.AuditDBPath != "" {
		store, storeErr := audit.NewStore(cfg.AuditDBPath, log)
		if storeErr != nil {
			return nil, storeErr
		}

		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	alert := func(symbol, message string) {
		log.Error("operator alert", zap.String("symbol", symbol), zap.String("message", message))
	}

	adapter := execution.NewAdapter(execution.NewRouter(venue), a.account, log, alert, venueTimeout)

	var liq risk.Liquidator
	if cfg.Risk.AutoLiquidate {
		liq = adapter.Liquidate
	}

	a.monitor = risk.NewMonitor(cfg.Risk, a.account, log, a.riskEventSink(), liq)

	eng, err := enginev1.NewDecisionEngineV1()
	if err != nil {
		return nil, err
	}

	if err := eng.Initialize(engine.Config{
		Symbols:    cfg.Symbols,
		Interval:   cfg.Interval,
		WarmupBars: cfg.WarmupBars,
		QueueSize:  enginev1.DefaultQueueSize,
		Risk:       cfg.Risk,
	}); err != nil {
		return nil, err
	}

	if err := eng.SetMarketDataProvider(dataProvider); err != nil {
		return nil, err
	}

	if err := eng.SetEnsemble(ens); err != nil {
		return nil, err
	}

	if err := eng.SetExecutionAdapter(adapter); err != nil {
		return nil, err
	}

	if err := eng.SetRiskMonitor(a.monitor, a.account); err != nil {
		return nil, err
	}

	if a.store != nil {
		if err := eng.SetAuditStore(a.store); err != nil {
			return nil, err
		}
	}

	if err := eng.SetMetrics(a.metrics); err != nil {
		return nil, err
	}

	a.engine = eng

	if cfg.Status.Addr != "" {
		var reader status.DecisionReader
		if a.store != nil {
			reader = a.store
		}

		a.status = status.NewServer(cfg.Status, a.monitor, a.account, reader, a.metrics, log)
	}

	return a, nil
}

// buildLogger mirrors logs to a file when log_path is set.
func buildLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.LogPath != "" {
		return logger.NewLoggerWithPath(cfg.LogPath)
	}

	return logger.NewLogger()
}

// buildModels instantiates the configured ensemble members.
func buildModels(cfg *config.Config) ([]ensemble.Model, error) {
	models := make([]ensemble.Model, 0, len(cfg.Models))

	for _, mc := range cfg.Models {
		switch mc.Type {
		case config.ModelMomentum:
			models = append(models, ensemble.NewMomentumModel())
		case config.ModelMeanReversion:
			models = append(models, ensemble.NewMeanReversionModel())
		case config.ModelHTTP:
			name := mc.Name
			if name == "" {
				name = mc.Type
			}

			models = append(models, ensemble.NewHTTPModel(name, mc.Endpoint, cfg.ModelTimeout.Std()))
		default:
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown model type %q", mc.Type)
		}
	}

	return models, nil
}

// buildVenue creates the execution backend, registering a closer when
// the venue holds a connection.
func (a *app) buildVenue(cfg *config.Config) (execution.Venue, error) {
	switch cfg.Venue.Type {
	case config.VenueBinance:
		return execution.NewBinanceVenue(cfg.Venue.APIKey, cfg.Venue.SecretKey, false), nil
	case config.VenueBridge:
		bridge := execution.NewBridgeVenue("bridge", cfg.Venue.ReqURL, cfg.Venue.PubURL,
			cfg.Venue.Symbol, venueTimeout, a.log)
		a.closers = append(a.closers, bridge.Close)

		return bridge, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown venue type %q", cfg.Venue.Type)
	}
}

// seedBalance asks the venue for a starting balance where it can
// report one, falling back to the configured initial balance.
func (a *app) seedBalance(ctx context.Context, venue execution.Venue) float64 {
	reader, ok := venue.(execution.BalanceReader)
	if !ok {
		return a.cfg.InitialBalanceUSD
	}

	balCtx, cancel := context.WithTimeout(ctx, venueTimeout)
	defer cancel()

	balance, err := reader.Balance(balCtx)
	if err != nil || balance <= 0 {
		a.log.Warn("venue balance unavailable, using configured initial balance",
			zap.Float64("initial_balance_usd", a.cfg.InitialBalanceUSD),
			zap.Error(err))

		return a.cfg.InitialBalanceUSD
	}

	return balance
}

// riskEventSink persists and logs halt/resume events as they happen.
func (a *app) riskEventSink() risk.EventSink {
	return func(ev types.RiskEvent) {
		a.log.Warn("risk event",
			zap.String("kind", ev.Kind),
			zap.String("reason", ev.Reason),
			zap.String("detail", ev.Detail))

		a.metrics.SetHalted(ev.Kind == types.RiskEventHalt)

		if a.store != nil {
			if err := a.store.SaveRiskEvent(ev); err != nil {
				a.log.Error("failed to persist risk event", zap.Error(err))
			}
		}
	}
}

// run starts the status server and the engine, blocking until ctx is
// cancelled or the stream ends.
func (a *app) run(ctx context.Context, callbacks engine.Callbacks) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.status != nil {
		go func() {
			if err := a.status.Run(runCtx); err != nil {
				a.log.Error("status server stopped", zap.Error(err))
			}
		}()
	}

	return a.engine.Run(runCtx, callbacks)
}

// close releases venues and stores in reverse wiring order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("shutdown error", zap.Error(err))
		}
	}
}
