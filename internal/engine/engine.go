// Package engine defines the decision orchestrator: the loop that
// turns a stream of candles into features, consensus signals, gated
// orders, and audited decision records.
package engine

import (
	"context"

	"github.com/quantgate-lab/quantgate/internal/ensemble"
	"github.com/quantgate-lab/quantgate/internal/execution"
	"github.com/quantgate-lab/quantgate/internal/metrics"
	"github.com/quantgate-lab/quantgate/internal/risk"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/marketdata/provider"
	"github.com/quantgate-lab/quantgate/pkg/schema"
)

// Lifecycle callback types for engine phases. Callbacks returning an
// error can abort the run.

// OnEngineStartCallback is called once the engine has warmed up and
// is about to consume the live stream.
type OnEngineStartCallback func(symbols []string, interval types.Interval) error

// OnEngineStopCallback is called when the engine stops (always called via defer).
type OnEngineStopCallback func(err error)

// OnCandleCallback is called for each candle consumed from the stream.
type OnCandleCallback func(candle types.Candle) error

// OnDecisionCallback is called after every complete decision cycle,
// whether the order was approved or rejected.
type OnDecisionCallback func(record types.DecisionRecord) error

// OnOrderResultCallback is called when an order dispatch resolves.
type OnOrderResultCallback func(result types.OrderResult) error

// OnErrorCallback is called when a non-fatal error occurs.
type OnErrorCallback func(err error)

// Callbacks holds all lifecycle callbacks. All fields are pointers;
// nil means no callback is invoked.
type Callbacks struct {
	OnEngineStart *OnEngineStartCallback
	OnEngineStop  *OnEngineStopCallback
	OnCandle      *OnCandleCallback
	OnDecision    *OnDecisionCallback
	OnOrderResult *OnOrderResultCallback
	OnError       *OnErrorCallback
}

// Config holds the configuration for the decision engine.
type Config struct {
	// Symbols is the set of instruments the engine trades.
	Symbols []string `json:"symbols" yaml:"symbols" jsonschema:"description=Symbols to trade" validate:"required,min=1"`

	// Interval is the bar interval the engine consumes.
	Interval types.Interval `json:"interval" yaml:"interval" jsonschema:"description=Bar interval,default=1m"`

	// WarmupBars is the number of historical bars fetched per symbol
	// before live processing starts (default: 64).
	WarmupBars int `json:"warmup_bars" yaml:"warmup_bars" jsonschema:"description=Historical bars to prefetch per symbol,default=64"`

	// QueueSize is the per-symbol candle queue depth (default: 64).
	QueueSize int `json:"queue_size" yaml:"queue_size" jsonschema:"description=Per-symbol candle queue depth,default=64"`

	// Risk configures the gate built by the engine.
	Risk risk.Config `json:"risk" yaml:"risk" jsonschema:"description=Risk gate configuration"`
}

// GetConfigSchema returns the JSON schema for Config.
func GetConfigSchema() (string, error) {
	return schema.ToJSONSchema(&Config{}) //nolint:exhaustruct // Empty config for schema generation
}

// DecisionEngine orchestrates the candle-to-order decision cycle.
type DecisionEngine interface {
	// Initialize sets up the engine with the given configuration.
	Initialize(config Config) error

	// SetMarketDataProvider configures the candle source.
	SetMarketDataProvider(provider provider.Provider) error

	// SetEnsemble configures the model ensemble producing signals.
	SetEnsemble(ens *ensemble.Ensemble) error

	// SetExecutionAdapter configures the order dispatch path.
	SetExecutionAdapter(adapter *execution.Adapter) error

	// SetRiskMonitor configures the portfolio risk monitor. The
	// monitor's account handle is the engine's view of the account.
	SetRiskMonitor(monitor *risk.Monitor, account *risk.AccountHandle) error

	// SetAuditStore configures decision persistence. Optional; without
	// it decisions are only surfaced through callbacks.
	SetAuditStore(store AuditSink) error

	// SetMetrics configures operational counters. Optional.
	SetMetrics(m *metrics.Metrics) error

	// Run starts the engine. Blocks until the context is cancelled,
	// the stream ends, or a fatal error occurs.
	Run(ctx context.Context, callbacks Callbacks) error

	// GetConfigSchema returns the JSON schema for the engine config.
	GetConfigSchema() (string, error)
}

// AuditSink is the subset of the audit store the engine writes to.
type AuditSink interface {
	SaveDecision(rec types.DecisionRecord) error
	UpdateOrderResult(result types.OrderResult) error
}
