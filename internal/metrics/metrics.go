// Package metrics exposes the decision core's operational counters
// over a dedicated Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/quantgate-lab/quantgate/internal/types"
)

// Metrics holds the collectors for one engine instance. A dedicated
// registry keeps tests isolated from the default global one.
type Metrics struct {
	registry *prometheus.Registry

	decisionsTotal *prometheus.CounterVec
	ordersTotal    *prometheus.CounterVec
	halted         prometheus.Gauge
	equity         prometheus.Gauge
	drawdown       prometheus.Gauge
	valueAtRisk    prometheus.Gauge
	riskStateAge   prometheus.Gauge
	tickLatency    prometheus.Histogram
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantgate",
			Name:      "decisions_total",
			Help:      "Decision cycles by symbol and gate reason.",
		}, []string{"symbol", "reason"}),
		ordersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantgate",
			Name:      "orders_total",
			Help:      "Order dispatches by venue and terminal status.",
		}, []string{"venue", "status"}),
		halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quantgate",
			Name:      "halted",
			Help:      "1 while trading is halted, 0 otherwise.",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quantgate",
			Name:      "equity_usd",
			Help:      "Current account equity.",
		}),
		drawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quantgate",
			Name:      "drawdown_pct",
			Help:      "Fractional decline from peak equity.",
		}),
		valueAtRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quantgate",
			Name:      "var_pct",
			Help:      "Historical value at risk as a fraction of equity.",
		}),
		riskStateAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quantgate",
			Name:      "risk_state_age_seconds",
			Help:      "Age of the risk state snapshot the gate evaluates against.",
		}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quantgate",
			Name:      "tick_latency_seconds",
			Help:      "Candle-to-decision processing latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}

	registry.MustRegister(m.decisionsTotal, m.ordersTotal, m.halted, m.equity,
		m.drawdown, m.valueAtRisk, m.riskStateAge, m.tickLatency)

	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDecision counts one completed decision cycle.
func (m *Metrics) ObserveDecision(rec types.DecisionRecord) {
	m.decisionsTotal.WithLabelValues(rec.Symbol, rec.Gate.Reason).Inc()
}

// ObserveOrderResult counts one resolved order dispatch.
func (m *Metrics) ObserveOrderResult(result types.OrderResult) {
	m.ordersTotal.WithLabelValues(result.Venue, string(result.Status)).Inc()
}

// SetHalted reflects the monitor's halt latch.
func (m *Metrics) SetHalted(halted bool) {
	if halted {
		m.halted.Set(1)

		return
	}

	m.halted.Set(0)
}

// SetEquity records the current account equity.
func (m *Metrics) SetEquity(equity float64) {
	m.equity.Set(equity)
}

// ObserveRiskState records the monitor posture the gate just
// evaluated against.
func (m *Metrics) ObserveRiskState(state types.RiskState, now time.Time) {
	m.drawdown.Set(state.Drawdown)
	m.valueAtRisk.Set(state.VaR)

	if !state.UpdatedAt.IsZero() {
		m.riskStateAge.Set(now.Sub(state.UpdatedAt).Seconds())
	}
}

// ObserveTickLatency records one candle-to-decision duration.
func (m *Metrics) ObserveTickLatency(d time.Duration) {
	m.tickLatency.Observe(d.Seconds())
}
