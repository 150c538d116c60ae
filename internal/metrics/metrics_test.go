package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgate-lab/quantgate/internal/types"
)

func TestObserveDecision(t *testing.T) {
	m := New()

	m.ObserveDecision(types.DecisionRecord{
		Symbol: "BTCUSDT",
		Gate:   types.GateDecision{Approved: true, Reason: types.ReasonApproved},
	})
	m.ObserveDecision(types.DecisionRecord{
		Symbol: "BTCUSDT",
		Gate:   types.GateDecision{Reason: types.ReasonLowConfidence},
	})
	m.ObserveDecision(types.DecisionRecord{
		Symbol: "BTCUSDT",
		Gate:   types.GateDecision{Reason: types.ReasonLowConfidence},
	})

	count := testutil.ToFloat64(m.decisionsTotal.WithLabelValues("BTCUSDT", types.ReasonLowConfidence))
	assert.Equal(t, 2.0, count)
	count = testutil.ToFloat64(m.decisionsTotal.WithLabelValues("BTCUSDT", types.ReasonApproved))
	assert.Equal(t, 1.0, count)
}

func TestObserveOrderResult(t *testing.T) {
	m := New()

	m.ObserveOrderResult(types.OrderResult{Venue: "binance", Status: types.OrderStatusFilled})

	count := testutil.ToFloat64(m.ordersTotal.WithLabelValues("binance", string(types.OrderStatusFilled)))
	assert.Equal(t, 1.0, count)
}

func TestHaltedGauge(t *testing.T) {
	m := New()

	assert.Equal(t, 0.0, testutil.ToFloat64(m.halted))

	m.SetHalted(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.halted))

	m.SetHalted(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.halted))
}

func TestRegistryGathers(t *testing.T) {
	m := New()
	m.SetEquity(100000)
	m.ObserveTickLatency(2 * time.Millisecond)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestObserveRiskState(t *testing.T) {
	m := New()

	now := time.Now()
	m.ObserveRiskState(types.RiskState{
		Drawdown:  0.12,
		VaR:       0.04,
		UpdatedAt: now.Add(-3 * time.Second),
	}, now)

	assert.InDelta(t, 0.12, testutil.ToFloat64(m.drawdown), 1e-9)
	assert.InDelta(t, 0.04, testutil.ToFloat64(m.valueAtRisk), 1e-9)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.riskStateAge), 1e-6)
}

func TestObserveRiskStateSkipsAgeWhenUnset(t *testing.T) {
	m := New()

	m.ObserveRiskState(types.RiskState{Drawdown: 0.01}, time.Now())

	assert.Zero(t, testutil.ToFloat64(m.riskStateAge))
}
