package ensemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

type stubModel struct {
	name string
	vote types.ModelVote
	err  error
}

func (s *stubModel) Name() string { return s.name }

func (s *stubModel) Predict(_ context.Context, fv types.FeatureVector) (types.ModelVote, error) {
	if s.err != nil {
		return types.ModelVote{}, s.err
	}

	v := s.vote
	v.Model = s.name
	v.Symbol = fv.Symbol
	v.Time = fv.Time

	return v, nil
}

func testVector() types.FeatureVector {
	return types.FeatureVector{
		Symbol: "BTCUSDT",
		Time:   time.Unix(1700000000, 0),
		Close:  65000,
		Names:  []string{types.FeatureMomentum20, types.FeatureRSI14},
		Values: []float64{0.01, 55},
	}
}

func newTestEnsemble(t *testing.T, models []Model, quorum int) *Ensemble {
	t.Helper()

	l, err := logger.NewLogger()
	require.NoError(t, err)

	e, err := NewEnsemble(models, quorum, time.Second, l)
	require.NoError(t, err)

	return e
}

func TestEnsembleEvaluateMajority(t *testing.T) {
	e := newTestEnsemble(t, []Model{
		&stubModel{name: "a", vote: types.ModelVote{Direction: types.DirectionBuy, Confidence: 0.8}},
		&stubModel{name: "b", vote: types.ModelVote{Direction: types.DirectionBuy, Confidence: 0.6}},
		&stubModel{name: "c", vote: types.ModelVote{Direction: types.DirectionSell, Confidence: 0.9}},
	}, 0)

	s := e.Evaluate(context.Background(), testVector())

	assert.True(t, s.QuorumMet)
	assert.Equal(t, types.DirectionBuy, s.Direction)
	assert.InDelta(t, 0.7, s.Confidence, 1e-9)
	assert.Len(t, s.Votes, 3)
}

func TestEnsembleFailingModelBreaksQuorum(t *testing.T) {
	e := newTestEnsemble(t, []Model{
		&stubModel{name: "a", vote: types.ModelVote{Direction: types.DirectionBuy, Confidence: 0.9}},
		&stubModel{name: "b", vote: types.ModelVote{Direction: types.DirectionBuy, Confidence: 0.9}},
		&stubModel{name: "c", err: errors.New(errors.ErrCodeModelUnavailable, "connection refused")},
	}, 0)

	// Quorum defaults to all three models, so one abstention fails it.
	s := e.Evaluate(context.Background(), testVector())

	assert.False(t, s.QuorumMet)
	assert.Equal(t, types.DirectionHold, s.Direction)
	assert.Equal(t, 0.0, s.Confidence)
}

func TestEnsembleReducedQuorumSurvivesFailure(t *testing.T) {
	e := newTestEnsemble(t, []Model{
		&stubModel{name: "a", vote: types.ModelVote{Direction: types.DirectionSell, Confidence: 0.8}},
		&stubModel{name: "b", vote: types.ModelVote{Direction: types.DirectionSell, Confidence: 0.6}},
		&stubModel{name: "c", err: errors.New(errors.ErrCodeModelTimeout, "deadline exceeded")},
	}, 2)

	s := e.Evaluate(context.Background(), testVector())

	assert.True(t, s.QuorumMet)
	assert.Equal(t, types.DirectionSell, s.Direction)
	assert.InDelta(t, 0.7, s.Confidence, 1e-9)
}

func TestEnsembleRequiresModels(t *testing.T) {
	l, err := logger.NewLogger()
	require.NoError(t, err)

	_, err = NewEnsemble(nil, 0, time.Second, l)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNoModelsConfigured))
}

func TestMomentumModel(t *testing.T) {
	m := NewMomentumModel()

	fv := testVector()
	fv.Values = []float64{0.01, 55}

	v, err := m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionBuy, v.Direction)
	assert.InDelta(t, 0.5, v.Confidence, 1e-9)

	fv.Values = []float64{-0.05, 55}
	v, err = m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionSell, v.Direction)
	assert.Equal(t, 1.0, v.Confidence)

	fv.Values = []float64{0.0001, 55}
	v, err = m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionHold, v.Direction)
}

func TestMeanReversionModel(t *testing.T) {
	m := NewMeanReversionModel()

	fv := testVector()
	fv.Values = []float64{0.01, 15}

	v, err := m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionBuy, v.Direction)
	assert.InDelta(t, 0.5, v.Confidence, 1e-9)

	fv.Values = []float64{0.01, 85}
	v, err = m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionSell, v.Direction)
	assert.InDelta(t, 0.5, v.Confidence, 1e-9)

	fv.Values = []float64{0.01, 50}
	v, err = m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, types.DirectionHold, v.Direction)
}
