package ensemble_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quantgate-lab/quantgate/internal/ensemble"
	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/mocks"
)

func featureVector() types.FeatureVector {
	return types.FeatureVector{
		Symbol: "BTCUSDT",
		Time:   time.Unix(1700000000, 0),
	}
}

func votingModel(ctrl *gomock.Controller, name string, direction types.Direction, confidence float64) *mocks.MockModel {
	m := mocks.NewMockModel(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	m.EXPECT().
		Predict(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fv types.FeatureVector) (types.ModelVote, error) {
			return types.ModelVote{
				Model:      name,
				Symbol:     fv.Symbol,
				Time:       fv.Time,
				Direction:  direction,
				Confidence: confidence,
			}, nil
		}).
		AnyTimes()

	return m
}

func TestEnsembleMajorityWithMockModels(t *testing.T) {
	ctrl := gomock.NewController(t)

	l, err := logger.NewLogger()
	require.NoError(t, err)

	models := []ensemble.Model{
		votingModel(ctrl, "a", types.DirectionBuy, 0.9),
		votingModel(ctrl, "b", types.DirectionBuy, 0.7),
		votingModel(ctrl, "c", types.DirectionSell, 0.8),
	}

	ens, err := ensemble.NewEnsemble(models, 3, time.Second, l)
	require.NoError(t, err)

	signal := ens.Evaluate(context.Background(), featureVector())

	assert.True(t, signal.QuorumMet)
	assert.Equal(t, types.DirectionBuy, signal.Direction)
	assert.InDelta(t, 0.8, signal.Confidence, 1e-9)
	assert.Len(t, signal.Votes, 3)
}

func TestEnsembleErroringModelAbstains(t *testing.T) {
	ctrl := gomock.NewController(t)

	l, err := logger.NewLogger()
	require.NoError(t, err)

	broken := mocks.NewMockModel(ctrl)
	broken.EXPECT().Name().Return("broken").AnyTimes()
	broken.EXPECT().
		Predict(gomock.Any(), gomock.Any()).
		Return(types.ModelVote{}, context.DeadlineExceeded).
		AnyTimes()

	models := []ensemble.Model{
		votingModel(ctrl, "a", types.DirectionBuy, 0.9),
		broken,
	}

	// Quorum of two cannot be met with one abstention.
	ens, err := ensemble.NewEnsemble(models, 2, time.Second, l)
	require.NoError(t, err)

	signal := ens.Evaluate(context.Background(), featureVector())

	assert.False(t, signal.QuorumMet)
	assert.Equal(t, types.DirectionHold, signal.Direction)
	assert.Zero(t, signal.Confidence)
}
