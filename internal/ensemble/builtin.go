package ensemble

import (
	"context"
	"math"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// MomentumModel votes with the trend: buy on positive momentum, sell
// on negative, hold inside a dead band. Confidence scales with the
// magnitude of the long momentum.
type MomentumModel struct {
	// DeadBand is the absolute momentum below which the model holds.
	DeadBand float64
	// FullConfidenceAt is the momentum magnitude mapped to confidence 1.
	FullConfidenceAt float64
}

// NewMomentumModel creates a momentum model with default bands.
func NewMomentumModel() *MomentumModel {
	return &MomentumModel{
		DeadBand:         0.002,
		FullConfidenceAt: 0.02,
	}
}

// Name implements Model.
func (m *MomentumModel) Name() string {
	return "momentum"
}

// Predict implements Model.
func (m *MomentumModel) Predict(_ context.Context, fv types.FeatureVector) (types.ModelVote, error) {
	mom, ok := fv.Get(types.FeatureMomentum20)
	if !ok {
		return types.ModelVote{}, errors.Newf(errors.ErrCodeModelBadResponse,
			"feature %s missing from vector", types.FeatureMomentum20)
	}

	vote := types.ModelVote{
		Model:      m.Name(),
		Symbol:     fv.Symbol,
		Time:       fv.Time,
		Direction:  types.DirectionHold,
		Confidence: 0,
	}

	if math.Abs(mom) < m.DeadBand {
		return vote, nil
	}

	if mom > 0 {
		vote.Direction = types.DirectionBuy
	} else {
		vote.Direction = types.DirectionSell
	}

	vote.Confidence = clamp01(math.Abs(mom) / m.FullConfidenceAt)

	return vote, nil
}

// MeanReversionModel fades RSI extremes: buy oversold, sell overbought.
type MeanReversionModel struct {
	Oversold   float64
	Overbought float64
}

// NewMeanReversionModel creates a mean reversion model with the
// conventional 30/70 bands.
func NewMeanReversionModel() *MeanReversionModel {
	return &MeanReversionModel{
		Oversold:   30,
		Overbought: 70,
	}
}

// Name implements Model.
func (m *MeanReversionModel) Name() string {
	return "mean_reversion"
}

// Predict implements Model.
func (m *MeanReversionModel) Predict(_ context.Context, fv types.FeatureVector) (types.ModelVote, error) {
	rsi, ok := fv.Get(types.FeatureRSI14)
	if !ok {
		return types.ModelVote{}, errors.Newf(errors.ErrCodeModelBadResponse,
			"feature %s missing from vector", types.FeatureRSI14)
	}

	vote := types.ModelVote{
		Model:      m.Name(),
		Symbol:     fv.Symbol,
		Time:       fv.Time,
		Direction:  types.DirectionHold,
		Confidence: 0,
	}

	switch {
	case rsi > 0 && rsi < m.Oversold:
		vote.Direction = types.DirectionBuy
		vote.Confidence = clamp01((m.Oversold - rsi) / m.Oversold)
	case rsi > m.Overbought:
		vote.Direction = types.DirectionSell
		vote.Confidence = clamp01((rsi - m.Overbought) / (100 - m.Overbought))
	}

	return vote, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

var (
	_ Model = (*MomentumModel)(nil)
	_ Model = (*MeanReversionModel)(nil)
)
