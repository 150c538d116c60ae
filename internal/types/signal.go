package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

type Direction string

const (
	// DirectionBuy is a vote to open or add long exposure
	DirectionBuy Direction = "BUY"
	// DirectionSell is a vote to reduce or close exposure
	DirectionSell Direction = "SELL"
	// DirectionHold is a vote to do nothing
	DirectionHold Direction = "HOLD"
)

// ModelVote is a single model's opinion on one feature vector.
type ModelVote struct {
	// Model is the name of the model that produced the vote
	Model string `yaml:"model" json:"model" validate:"required"`
	// Symbol is the symbol the vote applies to
	Symbol string `yaml:"symbol" json:"symbol" validate:"required"`
	// Time is the candle time the vote was computed for
	Time time.Time `yaml:"time" json:"time" validate:"required"`
	// Direction is the voted direction
	Direction Direction `yaml:"direction" json:"direction" validate:"required,oneof=BUY SELL HOLD"`
	// Confidence is the model's confidence in [0, 1]
	Confidence float64 `yaml:"confidence" json:"confidence" validate:"gte=0,lte=1"`
}

// Validate validates the ModelVote struct.
func (v *ModelVote) Validate() error {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidVote, "invalid model vote", err)
	}

	return nil
}

// Signal is the consensus outcome over all votes for one candle.
type Signal struct {
	Symbol string    `yaml:"symbol" json:"symbol"`
	Time   time.Time `yaml:"time" json:"time"`
	// Direction is the winning direction, DirectionHold on a tie or
	// a failed quorum
	Direction Direction `yaml:"direction" json:"direction"`
	// Confidence is the mean confidence of the winning votes, zero
	// when Direction is HOLD
	Confidence float64 `yaml:"confidence" json:"confidence"`
	// Votes is the full set of votes the consensus was built from
	Votes []ModelVote `yaml:"votes" json:"votes"`
	// QuorumMet reports whether enough models responded
	QuorumMet bool `yaml:"quorum_met" json:"quorum_met"`
	// ReferencePrice is the close of the candle the signal came from,
	// carried for sizing
	ReferencePrice float64 `yaml:"reference_price" json:"reference_price"`
	// RealizedVol is the annualized volatility feature of the same
	// candle, carried for volatility-targeted sizing
	RealizedVol float64 `yaml:"realized_vol" json:"realized_vol"`
}

// Actionable reports whether the signal asks for a trade at all.
func (s *Signal) Actionable() bool {
	return s.QuorumMet && s.Direction != DirectionHold
}
