package ensemble

import (
	"time"

	"github.com/quantgate-lab/quantgate/internal/types"
)

// Consensus folds model votes into one signal by majority rule.
type Consensus struct {
	// Quorum is the minimum number of votes required; below it the
	// consensus is a zero-confidence Hold, not an error.
	Quorum int
}

// NewConsensus creates a consensus requiring quorum votes per tick.
func NewConsensus(quorum int) *Consensus {
	return &Consensus{Quorum: quorum}
}

// Aggregate computes the majority direction over votes. A strict tie
// between Buy and Sell resolves to Hold. Confidence is the arithmetic
// mean of the votes agreeing with the winning direction; losing votes
// count toward the tie check but never toward confidence.
func (c *Consensus) Aggregate(symbol string, at time.Time, votes []types.ModelVote) types.Signal {
	signal := types.Signal{
		Symbol:    symbol,
		Time:      at,
		Direction: types.DirectionHold,
		Votes:     votes,
	}

	if len(votes) < c.Quorum {
		return signal
	}

	signal.QuorumMet = true

	counts := map[types.Direction]int{}
	confSum := map[types.Direction]float64{}

	for _, v := range votes {
		counts[v.Direction]++
		confSum[v.Direction] += v.Confidence
	}

	winner := types.DirectionHold
	best := 0

	for _, d := range []types.Direction{types.DirectionBuy, types.DirectionSell, types.DirectionHold} {
		if counts[d] > best {
			winner = d
			best = counts[d]
		}
	}

	// A tie for the top count means no majority.
	ties := 0
	for _, n := range counts {
		if n == best {
			ties++
		}
	}

	if ties > 1 {
		return signal
	}

	signal.Direction = winner
	if winner != types.DirectionHold && best > 0 {
		signal.Confidence = confSum[winner] / float64(best)
	}

	return signal
}
