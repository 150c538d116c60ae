package ensemble

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// Ensemble fans a feature vector out to all configured models and
// returns the consensus signal over the votes that came back. A model
// that errors or times out simply does not vote this tick.
type Ensemble struct {
	models    []Model
	consensus *Consensus
	timeout   time.Duration
	logger    *logger.Logger
}

// NewEnsemble creates an ensemble over models. Quorum defaults to all
// configured models when zero.
func NewEnsemble(models []Model, quorum int, timeout time.Duration, l *logger.Logger) (*Ensemble, error) {
	if len(models) == 0 {
		return nil, errors.New(errors.ErrCodeNoModelsConfigured, "ensemble requires at least one model")
	}

	if quorum <= 0 || quorum > len(models) {
		quorum = len(models)
	}

	return &Ensemble{
		models:    models,
		consensus: NewConsensus(quorum),
		timeout:   timeout,
		logger:    l,
	}, nil
}

// Evaluate collects votes for fv from every model concurrently and
// aggregates them. It never fails on model errors; the worst outcome
// is a quorum miss, which the consensus turns into a Hold.
func (e *Ensemble) Evaluate(ctx context.Context, fv types.FeatureVector) types.Signal {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		votes []types.ModelVote
		wg    sync.WaitGroup
	)

	for _, m := range e.models {
		wg.Add(1)

		go func(m Model) {
			defer wg.Done()

			vote, err := m.Predict(ctx, fv)
			if err != nil {
				e.logger.Warn("model abstained",
					zap.String("model", m.Name()),
					zap.String("symbol", fv.Symbol),
					zap.Error(err))

				return
			}

			mu.Lock()
			votes = append(votes, vote)
			mu.Unlock()
		}(m)
	}

	wg.Wait()

	return e.consensus.Aggregate(fv.Symbol, fv.Time, votes)
}

// Size returns the number of configured models.
func (e *Ensemble) Size() int {
	return len(e.models)
}
