// Package ensemble runs a set of opaque predictive models over feature
// vectors and folds their votes into a single consensus signal.
package ensemble

import (
	"context"

	"github.com/quantgate-lab/quantgate/internal/types"
)

// Model is a single predictor. Implementations must be safe for
// concurrent Predict calls; the ensemble fans out one call per model
// per tick.
type Model interface {
	// Name identifies the model in votes and audit records.
	Name() string
	// Predict returns the model's vote for one feature vector. An
	// error means the model abstains this tick; it is never fatal to
	// the ensemble.
	Predict(ctx context.Context, fv types.FeatureVector) (types.ModelVote, error)
}
