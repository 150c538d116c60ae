package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// DecisionRecord is the full audit trail of one tick's decision:
// features in, votes, consensus, the gate's verdict, and the dispatch
// outcome when an order was placed.
type DecisionRecord struct {
	ID     string    `yaml:"id" json:"id"`
	Symbol string    `yaml:"symbol" json:"symbol"`
	Time   time.Time `yaml:"time" json:"time"`
	// Features is nil-valued (empty Names) when the pipeline was still
	// warming up and the tick produced no vector
	Features FeatureVector `yaml:"features" json:"features"`
	Signal   Signal        `yaml:"signal" json:"signal"`
	Gate     GateDecision  `yaml:"gate" json:"gate"`
	// Order is set only when the gate approved
	Order optional.Option[OrderSpec] `yaml:"order" json:"order"`
	// Result is set only when a dispatch attempt completed
	Result    optional.Option[OrderResult] `yaml:"result" json:"result"`
	CreatedAt time.Time                    `yaml:"created_at" json:"created_at"`
}
