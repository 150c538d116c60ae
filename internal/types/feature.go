package types

import "time"

// Feature names emitted by the feature pipeline, in pipeline order.
const (
	FeatureMomentum5   = "momentum_5"
	FeatureMomentum20  = "momentum_20"
	FeatureRealizedVol = "realized_vol_20"
	FeatureRSI14       = "rsi_14"
	FeatureATR14       = "atr_14"
	FeatureSpreadBPS   = "spread_bps"
)

// FeatureVector is an ordered set of named features computed from one
// closed candle. Names and Values are index-aligned; the order is fixed
// per pipeline so models can rely on a stable shape.
type FeatureVector struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	// Close is the close of the candle the vector was computed from,
	// carried along so downstream sizing does not need the raw bar.
	Close  float64   `json:"close"`
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
}

// Get returns the value of a named feature.
func (fv *FeatureVector) Get(name string) (float64, bool) {
	for i, n := range fv.Names {
		if n == name {
			return fv.Values[i], true
		}
	}

	return 0, false
}

// Map returns the vector as a name->value map for serialization.
func (fv *FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(fv.Names))
	for i, n := range fv.Names {
		m[n] = fv.Values[i]
	}

	return m
}
