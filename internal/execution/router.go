package execution

import (
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// Router selects the venue backend for a symbol. Routing is static:
// explicit per-symbol assignments with one default fallback.
type Router struct {
	bySymbol map[string]Venue
	fallback Venue
}

// NewRouter creates a router with the given default venue.
func NewRouter(fallback Venue) *Router {
	return &Router{
		bySymbol: map[string]Venue{},
		fallback: fallback,
	}
}

// Assign pins a symbol to a specific venue.
func (r *Router) Assign(symbol string, v Venue) {
	r.bySymbol[symbol] = v
}

// Route returns the venue responsible for spec's symbol.
func (r *Router) Route(spec types.OrderSpec) (Venue, error) {
	if v, ok := r.bySymbol[spec.Symbol]; ok {
		return v, nil
	}

	if r.fallback != nil {
		return r.fallback, nil
	}

	return nil, errors.Newf(errors.ErrCodeNoVenueForSymbol, "no venue routes symbol %s", spec.Symbol)
}
