package execution

import (
	"context"

	"github.com/quantgate-lab/quantgate/internal/types"
)

// Venue is one order backend. Both shapes the adapter supports, the
// synchronous REST exchange and the message-bridge broker terminal,
// implement this interface.
type Venue interface {
	// Name identifies the venue in results and routing config.
	Name() string
	// PlaceOrder submits the order, passing spec.IdempotencyKey as the
	// client order-link id where the venue supports one. A returned
	// error of code ErrCodeOrderAmbiguous means the outcome is
	// unknown and must be reconciled, never resent.
	PlaceOrder(ctx context.Context, spec types.OrderSpec) (types.OrderResult, error)
	// OrderStatus looks an order up by its idempotency key. Venues
	// without a status query answer from their own submission log.
	OrderStatus(ctx context.Context, symbol, idempotencyKey string) (types.OrderResult, error)
}

// BalanceReader is implemented by venues that can report account
// balances, used to seed AccountState at startup.
type BalanceReader interface {
	Balance(ctx context.Context) (float64, error)
}
