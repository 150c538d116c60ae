package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

type Side string

type OrderType string

type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusFailed    OrderStatus = "FAILED"
	// OrderStatusFailedUnknown means the submit attempt ended without a
	// definitive venue answer. The order may or may not exist at the
	// venue and must be reconciled before any resend.
	OrderStatusFailedUnknown OrderStatus = "FAILED_UNKNOWN"
)

// Terminal reports whether the status can no longer change at the venue.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// ProtectiveOrder is an attached take-profit or stop-loss leg.
type ProtectiveOrder struct {
	Symbol    string    `yaml:"symbol" json:"symbol" validate:"required"`
	Side      Side      `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	OrderType OrderType `yaml:"order_type" json:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Price     float64   `yaml:"price" json:"price" validate:"required,gt=0"`
}

// OrderSpec is a fully sized, risk-approved order ready for dispatch.
type OrderSpec struct {
	// ID is the internal record id, assigned at creation
	ID string `yaml:"id" json:"id" validate:"required,uuid"`
	// IdempotencyKey is derived from (symbol, decision time, side) and
	// is stable across retries of the same decision
	IdempotencyKey string    `yaml:"idempotency_key" json:"idempotency_key" validate:"required"`
	Symbol         string    `yaml:"symbol" json:"symbol" validate:"required"`
	Side           Side      `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	OrderType      OrderType `yaml:"order_type" json:"order_type" validate:"required,oneof=MARKET LIMIT"`
	// Quantity is the order size in base units
	Quantity float64 `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	// Price is the reference price the size was computed against; for
	// limit orders it is also the limit price
	Price float64 `yaml:"price" json:"price" validate:"required,gt=0"`
	// DecisionTime is the candle time of the decision the order came from
	DecisionTime time.Time `yaml:"decision_time" json:"decision_time" validate:"required"`
	// TakeProfit is the attached take profit leg. Can be nil if not set.
	TakeProfit optional.Option[ProtectiveOrder] `yaml:"take_profit" json:"take_profit"`
	// StopLoss is the attached stop loss leg. Can be nil if not set.
	StopLoss optional.Option[ProtectiveOrder] `yaml:"stop_loss" json:"stop_loss"`
}

// Validate validates the OrderSpec struct.
func (o *OrderSpec) Validate() error {
	validate := validator.New()

	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrderSpec, "invalid order spec", err)
	}

	if o.TakeProfit.IsSome() {
		if err := validate.Struct(o.TakeProfit.Unwrap()); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidTakeProfit, "invalid take profit", err)
		}
	}

	if o.StopLoss.IsSome() {
		if err := validate.Struct(o.StopLoss.Unwrap()); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidStopLoss, "invalid stop loss", err)
		}
	}

	return nil
}

// OrderResult is the venue's answer to one dispatch attempt.
type OrderResult struct {
	// IdempotencyKey links the result back to its spec
	IdempotencyKey string      `yaml:"idempotency_key" json:"idempotency_key"`
	VenueOrderID   string      `yaml:"venue_order_id" json:"venue_order_id"`
	Status         OrderStatus `yaml:"status" json:"status"`
	// Venue is the name of the venue that handled the order
	Venue          string    `yaml:"venue" json:"venue"`
	FilledQuantity float64   `yaml:"filled_quantity" json:"filled_quantity"`
	FilledPrice    float64   `yaml:"filled_price" json:"filled_price"`
	Fee            float64   `yaml:"fee" json:"fee"`
	SubmittedAt    time.Time `yaml:"submitted_at" json:"submitted_at"`
	// Message carries the venue's rejection or error text, if any
	Message string `yaml:"message" json:"message"`
}
