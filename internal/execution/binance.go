package execution

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

const (
	// binanceDecimalPrecision is a fallback quantity precision. 8
	// decimals covers satoshi-level sizes; symbol-specific LOT_SIZE
	// filters should override it in production.
	binanceDecimalPrecision = 8

	// binanceClientOrderIDMax is the venue's limit on client order-link
	// id length.
	binanceClientOrderIDMax = 36
)

// Service interfaces for mocking the Binance API

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	NewClientOrderID(id string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// GetOrderService interface for querying one order by client id.
type GetOrderService interface {
	Symbol(symbol string) GetOrderService
	OrigClientOrderID(id string) GetOrderService
	Do(ctx context.Context) (*binance.Order, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// BinanceClient interface abstracts the Binance client for testing.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
	NewGetOrderService() GetOrderService
	NewGetAccountService() GetAccountService
}

// realBinanceClient wraps the actual binance.Client.
type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceClient) NewGetOrderService() GetOrderService {
	return &realGetOrderService{service: r.client.NewGetOrderService()}
}

func (r *realBinanceClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) NewClientOrderID(id string) CreateOrderService {
	s.service = s.service.NewClientOrderID(id)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetOrderService struct {
	service *binance.GetOrderService
}

func (s *realGetOrderService) Symbol(symbol string) GetOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realGetOrderService) OrigClientOrderID(id string) GetOrderService {
	s.service = s.service.OrigClientOrderID(id)

	return s
}

func (s *realGetOrderService) Do(ctx context.Context) (*binance.Order, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

// BinanceVenue implements Venue over the Binance spot REST API. The
// idempotency key travels as the client order id, which makes status
// reconciliation by key possible server-side.
type BinanceVenue struct {
	client    BinanceClient
	limiter   *rate.Limiter
	precision int32
}

// NewBinanceVenue connects to Binance, or its testnet when useTestnet
// is set.
func NewBinanceVenue(apiKey, secretKey string, useTestnet bool) *BinanceVenue {
	if useTestnet {
		binance.UseTestnet = true
	}

	return &BinanceVenue{
		client:    &realBinanceClient{client: binance.NewClient(apiKey, secretKey)},
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		precision: binanceDecimalPrecision,
	}
}

// newBinanceVenueWithClient is used for testing with mock clients.
func newBinanceVenueWithClient(client BinanceClient) *BinanceVenue {
	return &BinanceVenue{
		client:    client,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		precision: binanceDecimalPrecision,
	}
}

// Name implements Venue.
func (b *BinanceVenue) Name() string {
	return "binance"
}

// PlaceOrder implements Venue.
func (b *BinanceVenue) PlaceOrder(ctx context.Context, spec types.OrderSpec) (types.OrderResult, error) {
	var side binance.SideType

	switch spec.Side {
	case types.SideBuy:
		side = binance.SideTypeBuy
	case types.SideSell:
		side = binance.SideTypeSell
	default:
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", spec.Side)
	}

	var orderType binance.OrderType

	switch spec.OrderType {
	case types.OrderTypeMarket:
		orderType = binance.OrderTypeMarket
	case types.OrderTypeLimit:
		orderType = binance.OrderTypeLimit
	default:
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order type: %s", spec.OrderType)
	}

	quantity := decimal.NewFromFloat(spec.Quantity).Round(b.precision)
	if quantity.IsZero() || quantity.IsNegative() {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"quantity %.8f is too small after rounding to %d decimals", spec.Quantity, b.precision)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return types.OrderResult{}, errors.Wrap(errors.ErrCodeVenueUnavailable, "rate limiter interrupted", err)
	}

	service := b.client.NewCreateOrderService().
		Symbol(spec.Symbol).
		Side(side).
		Type(orderType).
		Quantity(quantity.String()).
		NewClientOrderID(clientOrderID(spec.IdempotencyKey))

	if spec.OrderType == types.OrderTypeLimit {
		service = service.
			Price(decimal.NewFromFloat(spec.Price).String()).
			TimeInForce(binance.TimeInForceTypeGTC)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return types.OrderResult{}, classifyBinanceError(ctx, err)
	}

	return resultFromCreateResponse(resp), nil
}

// OrderStatus implements Venue. A key the venue has never seen means
// the original submission did not land, which is a definitive Failed.
func (b *BinanceVenue) OrderStatus(ctx context.Context, symbol, idempotencyKey string) (types.OrderResult, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return types.OrderResult{}, errors.Wrap(errors.ErrCodeVenueUnavailable, "rate limiter interrupted", err)
	}

	order, err := b.client.NewGetOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientOrderID(idempotencyKey)).
		Do(ctx)
	if err != nil {
		if apiErr, ok := err.(*common.APIError); ok && apiErr.Code == -2013 {
			// "Order does not exist": the ambiguous submission never
			// reached the book.
			return types.OrderResult{Status: types.OrderStatusFailed, Message: apiErr.Message}, nil
		}

		return types.OrderResult{}, errors.Wrap(errors.ErrCodeVenueUnavailable, "order status query failed", err)
	}

	return resultFromOrder(order), nil
}

// Balance implements BalanceReader, summing free USDT-quoted balances.
func (b *BinanceVenue) Balance(ctx context.Context) (float64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, errors.Wrap(errors.ErrCodeVenueUnavailable, "rate limiter interrupted", err)
	}

	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeVenueUnavailable, "account query failed", err)
	}

	for _, balance := range account.Balances {
		if balance.Asset == "USDT" {
			free, _ := strconv.ParseFloat(balance.Free, 64)
			locked, _ := strconv.ParseFloat(balance.Locked, 64)

			return free + locked, nil
		}
	}

	return 0, nil
}

// classifyBinanceError separates definitive venue answers from
// ambiguous transport failures.
func classifyBinanceError(ctx context.Context, err error) error {
	if apiErr, ok := err.(*common.APIError); ok {
		// The venue answered: the order was definitively not accepted.
		return errors.Wrapf(errors.ErrCodeVenueRejected, err, "binance rejected order (code %d)", apiErr.Code)
	}

	if ctx.Err() != nil {
		// Timed out or cancelled mid-call; the order may have landed.
		return errors.Wrap(errors.ErrCodeOrderAmbiguous, "order submission outcome unknown", err)
	}

	return errors.Wrap(errors.ErrCodeOrderAmbiguous, "transport failure during order submission", err)
}

func resultFromCreateResponse(resp *binance.CreateOrderResponse) types.OrderResult {
	result := types.OrderResult{
		VenueOrderID: strconv.FormatInt(resp.OrderID, 10),
		Status:       mapBinanceStatus(resp.Status),
		SubmittedAt:  time.UnixMilli(resp.TransactTime),
	}

	executed, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	result.FilledQuantity = executed

	quote, _ := strconv.ParseFloat(resp.CummulativeQuoteQuantity, 64)
	if executed > 0 {
		result.FilledPrice = quote / executed
	}

	return result
}

func resultFromOrder(order *binance.Order) types.OrderResult {
	result := types.OrderResult{
		VenueOrderID: strconv.FormatInt(order.OrderID, 10),
		Status:       mapBinanceStatus(order.Status),
		SubmittedAt:  time.UnixMilli(order.Time),
	}

	executed, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	result.FilledQuantity = executed

	quote, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if executed > 0 {
		result.FilledPrice = quote / executed
	}

	return result
}

func mapBinanceStatus(status binance.OrderStatusType) types.OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled:
		return types.OrderStatusFilled
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled:
		return types.OrderStatusPending
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		return types.OrderStatusCancelled
	case binance.OrderStatusTypeRejected:
		return types.OrderStatusRejected
	default:
		return types.OrderStatusFailed
	}
}

// clientOrderID shortens an idempotency key to the venue's limit while
// keeping parent and protective-leg keys distinct.
func clientOrderID(key string) string {
	if len(key) <= binanceClientOrderIDMax {
		return key
	}

	return key[:20] + key[len(key)-16:]
}

var (
	_ Venue         = (*BinanceVenue)(nil)
	_ BalanceReader = (*BinanceVenue)(nil)
)
