package execution

import (
	"context"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/suite"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// Mock implementations for testing

type mockBinanceClient struct {
	createOrderService *mockCreateOrderService
	getOrderService    *mockGetOrderService
	getAccountService  *mockGetAccountService
}

func newMockBinanceClient() *mockBinanceClient {
	return &mockBinanceClient{
		createOrderService: &mockCreateOrderService{},
		getOrderService:    &mockGetOrderService{},
		getAccountService:  &mockGetAccountService{},
	}
}

func (m *mockBinanceClient) NewCreateOrderService() CreateOrderService {
	return m.createOrderService
}

func (m *mockBinanceClient) NewGetOrderService() GetOrderService {
	return m.getOrderService
}

func (m *mockBinanceClient) NewGetAccountService() GetAccountService {
	return m.getAccountService
}

type mockCreateOrderService struct {
	response      *binance.CreateOrderResponse
	err           error
	symbol        string
	side          binance.SideType
	orderTyp      binance.OrderType
	quantity      string
	price         string
	tif           binance.TimeInForceType
	clientOrderID string
}

func (m *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	m.symbol = symbol

	return m
}

func (m *mockCreateOrderService) Side(side binance.SideType) CreateOrderService {
	m.side = side

	return m
}

func (m *mockCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	m.orderTyp = orderType

	return m
}

func (m *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	m.quantity = quantity

	return m
}

func (m *mockCreateOrderService) Price(price string) CreateOrderService {
	m.price = price

	return m
}

func (m *mockCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	m.tif = tif

	return m
}

func (m *mockCreateOrderService) NewClientOrderID(id string) CreateOrderService {
	m.clientOrderID = id

	return m
}

func (m *mockCreateOrderService) Do(_ context.Context) (*binance.CreateOrderResponse, error) {
	return m.response, m.err
}

type mockGetOrderService struct {
	order         *binance.Order
	err           error
	symbol        string
	clientOrderID string
}

func (m *mockGetOrderService) Symbol(symbol string) GetOrderService {
	m.symbol = symbol

	return m
}

func (m *mockGetOrderService) OrigClientOrderID(id string) GetOrderService {
	m.clientOrderID = id

	return m
}

func (m *mockGetOrderService) Do(_ context.Context) (*binance.Order, error) {
	return m.order, m.err
}

type mockGetAccountService struct {
	account *binance.Account
	err     error
}

func (m *mockGetAccountService) Do(_ context.Context) (*binance.Account, error) {
	return m.account, m.err
}

type BinanceVenueTestSuite struct {
	suite.Suite
	client *mockBinanceClient
	venue  *BinanceVenue
}

func (s *BinanceVenueTestSuite) SetupTest() {
	s.client = newMockBinanceClient()
	s.venue = newBinanceVenueWithClient(s.client)
}

func TestBinanceVenueTestSuite(t *testing.T) {
	suite.Run(t, new(BinanceVenueTestSuite))
}

func (s *BinanceVenueTestSuite) spec() types.OrderSpec {
	return types.OrderSpec{
		Symbol:         "BTCUSDT",
		Side:           types.SideBuy,
		OrderType:      types.OrderTypeMarket,
		Quantity:       0.5,
		Price:          50000,
		DecisionTime:   time.Unix(1700000000, 0),
		IdempotencyKey: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}
}

func (s *BinanceVenueTestSuite) TestPlaceOrderFilled() {
	s.client.createOrderService.response = &binance.CreateOrderResponse{
		OrderID:                  42,
		Status:                   binance.OrderStatusTypeFilled,
		ExecutedQuantity:         "0.5",
		CummulativeQuoteQuantity: "25000",
		TransactTime:             1700000000000,
	}

	result, err := s.venue.PlaceOrder(context.Background(), s.spec())
	s.Require().NoError(err)

	s.Equal(types.OrderStatusFilled, result.Status)
	s.Equal("42", result.VenueOrderID)
	s.Equal(0.5, result.FilledQuantity)
	s.Equal(50000.0, result.FilledPrice)

	// The idempotency key travels as the client order id, shortened to
	// the venue's limit.
	s.Equal("BTCUSDT", s.client.createOrderService.symbol)
	s.LessOrEqual(len(s.client.createOrderService.clientOrderID), binanceClientOrderIDMax)
	s.Equal(clientOrderID(s.spec().IdempotencyKey), s.client.createOrderService.clientOrderID)
}

func (s *BinanceVenueTestSuite) TestPlaceLimitOrderCarriesPrice() {
	s.client.createOrderService.response = &binance.CreateOrderResponse{
		OrderID: 43,
		Status:  binance.OrderStatusTypeNew,
	}

	spec := s.spec()
	spec.OrderType = types.OrderTypeLimit

	result, err := s.venue.PlaceOrder(context.Background(), spec)
	s.Require().NoError(err)

	s.Equal(types.OrderStatusPending, result.Status)
	s.Equal("50000", s.client.createOrderService.price)
	s.Equal(binance.TimeInForceTypeGTC, s.client.createOrderService.tif)
}

func (s *BinanceVenueTestSuite) TestPlaceOrderAPIErrorIsRejection() {
	s.client.createOrderService.err = &common.APIError{Code: -2010, Message: "insufficient balance"}

	_, err := s.venue.PlaceOrder(context.Background(), s.spec())
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeVenueRejected))
}

func (s *BinanceVenueTestSuite) TestPlaceOrderTransportErrorIsAmbiguous() {
	s.client.createOrderService.err = context.DeadlineExceeded

	_, err := s.venue.PlaceOrder(context.Background(), s.spec())
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeOrderAmbiguous))
}

func (s *BinanceVenueTestSuite) TestPlaceOrderRejectsDustQuantity() {
	spec := s.spec()
	spec.Quantity = 0.000000001

	_, err := s.venue.PlaceOrder(context.Background(), spec)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (s *BinanceVenueTestSuite) TestOrderStatusByClientID() {
	s.client.getOrderService.order = &binance.Order{
		OrderID:                  42,
		Status:                   binance.OrderStatusTypeFilled,
		ExecutedQuantity:         "0.5",
		CummulativeQuoteQuantity: "25000",
		Time:                     1700000000000,
	}

	result, err := s.venue.OrderStatus(context.Background(), "BTCUSDT", s.spec().IdempotencyKey)
	s.Require().NoError(err)

	s.Equal(types.OrderStatusFilled, result.Status)
	s.Equal(0.5, result.FilledQuantity)
	s.Equal(clientOrderID(s.spec().IdempotencyKey), s.client.getOrderService.clientOrderID)
}

func (s *BinanceVenueTestSuite) TestOrderStatusUnknownOrderIsDefinitiveFailure() {
	s.client.getOrderService.err = &common.APIError{Code: -2013, Message: "Order does not exist."}

	result, err := s.venue.OrderStatus(context.Background(), "BTCUSDT", "lost-key")
	s.Require().NoError(err)
	s.Equal(types.OrderStatusFailed, result.Status)
}

func (s *BinanceVenueTestSuite) TestBalanceSumsUSDT() {
	s.client.getAccountService.account = &binance.Account{
		Balances: []binance.Balance{
			{Asset: "BTC", Free: "1", Locked: "0"},
			{Asset: "USDT", Free: "90000.5", Locked: "9999.5"},
		},
	}

	balance, err := s.venue.Balance(context.Background())
	s.Require().NoError(err)
	s.Equal(100000.0, balance)
}

func TestClientOrderIDShortening(t *testing.T) {
	long := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	parent := clientOrderID(long)
	child := clientOrderID(long + ":sl")

	if len(parent) > binanceClientOrderIDMax || len(child) > binanceClientOrderIDMax {
		t.Fatalf("shortened ids exceed venue limit: %q %q", parent, child)
	}

	if parent == child {
		t.Fatal("parent and protective-leg ids must stay distinct")
	}
}
