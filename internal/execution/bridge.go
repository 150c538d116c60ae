package execution

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantgate-lab/quantgate/internal/logger"
	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// bridgeRequest is one frame on the request/response channel.
type bridgeRequest struct {
	Action string  `json:"action"`
	Side   string  `json:"side,omitempty"`
	Volume float64 `json:"vol,omitempty"`
}

// bridgeResponse is the union of every reply the bridge sends.
type bridgeResponse struct {
	Pong   int    `json:"pong,omitempty"`
	Ticket *int64 `json:"ticket,omitempty"`
	Err    *int   `json:"err,omitempty"`
}

// bridgeStreamFrame is one frame on the one-way publish channel.
type bridgeStreamFrame struct {
	// Heartbeat frame
	HB int64 `json:"hb,omitempty"`
	// Tick frame
	Type string  `json:"type,omitempty"`
	Sym  string  `json:"sym,omitempty"`
	Bid  float64 `json:"bid,omitempty"`
	Ask  float64 `json:"ask,omitempty"`
	TS   int64   `json:"ts,omitempty"`
}

// BridgeTick is one best bid/ask update from the publish channel.
type BridgeTick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// BridgeVenue talks to a broker terminal bridge over two websocket
// channels: a strict request/response channel with exactly one
// outstanding request, and a one-way publish channel carrying
// heartbeats and ticks that nothing ever blocks on.
//
// The bridge protocol has no server-side status query, so the venue
// keeps its own submission log keyed by idempotency key and settles
// reconciliation from it.
type BridgeVenue struct {
	name    string
	reqURL  string
	pubURL  string
	symbol  string
	dialer  *websocket.Dialer
	timeout time.Duration
	logger  *logger.Logger

	// reqMu enforces the in-flight limit of one on the request channel.
	reqMu sync.Mutex
	conn  *websocket.Conn

	logMu   sync.Mutex
	tickets map[string]int64

	hbMu          sync.RWMutex
	lastHeartbeat time.Time
}

// NewBridgeVenue creates a venue for the bridge at reqURL/pubURL that
// trades a single terminal symbol.
func NewBridgeVenue(name, reqURL, pubURL, symbol string, timeout time.Duration, l *logger.Logger) *BridgeVenue {
	return &BridgeVenue{
		name:    name,
		reqURL:  reqURL,
		pubURL:  pubURL,
		symbol:  symbol,
		dialer:  websocket.DefaultDialer,
		timeout: timeout,
		logger:  l,
		tickets: map[string]int64{},
	}
}

// Name implements Venue.
func (b *BridgeVenue) Name() string {
	return b.name
}

// Ping verifies the request channel end to end.
func (b *BridgeVenue) Ping(ctx context.Context) error {
	resp, err := b.roundTrip(ctx, bridgeRequest{Action: "ping"})
	if err != nil {
		return err
	}

	if resp.Pong != 1 {
		return errors.New(errors.ErrCodeBridgeBadFrame, "ping did not answer with pong")
	}

	return nil
}

// PlaceOrder implements Venue. The bridge fills market orders
// synchronously: a ticket is a fill, an err frame is a definitive
// rejection, and a lost response is ambiguous.
func (b *BridgeVenue) PlaceOrder(ctx context.Context, spec types.OrderSpec) (types.OrderResult, error) {
	if spec.Symbol != b.symbol {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidSymbol,
			"bridge %s trades %s, not %s", b.name, b.symbol, spec.Symbol)
	}

	side := "buy"
	if spec.Side == types.SideSell {
		side = "sell"
	}

	resp, err := b.roundTrip(ctx, bridgeRequest{
		Action: "order",
		Side:   side,
		Volume: spec.Quantity,
	})
	if err != nil {
		return types.OrderResult{}, err
	}

	if resp.Err != nil {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeVenueRejected,
			"bridge rejected order with code %d", *resp.Err)
	}

	if resp.Ticket == nil {
		return types.OrderResult{}, errors.New(errors.ErrCodeBridgeBadFrame,
			"order response carried neither ticket nor err")
	}

	b.logMu.Lock()
	b.tickets[spec.IdempotencyKey] = *resp.Ticket
	b.logMu.Unlock()

	return types.OrderResult{
		VenueOrderID:   formatTicket(*resp.Ticket),
		Status:         types.OrderStatusFilled,
		FilledQuantity: spec.Quantity,
		FilledPrice:    spec.Price,
		SubmittedAt:    time.Now(),
	}, nil
}

// OrderStatus implements Venue from the local submission log. A key
// with a recorded ticket is Filled. A key without one is reported
// Failed only after a successful ping proves the channel delivers
// responses; otherwise the outcome stays unknown.
func (b *BridgeVenue) OrderStatus(ctx context.Context, _ string, idempotencyKey string) (types.OrderResult, error) {
	b.logMu.Lock()
	ticket, ok := b.tickets[idempotencyKey]
	b.logMu.Unlock()

	if ok {
		return types.OrderResult{
			VenueOrderID: formatTicket(ticket),
			Status:       types.OrderStatusFilled,
			SubmittedAt:  time.Now(),
		}, nil
	}

	if err := b.Ping(ctx); err != nil {
		return types.OrderResult{}, errors.Wrap(errors.ErrCodeBridgeTimeout,
			"cannot settle order status while the bridge is unreachable", err)
	}

	return types.OrderResult{
		Status:  types.OrderStatusFailed,
		Message: "no ticket recorded for key and bridge is responsive",
	}, nil
}

// roundTrip performs one request/response exchange. The connection is
// dropped on any ambiguity so a stray late reply can never be paired
// with the next request.
func (b *BridgeVenue) roundTrip(ctx context.Context, req bridgeRequest) (bridgeResponse, error) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	if b.conn == nil {
		conn, _, err := b.dialer.DialContext(ctx, b.reqURL, nil)
		if err != nil {
			return bridgeResponse{}, errors.Wrap(errors.ErrCodeBridgeConnFailed, "dial request channel", err)
		}

		b.conn = conn
	}

	deadline := time.Now().Add(b.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	_ = b.conn.SetWriteDeadline(deadline)

	if err := b.conn.WriteJSON(req); err != nil {
		b.dropConn()

		if req.Action == "order" {
			return bridgeResponse{}, errors.Wrap(errors.ErrCodeOrderAmbiguous, "order write failed mid-frame", err)
		}

		return bridgeResponse{}, errors.Wrap(errors.ErrCodeBridgeDisconnected, "request write failed", err)
	}

	_ = b.conn.SetReadDeadline(deadline)

	var resp bridgeResponse
	if err := b.conn.ReadJSON(&resp); err != nil {
		b.dropConn()

		if req.Action == "order" {
			// The order frame went out; without the reply its outcome
			// is unknowable here.
			return bridgeResponse{}, errors.Wrap(errors.ErrCodeOrderAmbiguous, "order response lost", err)
		}

		return bridgeResponse{}, errors.Wrap(errors.ErrCodeBridgeTimeout, "response not received", err)
	}

	return resp, nil
}

func (b *BridgeVenue) dropConn() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

// Close shuts the request channel down.
func (b *BridgeVenue) Close() error {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	b.dropConn()

	return nil
}

// LastHeartbeat reports when the publish channel last proved alive.
func (b *BridgeVenue) LastHeartbeat() time.Time {
	b.hbMu.RLock()
	defer b.hbMu.RUnlock()

	return b.lastHeartbeat
}

// Stream connects the publish channel and delivers ticks until ctx is
// done. Delivery never blocks the reader: when the consumer lags, the
// oldest pending tick is dropped.
func (b *BridgeVenue) Stream(ctx context.Context) (<-chan BridgeTick, error) {
	conn, _, err := b.dialer.DialContext(ctx, b.pubURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBridgeConnFailed, "dial publish channel", err)
	}

	out := make(chan BridgeTick, 256)

	go func() {
		defer close(out)
		defer conn.Close()

		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()

		for {
			var frame bridgeStreamFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if ctx.Err() == nil {
					b.logger.Warn("bridge publish channel closed", zap.Error(err))
				}

				return
			}

			if frame.HB != 0 {
				b.hbMu.Lock()
				b.lastHeartbeat = time.Unix(frame.HB, 0)
				b.hbMu.Unlock()

				continue
			}

			if frame.Type != "tick" {
				continue
			}

			tick := BridgeTick{
				Symbol: frame.Sym,
				Bid:    frame.Bid,
				Ask:    frame.Ask,
				Time:   time.UnixMilli(frame.TS),
			}

			select {
			case out <- tick:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- tick:
				default:
				}
			}
		}
	}()

	return out, nil
}

func formatTicket(ticket int64) string {
	return strconv.FormatInt(ticket, 10)
}

var _ Venue = (*BridgeVenue)(nil)
