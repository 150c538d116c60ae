package provider

import (
	"context"
	"iter"
	"strconv"
	"sync"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/quantgate-lab/quantgate/internal/types"
	"github.com/quantgate-lab/quantgate/pkg/errors"
)

// BinanceWsKline mirrors the kline payload of a websocket event with
// only the fields the stream needs.
type BinanceWsKline struct {
	StartTime int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
	IsFinal   bool
}

// BinanceWsKlineEvent is a single kline event from the websocket.
type BinanceWsKlineEvent struct {
	Symbol string
	Kline  BinanceWsKline
}

// WsKlineHandler handles one kline event.
type WsKlineHandler func(event *BinanceWsKlineEvent)

// WsErrorHandler handles a websocket error.
type WsErrorHandler func(err error)

// BinanceWebSocketService abstracts the binance kline websocket so
// streams can be tested without a live connection.
type BinanceWebSocketService interface {
	WsKlineServe(symbol string, interval string, handler WsKlineHandler, errHandler WsErrorHandler) (doneC chan struct{}, stopC chan struct{}, err error)
}

type realBinanceWebSocketService struct{}

func (realBinanceWebSocketService) WsKlineServe(symbol string, interval string, handler WsKlineHandler, errHandler WsErrorHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, func(event *binance.WsKlineEvent) {
		handler(&BinanceWsKlineEvent{
			Symbol: event.Symbol,
			Kline: BinanceWsKline{
				StartTime: event.Kline.StartTime,
				Open:      event.Kline.Open,
				High:      event.Kline.High,
				Low:       event.Kline.Low,
				Close:     event.Kline.Close,
				Volume:    event.Kline.Volume,
				IsFinal:   event.Kline.IsFinal,
			},
		})
	}, binance.ErrHandler(errHandler))
}

// BinanceProvider serves candles from Binance: the klines REST
// endpoint for warmup history and the kline websocket for live bars.
// Only finalized bars are emitted.
type BinanceProvider struct {
	client *binance.Client
	ws     BinanceWebSocketService
}

var _ Provider = (*BinanceProvider)(nil)

// NewBinanceProvider creates an unauthenticated provider; public
// market data requires no API keys.
func NewBinanceProvider() *BinanceProvider {
	return &BinanceProvider{
		client: binance.NewClient("", ""),
		ws:     realBinanceWebSocketService{},
	}
}

// NewBinanceProviderWithWebSocket creates a provider with a custom
// websocket service, used in tests.
func NewBinanceProviderWithWebSocket(client *binance.Client, ws BinanceWebSocketService) *BinanceProvider {
	return &BinanceProvider{
		client: client,
		ws:     ws,
	}
}

// Name implements Provider.
func (p *BinanceProvider) Name() string {
	return string(ProviderBinance)
}

// History implements Provider. Binance caps each klines page at 500
// rows, so the fetch paginates by close time until the range is
// covered.
func (p *BinanceProvider) History(ctx context.Context, symbol string, from, to time.Time, interval types.Interval) ([]types.Candle, error) {
	var out []types.Candle

	currentStart := from.UnixMilli()
	endMillis := to.UnixMilli()

	for currentStart < endMillis {
		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval(string(interval)).
			StartTime(currentStart).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from binance", err)
		}

		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			out = append(out, candleFromKline(symbol, k))
		}

		if len(klines) < 500 {
			break
		}

		// Advance past the last bar's close time to avoid duplicates.
		currentStart = klines[len(klines)-1].CloseTime + 1
	}

	return out, nil
}

// Stream implements Provider. One websocket subscription per symbol,
// fanned into a single channel; only finalized klines are yielded.
func (p *BinanceProvider) Stream(ctx context.Context, symbols []string, interval types.Interval) iter.Seq2[types.Candle, error] {
	return func(yield func(types.Candle, error) bool) {
		type streamItem struct {
			candle types.Candle
			err    error
		}

		items := make(chan streamItem, len(symbols)*4)

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var wg sync.WaitGroup

		var stops []chan struct{}

		for _, symbol := range symbols {
			handler := func(event *BinanceWsKlineEvent) {
				if !event.Kline.IsFinal {
					return
				}

				select {
				case items <- streamItem{candle: candleFromWsKline(event)}:
				case <-streamCtx.Done():
				}
			}
			errHandler := func(wsErr error) {
				select {
				case items <- streamItem{err: errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, wsErr, "binance websocket error for %s", symbol)}:
				case <-streamCtx.Done():
				}
			}

			doneC, stopC, err := p.ws.WsKlineServe(symbol, string(interval), handler, errHandler)
			if err != nil {
				yield(types.Candle{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to open binance kline stream for %s", symbol))

				closeStops(stops)

				return
			}

			stops = append(stops, stopC)

			wg.Add(1)

			go func() {
				defer wg.Done()

				select {
				case <-doneC:
				case <-streamCtx.Done():
				}
			}()
		}

		// Close the item channel once every subscription has ended so
		// the drain loop below terminates.
		go func() {
			wg.Wait()
			close(items)
		}()

		defer closeStops(stops)

		for {
			select {
			case <-streamCtx.Done():
				return
			case item, ok := <-items:
				if !ok {
					return
				}

				if !yield(item.candle, item.err) {
					return
				}
			}
		}
	}
}

func closeStops(stops []chan struct{}) {
	for _, stopC := range stops {
		select {
		case <-stopC:
		default:
			close(stopC)
		}
	}
}

func candleFromKline(symbol string, k *binance.Kline) types.Candle {
	open, _ := strconv.ParseFloat(k.Open, 64)
	high, _ := strconv.ParseFloat(k.High, 64)
	low, _ := strconv.ParseFloat(k.Low, 64)
	closePrice, _ := strconv.ParseFloat(k.Close, 64)
	volume, _ := strconv.ParseFloat(k.Volume, 64)

	return types.Candle{
		Symbol: symbol,
		Time:   time.UnixMilli(k.OpenTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}
}

func candleFromWsKline(e *BinanceWsKlineEvent) types.Candle {
	open, _ := strconv.ParseFloat(e.Kline.Open, 64)
	high, _ := strconv.ParseFloat(e.Kline.High, 64)
	low, _ := strconv.ParseFloat(e.Kline.Low, 64)
	closePrice, _ := strconv.ParseFloat(e.Kline.Close, 64)
	volume, _ := strconv.ParseFloat(e.Kline.Volume, 64)

	return types.Candle{
		Symbol: e.Symbol,
		Time:   time.UnixMilli(e.Kline.StartTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}
}
