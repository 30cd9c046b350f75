package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
	"github.com/veiloq/exchange-service/pkg/websocket"
)

const userStreamKey = "user"

// StreamClient is the Hyperliquid WebSocket subscription manager. All
// streams, private ones included, multiplex over one connection; private
// subscriptions are keyed by the account address, so no session token is
// minted or revoked.
type StreamClient struct {
	client *Client
	logger logging.Logger
	conn   websocket.Connector
}

// NewStreamClient builds the Hyperliquid stream service.
func NewStreamClient(client *Client) *StreamClient {
	s := &StreamClient{
		client: client,
		logger: client.logger.WithFields(logging.String("transport", "websocket")),
	}
	s.conn = websocket.NewConnector(websocket.Config{
		URL:               client.opts.StreamURL,
		HeartbeatInterval: 30 * time.Second,
		ReconnectInterval: 2 * time.Second,
		MaxRetries:        5,
		Route:             routeFrame,
		Logger:            s.logger,
	})
	return s
}

// routeFrame extracts the subscription key from a push frame. Frames carry
// {"channel": ..., "data": ...}; market channels are further keyed by coin.
func routeFrame(message []byte) string {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil || env.Channel == "" {
		return ""
	}

	switch env.Channel {
	case "activeAssetCtx", "l2Book":
		var data struct {
			Coin string `json:"coin"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil || data.Coin == "" {
			return ""
		}
		return env.Channel + ":" + data.Coin
	case "trades":
		var trades []wsTrade
		if err := json.Unmarshal(env.Data, &trades); err != nil || len(trades) == 0 {
			return ""
		}
		return "trades:" + trades[0].Coin
	case "candle":
		var candle wsCandle
		if err := json.Unmarshal(env.Data, &candle); err != nil || candle.Coin == "" {
			return ""
		}
		return "candle:" + candle.Coin + ":" + candle.Interval
	case "user", "userEvents", "userFills", "orderUpdates":
		return userStreamKey
	default:
		return ""
	}
}

// Connect opens the stream connection.
func (s *StreamClient) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

// Disconnect closes the connection. There is no session token to revoke.
// Idempotent.
func (s *StreamClient) Disconnect(ctx context.Context) error {
	if err := s.conn.Close(); err != nil {
		s.logger.Warn("closing stream", logging.Error(err))
	}
	return nil
}

// IsConnected reports whether the stream is up.
func (s *StreamClient) IsConnected() bool {
	return s.conn.IsConnected()
}

func (s *StreamClient) subscribe(sub wsSubscription, key string, handler websocket.MessageHandler) error {
	frame := wsCommand{Method: "subscribe", Subscription: sub}
	return s.conn.Subscribe(key, frame, handler)
}

// SubscribeTicker delivers market context updates as tickers.
func (s *StreamClient) SubscribeTicker(ctx context.Context, symbol string, handler exchange.TickerHandler) error {
	if symbol == "" {
		return exchange.NewValidationError("symbol is required")
	}
	sub := wsSubscription{Type: "activeAssetCtx", Coin: symbol}
	return s.subscribe(sub, "activeAssetCtx:"+symbol, func(message []byte) {
		var env wsEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			return
		}
		var data wsActiveAssetCtx
		if err := json.Unmarshal(env.Data, &data); err != nil {
			s.logger.Warn("malformed asset context frame", logging.Error(err))
			return
		}

		last := dec(data.Ctx.MidPx)
		if last.IsZero() {
			last = dec(data.Ctx.MarkPx)
		}
		prev := dec(data.Ctx.PrevDayPx)
		change := decimal.Zero
		changePct := decimal.Zero
		if !prev.IsZero() {
			change = last.Sub(prev)
			changePct = change.Div(prev).Mul(decimal.NewFromInt(100))
		}

		handler(exchange.Ticker{
			Symbol:        data.Coin,
			LastPrice:     last,
			Volume:        dec(data.Ctx.DayNtlVlm),
			Change:        change,
			ChangePercent: changePct,
			Timestamp:     time.Now().UnixMilli(),
		})
	})
}

// SubscribeOrderBook delivers depth snapshots for a coin.
func (s *StreamClient) SubscribeOrderBook(ctx context.Context, symbol string, handler exchange.OrderBookHandler) error {
	if symbol == "" {
		return exchange.NewValidationError("symbol is required")
	}
	sub := wsSubscription{Type: "l2Book", Coin: symbol}
	return s.subscribe(sub, "l2Book:"+symbol, func(message []byte) {
		var env wsEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			return
		}
		var book l2BookResponse
		if err := json.Unmarshal(env.Data, &book); err != nil || len(book.Levels) < 2 {
			s.logger.Warn("malformed book frame", logging.Error(err))
			return
		}
		handler(exchange.OrderBook{
			Symbol:    book.Coin,
			Bids:      mapBookLevels(book.Levels[0], 0),
			Asks:      mapBookLevels(book.Levels[1], 0),
			Timestamp: book.Time,
		})
	})
}

// SubscribeTrades delivers executed trades for a coin.
func (s *StreamClient) SubscribeTrades(ctx context.Context, symbol string, handler exchange.TradeHandler) error {
	if symbol == "" {
		return exchange.NewValidationError("symbol is required")
	}
	sub := wsSubscription{Type: "trades", Coin: symbol}
	return s.subscribe(sub, "trades:"+symbol, func(message []byte) {
		var env wsEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			return
		}
		var trades []wsTrade
		if err := json.Unmarshal(env.Data, &trades); err != nil {
			s.logger.Warn("malformed trades frame", logging.Error(err))
			return
		}
		for _, tr := range trades {
			handler(exchange.Trade{
				Symbol:    tr.Coin,
				Price:     dec(tr.Px),
				Quantity:  dec(tr.Sz),
				IsBuyer:   tr.Side == "B",
				Timestamp: tr.Time,
			})
		}
	})
}

// SubscribeKlines delivers candlestick updates for a coin at the given
// interval (venue notation, for example "1m").
func (s *StreamClient) SubscribeKlines(ctx context.Context, symbol, interval string, handler exchange.KlineHandler) error {
	if symbol == "" {
		return exchange.NewValidationError("symbol is required")
	}
	if interval == "" {
		return exchange.NewValidationError("interval is required")
	}
	sub := wsSubscription{Type: "candle", Coin: symbol, Interval: interval}
	return s.subscribe(sub, "candle:"+symbol+":"+interval, func(message []byte) {
		var env wsEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			return
		}
		var candle wsCandle
		if err := json.Unmarshal(env.Data, &candle); err != nil {
			s.logger.Warn("malformed candle frame", logging.Error(err))
			return
		}
		handler(exchange.Kline{
			Symbol:    candle.Coin,
			Interval:  candle.Interval,
			OpenTime:  candle.OpenTime,
			CloseTime: candle.CloseTime,
			Open:      dec(candle.Open),
			High:      dec(candle.High),
			Low:       dec(candle.Low),
			Close:     dec(candle.Close),
			Volume:    dec(candle.Volume),
			// The venue streams updates until the window closes.
			Closed: candle.CloseTime > 0 && candle.CloseTime <= time.Now().UnixMilli(),
		})
	})
}

// SubscribeUserData delivers private account events, keyed by the wallet
// address rather than a minted session token.
func (s *StreamClient) SubscribeUserData(ctx context.Context, handler exchange.UserDataHandler) error {
	sub := wsSubscription{Type: "userEvents", User: s.client.address}
	return s.subscribe(sub, userStreamKey, func(message []byte) {
		var env wsEnvelope
		_ = json.Unmarshal(message, &env)
		handler(exchange.UserDataEvent{
			Venue: venueName,
			Type:  env.Channel,
			Raw:   json.RawMessage(message),
		})
	})
}

// Unsubscribe removes one subscription by identifier, for example
// "ticker_BTC" or "user". Raw channel keys like "l2Book:BTC" are accepted.
func (s *StreamClient) Unsubscribe(ctx context.Context, stream string) error {
	key, sub, err := s.resolveStream(stream)
	if err != nil {
		return err
	}
	frame := wsCommand{Method: "unsubscribe", Subscription: sub}
	return s.conn.Unsubscribe(key, frame)
}

func (s *StreamClient) resolveStream(stream string) (string, wsSubscription, error) {
	if stream == userStreamKey {
		return userStreamKey, wsSubscription{Type: "userEvents", User: s.client.address}, nil
	}

	if channel, rest, ok := strings.Cut(stream, ":"); ok {
		if coin, interval, ok := strings.Cut(rest, ":"); ok {
			return stream, wsSubscription{Type: channel, Coin: coin, Interval: interval}, nil
		}
		return stream, wsSubscription{Type: channel, Coin: rest}, nil
	}

	kind, coin, ok := strings.Cut(stream, "_")
	if !ok {
		return "", wsSubscription{}, exchange.NewValidationError(fmt.Sprintf("unrecognized stream identifier %q", stream))
	}
	switch kind {
	case "ticker":
		return "activeAssetCtx:" + coin, wsSubscription{Type: "activeAssetCtx", Coin: coin}, nil
	case "orderbook", "depth":
		return "l2Book:" + coin, wsSubscription{Type: "l2Book", Coin: coin}, nil
	case "trades", "trade":
		return "trades:" + coin, wsSubscription{Type: "trades", Coin: coin}, nil
	case "kline", "klines", "candle":
		// "kline_BTC_1m"
		coin, interval, ok := strings.Cut(coin, "_")
		if !ok {
			return "", wsSubscription{}, exchange.NewValidationError(fmt.Sprintf("unrecognized stream identifier %q", stream))
		}
		return "candle:" + coin + ":" + interval, wsSubscription{Type: "candle", Coin: coin, Interval: interval}, nil
	default:
		return "", wsSubscription{}, exchange.NewValidationError(fmt.Sprintf("unrecognized stream identifier %q", stream))
	}
}

var _ exchange.StreamService = (*StreamClient)(nil)
