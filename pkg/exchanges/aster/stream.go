package aster

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
	"github.com/veiloq/exchange-service/pkg/websocket"
)

const (
	// listenKeyKeepAlive is how often the user-stream session token is
	// refreshed; the venue expires idle keys after 60 minutes.
	listenKeyKeepAlive = 30 * time.Minute

	userStreamKey = "user"
)

// wsCommand is the venue's stream control frame.
type wsCommand struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// StreamClient is the Aster WebSocket subscription manager. Market streams
// multiplex over one connection; private account events ride a second
// connection keyed by a listen key minted over REST.
type StreamClient struct {
	client *Client
	logger logging.Logger

	market websocket.Connector
	nextID atomic.Int64

	mu            sync.Mutex
	user          websocket.Connector
	listenKey     string
	keepAliveStop chan struct{}
}

// NewStreamClient builds the Aster stream service. The REST client supplies
// the listen-key lifecycle and must be connected before SubscribeUserData.
func NewStreamClient(client *Client) *StreamClient {
	s := &StreamClient{
		client: client,
		logger: client.logger.WithFields(logging.String("transport", "websocket")),
	}
	s.market = websocket.NewConnector(websocket.Config{
		URL:               client.opts.StreamURL,
		HeartbeatInterval: 30 * time.Second,
		ReconnectInterval: 2 * time.Second,
		MaxRetries:        5,
		Route:             routeMarketFrame,
		Logger:            s.logger,
	})
	return s
}

// routeMarketFrame extracts the stream name from a market push frame.
// Combined frames carry it directly; raw event frames are reassembled from
// the event type and symbol.
func routeMarketFrame(message []byte) string {
	var env combinedStreamEnvelope
	if err := json.Unmarshal(message, &env); err == nil && env.Stream != "" {
		return env.Stream
	}

	var evt streamEventFrame
	if err := json.Unmarshal(message, &evt); err != nil || evt.EventType == "" {
		return ""
	}
	sym := strings.ToLower(evt.Symbol)
	switch evt.EventType {
	case "24hrTicker":
		return sym + "@ticker"
	case "depthUpdate":
		return sym + "@depth"
	case "trade", "aggTrade":
		return sym + "@trade"
	case "kline":
		var k klineEvent
		if err := json.Unmarshal(message, &k); err != nil || k.Kline.Interval == "" {
			return ""
		}
		return sym + "@kline_" + k.Kline.Interval
	default:
		return ""
	}
}

// unwrapStreamData strips the combined-stream envelope when present.
func unwrapStreamData(message []byte) []byte {
	var env combinedStreamEnvelope
	if err := json.Unmarshal(message, &env); err == nil && env.Stream != "" && len(env.Data) > 0 {
		return env.Data
	}
	return message
}

// Connect opens the market stream connection. The REST session is brought
// up too when needed: the listen-key lifecycle runs over signed REST calls.
func (s *StreamClient) Connect(ctx context.Context) error {
	if !s.client.IsConnected() {
		if err := s.client.Connect(ctx); err != nil {
			return err
		}
	}
	return s.market.Connect(ctx)
}

// Disconnect stops the keep-alive loop, revokes the listen key, and closes
// both connections. Idempotent; close failures are logged, not returned.
func (s *StreamClient) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	listenKey := s.listenKey
	keepAliveStop := s.keepAliveStop
	s.user = nil
	s.listenKey = ""
	s.keepAliveStop = nil
	s.mu.Unlock()

	if keepAliveStop != nil {
		close(keepAliveStop)
	}
	if user != nil {
		if err := user.Close(); err != nil {
			s.logger.Warn("closing user stream", logging.Error(err))
		}
	}
	if listenKey != "" {
		if err := s.client.closeListenKey(ctx); err != nil {
			s.logger.Warn("revoking listen key", logging.Error(err))
		}
	}

	if err := s.market.Close(); err != nil {
		s.logger.Warn("closing market stream", logging.Error(err))
	}
	return nil
}

// IsConnected reports whether the market stream is up.
func (s *StreamClient) IsConnected() bool {
	return s.market.IsConnected()
}

func (s *StreamClient) commandID() int64 {
	return s.nextID.Add(1)
}

func (s *StreamClient) subscribeMarket(symbol, suffix string, handler websocket.MessageHandler) error {
	if symbol == "" {
		return exchange.NewValidationError("symbol is required")
	}
	stream := strings.ToLower(symbol) + "@" + suffix
	frame := wsCommand{Method: "SUBSCRIBE", Params: []string{stream}, ID: s.commandID()}
	return s.market.Subscribe(stream, frame, handler)
}

// SubscribeTicker delivers 24h ticker updates for a symbol.
func (s *StreamClient) SubscribeTicker(ctx context.Context, symbol string, handler exchange.TickerHandler) error {
	return s.subscribeMarket(symbol, "ticker", func(message []byte) {
		var evt tickerEvent
		if err := json.Unmarshal(unwrapStreamData(message), &evt); err != nil {
			s.logger.Warn("malformed ticker frame", logging.Error(err))
			return
		}
		handler(exchange.Ticker{
			Symbol:        evt.Symbol,
			BidPrice:      dec(evt.BidPrice),
			AskPrice:      dec(evt.AskPrice),
			LastPrice:     dec(evt.LastPrice),
			Volume:        dec(evt.Volume),
			Change:        dec(evt.PriceChange),
			ChangePercent: dec(evt.PriceChangePercent),
			HighPrice:     dec(evt.HighPrice),
			LowPrice:      dec(evt.LowPrice),
			Timestamp:     evt.EventTime,
		})
	})
}

// SubscribeOrderBook delivers depth updates for a symbol.
func (s *StreamClient) SubscribeOrderBook(ctx context.Context, symbol string, handler exchange.OrderBookHandler) error {
	return s.subscribeMarket(symbol, "depth", func(message []byte) {
		var evt depthEvent
		if err := json.Unmarshal(unwrapStreamData(message), &evt); err != nil {
			s.logger.Warn("malformed depth frame", logging.Error(err))
			return
		}
		handler(exchange.OrderBook{
			Symbol:    evt.Symbol,
			Bids:      mapBookLevels(evt.Bids),
			Asks:      mapBookLevels(evt.Asks),
			Timestamp: evt.EventTime,
		})
	})
}

// SubscribeTrades delivers executed trades for a symbol.
func (s *StreamClient) SubscribeTrades(ctx context.Context, symbol string, handler exchange.TradeHandler) error {
	return s.subscribeMarket(symbol, "trade", func(message []byte) {
		var evt tradeEvent
		if err := json.Unmarshal(unwrapStreamData(message), &evt); err != nil {
			s.logger.Warn("malformed trade frame", logging.Error(err))
			return
		}
		handler(exchange.Trade{
			Symbol:    evt.Symbol,
			Price:     dec(evt.Price),
			Quantity:  dec(evt.Quantity),
			IsBuyer:   !evt.IsBuyerMaker,
			Timestamp: evt.TradeTime,
		})
	})
}

// SubscribeKlines delivers candlestick updates for a symbol at the given
// interval (venue notation, for example "1m").
func (s *StreamClient) SubscribeKlines(ctx context.Context, symbol, interval string, handler exchange.KlineHandler) error {
	if interval == "" {
		return exchange.NewValidationError("interval is required")
	}
	return s.subscribeMarket(symbol, "kline_"+interval, func(message []byte) {
		var evt klineEvent
		if err := json.Unmarshal(unwrapStreamData(message), &evt); err != nil {
			s.logger.Warn("malformed kline frame", logging.Error(err))
			return
		}
		handler(exchange.Kline{
			Symbol:    evt.Symbol,
			Interval:  evt.Kline.Interval,
			OpenTime:  evt.Kline.StartTime,
			CloseTime: evt.Kline.CloseTime,
			Open:      dec(evt.Kline.Open),
			High:      dec(evt.Kline.High),
			Low:       dec(evt.Kline.Low),
			Close:     dec(evt.Kline.Close),
			Volume:    dec(evt.Kline.Volume),
			Closed:    evt.Kline.IsFinal,
		})
	})
}

// SubscribeUserData mints a listen key and opens the private stream on it.
// The key is refreshed every 30 minutes and revoked on Disconnect.
func (s *StreamClient) SubscribeUserData(ctx context.Context, handler exchange.UserDataHandler) error {
	s.mu.Lock()
	if s.user != nil {
		s.mu.Unlock()
		return exchange.NewValidationError("user data stream already subscribed")
	}
	s.mu.Unlock()

	listenKey, err := s.client.createListenKey(ctx)
	if err != nil {
		return err
	}

	user := websocket.NewConnector(websocket.Config{
		URL:               strings.TrimSuffix(s.client.opts.StreamURL, "/") + "/" + listenKey,
		HeartbeatInterval: 30 * time.Second,
		ReconnectInterval: 2 * time.Second,
		MaxRetries:        5,
		// Every frame on this connection belongs to the account.
		Route:  func([]byte) string { return userStreamKey },
		Logger: s.logger.WithFields(logging.String("stream", "user")),
	})

	if err := user.Subscribe(userStreamKey, nil, func(message []byte) {
		var evt streamEventFrame
		_ = json.Unmarshal(message, &evt)
		handler(exchange.UserDataEvent{
			Venue: venueName,
			Type:  evt.EventType,
			Raw:   json.RawMessage(message),
		})
	}); err != nil {
		return err
	}

	if err := user.Connect(ctx); err != nil {
		if revokeErr := s.client.closeListenKey(ctx); revokeErr != nil {
			s.logger.Warn("revoking listen key after failed connect", logging.Error(revokeErr))
		}
		return err
	}

	stopKeepAlive := make(chan struct{})
	s.mu.Lock()
	s.user = user
	s.listenKey = listenKey
	s.keepAliveStop = stopKeepAlive
	s.mu.Unlock()

	go s.keepAliveLoop(stopKeepAlive)
	s.logger.Info("user data stream subscribed")
	return nil
}

func (s *StreamClient) keepAliveLoop(stop chan struct{}) {
	ticker := time.NewTicker(listenKeyKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.client.keepAliveListenKey(ctx); err != nil {
				s.logger.Warn("listen key keep-alive failed", logging.Error(err))
			}
			cancel()
		case <-stop:
			return
		}
	}
}

// Unsubscribe removes one subscription by identifier, for example
// "ticker_BTCUSDT" or "user". Raw venue stream names are accepted too.
func (s *StreamClient) Unsubscribe(ctx context.Context, stream string) error {
	if stream == userStreamKey {
		return s.unsubscribeUserData(ctx)
	}

	name, err := streamName(stream)
	if err != nil {
		return err
	}
	frame := wsCommand{Method: "UNSUBSCRIBE", Params: []string{name}, ID: s.commandID()}
	return s.market.Unsubscribe(name, frame)
}

func (s *StreamClient) unsubscribeUserData(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	keepAliveStop := s.keepAliveStop
	s.user = nil
	s.listenKey = ""
	s.keepAliveStop = nil
	s.mu.Unlock()

	if user == nil {
		return fmt.Errorf("subscription %q not found", userStreamKey)
	}
	if keepAliveStop != nil {
		close(keepAliveStop)
	}
	if err := user.Close(); err != nil {
		s.logger.Warn("closing user stream", logging.Error(err))
	}
	return s.client.closeListenKey(ctx)
}

// streamName maps a subscription identifier like "ticker_BTCUSDT" onto the
// venue stream name "btcusdt@ticker".
func streamName(stream string) (string, error) {
	if strings.Contains(stream, "@") {
		return strings.ToLower(stream), nil
	}

	kind, symbol, ok := strings.Cut(stream, "_")
	if !ok {
		return "", exchange.NewValidationError(fmt.Sprintf("unrecognized stream identifier %q", stream))
	}
	sym := strings.ToLower(symbol)
	switch kind {
	case "ticker":
		return sym + "@ticker", nil
	case "orderbook", "depth":
		return sym + "@depth", nil
	case "trades", "trade":
		return sym + "@trade", nil
	case "kline", "klines":
		// "kline_BTCUSDT_1m"
		sym, interval, ok := strings.Cut(symbol, "_")
		if !ok {
			return "", exchange.NewValidationError(fmt.Sprintf("unrecognized stream identifier %q", stream))
		}
		return strings.ToLower(sym) + "@kline_" + interval, nil
	default:
		return "", exchange.NewValidationError(fmt.Sprintf("unrecognized stream identifier %q", stream))
	}
}

var _ exchange.StreamService = (*StreamClient)(nil)
