package hyperliquid

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/ratelimit"
	"github.com/veiloq/exchange-service/pkg/websocket"
)

func newTestStream(t *testing.T) (*StreamClient, *websocket.MockServer) {
	t.Helper()

	mock := websocket.NewMockServer()
	t.Cleanup(mock.Close)

	client, err := NewClient(Options{
		PrivateKey: testPrivateKey,
		StreamURL:  mock.URL(),
		RateLimit:  ratelimit.Rate{Limit: 100, Interval: time.Second},
	})
	require.NoError(t, err)

	return NewStreamClient(client), mock
}

func decodeCommands(t *testing.T, frames [][]byte) []wsCommand {
	t.Helper()
	commands := make([]wsCommand, 0, len(frames))
	for _, frame := range frames {
		var cmd wsCommand
		require.NoError(t, json.Unmarshal(frame, &cmd))
		commands = append(commands, cmd)
	}
	return commands
}

func TestSubscribeOrderBookSendsTypedSubscription(t *testing.T) {
	stream, mock := newTestStream(t)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	var got atomic.Value
	require.NoError(t, stream.SubscribeOrderBook(context.Background(), "BTC", func(book exchange.OrderBook) {
		got.Store(book)
	}))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	commands := decodeCommands(t, mock.Messages())
	assert.Equal(t, "subscribe", commands[0].Method)
	assert.Equal(t, wsSubscription{Type: "l2Book", Coin: "BTC"}, commands[0].Subscription)

	mock.Broadcast([]byte(`{"channel":"l2Book","data":{"coin":"BTC","time":1700000000000,"levels":[[{"px":"49999","sz":"1","n":2}],[{"px":"50001","sz":"0.5","n":1}]]}}`))

	require.Eventually(t, func() bool {
		return got.Load() != nil
	}, 2*time.Second, 10*time.Millisecond)

	book := got.Load().(exchange.OrderBook)
	assert.Equal(t, "BTC", book.Symbol)
	require.Len(t, book.Bids, 1)
	assert.Equal(t, "49999", book.Bids[0].Price.String())
}

func TestSubscribeTickerDecodesAssetCtx(t *testing.T) {
	stream, mock := newTestStream(t)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	var got atomic.Value
	require.NoError(t, stream.SubscribeTicker(context.Background(), "ETH", func(tk exchange.Ticker) {
		got.Store(tk)
	}))

	mock.Broadcast([]byte(`{"channel":"activeAssetCtx","data":{"coin":"ETH","ctx":{"funding":"0.0001","markPx":"3001","midPx":"3000","prevDayPx":"2900","dayNtlVlm":"1000000"}}}`))

	require.Eventually(t, func() bool {
		return got.Load() != nil
	}, 2*time.Second, 10*time.Millisecond)

	tk := got.Load().(exchange.Ticker)
	assert.Equal(t, "ETH", tk.Symbol)
	assert.Equal(t, "3000", tk.LastPrice.String())
	assert.Equal(t, "100", tk.Change.String())
}

func TestSubscribeTradesFansOutBatch(t *testing.T) {
	stream, mock := newTestStream(t)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	var count atomic.Int32
	require.NoError(t, stream.SubscribeTrades(context.Background(), "BTC", func(tr exchange.Trade) {
		count.Add(1)
	}))

	mock.Broadcast([]byte(`{"channel":"trades","data":[{"coin":"BTC","side":"B","px":"50000","sz":"0.1","time":1700000000000},{"coin":"BTC","side":"A","px":"50001","sz":"0.2","time":1700000000001}]}`))

	require.Eventually(t, func() bool {
		return count.Load() == 2
	}, 2*time.Second, 10*time.Millisecond, "one callback per trade in the batch")
}

func TestSubscribeKlinesDecodesCandles(t *testing.T) {
	stream, mock := newTestStream(t)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	var got atomic.Value
	require.NoError(t, stream.SubscribeKlines(context.Background(), "BTC", "1m", func(k exchange.Kline) {
		got.Store(k)
	}))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	commands := decodeCommands(t, mock.Messages())
	assert.Equal(t, wsSubscription{Type: "candle", Coin: "BTC", Interval: "1m"}, commands[0].Subscription)

	mock.Broadcast([]byte(`{"channel":"candle","data":{"t":1700000000000,"T":1700000059999,"s":"BTC","i":"1m","o":"50000","c":"50100","h":"50200","l":"49900","v":"12.5","n":42}}`))

	require.Eventually(t, func() bool {
		return got.Load() != nil
	}, 2*time.Second, 10*time.Millisecond)

	k := got.Load().(exchange.Kline)
	assert.Equal(t, "BTC", k.Symbol)
	assert.Equal(t, "1m", k.Interval)
	assert.Equal(t, "50000", k.Open.String())
	assert.Equal(t, "12.5", k.Volume.String())
	assert.True(t, k.Closed, "window ending in the past is closed")

	assert.ErrorIs(t, stream.SubscribeKlines(context.Background(), "BTC", "", func(exchange.Kline) {}),
		exchange.ErrValidation)
}

func TestSubscribeUserDataKeyedByAddress(t *testing.T) {
	stream, mock := newTestStream(t)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	var got atomic.Value
	require.NoError(t, stream.SubscribeUserData(context.Background(), func(evt exchange.UserDataEvent) {
		got.Store(evt)
	}))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	commands := decodeCommands(t, mock.Messages())
	assert.Equal(t, "userEvents", commands[0].Subscription.Type)
	assert.Equal(t, testAddress, commands[0].Subscription.User,
		"no session token: the subscription is keyed by the wallet address")

	mock.Broadcast([]byte(`{"channel":"user","data":{"fills":[]}}`))

	require.Eventually(t, func() bool {
		return got.Load() != nil
	}, 2*time.Second, 10*time.Millisecond)

	evt := got.Load().(exchange.UserDataEvent)
	assert.Equal(t, "hyperliquid", evt.Venue)
	assert.Equal(t, "user", evt.Type)
}

func TestReconnectReplaysSubscriptions(t *testing.T) {
	stream, mock := newTestStream(t)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, stream.SubscribeOrderBook(ctx, "BTC", func(exchange.OrderBook) {}))
	require.NoError(t, stream.SubscribeTrades(ctx, "ETH", func(exchange.Trade) {}))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	mock.ClearMessages()

	mock.DropAll()

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 2
	}, 5*time.Second, 10*time.Millisecond, "each subscription replayed exactly once")

	types := map[string]bool{}
	for _, cmd := range decodeCommands(t, mock.Messages()) {
		require.Equal(t, "subscribe", cmd.Method)
		types[cmd.Subscription.Type+":"+cmd.Subscription.Coin] = true
	}
	assert.Equal(t, map[string]bool{"l2Book:BTC": true, "trades:ETH": true}, types)
}

func TestUnsubscribeSendsUnsubscribeFrame(t *testing.T) {
	stream, mock := newTestStream(t)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	require.NoError(t, stream.SubscribeOrderBook(context.Background(), "BTC", func(exchange.OrderBook) {}))
	require.NoError(t, stream.Unsubscribe(context.Background(), "orderbook_BTC"))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	commands := decodeCommands(t, mock.Messages())
	assert.Equal(t, "unsubscribe", commands[1].Method)
	assert.Equal(t, wsSubscription{Type: "l2Book", Coin: "BTC"}, commands[1].Subscription)
}

func TestUnsubscribeUnknownIdentifier(t *testing.T) {
	stream, _ := newTestStream(t)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	assert.Error(t, stream.Unsubscribe(context.Background(), "ticker_NEVER"))
	assert.ErrorIs(t, stream.Unsubscribe(context.Background(), "garbage"), exchange.ErrValidation)
}

func TestRouteFrame(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{"book", `{"channel":"l2Book","data":{"coin":"BTC"}}`, "l2Book:BTC"},
		{"ctx", `{"channel":"activeAssetCtx","data":{"coin":"ETH"}}`, "activeAssetCtx:ETH"},
		{"trades", `{"channel":"trades","data":[{"coin":"SOL"}]}`, "trades:SOL"},
		{"candle", `{"channel":"candle","data":{"s":"BTC","i":"1m"}}`, "candle:BTC:1m"},
		{"user", `{"channel":"user","data":{}}`, "user"},
		{"order updates", `{"channel":"orderUpdates","data":[]}`, "user"},
		{"pong", `{"channel":"pong"}`, ""},
		{"ack", `{"channel":"subscriptionResponse","data":{}}`, ""},
		{"garbage", `nope`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, routeFrame([]byte(tc.message)))
		})
	}
}
