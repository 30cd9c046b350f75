package aster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/ratelimit"
	"github.com/veiloq/exchange-service/pkg/websocket"
)

func newTestStream(t *testing.T, rest http.HandlerFunc) (*StreamClient, *websocket.MockServer) {
	t.Helper()

	mock := websocket.NewMockServer()
	t.Cleanup(mock.Close)

	restServer := httptest.NewServer(rest)
	t.Cleanup(restServer.Close)

	client, err := NewClient(Options{
		APIKey:         testAPIKey,
		APISecret:      testAPISecret,
		FuturesBaseURL: restServer.URL,
		SpotBaseURL:    restServer.URL,
		StreamURL:      mock.URL(),
		RateLimit:      ratelimit.Rate{Limit: 100, Interval: time.Second},
	})
	require.NoError(t, err)

	return NewStreamClient(client), mock
}

func defaultRESTHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/fapi/v1/time":
		serveTime(w)
	case "/fapi/v1/account":
		writeJSON(w, http.StatusOK, emptyAccount)
	case "/fapi/v1/listenKey":
		writeJSON(w, http.StatusOK, listenKeyResponse{ListenKey: "test-listen-key"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
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

func TestSubscribeTickerSendsVenueFrameAndDecodesEvents(t *testing.T) {
	stream, mock := newTestStream(t, defaultRESTHandler)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	var got atomic.Value
	require.NoError(t, stream.SubscribeTicker(context.Background(), "BTCUSDT", func(tk exchange.Ticker) {
		got.Store(tk)
	}))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	commands := decodeCommands(t, mock.Messages())
	assert.Equal(t, "SUBSCRIBE", commands[0].Method)
	assert.Equal(t, []string{"btcusdt@ticker"}, commands[0].Params)

	mock.Broadcast([]byte(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","b":"49999","a":"50001","c":"50000","v":"123.4","p":"100","P":"0.2","h":"50500","l":"49000"}`))

	require.Eventually(t, func() bool {
		return got.Load() != nil
	}, 2*time.Second, 10*time.Millisecond)

	tk := got.Load().(exchange.Ticker)
	assert.Equal(t, "BTCUSDT", tk.Symbol)
	assert.Equal(t, "50000", tk.LastPrice.String())
	assert.Equal(t, "49999", tk.BidPrice.String())
	assert.Equal(t, int64(1700000000000), tk.Timestamp)
}

func TestCombinedStreamFramesAreUnwrapped(t *testing.T) {
	stream, mock := newTestStream(t, defaultRESTHandler)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	var got atomic.Value
	require.NoError(t, stream.SubscribeTrades(context.Background(), "ETHUSDT", func(tr exchange.Trade) {
		got.Store(tr)
	}))

	mock.Broadcast([]byte(`{"stream":"ethusdt@trade","data":{"e":"trade","E":1700000000001,"s":"ETHUSDT","p":"3000.5","q":"0.25","m":true,"T":1700000000001}}`))

	require.Eventually(t, func() bool {
		return got.Load() != nil
	}, 2*time.Second, 10*time.Millisecond)

	tr := got.Load().(exchange.Trade)
	assert.Equal(t, "ETHUSDT", tr.Symbol)
	assert.Equal(t, "3000.5", tr.Price.String())
	assert.False(t, tr.IsBuyer, "buyer-maker flag inverted into taker side")
}

func TestSubscribeKlinesDecodesCandles(t *testing.T) {
	stream, mock := newTestStream(t, defaultRESTHandler)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	var got atomic.Value
	require.NoError(t, stream.SubscribeKlines(context.Background(), "BTCUSDT", "1m", func(k exchange.Kline) {
		got.Store(k)
	}))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	commands := decodeCommands(t, mock.Messages())
	assert.Equal(t, []string{"btcusdt@kline_1m"}, commands[0].Params)

	mock.Broadcast([]byte(`{"e":"kline","E":1700000000000,"s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"s":"BTCUSDT","i":"1m","o":"50000","c":"50100","h":"50200","l":"49900","v":"12.5","x":true}}`))

	require.Eventually(t, func() bool {
		return got.Load() != nil
	}, 2*time.Second, 10*time.Millisecond)

	k := got.Load().(exchange.Kline)
	assert.Equal(t, "BTCUSDT", k.Symbol)
	assert.Equal(t, "1m", k.Interval)
	assert.Equal(t, "50000", k.Open.String())
	assert.Equal(t, "50100", k.Close.String())
	assert.True(t, k.Closed)

	// Missing interval is rejected locally.
	err := stream.SubscribeKlines(context.Background(), "BTCUSDT", "", func(exchange.Kline) {})
	assert.ErrorIs(t, err, exchange.ErrValidation)
}

func TestReconnectReplaysEverySubscriptionExactlyOnce(t *testing.T) {
	stream, mock := newTestStream(t, defaultRESTHandler)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	ctx := context.Background()
	require.NoError(t, stream.SubscribeTicker(ctx, "BTCUSDT", func(exchange.Ticker) {}))
	require.NoError(t, stream.SubscribeOrderBook(ctx, "BTCUSDT", func(exchange.OrderBook) {}))
	require.NoError(t, stream.SubscribeTrades(ctx, "ETHUSDT", func(exchange.Trade) {}))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 3
	}, 2*time.Second, 10*time.Millisecond)
	mock.ClearMessages()

	mock.DropAll()

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 3
	}, 5*time.Second, 10*time.Millisecond, "each subscription replayed exactly once")

	streams := map[string]bool{}
	for _, cmd := range decodeCommands(t, mock.Messages()) {
		require.Equal(t, "SUBSCRIBE", cmd.Method)
		require.Len(t, cmd.Params, 1)
		streams[cmd.Params[0]] = true
	}
	assert.Equal(t, map[string]bool{
		"btcusdt@ticker": true,
		"btcusdt@depth":  true,
		"ethusdt@trade":  true,
	}, streams)
}

func TestSubscribeBeforeConnectIsQueued(t *testing.T) {
	stream, mock := newTestStream(t, defaultRESTHandler)

	require.NoError(t, stream.SubscribeTicker(context.Background(), "BTCUSDT", func(exchange.Ticker) {}))
	assert.Empty(t, mock.Messages())

	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnsubscribeSendsVenueFrame(t *testing.T) {
	stream, mock := newTestStream(t, defaultRESTHandler)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	require.NoError(t, stream.SubscribeTicker(context.Background(), "BTCUSDT", func(exchange.Ticker) {}))
	require.NoError(t, stream.Unsubscribe(context.Background(), "ticker_BTCUSDT"))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	commands := decodeCommands(t, mock.Messages())
	assert.Equal(t, "UNSUBSCRIBE", commands[1].Method)
	assert.Equal(t, []string{"btcusdt@ticker"}, commands[1].Params)
}

func TestUnsubscribeUnknownStream(t *testing.T) {
	stream, _ := newTestStream(t, defaultRESTHandler)
	require.NoError(t, stream.Connect(context.Background()))
	defer func() { _ = stream.Disconnect(context.Background()) }()

	err := stream.Unsubscribe(context.Background(), "ticker_NEVERSUBSCRIBED")
	assert.Error(t, err)

	err = stream.Unsubscribe(context.Background(), "garbage")
	assert.ErrorIs(t, err, exchange.ErrValidation)
}

func TestUserDataStreamMintsAndRevokesListenKey(t *testing.T) {
	var created, deleted atomic.Int32
	stream, mock := newTestStream(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/fapi/v1/time":
			serveTime(w)
		case r.URL.Path == "/fapi/v1/account":
			writeJSON(w, http.StatusOK, emptyAccount)
		case r.URL.Path == "/fapi/v1/listenKey" && r.Method == http.MethodPost:
			created.Add(1)
			writeJSON(w, http.StatusOK, listenKeyResponse{ListenKey: "test-listen-key"})
		case r.URL.Path == "/fapi/v1/listenKey" && r.Method == http.MethodDelete:
			deleted.Add(1)
			writeJSON(w, http.StatusOK, struct{}{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, stream.client.Connect(context.Background()))
	require.NoError(t, stream.Connect(context.Background()))

	var got atomic.Value
	require.NoError(t, stream.SubscribeUserData(context.Background(), func(evt exchange.UserDataEvent) {
		got.Store(evt)
	}))
	assert.Equal(t, int32(1), created.Load())

	// Second subscription on a live session is rejected.
	err := stream.SubscribeUserData(context.Background(), func(exchange.UserDataEvent) {})
	assert.ErrorIs(t, err, exchange.ErrValidation)

	mock.Broadcast([]byte(`{"e":"ORDER_TRADE_UPDATE","s":"BTCUSDT"}`))
	require.Eventually(t, func() bool {
		return got.Load() != nil
	}, 2*time.Second, 10*time.Millisecond)

	evt := got.Load().(exchange.UserDataEvent)
	assert.Equal(t, "aster", evt.Venue)
	assert.Equal(t, "ORDER_TRADE_UPDATE", evt.Type)

	require.NoError(t, stream.Disconnect(context.Background()))
	assert.Equal(t, int32(1), deleted.Load(), "listen key revoked on disconnect")

	// Disconnect again is a no-op: the key is not revoked twice.
	require.NoError(t, stream.Disconnect(context.Background()))
	assert.Equal(t, int32(1), deleted.Load())
}

func TestRouteMarketFrame(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{"combined", `{"stream":"btcusdt@ticker","data":{}}`, "btcusdt@ticker"},
		{"raw ticker", `{"e":"24hrTicker","s":"BTCUSDT"}`, "btcusdt@ticker"},
		{"raw depth", `{"e":"depthUpdate","s":"ETHUSDT"}`, "ethusdt@depth"},
		{"raw trade", `{"e":"trade","s":"ETHUSDT"}`, "ethusdt@trade"},
		{"agg trade", `{"e":"aggTrade","s":"ETHUSDT"}`, "ethusdt@trade"},
		{"raw kline", `{"e":"kline","s":"BTCUSDT","k":{"i":"1m"}}`, "btcusdt@kline_1m"},
		{"control ack", `{"result":null,"id":1}`, ""},
		{"unknown event", `{"e":"mysteryEvent","s":"BTCUSDT"}`, ""},
		{"garbage", `not json`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, routeMarketFrame([]byte(tc.message)))
		})
	}
}
