package websocket

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnector(t *testing.T, mock *MockServer, route Router) Connector {
	t.Helper()
	conn := NewConnector(Config{
		URL:               mock.URL(),
		HeartbeatInterval: 100 * time.Millisecond,
		ReconnectInterval: 50 * time.Millisecond,
		MaxRetries:        5,
		Route:             route,
	})
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConnectTransitionsToConnected(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, nil)
	assert.Equal(t, StateDisconnected, conn.State())

	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, StateConnected, conn.State())
	assert.True(t, conn.IsConnected())
}

func TestConnectExhaustedRetriesEndsFailed(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetRejectConnection(true)

	conn := newTestConnector(t, mock, nil)
	require.Error(t, conn.Connect(context.Background()))
	assert.Equal(t, StateFailed, conn.State())

	// An explicit Connect is the only way out of Failed.
	mock.SetRejectConnection(false)
	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, StateConnected, conn.State())
}

func TestSubscribeDispatchesByRoute(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, func(message []byte) string {
		var frame struct {
			Channel string `json:"channel"`
		}
		_ = json.Unmarshal(message, &frame)
		return frame.Channel
	})
	require.NoError(t, conn.Connect(context.Background()))

	var hits atomic.Int32
	require.NoError(t, conn.Subscribe("prices", map[string]string{"op": "sub"}, func(message []byte) {
		hits.Add(1)
	}))

	mock.Broadcast([]byte(`{"channel":"prices","px":"1"}`))
	mock.Broadcast([]byte(`{"channel":"other","px":"2"}`))
	mock.Broadcast([]byte(`{"channel":"prices","px":"3"}`))

	require.Eventually(t, func() bool {
		return hits.Load() == 2
	}, 2*time.Second, 10*time.Millisecond, "only matching frames dispatched, once each")
}

func TestDispatchPreservesArrivalOrder(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, func(message []byte) string { return "seq" })
	require.NoError(t, conn.Connect(context.Background()))

	received := make(chan []byte, 16)
	require.NoError(t, conn.Subscribe("seq", nil, func(message []byte) {
		received <- append([]byte(nil), message...)
	}))

	for _, frame := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		mock.Broadcast([]byte(frame))
	}

	for want := 1; want <= 3; want++ {
		select {
		case frame := <-received:
			var msg struct {
				N int `json:"n"`
			}
			require.NoError(t, json.Unmarshal(frame, &msg))
			assert.Equal(t, want, msg.N)
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d not delivered", want)
		}
	}
}

func TestSubscribeWhileDisconnectedIsQueued(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, nil)
	require.NoError(t, conn.Subscribe("topic-a", map[string]string{"sub": "a"}, func([]byte) {}))
	assert.Empty(t, mock.Messages(), "nothing sent while disconnected")

	require.NoError(t, conn.Connect(context.Background()))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond, "queued frame sent on connect")
}

func TestUnexpectedDropReconnectsAndReplays(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, nil)
	require.NoError(t, conn.Connect(context.Background()))

	require.NoError(t, conn.Subscribe("topic-a", map[string]string{"sub": "a"}, func([]byte) {}))
	require.NoError(t, conn.Subscribe("topic-b", map[string]string{"sub": "b"}, func([]byte) {}))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	mock.ClearMessages()

	mock.DropAll()

	require.Eventually(t, func() bool {
		return conn.IsConnected() && len(mock.Messages()) == 2
	}, 5*time.Second, 10*time.Millisecond, "reconnected with both subscriptions replayed")
}

func TestCloseDuringReconnectEndsDisconnected(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := NewConnector(Config{
		URL:               mock.URL(),
		ReconnectInterval: 50 * time.Millisecond,
		MaxRetries:        1000,
	})
	require.NoError(t, conn.Connect(context.Background()))

	// Force a drop into a hopeless reconnect loop, then close deliberately.
	mock.SetRejectConnection(true)
	mock.DropAll()

	require.Eventually(t, func() bool {
		return conn.State() == StateReconnecting
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return conn.State() == StateDisconnected
	}, 2*time.Second, 10*time.Millisecond, "deliberate close must not end in Failed")
}

func TestCloseIsIdempotent(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, nil)
	require.NoError(t, conn.Connect(context.Background()))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, StateDisconnected, conn.State())
}

func TestSendRequiresConnection(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, nil)
	assert.Error(t, conn.Send(map[string]string{"op": "ping"}))
}

func TestUnsubscribeUnknownKey(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, nil)
	require.NoError(t, conn.Connect(context.Background()))
	assert.Error(t, conn.Unsubscribe("never-subscribed", nil))
}

func TestUnsubscribedTopicStopsReplaying(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	conn := newTestConnector(t, mock, nil)
	require.NoError(t, conn.Connect(context.Background()))

	require.NoError(t, conn.Subscribe("topic-a", map[string]string{"sub": "a"}, func([]byte) {}))
	require.NoError(t, conn.Subscribe("topic-b", map[string]string{"sub": "b"}, func([]byte) {}))
	require.NoError(t, conn.Unsubscribe("topic-b", nil))

	require.Eventually(t, func() bool {
		return len(mock.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	mock.ClearMessages()

	mock.DropAll()

	require.Eventually(t, func() bool {
		return conn.IsConnected() && len(mock.Messages()) == 1
	}, 5*time.Second, 10*time.Millisecond, "removed subscription is not replayed")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", StateDisconnected.String())
	assert.Equal(t, "CONNECTING", StateConnecting.String())
	assert.Equal(t, "CONNECTED", StateConnected.String())
	assert.Equal(t, "RECONNECTING", StateReconnecting.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}
