package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/gorilla/websocket"
	"github.com/veiloq/exchange-service/pkg/logging"
)

// State is the connection lifecycle state. Transitions:
//
//	Disconnected -> Connecting -> Connected
//	Connected -> Reconnecting -> Connected | Failed   (on unexpected drop)
//
// Failed is terminal: the bounded reconnect budget is spent and only an
// explicit Connect call leaves it.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// MessageHandler is a callback for inbound frames on one subscription.
type MessageHandler func(message []byte)

// Router extracts the subscription key from an inbound frame. Venues
// discriminate push frames differently (stream name, channel field), so the
// owning adapter supplies the routing rule.
type Router func(message []byte) string

// Config holds WebSocket connection configuration.
type Config struct {
	URL               string
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	MaxRetries        int

	// Route maps an inbound frame to a subscription key. When nil, frames
	// are routed by a top-level "topic" field.
	Route Router

	Logger logging.Logger
}

// Connector manages one long-lived WebSocket connection multiplexing many
// keyed subscriptions.
//
// Each subscription records the control frame that established it; after an
// unexpected drop the connector reopens the socket and replays every
// recorded frame. Subscriptions requested while disconnected are queued and
// sent on the next (re)connect.
//
// Handlers run synchronously on the read loop, at most once per frame and in
// arrival order. A slow handler delays subsequent dispatch on the same
// connection; there is no buffering beyond the transport.
type Connector interface {
	// Connect opens the socket, retrying up to the configured budget. It
	// is the only way to leave the Failed state.
	Connect(ctx context.Context) error

	// Close stops any in-flight reconnect loop, then closes the socket.
	// Idempotent.
	Close() error

	// Subscribe records a keyed subscription and sends its control frame
	// if connected. A nil frame records a handler without sending anything.
	Subscribe(key string, frame interface{}, handler MessageHandler) error

	// Unsubscribe removes a subscription, sending the venue's unsubscribe
	// frame when one is given and the socket is up.
	Unsubscribe(key string, frame interface{}) error

	// Send writes a message to the socket.
	Send(message interface{}) error

	// IsConnected reports whether the socket is currently up.
	IsConnected() bool

	// State returns the current lifecycle state.
	State() State
}

type subscription struct {
	frame   interface{}
	handler MessageHandler
}

type connector struct {
	config Config
	logger logging.Logger

	mu    sync.Mutex // guards conn, state, subs, stop, done
	conn  *websocket.Conn
	state State
	subs  map[string]subscription
	stop  chan struct{} // closed by Close, stops reconnect loops
	done  chan struct{} // per-connection, closed when its read loop exits

	writeMu sync.Mutex
}

// NewConnector creates a connector for the given configuration.
func NewConnector(config Config) Connector {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &connector{
		config: config,
		logger: logger,
		state:  StateDisconnected,
		subs:   make(map[string]subscription),
	}
}

func (c *connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connector) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	c.logger.Debug("attempting websocket connection",
		logging.String("url", c.config.URL),
		logging.Duration("heartbeat", c.config.HeartbeatInterval),
		logging.Duration("reconnect", c.config.ReconnectInterval),
	)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries(); attempt++ {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}

		if err := c.dial(ctx); err != nil {
			lastErr = err
			c.logger.Warn("connection attempt failed",
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return ctx.Err()
			case <-stop:
				c.setState(StateDisconnected)
				return fmt.Errorf("connector closed during connect")
			case <-time.After(c.config.ReconnectInterval):
			}
			continue
		}

		c.logger.Info("websocket connected", logging.String("url", c.config.URL))
		c.replaySubscriptions()
		return nil
	}

	c.setState(StateFailed)
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// dial opens one socket and starts its read and heartbeat loops.
func (c *connector) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return err
	}

	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.state = StateConnected
	c.mu.Unlock()

	go c.readLoop(conn, done)
	if c.config.HeartbeatInterval > 0 {
		go c.heartbeat(conn, done)
	}
	return nil
}

// readLoop reads frames until the connection drops, dispatching each frame
// synchronously so callbacks observe arrival order.
func (c *connector) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)

		c.mu.Lock()
		stale := c.conn != conn
		if !stale {
			c.conn = nil
		}
		var closing bool
		select {
		case <-c.stop:
			closing = true
		default:
		}
		if !stale && !closing {
			c.state = StateReconnecting
		} else if !stale {
			c.state = StateDisconnected
		}
		c.mu.Unlock()

		_ = conn.Close()
		if stale || closing {
			return
		}

		c.logger.Warn("websocket connection dropped, reconnecting")
		go c.reconnect()
	}()

	readWait := c.readDeadline()
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read error", logging.Error(err))
			}
			return
		}
		c.dispatch(message)
	}
}

func (c *connector) readDeadline() time.Duration {
	if c.config.HeartbeatInterval > 0 {
		return c.config.HeartbeatInterval * 3
	}
	return time.Minute
}

// dispatch routes one frame to its subscription handler.
func (c *connector) dispatch(message []byte) {
	key := ""
	if c.config.Route != nil {
		key = c.config.Route(message)
	} else {
		var msg struct {
			Topic string `json:"topic"`
		}
		if err := json.Unmarshal(message, &msg); err == nil {
			key = msg.Topic
		}
	}
	if key == "" {
		return
	}

	c.mu.Lock()
	sub, ok := c.subs[key]
	c.mu.Unlock()
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic recovered",
				logging.String("key", key),
				logging.String("panic", fmt.Sprintf("%v", r)),
			)
		}
	}()
	sub.handler(message)
}

// heartbeat keeps the connection alive with periodic pings.
func (c *connector) heartbeat(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// reconnect runs the bounded reconnect loop after an unexpected drop.
func (c *connector) reconnect() {
	c.mu.Lock()
	stop := c.stop
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			return c.dial(ctx)
		},
		retry.Attempts(uint(c.maxRetries())),
		retry.Delay(c.config.ReconnectInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("reconnection attempt failed",
				logging.Int("attempt", int(n+1)),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		c.mu.Lock()
		// A deliberate Close during the loop means Disconnected, not Failed.
		select {
		case <-c.stop:
			c.state = StateDisconnected
		default:
			c.state = StateFailed
		}
		c.mu.Unlock()
		c.logger.Error("reconnection failed", logging.Error(err))
		return
	}

	c.logger.Info("reconnection successful")
	c.replaySubscriptions()
}

// replaySubscriptions resends the recorded control frame of every live
// subscription, including those queued while disconnected.
func (c *connector) replaySubscriptions() {
	c.mu.Lock()
	frames := make([]interface{}, 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.frame != nil {
			frames = append(frames, sub.frame)
		}
	}
	c.mu.Unlock()

	for _, frame := range frames {
		if err := c.Send(frame); err != nil {
			c.logger.Error("failed to replay subscription", logging.Error(err))
		}
	}
	if len(frames) > 0 {
		c.logger.Info("replayed subscriptions", logging.Int("count", len(frames)))
	}
}

func (c *connector) Subscribe(key string, frame interface{}, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[key] = subscription{frame: frame, handler: handler}
	connected := c.state == StateConnected
	c.mu.Unlock()

	// Queued subscriptions are sent by the next (re)connect replay.
	if !connected || frame == nil {
		return nil
	}
	return c.Send(frame)
}

func (c *connector) Unsubscribe(key string, frame interface{}) error {
	c.mu.Lock()
	_, ok := c.subs[key]
	delete(c.subs, key)
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("subscription %q not found", key)
	}
	if frame != nil && connected {
		return c.Send(frame)
	}
	return nil
}

func (c *connector) Send(message interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("websocket not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if data, ok := message.([]byte); ok {
		return conn.WriteMessage(websocket.TextMessage, data)
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *connector) Close() error {
	c.mu.Lock()
	// Signal any reconnect loop before touching the socket so a reconnect
	// never races a deliberate shutdown.
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
	}
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed connection"))
	time.Sleep(100 * time.Millisecond)

	err := conn.Close()
	if err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
		return err
	}
	return nil
}

func (c *connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *connector) maxRetries() int {
	if c.config.MaxRetries <= 0 {
		return 1
	}
	return c.config.MaxRetries
}

// SubscriptionCount reports the number of recorded subscriptions.
func (c *connector) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
