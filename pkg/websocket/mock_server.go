package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// MockServer is an in-process WebSocket server used by connector and
// adapter stream tests.
type MockServer struct {
	server *httptest.Server
	url    string

	mu            sync.RWMutex
	connections   map[*websocket.Conn]bool
	onConnect     func(*websocket.Conn)
	onMessage     func(*websocket.Conn, []byte)
	messageBuffer [][]byte

	rejectConnection bool
}

// NewMockServer starts a mock WebSocket server.
func NewMockServer() *MockServer {
	mock := &MockServer{
		connections:   make(map[*websocket.Conn]bool),
		messageBuffer: make([][]byte, 0),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleConnection))
	mock.url = "ws" + strings.TrimPrefix(mock.server.URL, "http")
	return mock
}

// URL returns the ws:// URL of the server.
func (m *MockServer) URL() string {
	return m.url
}

// Close shuts the server down.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetRejectConnection makes the server refuse upgrades.
func (m *MockServer) SetRejectConnection(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectConnection = reject
}

// OnConnect registers a callback fired for each accepted connection.
func (m *MockServer) OnConnect(callback func(*websocket.Conn)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = callback
}

// OnMessage registers a callback fired for each text frame received.
func (m *MockServer) OnMessage(callback func(*websocket.Conn, []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMessage = callback
}

// Broadcast pushes a frame to every connected client.
func (m *MockServer) Broadcast(message []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for conn := range m.connections {
		_ = conn.WriteMessage(websocket.TextMessage, message)
	}
}

// DropAll force-closes every live connection, simulating a network drop.
func (m *MockServer) DropAll() {
	m.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(m.connections))
	for conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// ConnectionCount reports the number of live connections.
func (m *MockServer) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Messages returns a copy of every text frame received so far.
func (m *MockServer) Messages() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	messages := make([][]byte, len(m.messageBuffer))
	copy(messages, m.messageBuffer)
	return messages
}

// ClearMessages empties the received-frame buffer.
func (m *MockServer) ClearMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messageBuffer = m.messageBuffer[:0]
}

func (m *MockServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	reject := m.rejectConnection
	onConnect := m.onConnect
	m.mu.RUnlock()

	if reject {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.connections[conn] = true
	m.mu.Unlock()

	if onConnect != nil {
		onConnect(conn)
	}

	defer func() {
		m.mu.Lock()
		delete(m.connections, conn)
		m.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		m.mu.Lock()
		m.messageBuffer = append(m.messageBuffer, message)
		onMessage := m.onMessage
		m.mu.Unlock()

		if onMessage != nil {
			onMessage(conn, message)
		}
	}
}
