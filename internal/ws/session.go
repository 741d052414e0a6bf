package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mcp-browser-bridge/backend/internal/protocol"
)

// SessionTransport wraps the WebSocket connection from an MCP client and
// implements relay.Transport. Superseded transports are closed by the relay
// asking; the transport never closes itself behind the relay's back.
type SessionTransport struct {
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	closed   bool
	outbound func(payload []byte)
}

// NewSessionTransport creates a SessionTransport over an upgraded connection.
func NewSessionTransport(conn *websocket.Conn) *SessionTransport {
	return &SessionTransport{
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Deliver queues one envelope for the session consumer.
func (t *SessionTransport) Deliver(env *protocol.Envelope) error {
	data, err := protocol.Marshal(env)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errSocketClosed
	}

	select {
	case t.send <- data:
		return nil
	default:
		// Slow consumer: drop the session rather than block the relay.
		t.closeLocked()
		return errors.New("send buffer full, closing session transport")
	}
}

// SetOutboundHandler installs the callback receiving every payload the
// session originates. Re-installing the same handler is harmless.
func (t *SessionTransport) SetOutboundHandler(fn func(payload []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outbound = fn
}

// Close asks the transport to shut down. The write pump drains what is
// queued, sends a close frame and tears the connection down.
func (t *SessionTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
	return nil
}

func (t *SessionTransport) closeLocked() {
	if t.closed {
		return
	}
	t.closed = true
	close(t.send)
}

// IsClosed returns true if the transport has been closed.
func (t *SessionTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// handleOutbound routes one session-originated payload to the installed
// handler. Payloads arriving before a handler is installed are dropped.
func (t *SessionTransport) handleOutbound(payload []byte) {
	t.mu.Lock()
	fn := t.outbound
	t.mu.Unlock()

	if fn != nil {
		fn(payload)
	}
}

// markClosed flags the transport closed without touching the connection.
// Called from the read pump when the connection goes away on its own.
func (t *SessionTransport) markClosed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
}

// sendChan returns the write pump's source channel.
func (t *SessionTransport) sendChan() <-chan []byte {
	return t.send
}

// Conn returns the underlying WebSocket connection.
func (t *SessionTransport) Conn() *websocket.Conn {
	return t.conn
}
