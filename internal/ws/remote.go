package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mcp-browser-bridge/backend/internal/relay"
)

var errSocketClosed = errors.New("websocket is closed")

// RemoteSocket wraps the WebSocket connection from the remote worker and
// implements relay.RemoteConn. Its readiness state is tracked independently
// of the relay's declared flag so the relay has a second signal to probe.
type RemoteSocket struct {
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	state   relay.ReadyState
	onClose func()
	onError func(error)
}

// NewRemoteSocket creates a RemoteSocket over an upgraded connection.
func NewRemoteSocket(conn *websocket.Conn) *RemoteSocket {
	return &RemoteSocket{
		conn:  conn,
		send:  make(chan []byte, 256),
		state: relay.StateOpen,
	}
}

// Send queues one payload for the remote worker. It fails when the socket
// is closing or closed, or when the send buffer is full; a full buffer also
// closes the socket, matching the slow-consumer policy of the session side.
func (s *RemoteSocket) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == relay.StateClosing || s.state == relay.StateClosed {
		return errSocketClosed
	}

	select {
	case s.send <- payload:
		return nil
	default:
		s.closeLocked()
		return errors.New("send buffer full, closing remote socket")
	}
}

// ReadyState reports the socket's current readiness.
func (s *RemoteSocket) ReadyState() relay.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close moves the socket to closing and stops the write pump. The state
// reaches closed once the read pump observes the connection going away.
func (s *RemoteSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *RemoteSocket) closeLocked() {
	if s.state == relay.StateClosing || s.state == relay.StateClosed {
		return
	}
	s.state = relay.StateClosing
	close(s.send)
}

// SetCloseHandler installs the callback fired when the connection closes.
func (s *RemoteSocket) SetCloseHandler(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = fn
}

// SetErrorHandler installs the callback fired on a connection error.
func (s *RemoteSocket) SetErrorHandler(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// markClosed records that the connection is gone and returns the installed
// handlers. Called from the read pump exactly once.
func (s *RemoteSocket) markClosed() (onClose func(), onError func(error), wasOpen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasOpen = s.state == relay.StateOpen
	if s.state != relay.StateClosed {
		if s.state == relay.StateOpen {
			close(s.send)
		}
		s.state = relay.StateClosed
	}
	return s.onClose, s.onError, wasOpen
}

// sendChan returns the write pump's source channel.
func (s *RemoteSocket) sendChan() <-chan []byte {
	return s.send
}

// Conn returns the underlying WebSocket connection.
func (s *RemoteSocket) Conn() *websocket.Conn {
	return s.conn
}
