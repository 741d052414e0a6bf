package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcp-browser-bridge/backend/internal/bridge"
	"github.com/mcp-browser-bridge/backend/internal/protocol"
	"github.com/mcp-browser-bridge/backend/internal/trace"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20

	// Maximum preview length recorded for diagnostics.
	previewLimit = 120
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking in production
		return true
	},
}

// Handler upgrades HTTP connections for both ends of a bridge and runs the
// pumps feeding the relay.
type Handler struct{}

// NewHandler creates a new WebSocket handler.
func NewHandler() *Handler {
	return &Handler{}
}

// AttachRemote handles the remote worker's WebSocket connection for a
// bridge. It upgrades the HTTP connection, hands the socket to the relay
// via SetConnection and starts the pumps.
func (h *Handler) AttachRemote(w http.ResponseWriter, r *http.Request, bctx *bridge.BridgeContext) (*RemoteSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	socket := NewRemoteSocket(conn)
	bctx.TrackCloser(socket)

	// SetConnection installs the close and error handlers before the read
	// pump starts, so no event can be missed.
	bctx.Relay.SetConnection(socket)

	go h.remoteWritePump(socket)
	go h.remoteReadPump(socket, bctx)

	return socket, nil
}

// AttachSession handles an MCP client's WebSocket connection for a bridge.
// It upgrades the HTTP connection, installs the transport as the current
// session via Connect (retiring any previous session) and starts the pumps.
func (h *Handler) AttachSession(w http.ResponseWriter, r *http.Request, bctx *bridge.BridgeContext) (*SessionTransport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	transport := NewSessionTransport(conn)
	bctx.TrackCloser(transport)

	bctx.Relay.Connect(transport)

	go h.sessionWritePump(transport)
	go h.sessionReadPump(transport, bctx)

	return transport, nil
}

// remoteReadPump pumps messages from the remote worker into the relay.
func (h *Handler) remoteReadPump(socket *RemoteSocket, bctx *bridge.BridgeContext) {
	conn := socket.Conn()
	defer func() {
		onClose, _, _ := socket.markClosed()
		if onClose != nil {
			onClose()
		}
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("Remote WebSocket error: %v", err)
				_, onError, _ := socket.markClosed()
				if onError != nil {
					onError(err)
				}
			}
			break
		}

		preview := protocol.Preview(message, previewLimit)
		outcome := trace.OutcomeDropped
		if bctx.Relay.HasSession() {
			outcome = trace.OutcomeForwarded
		}
		bctx.Tail.Record(trace.DirectionInbound, outcome, preview)
		bctx.Inspector.Observe(message)
		if err := bctx.Log.WriteInbound(string(outcome), preview); err != nil {
			log.Printf("Failed to record inbound traffic: %v", err)
		}

		bctx.Relay.ForwardToLocal(message)
	}
}

// remoteWritePump pumps queued payloads to the remote worker.
func (h *Handler) remoteWritePump(socket *RemoteSocket) {
	conn := socket.Conn()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-socket.sendChan():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sessionReadPump pumps messages from the MCP client into the relay's
// send-to-remote path.
func (h *Handler) sessionReadPump(transport *SessionTransport, bctx *bridge.BridgeContext) {
	conn := transport.Conn()
	defer func() {
		transport.markClosed()
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("Session WebSocket error: %v", err)
			}
			break
		}

		preview := protocol.Preview(message, previewLimit)
		outcome := trace.OutcomeDropped
		if bctx.Relay.IsConnected() {
			outcome = trace.OutcomeForwarded
		}
		bctx.Tail.Record(trace.DirectionOutbound, outcome, preview)
		bctx.Inspector.Observe(message)
		if err := bctx.Log.WriteOutbound(string(outcome), preview); err != nil {
			log.Printf("Failed to record outbound traffic: %v", err)
		}

		transport.handleOutbound(message)
	}
}

// sessionWritePump pumps queued envelopes to the MCP client.
func (h *Handler) sessionWritePump(transport *SessionTransport) {
	conn := transport.Conn()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-transport.sendChan():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One envelope per frame so the client can parse each message
			// on its own.
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SetCheckOrigin sets a custom origin checker for the WebSocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}
