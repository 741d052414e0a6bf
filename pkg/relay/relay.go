package relay

import (
	"github.com/mcp-browser-bridge/backend/internal/protocol"
	"github.com/mcp-browser-bridge/backend/internal/relay"
)

// Re-export types from internal/relay for external use
type (
	Relay      = relay.Relay
	RemoteConn = relay.RemoteConn
	Transport  = relay.Transport
	ReadyState = relay.ReadyState
	Envelope   = protocol.Envelope
)

const (
	StateConnecting = relay.StateConnecting
	StateOpen       = relay.StateOpen
	StateClosing    = relay.StateClosing
	StateClosed     = relay.StateClosed
)

// New creates a relay with no attached connection or transport.
func New() *Relay {
	return relay.New()
}

// ParseEnvelope decodes raw bytes into an Envelope.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	return protocol.Parse(raw)
}
