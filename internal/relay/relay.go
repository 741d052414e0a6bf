package relay

import (
	"log"
	"sync"
	"time"

	"github.com/mcp-browser-bridge/backend/internal/protocol"
)

// ReadyState mirrors the readiness of a remote duplex channel. It is an
// independent signal from the relay's own declared-connected flag; the two
// can disagree when the channel's host pauses and resumes it without
// delivering close events on the usual cadence.
type ReadyState int32

const (
	StateConnecting ReadyState = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the readiness state name for log output.
func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// RemoteConn is the duplex channel to the out-of-process worker. The relay
// holds the only reference to it while attached.
type RemoteConn interface {
	// Send writes one payload to the remote side.
	Send(payload []byte) error
	// ReadyState reports the channel's self-declared readiness.
	ReadyState() ReadyState
	// Close tears down the channel.
	Close() error
	// SetCloseHandler installs the callback invoked when the channel closes.
	SetCloseHandler(fn func())
	// SetErrorHandler installs the callback invoked on a channel error.
	SetErrorHandler(fn func(err error))
}

// Transport is the duplex channel to the currently active protocol session
// consumer. Superseded transports are asked to close themselves; the relay
// never destroys them beyond dropping its reference.
type Transport interface {
	// Deliver hands one inbound envelope to the session consumer.
	Deliver(env *protocol.Envelope) error
	// SetOutboundHandler installs the callback that receives every
	// session-originated payload. Installation is idempotent.
	SetOutboundHandler(fn func(payload []byte))
	// Close asks the transport to shut itself down.
	Close() error
}

// Relay bridges one local session transport with one remote worker
// connection. It tracks the remote connection's true liveness, enforces
// at-most-one-active-session with graceful takeover, and forwards protocol
// messages in both directions without letting a single bad message take the
// bridge down.
//
// All entry points are safe for concurrent use; the two owned slots (current
// connection, current transport) are guarded by one mutex.
type Relay struct {
	mu         sync.Mutex
	conn       RemoteConn
	declared   bool
	attachedAt time.Time
	transport  Transport

	// onStateChange observes connectivity transitions for diagnostics.
	// It is never the authority on liveness; IsConnected is.
	onStateChange func(connected bool)

	previewLimit int
}

// New creates a relay with no attached connection or transport.
func New() *Relay {
	return &Relay{previewLimit: 120}
}

// SetStateObserver installs a callback observing connectivity transitions.
// Observers must not call back into the relay synchronously.
func (r *Relay) SetStateObserver(fn func(connected bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChange = fn
}

// SetConnection replaces the remote connection handle. A non-nil handle is
// recorded as declared-connected with a fresh timestamp and gets close and
// error listeners installed. A nil handle clears the slot unconditionally.
// Never returns an error for any input.
func (r *Relay) SetConnection(conn RemoteConn) {
	r.mu.Lock()
	r.conn = conn
	if conn == nil {
		r.declared = false
		r.attachedAt = time.Time{}
		observer := r.onStateChange
		r.mu.Unlock()

		log.Printf("relay: remote connection cleared")
		if observer != nil {
			observer(false)
		}
		return
	}

	r.declared = true
	r.attachedAt = time.Now()
	observer := r.onStateChange
	r.mu.Unlock()

	// Listeners are bound to this specific handle so a stale event from a
	// superseded connection cannot flip state for its replacement.
	conn.SetCloseHandler(func() { r.remoteClosed(conn) })
	conn.SetErrorHandler(func(err error) { r.remoteErrored(conn, err) })

	log.Printf("relay: remote connection attached")
	if observer != nil {
		observer(true)
	}
}

// remoteClosed handles an observed close event: the declared flag flips and
// the handle is cleared entirely.
func (r *Relay) remoteClosed(conn RemoteConn) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	r.conn = nil
	r.declared = false
	r.attachedAt = time.Time{}
	observer := r.onStateChange
	r.mu.Unlock()

	log.Printf("relay: remote connection closed")
	if observer != nil {
		observer(false)
	}
}

// remoteErrored handles an observed error event: the declared flag flips but
// the handle is kept until a close event or explicit detach clears it.
func (r *Relay) remoteErrored(conn RemoteConn, err error) {
	r.mu.Lock()
	if r.conn != conn {
		r.mu.Unlock()
		return
	}
	changed := r.declared
	r.declared = false
	observer := r.onStateChange
	r.mu.Unlock()

	log.Printf("relay: remote connection error: %v", err)
	if changed && observer != nil {
		observer(false)
	}
}

// IsConnected reports whether the remote connection is currently usable for
// sending. This is the only authoritative liveness check; collaborators must
// call it rather than inspect the handle.
//
// Liveness is recomputed on every call from two independent signals: the
// declared flag and the handle's self-reported readiness. If the handle
// reports closing or closed while the flag still says connected, the flag is
// corrected in place; event delivery is not guaranteed to keep pace with
// readiness when the channel's host can pause and resume it.
func (r *Relay) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isConnectedLocked()
}

func (r *Relay) isConnectedLocked() bool {
	if r.conn == nil {
		return false
	}
	state := r.conn.ReadyState()
	if r.declared && (state == StateClosing || state == StateClosed) {
		log.Printf("relay: remote readiness is %s but connection was still declared connected, correcting", state)
		r.declared = false
	}
	return r.declared && state != StateClosed
}

// AttachedAt returns the time the current remote connection was attached,
// or the zero time when none is attached.
func (r *Relay) AttachedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attachedAt
}

// HasSession reports whether a local session transport is currently active.
func (r *Relay) HasSession() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transport != nil
}

// Connect installs a new session transport, retiring the previous one if it
// differs. The outgoing transport gets a best-effort cancelled notification
// followed by a best-effort close; neither failure prevents the incoming
// transport from becoming current. Never returns an error to its caller.
func (r *Relay) Connect(t Transport) {
	r.mu.Lock()
	prev := r.transport
	if prev != nil && prev != t {
		note := protocol.NewCancelledNotification("session superseded by a newer client connection")
		if err := prev.Deliver(note); err != nil {
			log.Printf("relay: failed to notify superseded session: %v", err)
		}
		if err := prev.Close(); err != nil {
			log.Printf("relay: failed to close superseded session: %v", err)
		}
		log.Printf("relay: session transport superseded by new client")
	}
	r.transport = t
	r.mu.Unlock()

	if t != nil {
		t.SetOutboundHandler(r.ForwardToRemote)
	}
}

// ForwardToLocal routes one raw payload from the remote side to the current
// session transport. Malformed payloads and per-message delivery failures
// are logged and dropped; neither detaches the transport or marks the
// connection unusable. Having no current transport is not an error.
func (r *Relay) ForwardToLocal(raw []byte) {
	env, err := protocol.Parse(raw)
	if err != nil {
		log.Printf("relay: dropping malformed remote message (%s): %v", protocol.Preview(raw, r.previewLimit), err)
		return
	}

	r.mu.Lock()
	t := r.transport
	r.mu.Unlock()

	if t == nil {
		return
	}
	if err := t.Deliver(env); err != nil {
		log.Printf("relay: failed to deliver remote message to session: %v", err)
	}
}

// ForwardToRemote routes one session-originated payload to the remote
// connection. When the connection is not usable the message is dropped with
// a warning; a failing send downgrades the declared state so subsequent
// calls short-circuit. The payload is forwarded verbatim, never rewritten,
// retried or buffered. Never panics or returns to the caller with an error.
func (r *Relay) ForwardToRemote(payload []byte) {
	r.mu.Lock()
	if !r.isConnectedLocked() {
		r.mu.Unlock()
		log.Printf("relay: no usable remote connection, dropping outbound message: %s", protocol.Preview(payload, r.previewLimit))
		return
	}
	conn := r.conn
	r.mu.Unlock()

	if err := conn.Send(payload); err != nil {
		r.mu.Lock()
		if r.conn == conn {
			r.declared = false
		}
		observer := r.onStateChange
		r.mu.Unlock()

		log.Printf("relay: send to remote failed, marking connection disconnected: %v", err)
		if observer != nil {
			observer(false)
		}
	}
}
