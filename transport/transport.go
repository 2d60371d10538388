// Package transport defines the byte-stream contract a feedme.Session uses
// to talk to a server, and a small in-memory double for tests.
package transport

// State is the connection state of a Transport, as tracked by the
// transport implementation itself (independent of, and reported up into,
// the session's own State).
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transport is the event-driven byte-stream contract a Session talks
// through. Unlike a framed io.Reader/io.Writer pair, a Transport pushes
// inbound events to a single registered Handler rather than being polled,
// since the session reacts to whichever arrives first: a message, a
// disconnect, or a transport-level error.
type Transport interface {
	// State reports the transport's current connection state.
	State() State

	// Connect begins connecting to the server. It must not block past
	// initiating the attempt: completion is reported asynchronously via
	// Handler.HandleConnect or Handler.HandleDisconnect.
	Connect() error

	// Send writes a single message frame. The caller (the session) never
	// calls Send concurrently with another Send, and never before
	// Connect has been called.
	Send(msg string) error

	// Disconnect tears down the connection. err is the reason for the
	// disconnect; the resulting Handler.HandleDisconnect carries it back
	// verbatim (nil if err was nil).
	Disconnect(err error) error

	// SetHandler installs the single Handler that will receive this
	// transport's events. A Transport has exactly one handler at a time;
	// installing a new one replaces the last.
	SetHandler(h Handler)
}

// Handler receives the events a Transport produces. A Session is the only
// intended implementer: structurally allowing exactly one registered
// Handler (rather than a list of listeners) is what lets the session
// assume it is the sole observer of its transport, per its concurrency
// model.
type Handler interface {
	// HandleConnecting fires when the transport begins a connection
	// attempt.
	HandleConnecting()

	// HandleConnect fires once the underlying connection is fully
	// established and ready to Send/receive.
	HandleConnect()

	// HandleMessage fires once per inbound message frame, in the order
	// received.
	HandleMessage(msg string)

	// HandleDisconnect fires when the connection ends, for any reason.
	// For a locally-initiated Disconnect, err is the error that was passed
	// to Disconnect.
	HandleDisconnect(err error)

	// HandleTransportError fires for a transport-level problem that does
	// not by itself end the connection (for example, a single malformed
	// frame that could still be skipped).
	HandleTransportError(err error)
}
