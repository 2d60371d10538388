package feedme

// SessionHandler receives the asynchronous events a Session emits outside
// the direct request/response flow of Action, FeedOpen, and FeedClose. All
// methods are invoked synchronously from within the session's single
// cooperative context (see Session on concurrency); an implementation must
// not block.
type SessionHandler interface {
	// OnConnecting fires when Connect is called and the transport's
	// connection attempt begins.
	OnConnecting()

	// OnConnect fires once the handshake succeeds and the session
	// transitions to Connected.
	OnConnect()

	// OnDisconnect fires whenever the session leaves Connected or
	// Connecting for Disconnected, whatever the cause: a transport error,
	// a handshake rejection, or a caller-initiated Disconnect. err is nil
	// only for a caller-initiated disconnect with no underlying cause.
	OnDisconnect(err error)

	// OnActionRevelation fires after a server-pushed ActionRevelation has
	// been successfully applied to its target feed's data. newData and
	// oldData are the feed's data tree after and before the revelation.
	OnActionRevelation(feedName string, feedArgs map[string]string, actionName string, actionData []byte, newData, oldData any)

	// OnUnexpectedFeedClosing fires the moment a feed that was Open starts
	// closing for a reason the caller didn't initiate: a bad
	// ActionRevelation (failed delta or hash), a server FeedTermination, or
	// a transport disconnect.
	OnUnexpectedFeedClosing(feedName string, feedArgs map[string]string, err error)

	// OnUnexpectedFeedClosed fires once that closing completes and the
	// feed is fully gone.
	OnUnexpectedFeedClosed(feedName string, feedArgs map[string]string, err error)

	// OnBadServerMessage fires when a frame from the server is rejected:
	// malformed JSON, a schema violation, an out-of-sequence MessageType,
	// or a delta/hash failure.
	OnBadServerMessage(err error)

	// OnBadClientMessage fires when the server responds with
	// ViolationResponse, reporting that it rejected something the client
	// sent.
	OnBadClientMessage(diagnostics []byte)

	// OnTransportError fires when the transport reports an error that
	// doesn't by itself end the connection (see transport.Handler).
	OnTransportError(err error)
}

// NoopHandler implements SessionHandler with no-ops for every method. It
// can be embedded by callers who only want to override a handful of
// events.
type NoopHandler struct{}

func (NoopHandler) OnConnecting()                                                   {}
func (NoopHandler) OnConnect()                                                      {}
func (NoopHandler) OnDisconnect(err error)                                          {}
func (NoopHandler) OnActionRevelation(string, map[string]string, string, []byte, any, any) {}
func (NoopHandler) OnUnexpectedFeedClosing(string, map[string]string, error)        {}
func (NoopHandler) OnUnexpectedFeedClosed(string, map[string]string, error)         {}
func (NoopHandler) OnBadServerMessage(err error)                                    {}
func (NoopHandler) OnBadClientMessage(diagnostics []byte)                           {}
func (NoopHandler) OnTransportError(err error)                                      {}
