package feedme

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"go.feedme.dev/feedme/transport"
)

// ActionCompletion is invoked exactly once when an Action's ActionResponse
// arrives, or never arrives because the transport disconnected first. data
// is the raw ActionData object on success; err is non-nil on failure or
// disconnect.
type ActionCompletion func(data []byte, err error)

// FeedOpenCompletion is invoked exactly once when a FeedOpen's
// FeedOpenResponse arrives, or the transport disconnects first.
type FeedOpenCompletion func(data any, err error)

// FeedCloseCompletion is invoked exactly once when a FeedClose's
// FeedCloseResponse arrives, or the transport disconnects first. A
// FeedClose always eventually completes successfully from the caller's
// point of view: err is nil in both cases, including a disconnect.
type FeedCloseCompletion func(err error)

// pendingAction is what the session keeps per outstanding Action: the
// completion to invoke, plus when the Action frame was sent, so that
// resolving it can observe Metrics.ActionLatency.
type pendingAction struct {
	completion ActionCompletion
	sentAt     time.Time
}

type sessionConfig struct {
	handler SessionHandler
	logger  *logrus.Logger
	metrics *Metrics
}

// SessionOption configures a Session at construction time.
type SessionOption interface {
	apply(*sessionConfig)
}

type handlerOpt struct{ h SessionHandler }

func (o handlerOpt) apply(cfg *sessionConfig) { cfg.handler = o.h }

// WithHandler installs the SessionHandler that receives the session's
// asynchronous events. Without this option events are silently dropped.
func WithHandler(h SessionHandler) SessionOption { return handlerOpt{h} }

type loggerOpt struct{ log *logrus.Logger }

func (o loggerOpt) apply(cfg *sessionConfig) { cfg.logger = o.log }

// WithLogger overrides the logrus.Logger a Session logs diagnostics to.
// Defaults to logrus's standard logger.
func WithLogger(log *logrus.Logger) SessionOption { return loggerOpt{log} }

type metricsOpt struct{ m *Metrics }

func (o metricsOpt) apply(cfg *sessionConfig) { cfg.metrics = o.m }

// WithMetrics attaches Prometheus instrumentation. Defaults to an
// unregistered Metrics (NewMetrics(nil)).
func WithMetrics(m *Metrics) SessionOption { return metricsOpt{m} }

// Session is the top-level Feedme client state machine: it owns all
// per-connection state, routes transport events to handler callbacks, and
// turns application calls into outbound frames. A Session is not safe for
// concurrent use and carries no internal locking; callers (typically a
// transport wrapper) are responsible for ensuring its methods and the
// transport's event delivery never overlap.
type Session struct {
	tr      transport.Transport
	handler SessionHandler
	log     *logrus.Entry
	metrics *Metrics

	state    State
	clientID string

	nextCallbackID  uint64
	actionCallbacks map[string]pendingAction

	registry *feedRegistry
}

// NewSession constructs a Session bound to tr. It installs itself as tr's
// sole transport.Handler; tr must not already have a different session
// attached.
func NewSession(tr transport.Transport, opts ...SessionOption) *Session {
	cfg := sessionConfig{
		handler: NoopHandler{},
		logger:  logrus.StandardLogger(),
		metrics: NewMetrics(nil),
	}
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	s := &Session{
		tr:              tr,
		handler:         cfg.handler,
		log:             cfg.logger.WithField("component", "feedme"),
		metrics:         cfg.metrics,
		state:           Disconnected,
		nextCallbackID:  1,
		actionCallbacks: make(map[string]pendingAction),
		registry:        newFeedRegistry(),
	}
	tr.SetHandler(s)
	return s
}

// State returns the session's public connection state.
func (s *Session) State() State {
	return s.state
}

// ID returns the server-assigned client id established during the
// handshake. It fails unless State is Connected.
func (s *Session) ID() (string, error) {
	if s.state != Connected {
		return "", &InvalidStateError{State: s.state}
	}
	return s.clientID, nil
}

// FeedState returns the public lifecycle state of the named feed. An
// unrecognized feed reports FeedClosed.
func (s *Session) FeedState(name string, args map[string]string) FeedState {
	entry, ok := s.registry.get(feedKey(name, args))
	if !ok {
		return FeedClosed
	}
	return entry.public()
}

// FeedData returns the current data tree for an open feed. It fails unless
// the feed is FeedOpen.
func (s *Session) FeedData(name string, args map[string]string) (any, error) {
	entry, ok := s.registry.get(feedKey(name, args))
	if !ok || entry.state != feedOpen {
		return nil, &InvalidFeedStateError{FeedState: s.FeedState(name, args)}
	}
	return entry.data, nil
}

// Connect instructs the transport to connect. It fails unless State is
// Disconnected; there is no other observable effect until the transport
// starts emitting events.
func (s *Session) Connect() error {
	if s.state != Disconnected {
		return &InvalidStateError{State: s.state}
	}
	return s.tr.Connect()
}

// Disconnect instructs the transport to disconnect, propagating err
// verbatim to the eventual HandleDisconnect. It fails if the session is
// already Disconnected.
func (s *Session) Disconnect(err error) error {
	if s.state == Disconnected {
		return &InvalidStateError{State: s.state}
	}
	return s.tr.Disconnect(err)
}

// Action sends a one-shot action to the server. completion fires exactly
// once: from the matching ActionResponse, or from a subsequent transport
// disconnect.
func (s *Session) Action(name string, args map[string]any, completion ActionCompletion) error {
	if err := validateName(name); err != nil {
		return err
	}
	if s.state != Connected {
		return &InvalidStateError{State: s.state}
	}
	if args == nil {
		args = map[string]any{}
	}

	callbackID := strconv.FormatUint(s.nextCallbackID, 10)
	frame, err := encodeAction(name, args, callbackID)
	if err != nil {
		return &InvalidArgumentError{Argument: "args", Reason: err.Error()}
	}
	if err := s.tr.Send(frame); err != nil {
		return err
	}

	s.nextCallbackID++
	s.actionCallbacks[callbackID] = pendingAction{completion: completion, sentAt: time.Now()}
	s.metrics.ActionsSent.Inc()
	return nil
}

// FeedOpen subscribes to a feed. completion fires exactly once: from the
// matching FeedOpenResponse, or from a subsequent transport disconnect.
func (s *Session) FeedOpen(name string, args map[string]string, completion FeedOpenCompletion) error {
	if err := validateName(name); err != nil {
		return err
	}
	if s.state != Connected {
		return &InvalidStateError{State: s.state}
	}
	if args == nil {
		args = map[string]string{}
	}

	key := feedKey(name, args)
	if entry, ok := s.registry.get(key); ok {
		return &InvalidFeedStateError{FeedState: entry.public()}
	}

	frame, err := encodeFeedOpen(name, args)
	if err != nil {
		return &InvalidArgumentError{Argument: "args", Reason: err.Error()}
	}
	if err := s.tr.Send(frame); err != nil {
		return err
	}

	s.registry.put(key, &feedEntry{
		state:        feedOpening,
		name:         name,
		args:         args,
		openCallback: completion,
	})
	s.metrics.FeedOpens.Inc()
	return nil
}

// FeedClose unsubscribes from a feed that is currently FeedOpen.
// completion fires exactly once: from the matching FeedCloseResponse, or
// from a subsequent transport disconnect.
func (s *Session) FeedClose(name string, args map[string]string, completion FeedCloseCompletion) error {
	if err := validateName(name); err != nil {
		return err
	}
	if s.state != Connected {
		return &InvalidStateError{State: s.state}
	}
	if args == nil {
		args = map[string]string{}
	}

	key := feedKey(name, args)
	entry, ok := s.registry.get(key)
	if !ok || entry.state != feedOpen {
		return &InvalidFeedStateError{FeedState: s.FeedState(name, args)}
	}

	frame, err := encodeFeedClose(name, args)
	if err != nil {
		return &InvalidArgumentError{Argument: "args", Reason: err.Error()}
	}
	if err := s.tr.Send(frame); err != nil {
		return err
	}

	s.registry.put(key, &feedEntry{
		state:         feedClosing,
		name:          name,
		args:          args,
		closeCallback: completion,
	})
	s.metrics.FeedCloses.Inc()
	return nil
}

func validateName(name string) error {
	if name == "" {
		return &InvalidArgumentError{Argument: "name", Reason: "must be non-empty"}
	}
	return nil
}

// --- transport.Handler --------------------------------------------------

func (s *Session) HandleConnecting() {
	s.state = Connecting
	s.log.Debug("transport connecting")
	s.handler.OnConnecting()
}

func (s *Session) HandleConnect() {
	s.log.Debug("transport connected, sending handshake")
	frame, err := encodeHandshake()
	if err != nil {
		s.handler.OnTransportError(err)
		return
	}
	if err := s.tr.Send(frame); err != nil {
		s.handler.OnTransportError(err)
	}
}

func (s *Session) HandleMessage(raw string) {
	b := []byte(raw)
	msg, err := decodeInbound(b)
	if err != nil {
		s.badServerMessage(err)
		return
	}

	switch m := msg.(type) {
	case *handshakeResponseMsg:
		s.handleHandshakeResponse(m, b)
	case *actionResponseMsg:
		s.handleActionResponse(m, b)
	case *feedOpenResponseMsg:
		s.handleFeedOpenResponse(m, b)
	case *feedCloseResponseMsg:
		s.handleFeedCloseResponse(m, b)
	case *actionRevelationMsg:
		s.handleActionRevelation(m, b)
	case *feedTerminationMsg:
		s.handleFeedTermination(m, b)
	case *violationResponseMsg:
		s.metrics.BadClientMessages.Inc()
		s.handler.OnBadClientMessage(m.Diagnostics)
	}
}

func (s *Session) HandleTransportError(err error) {
	s.handler.OnTransportError(err)
}

// HandleDisconnect implements the transport-disconnect handling of §4.1:
// snapshot everything outstanding, wipe session state back to its initial
// values, then replay completions and events against the snapshot.
func (s *Session) HandleDisconnect(transportErr error) {
	callbacks := s.actionCallbacks
	entries := s.registry.snapshot()

	s.state = Disconnected
	s.clientID = ""
	s.nextCallbackID = 1
	s.actionCallbacks = make(map[string]pendingAction)
	s.registry.clear()

	s.metrics.Disconnects.Inc()
	cause := &DisconnectedError{Cause: transportErr}

	for _, pending := range callbacks {
		s.metrics.ActionLatency.Observe(time.Since(pending.sentAt).Seconds())
		pending.completion(nil, cause)
	}
	for _, entry := range entries {
		switch entry.state {
		case feedOpening:
			if entry.openCallback != nil {
				entry.openCallback(nil, cause)
			}
		case feedOpen:
			s.handler.OnUnexpectedFeedClosing(entry.name, entry.args, cause)
			s.handler.OnUnexpectedFeedClosed(entry.name, entry.args, cause)
		case feedClosing, feedTerminated:
			if entry.closeCallback != nil {
				entry.closeCallback(nil)
			}
		}
	}

	s.log.WithError(transportErr).Info("transport disconnected")
	s.handler.OnDisconnect(transportErr)
}

// --- inbound message handling -------------------------------------------

func (s *Session) handleHandshakeResponse(m *handshakeResponseMsg, raw []byte) {
	if s.state != Connecting {
		s.unexpectedMessage(raw, msgTypeHandshakeResponse)
		return
	}
	if !m.Success {
		_ = s.tr.Disconnect(&HandshakeRejectedError{})
		return
	}

	if _, ok := negotiateVersion([]string{specVersion}, m.Version); !ok {
		s.badServerMessage(&InvalidMessageError{Raw: raw, Cause: fmt.Errorf("server negotiated unsupported version %q", m.Version)})
		_ = s.tr.Disconnect(&HandshakeRejectedError{})
		return
	}

	s.clientID = m.ClientID
	s.state = Connected
	s.metrics.Connects.Inc()
	s.log.WithField("client_id", s.clientID).Info("handshake succeeded")
	s.handler.OnConnect()
}

func (s *Session) handleActionResponse(m *actionResponseMsg, raw []byte) {
	pending, ok := s.actionCallbacks[m.CallbackID]
	if !ok {
		s.unexpectedMessage(raw, msgTypeActionResponse)
		return
	}
	delete(s.actionCallbacks, m.CallbackID)
	s.metrics.ActionLatency.Observe(time.Since(pending.sentAt).Seconds())

	if m.Success {
		pending.completion(m.ActionData, nil)
		return
	}
	pending.completion(nil, &RejectedError{ServerErrorCode: m.ErrorCode, ServerErrorData: m.ErrorData})
}

func (s *Session) handleFeedOpenResponse(m *feedOpenResponseMsg, raw []byte) {
	key := feedKey(m.FeedName, m.FeedArgs)
	entry, ok := s.registry.get(key)
	if !ok || entry.state != feedOpening {
		s.unexpectedMessage(raw, msgTypeFeedOpenResponse)
		return
	}
	cb := entry.openCallback

	if !m.Success {
		s.registry.remove(key)
		cb(nil, &RejectedError{ServerErrorCode: m.ErrorCode, ServerErrorData: m.ErrorData})
		return
	}

	var data any
	if err := json.Unmarshal(m.FeedData, &data); err != nil {
		s.registry.remove(key)
		cb(nil, &InvalidMessageError{Raw: raw, Cause: err})
		s.badServerMessage(&InvalidMessageError{Raw: raw, Cause: err})
		return
	}

	s.registry.put(key, &feedEntry{state: feedOpen, name: m.FeedName, args: m.FeedArgs, data: data})
	cb(data, nil)
}

func (s *Session) handleFeedCloseResponse(m *feedCloseResponseMsg, raw []byte) {
	key := feedKey(m.FeedName, m.FeedArgs)
	entry, ok := s.registry.get(key)
	if !ok || (entry.state != feedClosing && entry.state != feedTerminated) {
		s.unexpectedMessage(raw, msgTypeFeedCloseResponse)
		return
	}

	s.registry.remove(key)
	if entry.closeCallback != nil {
		entry.closeCallback(nil)
	}
}

func (s *Session) handleActionRevelation(m *actionRevelationMsg, raw []byte) {
	key := feedKey(m.FeedName, m.FeedArgs)
	entry, ok := s.registry.get(key)
	if !ok {
		s.unexpectedMessage(raw, msgTypeActionRevelation)
		return
	}

	switch entry.state {
	case feedClosing, feedTerminated:
		// Not a protocol violation, but there's no reliable reference
		// data left to apply deltas against.
		return
	case feedOpen:
		// fall through to full handling below
	default:
		s.unexpectedMessage(raw, msgTypeActionRevelation)
		return
	}

	oldData := entry.data
	newData, err := ApplyAll(oldData, m.deltas)
	if err != nil {
		deltaErr := &InvalidDeltaError{Raw: raw, Cause: err}
		s.badServerMessage(deltaErr)
		s.closeFeedForBadRevelation(key, m.FeedName, m.FeedArgs,
			&BadActionRevelationError{Reason: "delta application failed", Cause: deltaErr})
		return
	}

	if m.FeedMd5 != "" {
		match, hashErr := verifyFeedMd5(newData, m.FeedMd5)
		if hashErr != nil {
			s.badServerMessage(hashErr)
			s.closeFeedForBadRevelation(key, m.FeedName, m.FeedArgs,
				&BadActionRevelationError{Reason: "failed to compute feed hash", Cause: hashErr})
			return
		}
		if !match {
			invalidHash := &InvalidHashError{Raw: raw}
			s.badServerMessage(invalidHash)
			s.closeFeedForBadRevelation(key, m.FeedName, m.FeedArgs,
				&BadActionRevelationError{Reason: "hash verification failed", Cause: invalidHash})
			return
		}
	}

	s.registry.put(key, &feedEntry{state: feedOpen, name: m.FeedName, args: m.FeedArgs, data: newData})
	s.metrics.ActionRevelations.Inc()
	s.handler.OnActionRevelation(m.FeedName, m.FeedArgs, m.ActionName, m.ActionData, newData, oldData)
}

// closeFeedForBadRevelation initiates a session-driven FeedClose after a
// delta or hash failure: the feed transitions Open -> Closing immediately,
// unexpected_feed_closing fires right away, and unexpected_feed_closed is
// arranged to fire once the FeedCloseResponse arrives.
func (s *Session) closeFeedForBadRevelation(key, name string, args map[string]string, cause error) {
	s.registry.put(key, &feedEntry{
		state: feedClosing,
		name:  name,
		args:  args,
		closeCallback: func(error) {
			s.handler.OnUnexpectedFeedClosed(name, args, cause)
		},
	})

	frame, err := encodeFeedClose(name, args)
	if err == nil {
		err = s.tr.Send(frame)
	}
	if err != nil {
		s.handler.OnTransportError(err)
	} else {
		s.metrics.FeedCloses.Inc()
	}

	s.handler.OnUnexpectedFeedClosing(name, args, cause)
}

func (s *Session) handleFeedTermination(m *feedTerminationMsg, raw []byte) {
	key := feedKey(m.FeedName, m.FeedArgs)
	entry, ok := s.registry.get(key)
	if !ok {
		s.unexpectedMessage(raw, msgTypeFeedTermination)
		return
	}

	cause := &TerminatedError{ServerErrorCode: m.ErrorCode, ServerErrorData: m.ErrorData}
	switch entry.state {
	case feedOpen:
		s.registry.remove(key)
		s.handler.OnUnexpectedFeedClosing(m.FeedName, m.FeedArgs, cause)
		s.handler.OnUnexpectedFeedClosed(m.FeedName, m.FeedArgs, cause)
	case feedClosing:
		// Silent: the outside world learns only that the close it asked
		// for eventually succeeds, never that a termination beat it there.
		s.registry.put(key, &feedEntry{
			state:         feedTerminated,
			name:          entry.name,
			args:          entry.args,
			closeCallback: entry.closeCallback,
		})
	default:
		s.unexpectedMessage(raw, msgTypeFeedTermination)
	}
}

func (s *Session) unexpectedMessage(raw []byte, msgType string) {
	s.badServerMessage(&UnexpectedMessageError{Raw: raw, MessageType: msgType})
}

func (s *Session) badServerMessage(err error) {
	s.metrics.BadServerMessages.Inc()
	s.log.WithError(err).Warn("bad server message")
	s.handler.OnBadServerMessage(err)
}
