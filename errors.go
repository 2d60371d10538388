package feedme

import (
	"encoding/json"
	"fmt"
)

// InvalidArgumentError is returned synchronously by public Session methods
// when an argument fails validation before anything is sent to the server.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("feedme: invalid argument %q: %s", e.Argument, e.Reason)
}

// InvalidStateError is returned when a method is called while the session
// is in a state that does not permit it.
type InvalidStateError struct {
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("feedme: invalid session state: %s", e.State)
}

// InvalidFeedStateError is returned when FeedOpen/FeedClose/FeedData is
// called against a feed that isn't in the required state.
type InvalidFeedStateError struct {
	FeedState FeedState
}

func (e *InvalidFeedStateError) Error() string {
	return fmt.Sprintf("feedme: invalid feed state: %s", e.FeedState)
}

// DisconnectedError resolves pending completions when the transport drops
// out from under them.
type DisconnectedError struct {
	// Cause is the error the transport reported for the disconnect, if any.
	Cause error
}

func (e *DisconnectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("feedme: disconnected: %s", e.Cause)
	}
	return "feedme: disconnected"
}

func (e *DisconnectedError) Unwrap() error { return e.Cause }

// HandshakeRejectedError is the error the session disconnects the transport
// with after the server answers HandshakeResponse with Success:false.
type HandshakeRejectedError struct{}

func (e *HandshakeRejectedError) Error() string {
	return "feedme: server rejected handshake"
}

// RejectedError wraps a server-supplied error code/data for a failed
// Action or FeedOpen.
type RejectedError struct {
	ServerErrorCode string
	ServerErrorData json.RawMessage
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("feedme: rejected: %s", e.ServerErrorCode)
}

// TerminatedError is delivered when the server ends an open feed with a
// FeedTermination message instead of a close handshake.
type TerminatedError struct {
	ServerErrorCode string
	ServerErrorData json.RawMessage
}

func (e *TerminatedError) Error() string {
	return fmt.Sprintf("feedme: feed terminated: %s", e.ServerErrorCode)
}

// BadActionRevelationError is raised when a delta fails to apply or the
// resulting feed data fails MD5 verification.
type BadActionRevelationError struct {
	Reason string
	Cause  error
}

func (e *BadActionRevelationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("feedme: bad action revelation: %s: %s", e.Reason, e.Cause)
	}
	return fmt.Sprintf("feedme: bad action revelation: %s", e.Reason)
}

func (e *BadActionRevelationError) Unwrap() error { return e.Cause }

// InvalidMessageError is raised when a server frame fails to parse as JSON
// or fails schema validation before any MessageType-specific dispatch.
type InvalidMessageError struct {
	Raw   []byte
	Cause error
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("feedme: invalid message: %s", e.Cause)
}

func (e *InvalidMessageError) Unwrap() error { return e.Cause }

// UnexpectedMessageError is raised when a structurally-valid frame arrives
// at a point in the protocol sequence where it isn't legal.
type UnexpectedMessageError struct {
	Raw         []byte
	MessageType string
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("feedme: unexpected message: %s", e.MessageType)
}

// InvalidDeltaError is raised when a delta is schema-valid but fails to
// apply against the current feed data (bad path, wrong structural type,
// out-of-range index, ...).
type InvalidDeltaError struct {
	Raw   []byte
	Cause error
}

func (e *InvalidDeltaError) Error() string {
	return fmt.Sprintf("feedme: invalid delta: %s", e.Cause)
}

func (e *InvalidDeltaError) Unwrap() error { return e.Cause }

// InvalidHashError is raised when the MD5 fingerprint the server supplied
// doesn't match the client's canonical hash of the post-delta feed data.
type InvalidHashError struct {
	Raw []byte
}

func (e *InvalidHashError) Error() string {
	return "feedme: feed data hash verification failed"
}
