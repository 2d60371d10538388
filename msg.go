package feedme

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Message types exchanged over the wire, per the protocol's MessageType
// discriminator.
const (
	msgTypeHandshake         = "Handshake"
	msgTypeHandshakeResponse = "HandshakeResponse"
	msgTypeAction            = "Action"
	msgTypeActionResponse    = "ActionResponse"
	msgTypeFeedOpen          = "FeedOpen"
	msgTypeFeedOpenResponse  = "FeedOpenResponse"
	msgTypeFeedClose         = "FeedClose"
	msgTypeFeedCloseResponse = "FeedCloseResponse"
	msgTypeActionRevelation  = "ActionRevelation"
	msgTypeFeedTermination   = "FeedTermination"
	msgTypeViolationResponse = "ViolationResponse"
)

// specVersion is the only Feedme spec version this client speaks.
const specVersion = "0.1"

// --- Outbound frames ---------------------------------------------------

type handshakeMsg struct {
	MessageType string   `json:"MessageType"`
	Versions    []string `json:"Versions"`
}

func encodeHandshake() (string, error) {
	return encodeFrame(&handshakeMsg{
		MessageType: msgTypeHandshake,
		Versions:    []string{specVersion},
	})
}

type actionMsg struct {
	MessageType string         `json:"MessageType"`
	ActionName  string         `json:"ActionName"`
	ActionArgs  map[string]any `json:"ActionArgs"`
	CallbackID  string         `json:"CallbackId"`
}

func encodeAction(name string, args map[string]any, callbackID string) (string, error) {
	return encodeFrame(&actionMsg{
		MessageType: msgTypeAction,
		ActionName:  name,
		ActionArgs:  args,
		CallbackID:  callbackID,
	})
}

type feedOpenMsg struct {
	MessageType string            `json:"MessageType"`
	FeedName    string            `json:"FeedName"`
	FeedArgs    map[string]string `json:"FeedArgs"`
}

func encodeFeedOpen(name string, args map[string]string) (string, error) {
	return encodeFrame(&feedOpenMsg{
		MessageType: msgTypeFeedOpen,
		FeedName:    name,
		FeedArgs:    args,
	})
}

type feedCloseMsg struct {
	MessageType string            `json:"MessageType"`
	FeedName    string            `json:"FeedName"`
	FeedArgs    map[string]string `json:"FeedArgs"`
}

func encodeFeedClose(name string, args map[string]string) (string, error) {
	return encodeFrame(&feedCloseMsg{
		MessageType: msgTypeFeedClose,
		FeedName:    name,
		FeedArgs:    args,
	})
}

func encodeFrame(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("feedme: failed to encode outbound frame: %w", err)
	}
	return string(b), nil
}

// --- Inbound frames ------------------------------------------------------

type handshakeResponseMsg struct {
	MessageType string `json:"MessageType"`
	Success     bool   `json:"Success"`
	Version     string `json:"Version,omitempty"`
	ClientID    string `json:"ClientId,omitempty"`
}

func (m *handshakeResponseMsg) validate() error {
	if m.Success {
		if m.Version == "" {
			return fmt.Errorf("HandshakeResponse: Version required when Success is true")
		}
		if m.ClientID == "" {
			return fmt.Errorf("HandshakeResponse: ClientId required when Success is true")
		}
	}
	return nil
}

type actionResponseMsg struct {
	MessageType string          `json:"MessageType"`
	CallbackID  string          `json:"CallbackId"`
	Success     bool            `json:"Success"`
	ActionData  json.RawMessage `json:"ActionData,omitempty"`
	ErrorCode   string          `json:"ErrorCode,omitempty"`
	ErrorData   json.RawMessage `json:"ErrorData,omitempty"`
}

func (m *actionResponseMsg) validate() error {
	if m.CallbackID == "" {
		return fmt.Errorf("ActionResponse: CallbackId must be non-empty")
	}
	if m.Success {
		if len(m.ActionData) == 0 {
			return fmt.Errorf("ActionResponse: ActionData required when Success is true")
		}
	} else if m.ErrorCode == "" {
		return fmt.Errorf("ActionResponse: ErrorCode required when Success is false")
	}
	return nil
}

type feedOpenResponseMsg struct {
	MessageType string            `json:"MessageType"`
	FeedName    string            `json:"FeedName"`
	FeedArgs    map[string]string `json:"FeedArgs"`
	Success     bool              `json:"Success"`
	FeedData    json.RawMessage   `json:"FeedData,omitempty"`
	ErrorCode   string            `json:"ErrorCode,omitempty"`
	ErrorData   json.RawMessage   `json:"ErrorData,omitempty"`
}

func (m *feedOpenResponseMsg) validate() error {
	if m.FeedName == "" {
		return fmt.Errorf("FeedOpenResponse: FeedName must be non-empty")
	}
	if m.Success {
		if len(m.FeedData) == 0 {
			return fmt.Errorf("FeedOpenResponse: FeedData required when Success is true")
		}
	} else if m.ErrorCode == "" {
		return fmt.Errorf("FeedOpenResponse: ErrorCode required when Success is false")
	}
	return nil
}

type feedCloseResponseMsg struct {
	MessageType string            `json:"MessageType"`
	FeedName    string            `json:"FeedName"`
	FeedArgs    map[string]string `json:"FeedArgs"`
}

func (m *feedCloseResponseMsg) validate() error {
	if m.FeedName == "" {
		return fmt.Errorf("FeedCloseResponse: FeedName must be non-empty")
	}
	return nil
}

type actionRevelationMsg struct {
	MessageType string            `json:"MessageType"`
	ActionName  string            `json:"ActionName"`
	ActionData  json.RawMessage   `json:"ActionData"`
	FeedName    string            `json:"FeedName"`
	FeedArgs    map[string]string `json:"FeedArgs"`
	FeedDeltas  []json.RawMessage `json:"FeedDeltas"`
	FeedMd5     string            `json:"FeedMd5,omitempty"`

	deltas []Delta // populated by validate()
}

func (m *actionRevelationMsg) validate() error {
	if m.ActionName == "" {
		return fmt.Errorf("ActionRevelation: ActionName must be non-empty")
	}
	if m.FeedName == "" {
		return fmt.Errorf("ActionRevelation: FeedName must be non-empty")
	}
	if len(m.ActionData) == 0 {
		return fmt.Errorf("ActionRevelation: ActionData is required")
	}
	if m.FeedMd5 != "" && len(m.FeedMd5) != 24 {
		return fmt.Errorf("ActionRevelation: FeedMd5 must be exactly 24 characters")
	}

	deltas := make([]Delta, len(m.FeedDeltas))
	for i, raw := range m.FeedDeltas {
		d, err := parseDelta(raw)
		if err != nil {
			return fmt.Errorf("ActionRevelation: FeedDeltas[%d]: %w", i, err)
		}
		deltas[i] = d
	}
	m.deltas = deltas
	return nil
}

type feedTerminationMsg struct {
	MessageType string            `json:"MessageType"`
	FeedName    string            `json:"FeedName"`
	FeedArgs    map[string]string `json:"FeedArgs"`
	ErrorCode   string            `json:"ErrorCode"`
	ErrorData   json.RawMessage   `json:"ErrorData,omitempty"`
}

func (m *feedTerminationMsg) validate() error {
	if m.FeedName == "" {
		return fmt.Errorf("FeedTermination: FeedName must be non-empty")
	}
	if m.ErrorCode == "" {
		return fmt.Errorf("FeedTermination: ErrorCode must be non-empty")
	}
	return nil
}

type violationResponseMsg struct {
	MessageType string          `json:"MessageType"`
	Diagnostics json.RawMessage `json:"Diagnostics"`
}

func (m *violationResponseMsg) validate() error {
	if len(m.Diagnostics) == 0 {
		return fmt.Errorf("ViolationResponse: Diagnostics is required")
	}
	return nil
}

type validatable interface {
	validate() error
}

// decodeInbound parses and schema-validates a single inbound frame,
// dispatching by MessageType. It returns one of the *Msg types above, or an
// *InvalidMessageError describing why the frame was rejected.
func decodeInbound(raw []byte) (any, error) {
	var head struct {
		MessageType string `json:"MessageType"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, &InvalidMessageError{Raw: raw, Cause: err}
	}

	var msg validatable
	switch head.MessageType {
	case msgTypeHandshakeResponse:
		msg = &handshakeResponseMsg{}
	case msgTypeActionResponse:
		msg = &actionResponseMsg{}
	case msgTypeFeedOpenResponse:
		msg = &feedOpenResponseMsg{}
	case msgTypeFeedCloseResponse:
		msg = &feedCloseResponseMsg{}
	case msgTypeActionRevelation:
		msg = &actionRevelationMsg{}
	case msgTypeFeedTermination:
		msg = &feedTerminationMsg{}
	case msgTypeViolationResponse:
		msg = &violationResponseMsg{}
	default:
		return nil, &InvalidMessageError{Raw: raw, Cause: fmt.Errorf("unknown MessageType %q", head.MessageType)}
	}

	if err := strictDecode(raw, msg); err != nil {
		return nil, &InvalidMessageError{Raw: raw, Cause: err}
	}
	if err := msg.validate(); err != nil {
		return nil, &InvalidMessageError{Raw: raw, Cause: err}
	}
	return msg, nil
}

// strictDecode decodes raw into v, rejecting any JSON object property that
// doesn't correspond to a field of v (the wire schema's "additional
// properties forbidden" rule).
func strictDecode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseDelta decodes and schema-validates a single FeedDeltas element.
func parseDelta(raw json.RawMessage) (Delta, error) {
	var head struct {
		Operation string            `json:"Operation"`
		Path      []json.RawMessage `json:"Path"`
		Value     json.RawMessage   `json:"Value"`
	}
	if err := strictDecode(raw, &head); err != nil {
		return Delta{}, err
	}

	op := DeltaOperation(head.Operation)
	if !op.valid() {
		return Delta{}, fmt.Errorf("unknown delta Operation %q", head.Operation)
	}

	path, err := parsePath(head.Path)
	if err != nil {
		return Delta{}, err
	}

	wantsValue := op.takesValue()
	hasValue := len(head.Value) > 0
	if wantsValue != hasValue {
		if wantsValue {
			return Delta{}, fmt.Errorf("operation %s requires a Value", op)
		}
		return Delta{}, fmt.Errorf("operation %s must not carry a Value", op)
	}

	var value any
	if hasValue {
		if err := json.Unmarshal(head.Value, &value); err != nil {
			return Delta{}, fmt.Errorf("invalid Value: %w", err)
		}
	}

	return Delta{Operation: op, Path: path, Value: value}, nil
}

// parsePath validates and converts a raw JSON Path array: the first element
// (if any) must be a non-empty string, and subsequent elements must be
// either non-empty strings or non-negative integers.
func parsePath(raw []json.RawMessage) (Path, error) {
	path := make(Path, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			if s == "" {
				return nil, fmt.Errorf("path[%d]: string element must be non-empty", i)
			}
			path[i] = s
			continue
		}

		if i == 0 {
			return nil, fmt.Errorf("path[0] must be a non-empty string")
		}

		var f float64
		if err := json.Unmarshal(r, &f); err != nil {
			return nil, fmt.Errorf("path[%d] must be a string or a non-negative integer", i)
		}
		if f < 0 || math.Trunc(f) != f {
			return nil, fmt.Errorf("path[%d] must be a non-negative integer", i)
		}
		path[i] = int(f)
	}
	return path, nil
}
