package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	tt := []struct {
		state State
		want  string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{State(99), "unknown"},
	}
	for _, tc := range tt {
		assert.Equal(t, tc.want, tc.state.String())
	}
}

type recordingHandler struct {
	connecting int
	connect    int
	messages   []string
	disconnect []error
	errs       []error
}

func (h *recordingHandler) HandleConnecting()        { h.connecting++ }
func (h *recordingHandler) HandleConnect()           { h.connect++ }
func (h *recordingHandler) HandleMessage(msg string) { h.messages = append(h.messages, msg) }
func (h *recordingHandler) HandleDisconnect(err error) {
	h.disconnect = append(h.disconnect, err)
}
func (h *recordingHandler) HandleTransportError(err error) { h.errs = append(h.errs, err) }

func TestTestTransport_ConnectSuccess(t *testing.T) {
	tr := NewTestTransport(nil)
	h := &recordingHandler{}
	tr.SetHandler(h)

	require.NoError(t, tr.Connect())
	assert.Equal(t, Connected, tr.State())
	assert.Equal(t, 1, h.connecting)
	assert.Equal(t, 1, h.connect)
	assert.Empty(t, h.disconnect)
}

func TestTestTransport_ConnectFailure(t *testing.T) {
	connectErr := errors.New("refused")
	tr := NewTestTransport(connectErr)
	h := &recordingHandler{}
	tr.SetHandler(h)

	require.NoError(t, tr.Connect())
	assert.Equal(t, Disconnected, tr.State())
	assert.Equal(t, 0, h.connect)
	require.Len(t, h.disconnect, 1)
	assert.Equal(t, connectErr, h.disconnect[0])
}

func TestTestTransport_SendRecordsOrder(t *testing.T) {
	tr := NewTestTransport(nil)
	require.NoError(t, tr.Send("a"))
	require.NoError(t, tr.Send("b"))
	assert.Equal(t, []string{"a", "b"}, tr.Sent())
}

func TestTestTransport_PushMessageAndDisconnect(t *testing.T) {
	tr := NewTestTransport(nil)
	h := &recordingHandler{}
	tr.SetHandler(h)
	require.NoError(t, tr.Connect())

	tr.PushMessage("hello")
	assert.Equal(t, []string{"hello"}, h.messages)

	cause := errors.New("dropped")
	tr.PushDisconnect(cause)
	assert.Equal(t, Disconnected, tr.State())
	require.Len(t, h.disconnect, 1)
	assert.Equal(t, cause, h.disconnect[0])
}

func TestTestTransport_PushError(t *testing.T) {
	tr := NewTestTransport(nil)
	h := &recordingHandler{}
	tr.SetHandler(h)

	boom := errors.New("boom")
	tr.PushError(boom)
	require.Len(t, h.errs, 1)
	assert.Equal(t, boom, h.errs[0])
}

func TestTestTransport_Disconnect(t *testing.T) {
	tr := NewTestTransport(nil)
	h := &recordingHandler{}
	tr.SetHandler(h)
	require.NoError(t, tr.Connect())

	require.NoError(t, tr.Disconnect(nil))
	assert.Equal(t, Disconnected, tr.State())
	require.Len(t, h.disconnect, 1)
	assert.Nil(t, h.disconnect[0])
}
