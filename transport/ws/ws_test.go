package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.feedme.dev/feedme/transport"
)

type recordingHandler struct {
	connecting int
	connect    chan struct{}
	messages   chan string
	disconnect chan error
	errs       chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		connect:    make(chan struct{}, 1),
		messages:   make(chan string, 8),
		disconnect: make(chan error, 1),
		errs:       make(chan error, 8),
	}
}

func (h *recordingHandler) HandleConnecting()        { h.connecting++ }
func (h *recordingHandler) HandleConnect()           { h.connect <- struct{}{} }
func (h *recordingHandler) HandleMessage(msg string) { h.messages <- msg }
func (h *recordingHandler) HandleDisconnect(err error) {
	select {
	case h.disconnect <- err:
	default:
	}
}
func (h *recordingHandler) HandleTransportError(err error) { h.errs <- err }

// echoServer upgrades every request and echoes back whatever text frame it
// receives, until the client closes the connection.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
}

func wsURL(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTransport_ConnectSendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	tr := New(wsURL(t, srv))
	h := newRecordingHandler()
	tr.SetHandler(h)

	require.NoError(t, tr.Connect())

	select {
	case <-h.connect:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for HandleConnect")
	}
	assert.Equal(t, transport.Connected, tr.State())
	assert.Equal(t, 1, h.connecting)

	require.NoError(t, tr.Send(`{"hello":"world"}`))

	select {
	case msg := <-h.messages:
		assert.Equal(t, `{"hello":"world"}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed message")
	}
}

func TestTransport_ConnectFailure(t *testing.T) {
	tr := New("ws://127.0.0.1:1/does-not-exist")
	h := newRecordingHandler()
	tr.SetHandler(h)

	require.NoError(t, tr.Connect())

	select {
	case err := <-h.disconnect:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for HandleDisconnect")
	}
	assert.Equal(t, transport.Disconnected, tr.State())
}

func TestTransport_SendBeforeConnectFails(t *testing.T) {
	tr := New("ws://unused")
	err := tr.Send("x")
	require.Error(t, err)
}

func TestTransport_DisconnectClosesConnection(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	tr := New(wsURL(t, srv))
	h := newRecordingHandler()
	tr.SetHandler(h)
	require.NoError(t, tr.Connect())

	select {
	case <-h.connect:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for HandleConnect")
	}

	require.NoError(t, tr.Disconnect(nil))

	select {
	case <-h.disconnect:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for HandleDisconnect after local close")
	}
	assert.Equal(t, transport.Disconnected, tr.State())

	err := tr.Send("too late")
	require.Error(t, err)
}
