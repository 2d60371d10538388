// Package ws provides a production feedme Transport over a WebSocket
// connection.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"go.feedme.dev/feedme/transport"
)

// Transport is a transport.Transport backed by a single gorilla/websocket
// connection. Feedme frames are carried one-per-text-message; there is no
// framing concern beyond what the WebSocket protocol already provides.
type Transport struct {
	url    string
	dialer *websocket.Dialer
	log    *logrus.Entry

	connMu sync.Mutex
	conn   *websocket.Conn
	state  transport.State

	h transport.Handler
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithDialer overrides the websocket.Dialer used to connect. Defaults to
// websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

// WithLogger overrides the logrus.Logger used for connection diagnostics.
func WithLogger(log *logrus.Logger) Option {
	return func(t *Transport) { t.log = log.WithField("component", "feedme-ws") }
}

// New returns a Transport that will dial url on Connect.
func New(url string, opts ...Option) *Transport {
	t := &Transport{
		url:    url,
		dialer: websocket.DefaultDialer,
		log:    logrus.StandardLogger().WithField("component", "feedme-ws"),
		state:  transport.Disconnected,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) State() transport.State {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	return t.state
}

func (t *Transport) SetHandler(h transport.Handler) {
	t.h = h
}

// Connect dials the server in a background goroutine; completion is
// reported through HandleConnect/HandleDisconnect on the installed
// Handler.
func (t *Transport) Connect() error {
	t.connMu.Lock()
	t.state = transport.Connecting
	t.connMu.Unlock()
	if t.h != nil {
		t.h.HandleConnecting()
	}

	go t.dial()
	return nil
}

func (t *Transport) dial() {
	conn, _, err := t.dialer.DialContext(context.Background(), t.url, nil)
	if err != nil {
		t.connMu.Lock()
		t.state = transport.Disconnected
		t.connMu.Unlock()
		if t.h != nil {
			t.h.HandleDisconnect(fmt.Errorf("feedme/ws: dial: %w", err))
		}
		return
	}

	t.connMu.Lock()
	t.conn = conn
	t.state = transport.Connected
	t.connMu.Unlock()

	if t.h != nil {
		t.h.HandleConnect()
	}
	t.readLoop(conn)
}

// readLoop dispatches one HandleMessage per inbound text frame until the
// connection closes or errors, at which point it reports HandleDisconnect
// exactly once and returns.
func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.connMu.Lock()
			t.state = transport.Disconnected
			t.conn = nil
			t.connMu.Unlock()

			var reportErr error
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reportErr = fmt.Errorf("feedme/ws: read: %w", err)
			}
			if t.h != nil {
				t.h.HandleDisconnect(reportErr)
			}
			return
		}

		if msgType != websocket.TextMessage {
			if t.h != nil {
				t.h.HandleTransportError(fmt.Errorf("feedme/ws: unexpected frame type %d", msgType))
			}
			continue
		}
		if t.h != nil {
			t.h.HandleMessage(string(data))
		}
	}
}

// Send writes a single text frame. The session never calls Send
// concurrently with itself, but WriteMessage still needs the same
// connection the read loop is observing, hence the mutex.
func (t *Transport) Send(msg string) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()

	if conn == nil {
		return fmt.Errorf("feedme/ws: send on a disconnected transport")
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("feedme/ws: write: %w", err)
	}
	return nil
}

// Disconnect sends a normal-closure close frame and closes the underlying
// connection. err is neither sent to the peer nor passed to the Handler:
// the read loop reports HandleDisconnect with the read error of the closed
// connection, or with nil if the peer's normal-closure reply was read
// first. With no open connection it does nothing and reports nothing.
func (t *Transport) Disconnect(err error) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()

	if conn == nil {
		return nil
	}

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
	return conn.Close()
}
