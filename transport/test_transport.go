package transport

// TestTransport is an in-memory Transport double for session tests. Unlike
// a real transport it delivers nothing on its own: the test drives it by
// calling PushMessage/PushDisconnect/PushError directly, and inspects what
// the session sent via Sent().
type TestTransport struct {
	state State
	h     Handler

	// sent captures every message the session asked to Send, in order.
	sent []string

	connectErr error
}

// NewTestTransport returns a disconnected TestTransport. If connectErr is
// non-nil, Connect reports it immediately instead of succeeding.
func NewTestTransport(connectErr error) *TestTransport {
	return &TestTransport{connectErr: connectErr}
}

func (t *TestTransport) State() State { return t.state }

func (t *TestTransport) SetHandler(h Handler) { t.h = h }

func (t *TestTransport) Connect() error {
	t.state = Connecting
	if t.h != nil {
		t.h.HandleConnecting()
	}
	if t.connectErr != nil {
		t.state = Disconnected
		if t.h != nil {
			t.h.HandleDisconnect(t.connectErr)
		}
		return nil
	}
	t.state = Connected
	if t.h != nil {
		t.h.HandleConnect()
	}
	return nil
}

func (t *TestTransport) Send(msg string) error {
	t.sent = append(t.sent, msg)
	return nil
}

func (t *TestTransport) Disconnect(err error) error {
	t.state = Disconnected
	if t.h != nil {
		t.h.HandleDisconnect(err)
	}
	return nil
}

// Sent returns every message handed to Send so far, in order.
func (t *TestTransport) Sent() []string {
	return t.sent
}

// PushMessage delivers msg to the registered handler as if the server had
// sent it.
func (t *TestTransport) PushMessage(msg string) {
	if t.h != nil {
		t.h.HandleMessage(msg)
	}
}

// PushDisconnect simulates the remote end or the network dropping the
// connection out from under the session.
func (t *TestTransport) PushDisconnect(err error) {
	t.state = Disconnected
	if t.h != nil {
		t.h.HandleDisconnect(err)
	}
}

// PushError simulates a non-fatal transport error.
func (t *TestTransport) PushError(err error) {
	if t.h != nil {
		t.h.HandleTransportError(err)
	}
}
