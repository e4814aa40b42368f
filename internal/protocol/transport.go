// ABOUTME: Transport and Session contracts plus the websocket implementation.
// ABOUTME: JSON frames over a websocket, one read-loop goroutine per session.

package protocol

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSessionClosed is returned by Send after the session has disconnected.
var ErrSessionClosed = errors.New("session closed")

const (
	maxFrameSize     = 1 << 20
	writeWait        = 10 * time.Second
	closeGracePeriod = 500 * time.Millisecond
)

// Session is one live connection to the game server under a single identity.
// Sessions are never reused after a disconnect.
type Session interface {
	// Send emits one or more outbound commands in order.
	Send(cmds ...Command) error
	// Connected reports whether the session is still up.
	Connected() bool
	// Close tears the session down with a reason. Idempotent.
	Close(reason string)
}

// Transport opens sessions against a game server.
type Transport interface {
	// Dial connects to endpoint under the given identity and registers the
	// event handler. An empty endpoint means the transport's default. The
	// handler starts receiving events on a session-owned goroutine.
	Dial(endpoint, identity string, handler Handler) (Session, error)
}

// WebsocketTransport speaks the JSON-framed bot protocol over a websocket.
type WebsocketTransport struct {
	addr   string
	dialer *websocket.Dialer
	logger *slog.Logger
}

// NewWebsocketTransport creates a transport whose default endpoint is
// host:port.
func NewWebsocketTransport(addr string, logger *slog.Logger) *WebsocketTransport {
	return &WebsocketTransport{
		addr:   addr,
		dialer: websocket.DefaultDialer,
		logger: logger.With("component", "transport"),
	}
}

// Dial opens a websocket to the endpoint, announces the identity, and starts
// the read loop. The ConnectedEvent is delivered from the read-loop goroutine
// once the session is established.
func (t *WebsocketTransport) Dial(endpoint, identity string, handler Handler) (Session, error) {
	if endpoint == "" {
		endpoint = t.addr
	}
	u := url.URL{Scheme: "ws", Host: endpoint, Path: "/session"}

	conn, _, err := t.dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	conn.SetReadLimit(maxFrameSize)

	s := &wsSession{
		conn:    conn,
		handler: handler,
		logger:  t.logger.With("identity", identity),
	}

	// Announce who we are before anything else flows.
	if err := s.writeFrame(frame{Type: frameHello, Username: identity}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.connected.Store(true)
	go s.readLoop()

	return s, nil
}

// wsSession is a single websocket connection. Writes are serialized with a
// mutex; reads happen on the readLoop goroutine only.
type wsSession struct {
	conn    *websocket.Conn
	handler Handler
	logger  *slog.Logger

	wmu       sync.Mutex
	connected atomic.Bool
	closeOnce sync.Once

	// reason holds the server-announced disconnect reason, if any arrived
	// before the connection dropped.
	rmu    sync.Mutex
	reason string
}

func (s *wsSession) Send(cmds ...Command) error {
	if !s.connected.Load() {
		return ErrSessionClosed
	}
	for _, cmd := range cmds {
		if err := s.writeFrame(encodeCommand(cmd)); err != nil {
			return fmt.Errorf("sending %T: %w", cmd, err)
		}
	}
	return nil
}

func (s *wsSession) Connected() bool {
	return s.connected.Load()
}

func (s *wsSession) Close(reason string) {
	s.closeOnce.Do(func() {
		s.connected.Store(false)
		s.setReason(reason)

		s.wmu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			time.Now().Add(closeGracePeriod))
		s.wmu.Unlock()

		_ = s.conn.Close()
	})
}

func (s *wsSession) writeFrame(f frame) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(f)
}

// readLoop decodes inbound frames into events until the connection drops.
// It owns event delivery: ConnectedEvent first, DisconnectedEvent last.
func (s *wsSession) readLoop() {
	s.handler.HandleEvent(ConnectedEvent{})

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			s.connected.Store(false)
			reason := s.disconnectReason(err)
			s.handler.HandleEvent(DisconnectedEvent{Reason: reason})
			return
		}

		ev, err := decodeFrame(f)
		if err != nil {
			s.logger.Debug("undecodable frame", "type", f.Type, "error", err)
			s.handler.HandleEvent(PacketErrorEvent{Err: err})
			continue
		}

		// The server announces the reason before closing; remember it so the
		// DisconnectedEvent can carry it.
		if d, ok := ev.(DisconnectingEvent); ok {
			s.setReason(d.Reason)
		}

		s.handler.HandleEvent(ev)
	}
}

func (s *wsSession) setReason(reason string) {
	if reason == "" {
		return
	}
	s.rmu.Lock()
	s.reason = reason
	s.rmu.Unlock()
}

// disconnectReason prefers the server-announced reason over the raw close
// error text.
func (s *wsSession) disconnectReason(err error) string {
	s.rmu.Lock()
	reason := s.reason
	s.rmu.Unlock()
	if reason != "" {
		return reason
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Text != "" {
		return closeErr.Text
	}
	return err.Error()
}
