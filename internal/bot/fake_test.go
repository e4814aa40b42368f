// ABOUTME: Test doubles for the bot package, a fake transport and session
// ABOUTME: Records sent commands and lets tests inject protocol events

package bot

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/ximpify/rentabot/internal/config"
	"github.com/ximpify/rentabot/internal/notify"
	"github.com/ximpify/rentabot/internal/protocol"
)

type fakeSession struct {
	mu          sync.Mutex
	identity    string
	handler     protocol.Handler
	commands    []protocol.Command
	connected   bool
	closeReason string
}

// deliver injects an event through the handler this session was dialed
// with, the way the real read loop surfaces them.
func (s *fakeSession) deliver(ev protocol.Event) {
	s.handler.HandleEvent(ev)
}

func (s *fakeSession) Send(cmds ...protocol.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return protocol.ErrSessionClosed
	}
	s.commands = append(s.commands, cmds...)
	return nil
}

func (s *fakeSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSession) Close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.closeReason = reason
}

func (s *fakeSession) sent() []protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Command, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *fakeSession) chatCommands() []string {
	var out []string
	for _, c := range s.sent() {
		if chat, ok := c.(protocol.ChatCommand); ok {
			out = append(out, chat.Command)
		}
	}
	return out
}

func (s *fakeSession) moveCommands() []protocol.MoveCommand {
	var out []protocol.MoveCommand
	for _, c := range s.sent() {
		if mv, ok := c.(protocol.MoveCommand); ok {
			out = append(out, mv)
		}
	}
	return out
}

type fakeTransport struct {
	mu       sync.Mutex
	sessions []*fakeSession
	dialErr  error
	dialGate chan struct{} // when set, Dial parks until the gate closes
}

func (t *fakeTransport) Dial(_, identity string, handler protocol.Handler) (protocol.Session, error) {
	t.mu.Lock()
	gate := t.dialGate
	err := t.dialErr
	t.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	s := &fakeSession{identity: identity, handler: handler, connected: true}
	t.sessions = append(t.sessions, s)
	t.mu.Unlock()
	// The real transport announces the connection from its read loop.
	go handler.HandleEvent(protocol.ConnectedEvent{})
	return s, nil
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *fakeTransport) lastSession() *fakeSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return nil
	}
	return t.sessions[len(t.sessions)-1]
}

type fakeDispatcher struct {
	mu       sync.Mutex
	commands []string
}

func (d *fakeDispatcher) Dispatch(command string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, command)
}

func (d *fakeDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

var errDialRefused = errors.New("dial refused")

// testDeps builds fast-timer deps around the given transport. Auth is
// disabled so connection tests see only the commands they caused.
func testDeps(transport protocol.Transport, dispatcher notify.CommandDispatcher) Deps {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	behavior := config.Default().Behavior
	behavior.AutoReconnect.Delay = 10 * time.Millisecond
	if dispatcher == nil {
		dispatcher = notify.NewLogDispatcher(logger)
	}
	return Deps{
		Transport:  transport,
		Notifier:   notify.NewLogNotifier(logger),
		Dispatcher: dispatcher,
		Behavior:   behavior,
		Auth:       config.AuthConfig{Mode: "disabled"},
		Logger:     logger,
		Rand:       rand.New(rand.NewSource(1)),
	}
}
