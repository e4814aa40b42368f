// ABOUTME: Test doubles for the rental package
// ABOUTME: Fake transport plus a notifier that records deliveries

package rental

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ximpify/rentabot/internal/bot"
	"github.com/ximpify/rentabot/internal/config"
	"github.com/ximpify/rentabot/internal/notify"
	"github.com/ximpify/rentabot/internal/protocol"
	"github.com/ximpify/rentabot/internal/store"
)

type fakeSession struct {
	mu        sync.Mutex
	connected bool
}

func (s *fakeSession) Send(cmds ...protocol.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return protocol.ErrSessionClosed
	}
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
}

type fakeTransport struct {
	mu      sync.Mutex
	dials   []string
	dialErr error
}

func (t *fakeTransport) Dial(_, identity string, handler protocol.Handler) (protocol.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials = append(t.dials, identity)
	if t.dialErr != nil {
		return nil, t.dialErr
	}
	go handler.HandleEvent(protocol.ConnectedEvent{})
	return &fakeSession{connected: true}, nil
}

func (t *fakeTransport) setDialErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dialErr = err
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dials)
}

var errServerDown = errors.New("server down")

type notice struct {
	owner uuid.UUID
	key   string
	kv    []string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notify(ownerID uuid.UUID, key string, kv ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{owner: ownerID, key: key, kv: kv})
}

func (n *recordingNotifier) byKey(key string) []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notice
	for _, msg := range n.notices {
		if msg.key == key {
			out = append(out, msg)
		}
	}
	return out
}

type harness struct {
	cfg       *config.Config
	service   *Service
	registry  *bot.Registry
	store     *store.MemoryStore
	transport *fakeTransport
	notifier  *recordingNotifier
}

func newHarness() *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.Limits.CreationCooldown = 0
	cfg.Behavior.AutoReconnect.Delay = 10 * time.Millisecond

	transport := &fakeTransport{}
	notifier := &recordingNotifier{}
	st := store.NewMemoryStore()

	registry := bot.NewRegistry(bot.Deps{
		Transport:  transport,
		Notifier:   notifier,
		Dispatcher: notify.NewLogDispatcher(logger),
		Behavior:   cfg.Behavior,
		Auth:       config.AuthConfig{Mode: "disabled"},
		Logger:     logger,
	}, cfg.Naming)

	return &harness{
		cfg:       cfg,
		service:   NewService(cfg, registry, st, notifier, logger),
		registry:  registry,
		store:     st,
		transport: transport,
		notifier:  notifier,
	}
}
