// ABOUTME: Tests for session event handling, reconnect policy, and auth handshake
// ABOUTME: Drives a bot through protocol events using the fake transport

package bot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ximpify/rentabot/internal/protocol"
)

func TestConnectEstablishesSession(t *testing.T) {
	b, transport := newTestBot(t, 1)

	require.NoError(t, b.Connect())
	waitConnected(t, b)
	assert.Equal(t, 1, transport.dialCount())
	assert.Equal(t, "Bot_Miner", transport.lastSession().identity)

	// A second Connect on a live session is a no-op.
	require.NoError(t, b.Connect())
	assert.Equal(t, 1, transport.dialCount())
}

func TestPositionEventConfirmsTeleport(t *testing.T) {
	b, transport := newTestBot(t, 1)
	require.NoError(t, b.Connect())
	waitConnected(t, b)

	b.HandleEvent(protocol.PositionEvent{X: 12, Y: 64, Z: -3, Yaw: 90, TeleportID: 7})

	pos, ok := b.Position()
	require.True(t, ok)
	assert.Equal(t, float64(12), pos.X)

	var confirms []protocol.TeleportConfirmCommand
	for _, c := range transport.lastSession().sent() {
		if tc, ok := c.(protocol.TeleportConfirmCommand); ok {
			confirms = append(confirms, tc)
		}
	}
	require.Len(t, confirms, 1)
	assert.EqualValues(t, 7, confirms[0].TeleportID)
}

func TestRespawnEventResetsPosition(t *testing.T) {
	b, _ := newTestBot(t, 1)
	require.NoError(t, b.Connect())
	waitConnected(t, b)

	b.HandleEvent(protocol.PositionEvent{X: 1, Y: 64, Z: 1})
	_, ok := b.Position()
	require.True(t, ok)

	b.HandleEvent(protocol.RespawnEvent{})
	_, ok = b.Position()
	assert.False(t, ok, "position must be unconfirmed until the server resends it")
}

func TestDeathTriggersOneRespawn(t *testing.T) {
	b, transport := newTestBot(t, 1)
	require.NoError(t, b.Connect())
	waitConnected(t, b)
	sess := transport.lastSession()

	b.HandleEvent(protocol.HealthEvent{Health: 20, Food: 20})
	b.HandleEvent(protocol.HealthEvent{Health: 0, Food: 20})
	// Repeated zero-health reports while dead must not stack respawns.
	b.HandleEvent(protocol.HealthEvent{Health: 0, Food: 20})

	require.Eventually(t, func() bool {
		for _, c := range sess.sent() {
			if _, ok := c.(protocol.RespawnCommand); ok {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	respawns := 0
	for _, c := range sess.sent() {
		if _, ok := c.(protocol.RespawnCommand); ok {
			respawns++
		}
	}
	assert.Equal(t, 1, respawns)
}

func TestDeathReturnsToSpawnAnchor(t *testing.T) {
	transport := &fakeTransport{}
	dispatcher := &fakeDispatcher{}
	deps := testDeps(transport, dispatcher)
	b := New(deps, "miner", "Bot_Miner", uuid.New(), "Steve", 1)

	require.NoError(t, b.Connect())
	waitConnected(t, b)
	b.HandleEvent(protocol.PositionEvent{X: 100, Y: 70, Z: 50, World: "world"})
	b.mu.Lock()
	b.saveSpawnLocked()
	b.mu.Unlock()

	b.HandleEvent(protocol.HealthEvent{Health: 20, Food: 20})
	b.HandleEvent(protocol.HealthEvent{Health: 0, Food: 20})

	require.Eventually(t, func() bool {
		return len(dispatcher.dispatched()) > 0
	}, 6*time.Second, 20*time.Millisecond)
	assert.Equal(t, "tp Bot_Miner 100.00 70.00 50.00", dispatcher.dispatched()[0])
}

func TestUnexpectedDisconnectReconnects(t *testing.T) {
	b, transport := newTestBot(t, 1)
	require.NoError(t, b.Connect())
	waitConnected(t, b)

	b.HandleEvent(protocol.DisconnectedEvent{Reason: "Connection reset"})
	assert.False(t, b.Connected())

	require.Eventually(t, func() bool {
		return transport.dialCount() == 2
	}, 2*time.Second, 5*time.Millisecond)
	waitConnected(t, b)
}

func TestStaleSessionEventsIgnored(t *testing.T) {
	b, transport := newTestBot(t, 1)
	require.NoError(t, b.Connect())
	waitConnected(t, b)
	old := transport.lastSession()

	// Manual reconnect cycle, as a rename performs it.
	b.Disconnect("Renaming bot")
	b.ResetForReconnect()
	require.NoError(t, b.Connect())
	waitConnected(t, b)
	require.Equal(t, 2, transport.dialCount())

	// The first session's read loop drains its disconnect late. It must not
	// mark the bot down or trigger another dial.
	old.deliver(protocol.DisconnectedEvent{Reason: "Connection closed"})

	time.Sleep(100 * time.Millisecond)
	assert.True(t, b.Connected())
	assert.Equal(t, 2, transport.dialCount())
}

func TestManualDisconnectSuppressesReconnect(t *testing.T) {
	b, transport := newTestBot(t, 1)
	require.NoError(t, b.Connect())
	waitConnected(t, b)

	b.Disconnect("Rental paused")
	b.HandleEvent(protocol.DisconnectedEvent{Reason: "Connection closed"})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, transport.dialCount())
	assert.False(t, b.ShouldReconnect())
}

func TestPermanentFailureDisablesReconnect(t *testing.T) {
	b, transport := newTestBot(t, 1)
	require.NoError(t, b.Connect())
	waitConnected(t, b)

	b.HandleEvent(protocol.DisconnectedEvent{Reason: "That name is already taken"})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, transport.dialCount())
	assert.False(t, b.ShouldReconnect())

	// An operator rename re-arms it.
	b.ResetForReconnect()
	assert.True(t, b.ShouldReconnect())
}

func TestReconnectAttemptCap(t *testing.T) {
	transport := &fakeTransport{}
	deps := testDeps(transport, nil)
	deps.Behavior.AutoReconnect.MaxAttempts = 2
	b := New(deps, "miner", "Bot_Miner", uuid.New(), "Steve", 1)

	require.NoError(t, b.Connect())
	waitConnected(t, b)

	transport.mu.Lock()
	transport.dialErr = errDialRefused
	transport.mu.Unlock()

	b.HandleEvent(protocol.DisconnectedEvent{Reason: "Connection reset"})

	require.Eventually(t, func() bool {
		return !b.ShouldReconnect()
	}, 2*time.Second, 10*time.Millisecond)

	b.mu.Lock()
	attempts := b.reconnectAttempts
	b.mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestExpiredLeaseSuppressesReconnect(t *testing.T) {
	b, transport := newTestBot(t, 1)
	require.NoError(t, b.Connect())
	waitConnected(t, b)

	b.mu.Lock()
	b.expiresAt = time.Now().Add(-time.Minute)
	b.mu.Unlock()

	b.HandleEvent(protocol.DisconnectedEvent{Reason: "Connection reset"})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, transport.dialCount())
}

func TestAuthHandshakeAutoRegister(t *testing.T) {
	transport := &fakeTransport{}
	deps := testDeps(transport, nil)
	deps.Auth.Mode = "auto-register"
	deps.Auth.Password = "hunter2"
	deps.Auth.LoginDelay = 10 * time.Millisecond
	b := New(deps, "miner", "Bot_Miner", uuid.New(), "Steve", 1)

	require.NoError(t, b.Connect())
	waitConnected(t, b)

	require.Eventually(t, func() bool {
		cmds := transport.lastSession().chatCommands()
		return len(cmds) >= 1 && cmds[0] == "login hunter2"
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, c := range transport.lastSession().chatCommands() {
			if c == "register hunter2 hunter2" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAuthHandshakePreRegistered(t *testing.T) {
	transport := &fakeTransport{}
	deps := testDeps(transport, nil)
	deps.Auth.Mode = "pre-registered"
	deps.Auth.Password = "hunter2"
	deps.Auth.LoginDelay = 10 * time.Millisecond
	b := New(deps, "miner", "Bot_Miner", uuid.New(), "Steve", 1)

	require.NoError(t, b.Connect())
	waitConnected(t, b)

	require.Eventually(t, func() bool {
		cmds := transport.lastSession().chatCommands()
		return len(cmds) == 1 && cmds[0] == "login hunter2"
	}, 2*time.Second, 5*time.Millisecond)

	// No register follows in pre-registered mode.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, transport.lastSession().chatCommands(), 1)
}
