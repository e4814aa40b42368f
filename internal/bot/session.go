// ABOUTME: Session management for a bot, connect, disconnect, reconnect, and event handling
// ABOUTME: Implements the protocol.Handler contract for the bot's live connection

package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/ximpify/rentabot/internal/protocol"
)

const (
	authRegisterDelay = 2 * time.Second
	respawnDelay      = 1 * time.Second
	spawnReturnDelay  = 3 * time.Second
)

// permanentFailures are disconnect reasons that renaming or waiting will not
// fix. A bot hitting one stops reconnecting until an operator intervenes.
var permanentFailures = []string{
	"should join using username",
	"name is already taken",
	"Invalid username",
	"Kicked for spamming",
}

// Connect dials the game server under the bot's connection name.
func (b *Bot) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectLocked()
}

func (b *Bot) connectLocked() error {
	if b.session != nil && b.session.Connected() {
		return nil
	}

	// The handler pins the generation of this dial. Events still draining
	// out of a superseded session's read loop must not touch the bot.
	gen := b.gen
	handler := protocol.HandlerFunc(func(e protocol.Event) {
		b.sessionEvent(gen, e)
	})
	sess, err := b.deps.Transport.Dial(b.deps.Endpoint, b.connectionName, handler)
	if err != nil {
		b.logger.Warn("failed to connect", "error", err)
		return fmt.Errorf("connecting bot %q: %w", b.name, err)
	}
	b.session = sess
	b.logger.Debug("connecting", "identity", b.connectionName)
	return nil
}

// Disconnect closes the session and suppresses auto-reconnect until
// ResetForReconnect is called.
func (b *Bot) Disconnect(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnectLocked(reason)
}

func (b *Bot) disconnectLocked(reason string) {
	b.manuallyStopped = true
	b.gen++
	if b.session != nil {
		b.session.Close(reason)
		b.session = nil
	}
	b.connected = false
}

// ResetForReconnect clears the manual-stop flag and the attempt counter,
// arming the bot for a fresh connection.
func (b *Bot) ResetForReconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetForReconnectLocked()
}

func (b *Bot) resetForReconnectLocked() {
	b.manuallyStopped = false
	b.reconnectAttempts = 0
}

// Reconnect schedules a connection attempt after the configured delay.
func (b *Bot) Reconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reconnectLocked()
}

func (b *Bot) reconnectLocked() {
	if !b.shouldReconnectLocked() {
		return
	}

	delay := b.deps.Behavior.AutoReconnect.Delay
	gen := b.gen
	time.AfterFunc(delay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.gen != gen || b.connected {
			return
		}
		b.reconnectAttempts++
		b.logger.Debug("reconnect attempt", "attempt", b.reconnectAttempts)
		if err := b.connectLocked(); err != nil {
			b.reconnectLocked()
		}
	})
}

// ShouldReconnect reports whether a dropped connection should be retried.
func (b *Bot) ShouldReconnect() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shouldReconnectLocked()
}

func (b *Bot) shouldReconnectLocked() bool {
	if b.manuallyStopped {
		b.logger.Debug("not reconnecting, manually stopped")
		return false
	}
	if !b.deps.Behavior.AutoReconnect.Enabled {
		return false
	}
	max := b.deps.Behavior.AutoReconnect.MaxAttempts
	if max > 0 && b.reconnectAttempts >= max {
		return false
	}
	if time.Now().After(b.expiresAt) {
		return false
	}
	return true
}

// Connected reports whether the bot currently holds a live session.
func (b *Bot) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// SendChatCommand sends a slash command over the bot's own connection.
func (b *Bot) SendChatCommand(command string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendLocked(protocol.ChatCommand{Command: command})
}

func (b *Bot) sendLocked(cmds ...protocol.Command) {
	if b.session == nil || !b.session.Connected() {
		return
	}
	if err := b.session.Send(cmds...); err != nil {
		b.logger.Debug("send failed", "error", err)
	}
}

// HandleEvent dispatches one session event against the bot's current state.
func (b *Bot) HandleEvent(e protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handleEventLocked(e)
}

// sessionEvent is the entry point for events from a dialed session. A stale
// generation means the session was superseded; its events are dropped so a
// lingering read loop cannot mark the live connection down or trigger a
// duplicate dial.
func (b *Bot) sessionEvent(gen uint64, e protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.gen != gen {
		b.logger.Debug("dropping event from superseded session")
		return
	}
	b.handleEventLocked(e)
}

func (b *Bot) handleEventLocked(e protocol.Event) {
	switch ev := e.(type) {
	case protocol.ConnectedEvent:
		b.handleConnected()
	case protocol.LoginEvent:
		b.entityID = ev.EntityID
		b.logger.Debug("logged in", "entity_id", ev.EntityID)
	case protocol.PositionEvent:
		b.handlePosition(ev)
	case protocol.RespawnEvent:
		// Position resets across the respawn; wait for the server to
		// send the new one before moving again.
		b.posInit = false
	case protocol.HealthEvent:
		b.handleHealth(ev)
	case protocol.ChatEvent:
		b.handleChat(ev.Content)
	case protocol.DisconnectingEvent:
		b.logger.Debug("server announced disconnect", "reason", ev.Reason)
	case protocol.DisconnectedEvent:
		b.handleDisconnected(ev.Reason)
	case protocol.PacketErrorEvent:
		b.logger.Debug("packet error", "error", ev.Err)
	}
}

func (b *Bot) handleConnected() {
	b.connected = true
	b.reconnectAttempts = 0
	b.connectedAt = time.Now()
	b.logger.Info("connected")

	b.startAuthHandshakeLocked()
	b.deps.Notifier.Notify(b.ownerID, "bot.connected", "bot", b.name)
}

// startAuthHandshakeLocked logs the bot into the server's auth plugin after
// the configured delay. In auto-register mode a register attempt follows in
// case the account does not exist yet.
func (b *Bot) startAuthHandshakeLocked() {
	mode := b.deps.Auth.Mode
	if mode == "disabled" || mode == "" {
		return
	}

	password := b.deps.Auth.Password
	gen := b.gen
	b.after(b.deps.Auth.LoginDelay, gen, func() {
		b.sendLocked(protocol.ChatCommand{Command: "login " + password})
		b.logger.Debug("sent auth login")

		if mode == "auto-register" {
			b.after(authRegisterDelay, gen, func() {
				b.sendLocked(protocol.ChatCommand{Command: "register " + password + " " + password})
				b.logger.Debug("sent auth register")
			})
		}
	})
}

func (b *Bot) handlePosition(ev protocol.PositionEvent) {
	b.pos.X = ev.X
	b.pos.Y = ev.Y
	b.pos.Z = ev.Z
	b.pos.Yaw = ev.Yaw
	b.pos.Pitch = ev.Pitch
	if ev.World != "" {
		b.pos.World = ev.World
	}
	b.posInit = true

	// Unconfirmed teleports desync the server's view of the bot.
	b.sendLocked(protocol.TeleportConfirmCommand{TeleportID: ev.TeleportID})
	b.logger.Debug("position updated",
		"x", ev.X, "y", ev.Y, "z", ev.Z, "teleport_id", ev.TeleportID)
}

func (b *Bot) handleHealth(ev protocol.HealthEvent) {
	oldHealth := b.health
	b.health = ev.Health
	b.food = ev.Food

	if ev.Health <= 0 && oldHealth > 0 {
		b.logger.Info("bot died, scheduling respawn")
		b.deps.Notifier.Notify(b.ownerID, "bot.died", "bot", b.name)

		gen := b.gen
		b.after(respawnDelay, gen, func() {
			b.sendLocked(protocol.RespawnCommand{})
			b.logger.Debug("sent respawn")

			if b.hasSpawn && b.deps.Behavior.ReturnAfterDeath {
				b.after(spawnReturnDelay, gen, func() {
					b.returnToSpawnLocked()
				})
			}
		})
	}
}

// returnToSpawnLocked moves the bot back to its spawn anchor. The teleport
// needs server authority, so it goes through the command dispatcher rather
// than the bot's own connection.
func (b *Bot) returnToSpawnLocked() {
	if !b.hasSpawn || !b.connected {
		return
	}
	command := fmt.Sprintf("tp %s %.2f %.2f %.2f",
		b.connectionName, b.spawn.X, b.spawn.Y, b.spawn.Z)
	b.deps.Dispatcher.Dispatch(command)
	b.logger.Info("returning to spawn anchor")
}

func (b *Bot) handleDisconnected(reason string) {
	b.connected = false
	b.posInit = false
	b.gen++
	b.session = nil
	b.logger.Info("disconnected", "reason", reason)

	for _, marker := range permanentFailures {
		if strings.Contains(reason, marker) {
			b.manuallyStopped = true
			b.logger.Warn("permanent connection failure, reconnect disabled", "reason", reason)
			break
		}
	}

	if b.manuallyStopped {
		return
	}

	b.deps.Notifier.Notify(b.ownerID, "bot.disconnected", "bot", b.name, "reason", reason)
	b.reconnectLocked()
}
