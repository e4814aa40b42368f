// ABOUTME: Core Bot type merging durable rental state with the live session
// ABOUTME: Lease transitions freeze, expire, and resume the rental clock

package bot

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ximpify/rentabot/internal/config"
	"github.com/ximpify/rentabot/internal/notify"
	"github.com/ximpify/rentabot/internal/protocol"
	"github.com/ximpify/rentabot/internal/store"
)

// Deps bundles what every bot needs to run a session.
type Deps struct {
	Transport  protocol.Transport
	Notifier   notify.Notifier
	Dispatcher notify.CommandDispatcher
	Behavior   config.BehaviorConfig
	Auth       config.AuthConfig
	Logger     *slog.Logger

	// Endpoint overrides the transport's default server address when
	// non-empty.
	Endpoint string

	// Rand drives idle-activity randomization. Tests inject a seeded
	// source; when nil, New seeds one per bot.
	Rand *rand.Rand

	// Persist is called when state worth keeping changes outside a
	// lifecycle transition, such as a new spawn anchor. May be nil.
	Persist func(*Bot)
}

// Bot is one rented game-server account. It carries both the durable rental
// state (owner, lease, last position) and the live session state (connection,
// reconnect attempts, health). All methods are safe for concurrent use.
type Bot struct {
	deps   Deps
	logger *slog.Logger
	rng    *rand.Rand

	mu sync.Mutex

	// gen increments on every disconnect. Timer continuations and dialed
	// sessions capture the generation they were created under and bail out
	// if it has moved on, so callbacks and events from a previous session
	// never act on the current one.
	gen uint64

	name           string
	connectionName string
	ownerID        uuid.UUID
	ownerName      string

	session           protocol.Session
	connected         bool
	reconnectAttempts int
	manuallyStopped   bool

	status           Status
	createdAt        time.Time
	expiresAt        time.Time
	remainingSeconds int64
	lastActiveAt     time.Time

	pos        store.Position
	posInit    bool
	spawn      store.Position
	hasSpawn   bool
	entityID   int32
	health     float32
	food       int32
	lastAction time.Time

	connectedAt time.Time
}

// New creates an ACTIVE bot with a fresh lease of the given hours. The bot is
// not connected; callers connect it once it is registered.
func New(deps Deps, name, connectionName string, ownerID uuid.UUID, ownerName string, hours int) *Bot {
	now := time.Now()
	b := &Bot{
		deps:             deps,
		logger:           deps.Logger.With("bot", name),
		rng:              deps.Rand,
		name:             name,
		connectionName:   connectionName,
		ownerID:          ownerID,
		ownerName:        ownerName,
		status:           StatusActive,
		createdAt:        now,
		expiresAt:        now.Add(time.Duration(hours) * time.Hour),
		remainingSeconds: int64(hours) * 3600,
		lastActiveAt:     now,
		health:           20,
		food:             20,
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	return b
}

// FromRecord rebuilds a bot from its persisted record. The bot is not
// connected, whatever its status.
func FromRecord(deps Deps, rec *store.BotRecord) (*Bot, error) {
	status, err := ParseStatus(rec.Status)
	if err != nil {
		return nil, fmt.Errorf("restoring bot %q: %w", rec.Name, err)
	}

	b := &Bot{
		deps:             deps,
		logger:           deps.Logger.With("bot", rec.Name),
		rng:              deps.Rand,
		name:             rec.Name,
		connectionName:   rec.ConnectionName,
		ownerID:          rec.OwnerID,
		ownerName:        rec.OwnerName,
		status:           status,
		createdAt:        rec.CreatedAt,
		expiresAt:        rec.ExpiresAt,
		remainingSeconds: rec.RemainingSeconds,
		lastActiveAt:     rec.LastActiveAt,
		health:           20,
		food:             20,
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if rec.SpawnPoint != nil {
		b.spawn = *rec.SpawnPoint
		b.hasSpawn = true
	}
	if rec.Position != nil {
		b.pos = *rec.Position
	}
	return b, nil
}

// Record snapshots the bot into its persistable form.
func (b *Bot) Record() *store.BotRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := &store.BotRecord{
		Name:             b.name,
		ConnectionName:   b.connectionName,
		OwnerID:          b.ownerID,
		OwnerName:        b.ownerName,
		Status:           string(b.status),
		CreatedAt:        b.createdAt,
		ExpiresAt:        b.expiresAt,
		RemainingSeconds: b.remainingSeconds,
		LastActiveAt:     b.lastActiveAt,
	}
	if b.posInit {
		pos := b.pos
		rec.Position = &pos
	}
	if b.hasSpawn {
		spawn := b.spawn
		rec.SpawnPoint = &spawn
	}
	return rec
}

// StopAndFreeze pauses the rental. The unspent lease time is banked as
// remaining seconds and the bot disconnects without reconnecting.
func (b *Bot) StopAndFreeze() {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := int64(time.Until(b.expiresAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	b.remainingSeconds = remaining
	b.status = StatusStopped
	b.lastActiveAt = time.Now()
	b.disconnectLocked("Rental paused")

	b.logger.Debug("bot stopped", "remaining_seconds", b.remainingSeconds)
}

// MarkExpired ends the lease with nothing banked. Calling it on an already
// expired bot changes nothing.
func (b *Bot) MarkExpired() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = StatusExpired
	b.remainingSeconds = 0
	b.lastActiveAt = time.Now()
	b.disconnectLocked("Rental expired")

	b.logger.Debug("bot expired")
}

// Resume unfreezes a stopped bot using its banked time. Returns false when
// the bot is not stopped or has no time left. The transition commits without
// a connection; the caller dials once it has recorded the new status.
func (b *Bot) Resume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status != StatusStopped || b.remainingSeconds <= 0 {
		return false
	}

	b.expiresAt = time.Now().Add(time.Duration(b.remainingSeconds) * time.Second)
	b.status = StatusActive
	b.lastActiveAt = time.Now()
	b.resetForReconnectLocked()

	b.logger.Debug("bot resuming", "remaining_seconds", b.remainingSeconds)
	return true
}

// ResumeWithHours starts a fresh lease. Like Resume, connecting is the
// caller's follow-up.
func (b *Bot) ResumeWithHours(hours int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.expiresAt = time.Now().Add(time.Duration(hours) * time.Hour)
	b.remainingSeconds = int64(hours) * 3600
	b.status = StatusActive
	b.lastActiveAt = time.Now()
	b.resetForReconnectLocked()

	b.logger.Debug("bot resuming with new lease", "hours", hours)
}

// Extend adds hours to the lease. Where the hours land depends on status:
// active leases push out the expiry, stopped leases grow the bank, expired
// leases get the hours as a new bank without reactivating.
func (b *Bot) Extend(hours int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.status {
	case StatusActive:
		b.expiresAt = b.expiresAt.Add(time.Duration(hours) * time.Hour)
	case StatusStopped:
		b.remainingSeconds += int64(hours) * 3600
	case StatusExpired:
		b.remainingSeconds = int64(hours) * 3600
	}
}

// RemainingSeconds returns the lease time left. For active bots this counts
// down against the expiry; for stopped and expired bots it is the banked
// value.
func (b *Bot) RemainingSeconds() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status == StatusActive {
		remaining := int64(time.Until(b.expiresAt).Seconds())
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	return b.remainingSeconds
}

// HasTimeRemaining reports whether any lease time is left.
func (b *Bot) HasTimeRemaining() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status == StatusActive {
		return time.Now().Before(b.expiresAt)
	}
	return b.remainingSeconds > 0
}

// Expired reports whether an active lease has run past its expiry.
func (b *Bot) Expired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status == StatusActive && time.Now().After(b.expiresAt)
}

// Name returns the internal (owner-facing) name.
func (b *Bot) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// ConnectionName returns the game account name the bot connects under.
func (b *Bot) ConnectionName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectionName
}

// Rename rebinds both names. The caller is responsible for disconnecting
// first and reconciling the store.
func (b *Bot) Rename(name, connectionName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
	b.connectionName = connectionName
	b.logger = b.deps.Logger.With("bot", name)
}

func (b *Bot) OwnerID() uuid.UUID { return b.ownerID }

func (b *Bot) OwnerName() string { return b.ownerName }

func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Bot) CreatedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createdAt
}

func (b *Bot) ExpiresAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expiresAt
}

func (b *Bot) LastActiveAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastActiveAt
}

// Position returns the last server-confirmed position and whether one has
// been received this session.
func (b *Bot) Position() (store.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos, b.posInit
}

// SpawnPoint returns the saved spawn anchor, if any.
func (b *Bot) SpawnPoint() (store.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spawn, b.hasSpawn
}

// SetSpawnPoint restores a spawn anchor, typically from storage.
func (b *Bot) SetSpawnPoint(p store.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spawn = p
	b.hasSpawn = p.World != ""
}

// Health returns the last reported health and food values.
func (b *Bot) Health() (float32, int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.health, b.food
}

// Uptime formats how long the current session has been connected.
func (b *Bot) Uptime() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected || b.connectedAt.IsZero() {
		return "Not connected"
	}
	seconds := int64(time.Since(b.connectedAt).Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	}
}

// saveSpawnLocked records the current position as the spawn anchor and asks
// the owner of the Persist hook to write it out.
func (b *Bot) saveSpawnLocked() {
	if !b.posInit {
		return
	}
	b.spawn = b.pos
	b.hasSpawn = true
	b.logger.Debug("saved spawn anchor",
		"x", b.spawn.X, "y", b.spawn.Y, "z", b.spawn.Z, "world", b.spawn.World)

	if b.deps.Persist != nil {
		go b.deps.Persist(b)
	}
}

// after schedules fn once d elapses, dropping it if the session generation
// has moved on or the bot is no longer connected. fn runs with the lock held.
func (b *Bot) after(d time.Duration, gen uint64, fn func()) {
	time.AfterFunc(d, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.gen != gen || !b.connected {
			return
		}
		fn()
	})
}
