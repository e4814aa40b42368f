// ABOUTME: In-memory registry of all rented bots keyed by internal name
// ABOUTME: Tracks per-owner active counts and drives session upkeep

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ximpify/rentabot/internal/config"
	"github.com/ximpify/rentabot/internal/store"
)

// renameReconnectDelay gives the old connection time to fully close before
// the renamed bot dials back in.
const renameReconnectDelay = 3 * time.Second

// Registry holds every bot the service knows about, across all lifecycle
// states. Lookups are case-insensitive on the internal name.
type Registry struct {
	deps   Deps
	naming config.NamingConfig
	logger *slog.Logger

	renameDelay time.Duration

	mu           sync.RWMutex
	bots         map[string]*Bot
	reserved     map[string]bool
	activeCounts map[uuid.UUID]int
}

// NewRegistry creates an empty registry. The deps are the template handed to
// every bot it creates or restores.
func NewRegistry(deps Deps, naming config.NamingConfig) *Registry {
	return &Registry{
		deps:         deps,
		naming:       naming,
		logger:       deps.Logger.With("component", "registry"),
		renameDelay:  renameReconnectDelay,
		bots:         make(map[string]*Bot),
		reserved:     make(map[string]bool),
		activeCounts: make(map[uuid.UUID]int),
	}
}

// ConnectionName derives the game account name for an internal bot name.
func (r *Registry) ConnectionName(name string) string {
	return SanitizeUsername(r.naming.Prefix + name + r.naming.Suffix)
}

// Create builds a new active bot, connects it, and registers it. The bot is
// only registered once the initial connection attempt succeeds. The name is
// reserved while the dial runs so the registry lock never spans the network.
func (r *Registry) Create(name string, ownerID uuid.UUID, ownerName string, hours int) (*Bot, error) {
	key := strings.ToLower(name)

	r.mu.Lock()
	if _, taken := r.bots[key]; taken || r.reserved[key] {
		r.mu.Unlock()
		return nil, fmt.Errorf("bot name %q is taken", name)
	}
	r.reserved[key] = true
	r.mu.Unlock()

	b := New(r.deps, name, r.ConnectionName(name), ownerID, ownerName, hours)
	err := b.Connect()

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, key)
	if err != nil {
		return nil, err
	}

	r.bots[key] = b
	r.activeCounts[ownerID]++
	r.logger.Info("bot created", "bot", name, "owner", ownerName, "hours", hours)
	return b, nil
}

// Restore rebuilds a bot from its persisted record and registers it without
// connecting. Active bots count against their owner's quota immediately;
// connecting is the caller's decision.
func (r *Registry) Restore(rec *store.BotRecord) (*Bot, error) {
	b, err := FromRecord(r.deps, rec)
	if err != nil {
		return nil, err
	}
	r.Register(b)
	return b, nil
}

// Register inserts a restored bot without connecting it.
func (r *Registry) Register(b *Bot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bots[strings.ToLower(b.Name())] = b
	if b.Status().Active() {
		r.activeCounts[b.OwnerID()]++
	}
}

// Get looks up a bot by internal name.
func (r *Registry) Get(name string) (*Bot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bots[strings.ToLower(name)]
	return b, ok
}

// Stop freezes an active bot's lease. Returns false when the bot is missing
// or not active.
func (r *Registry) Stop(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bots[strings.ToLower(name)]
	if !ok || !b.Status().Active() {
		return false
	}
	b.StopAndFreeze()
	r.decActiveLocked(b.OwnerID())
	r.logger.Info("bot stopped", "bot", name)
	return true
}

// Expire marks an active bot's lease as run out.
func (r *Registry) Expire(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bots[strings.ToLower(name)]
	if !ok || !b.Status().Active() {
		return
	}
	b.MarkExpired()
	r.decActiveLocked(b.OwnerID())
	r.logger.Info("bot expired", "bot", name)
}

// Resume unfreezes a stopped bot with its banked time. The bool reports
// whether the STOPPED to ACTIVE transition committed; the error carries a
// failed connection attempt, which leaves the bot active but offline, its
// slot counted, and the reconnect machinery in charge of further dials.
func (r *Registry) Resume(name string) (bool, error) {
	r.mu.Lock()
	b, ok := r.bots[strings.ToLower(name)]
	if !ok || !b.Resume() {
		r.mu.Unlock()
		return false, nil
	}
	r.activeCounts[b.OwnerID()]++
	r.logger.Info("bot resumed", "bot", name)
	r.mu.Unlock()

	if err := b.Connect(); err != nil {
		r.logger.Warn("resumed bot failed to connect", "bot", name, "error", err)
		return true, err
	}
	return true, nil
}

// ResumeWithHours restarts an expired (or drained stopped) bot on a fresh
// lease. Commit and connection report as in Resume.
func (r *Registry) ResumeWithHours(name string, hours int) (bool, error) {
	r.mu.Lock()
	b, ok := r.bots[strings.ToLower(name)]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	drained := b.Status() == StatusStopped && !b.HasTimeRemaining()
	if b.Status() != StatusExpired && !drained {
		r.mu.Unlock()
		return false, nil
	}
	b.ResumeWithHours(hours)
	r.activeCounts[b.OwnerID()]++
	r.logger.Info("bot resumed with new lease", "bot", name, "hours", hours)
	r.mu.Unlock()

	if err := b.Connect(); err != nil {
		r.logger.Warn("resumed bot failed to connect", "bot", name, "error", err)
		return true, err
	}
	return true, nil
}

// Delete removes a bot entirely, disconnecting it first. Returns the removed
// bot so the caller can reconcile storage.
func (r *Registry) Delete(name string) (*Bot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(name)
	b, ok := r.bots[key]
	if !ok {
		return nil, false
	}
	delete(r.bots, key)

	wasActive := b.Status().Active()
	if b.Connected() {
		b.Disconnect("Bot deleted")
	}
	if wasActive {
		r.decActiveLocked(b.OwnerID())
	}
	r.logger.Info("bot deleted", "bot", name)
	return b, true
}

// Rename rebinds a bot to a new internal name and connection identity. The
// bot drops its connection and dials back in under the new name after a
// short delay. Returns the bot so the caller can reconcile storage.
func (r *Registry) Rename(oldName, newName string) (*Bot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldKey := strings.ToLower(oldName)
	newKey := strings.ToLower(newName)
	b, ok := r.bots[oldKey]
	if !ok {
		return nil, false
	}
	if _, taken := r.bots[newKey]; taken && newKey != oldKey {
		return nil, false
	}

	delete(r.bots, oldKey)
	b.Disconnect("Renaming bot")
	b.Rename(newName, r.ConnectionName(newName))
	r.bots[newKey] = b

	time.AfterFunc(r.renameDelay, func() {
		// The bot may have been deleted or renamed again while the old
		// connection settled; only the current holder of the key dials back.
		r.mu.RLock()
		current := r.bots[newKey]
		r.mu.RUnlock()
		if current != b {
			return
		}
		b.ResetForReconnect()
		if err := b.Connect(); err != nil {
			r.logger.Warn("reconnect after rename failed", "bot", newName, "error", err)
		}
	})

	r.logger.Info("bot renamed", "from", oldName, "to", newName)
	return b, true
}

// NameAvailable reports whether no bot in any state holds or has reserved
// the name.
func (r *Registry) NameAvailable(name string) bool {
	key := strings.ToLower(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, taken := r.bots[key]
	return !taken && !r.reserved[key]
}

// All returns every registered bot.
func (r *Registry) All() []*Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bots := make([]*Bot, 0, len(r.bots))
	for _, b := range r.bots {
		bots = append(bots, b)
	}
	return bots
}

// OwnerBots returns every bot the owner holds, in any state.
func (r *Registry) OwnerBots(ownerID uuid.UUID) []*Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bots []*Bot
	for _, b := range r.bots {
		if b.OwnerID() == ownerID {
			bots = append(bots, b)
		}
	}
	return bots
}

// OwnerBotsWithStatus returns the owner's bots in any of the given states.
func (r *Registry) OwnerBotsWithStatus(ownerID uuid.UUID, statuses ...Status) []*Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bots []*Bot
	for _, b := range r.bots {
		if b.OwnerID() != ownerID {
			continue
		}
		got := b.Status()
		for _, want := range statuses {
			if got == want {
				bots = append(bots, b)
				break
			}
		}
	}
	return bots
}

// ActiveCount returns the owner's number of active bots.
func (r *Registry) ActiveCount(ownerID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCounts[ownerID]
}

// ReservedCount returns the owner's number of stopped and expired bots.
func (r *Registry) ReservedCount(ownerID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, b := range r.bots {
		if b.OwnerID() == ownerID && b.Status().Reserved() {
			count++
		}
	}
	return count
}

// TotalActive returns the number of active bots across all owners.
func (r *Registry) TotalActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, b := range r.bots {
		if b.Status().Active() {
			count++
		}
	}
	return count
}

// Len returns the number of bots in any state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bots)
}

// CheckSessions nudges active bots that dropped offline back toward a
// reconnect.
func (r *Registry) CheckSessions() {
	for _, b := range r.All() {
		if b.Status().Active() && !b.Connected() && b.ShouldReconnect() {
			r.logger.Debug("nudging reconnect", "bot", b.Name())
			b.Reconnect()
		}
	}
}

// DisconnectAll drops every live connection, for shutdown. Bots stay
// registered so their state can be saved afterwards.
func (r *Registry) DisconnectAll() {
	for _, b := range r.All() {
		if b.Connected() {
			b.Disconnect("Server shutdown")
		}
	}

	r.mu.Lock()
	r.activeCounts = make(map[uuid.UUID]int)
	r.mu.Unlock()
}

// RunIdleLoop fires idle activity on every connected active bot at a
// jittered interval, re-rolled after each firing. Blocks until the context
// is done.
func (r *Registry) RunIdleLoop(ctx context.Context) {
	cfg := r.deps.Behavior.IdleActivity
	if !cfg.Enabled || cfg.Interval <= 0 {
		return
	}

	rng := r.deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	timer := time.NewTimer(jitter(cfg.Interval, cfg.IntervalRandomness, rng))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			for _, b := range r.All() {
				if b.Status().Active() && b.Connected() {
					b.PerformIdleActivity()
				}
			}
			timer.Reset(jitter(cfg.Interval, cfg.IntervalRandomness, rng))
		}
	}
}

// jitter widens base to base*(1±r).
func jitter(base time.Duration, r float64, rng *rand.Rand) time.Duration {
	if r <= 0 {
		return base
	}
	factor := 1 + r*(rng.Float64()*2-1)
	return time.Duration(float64(base) * factor)
}

// decActiveLocked decrements the owner's active count, removing the entry
// when it reaches zero.
func (r *Registry) decActiveLocked(ownerID uuid.UUID) {
	if c := r.activeCounts[ownerID]; c <= 1 {
		delete(r.activeCounts, ownerID)
	} else {
		r.activeCounts[ownerID] = c - 1
	}
}
