// ABOUTME: Rental policy layer over the bot registry, quotas, cooldowns, ownership
// ABOUTME: Every lifecycle transition is persisted after the in-memory change

package rental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ximpify/rentabot/internal/bot"
	"github.com/ximpify/rentabot/internal/config"
	"github.com/ximpify/rentabot/internal/notify"
	"github.com/ximpify/rentabot/internal/store"
)

// Precondition failures callers are expected to handle. These are outcomes,
// not faults, and are never logged as errors.
var (
	ErrNotFound        = errors.New("bot not found")
	ErrNotOwner        = errors.New("bot belongs to another owner")
	ErrNameTaken       = errors.New("bot name already taken")
	ErrInvalidName     = errors.New("invalid bot name")
	ErrInvalidHours    = errors.New("hours outside allowed range")
	ErrCooldown        = errors.New("creation cooldown active")
	ErrLimitReached    = errors.New("owner bot limit reached")
	ErrServerLimit     = errors.New("server-wide bot limit reached")
	ErrAlreadyActive   = errors.New("bot already active")
	ErrNotActive       = errors.New("bot not active")
	ErrNoTimeRemaining = errors.New("no lease time remaining")
	ErrMaxDuration     = errors.New("maximum rental duration exceeded")
	ErrConnectFailed   = errors.New("bot failed to connect")
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// maxInternalNameLength bounds the owner-facing name. The connection name is
// separately truncated to the game's sixteen character limit.
const maxInternalNameLength = 32

// Service applies rental policy on top of the registry: quotas, cooldowns,
// ownership checks, and persistence around every lifecycle transition.
type Service struct {
	cfg      *config.Config
	registry *bot.Registry
	store    store.Store
	notifier notify.Notifier
	logger   *slog.Logger

	mu           sync.Mutex
	lastCreation map[uuid.UUID]time.Time
}

// NewService wires the rental policy layer.
func NewService(cfg *config.Config, registry *bot.Registry, st store.Store, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{
		cfg:          cfg,
		registry:     registry,
		store:        st,
		notifier:     notifier,
		logger:       logger.With("component", "rental"),
		lastCreation: make(map[uuid.UUID]time.Time),
	}
}

// Create rents a new bot for the owner. The bot connects before it counts
// against any quota; a failed connection leaves no trace.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, ownerName, name string, hours int) (*bot.Bot, error) {
	if err := s.checkCooldown(ownerID); err != nil {
		return nil, err
	}
	if hours < s.cfg.Limits.MinHours || hours > s.cfg.Limits.MaxHours {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidHours, hours, s.cfg.Limits.MinHours, s.cfg.Limits.MaxHours)
	}
	if err := s.checkActiveLimits(ownerID); err != nil {
		return nil, err
	}
	if !s.registry.NameAvailable(name) {
		return nil, fmt.Errorf("%w: %q", ErrNameTaken, name)
	}
	if err := s.checkTotalOwnedLimit(ownerID); err != nil {
		return nil, err
	}
	if err := s.validateName(name); err != nil {
		return nil, err
	}

	b, err := s.registry.Create(name, ownerID, ownerName, hours)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	s.persist(ctx, b)

	s.mu.Lock()
	s.lastCreation[ownerID] = time.Now()
	s.mu.Unlock()

	s.logger.Info("rental created", "bot", name, "owner", ownerName, "hours", hours)
	return b, nil
}

// Stop pauses an active rental, banking the unspent time.
func (s *Service) Stop(ctx context.Context, ownerID uuid.UUID, name string, admin bool) error {
	b, err := s.ownedBot(ownerID, name, admin)
	if err != nil {
		return err
	}
	if !b.Status().Active() {
		return ErrNotActive
	}

	s.registry.Stop(name)
	s.persist(ctx, b)
	return nil
}

// Delete permanently removes a rental, whatever its state.
func (s *Service) Delete(ctx context.Context, ownerID uuid.UUID, name string, admin bool) error {
	if _, err := s.ownedBot(ownerID, name, admin); err != nil {
		return err
	}

	b, ok := s.registry.Delete(name)
	if !ok {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, b.Name()); err != nil {
		s.logger.Warn("failed to delete rental record", "bot", b.Name(), "error", err)
	}
	return nil
}

// Resume reactivates a paused or expired rental. Stopped bots with banked
// time resume for free and additionalHours is ignored; expired or drained
// bots need additionalHours for a fresh lease. A failed reconnect still
// commits and persists the resume; the bot stays active and offline, and
// the session sweep keeps retrying the connection.
func (s *Service) Resume(ctx context.Context, ownerID uuid.UUID, name string, additionalHours int) error {
	b, err := s.ownedBot(ownerID, name, false)
	if err != nil {
		return err
	}
	if b.Status().Active() {
		return ErrAlreadyActive
	}
	if err := s.checkActiveLimits(ownerID); err != nil {
		return err
	}

	if b.Status() == bot.StatusStopped && b.HasTimeRemaining() {
		resumed, connErr := s.registry.Resume(name)
		if !resumed {
			return ErrAlreadyActive
		}
		s.persist(ctx, b)
		if connErr != nil {
			return fmt.Errorf("%w: %v", ErrConnectFailed, connErr)
		}
		return nil
	}

	if additionalHours <= 0 {
		return ErrNoTimeRemaining
	}
	if additionalHours < s.cfg.Limits.MinHours || additionalHours > s.cfg.Limits.MaxHours {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidHours, additionalHours, s.cfg.Limits.MinHours, s.cfg.Limits.MaxHours)
	}
	resumed, connErr := s.registry.ResumeWithHours(name, additionalHours)
	if !resumed {
		return ErrAlreadyActive
	}
	s.persist(ctx, b)
	if connErr != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, connErr)
	}
	return nil
}

// Extend adds hours to a rental, capped so the total never exceeds the
// configured maximum duration.
func (s *Service) Extend(ctx context.Context, ownerID uuid.UUID, name string, hours int) error {
	b, err := s.ownedBot(ownerID, name, false)
	if err != nil {
		return err
	}

	currentHours := int(time.Until(b.ExpiresAt()).Hours())
	if currentHours < 0 {
		currentHours = 0
	}
	if currentHours+hours > s.cfg.Limits.MaxHours {
		return ErrMaxDuration
	}

	b.Extend(hours)
	s.persist(ctx, b)
	s.logger.Info("rental extended", "bot", name, "hours", hours)
	return nil
}

// Rename rebinds a rental to a new name, reconciling the store under the
// new key.
func (s *Service) Rename(ctx context.Context, ownerID uuid.UUID, oldName, newName string, admin bool) error {
	if _, err := s.ownedBot(ownerID, oldName, admin); err != nil {
		return err
	}
	if err := s.validateName(newName); err != nil {
		return err
	}
	if !s.registry.NameAvailable(newName) {
		return fmt.Errorf("%w: %q", ErrNameTaken, newName)
	}

	b, ok := s.registry.Rename(oldName, newName)
	if !ok {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, oldName); err != nil {
		s.logger.Warn("failed to delete old rental record", "bot", oldName, "error", err)
	}
	s.persist(ctx, b)
	return nil
}

// Expire marks an active rental as run out, notifies the owner, and
// persists the change. The sweeper calls this past the grace period.
func (s *Service) Expire(ctx context.Context, name string) {
	b, ok := s.registry.Get(name)
	if !ok || !b.Status().Active() {
		return
	}

	s.registry.Expire(name)
	s.persist(ctx, b)
	s.notifier.Notify(b.OwnerID(), "rental.expired", "bot", b.Name())
	s.logger.Info("rental expired", "bot", name)
}

// Load restores all persisted rentals into the registry. Stale active
// records come back from the store already reclassified as EXPIRED and stay
// offline; still-current active bots reconnect, and a failed reconnect still
// registers the bot so its lease keeps being tracked.
func (s *Service) Load(ctx context.Context) error {
	records, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading rentals: %w", err)
	}

	var active, stopped, expired int
	for _, rec := range records {
		b, err := s.registry.Restore(rec)
		if err != nil {
			s.logger.Warn("skipping unrestorable rental", "bot", rec.Name, "error", err)
			continue
		}

		switch b.Status() {
		case bot.StatusActive:
			active++
			if err := b.Connect(); err != nil {
				s.logger.Warn("failed to reconnect restored bot", "bot", b.Name(), "error", err)
			}
		case bot.StatusStopped:
			stopped++
		case bot.StatusExpired:
			expired++
		}
	}

	s.logger.Info("rentals loaded", "active", active, "stopped", stopped, "expired", expired)
	return nil
}

// SaveAll persists every registered rental, used at shutdown.
func (s *Service) SaveAll(ctx context.Context) {
	for _, b := range s.registry.All() {
		s.persist(ctx, b)
	}
}

// Get returns an owner's bot by name.
func (s *Service) Get(ownerID uuid.UUID, name string, admin bool) (*bot.Bot, error) {
	return s.ownedBot(ownerID, name, admin)
}

// List returns all of an owner's bots.
func (s *Service) List(ownerID uuid.UUID) []*bot.Bot {
	return s.registry.OwnerBots(ownerID)
}

// ListByStatus returns an owner's bots in the given state.
func (s *Service) ListByStatus(ownerID uuid.UUID, status bot.Status) []*bot.Bot {
	return s.registry.OwnerBotsWithStatus(ownerID, status)
}

func (s *Service) ownedBot(ownerID uuid.UUID, name string, admin bool) (*bot.Bot, error) {
	b, ok := s.registry.Get(name)
	if !ok {
		return nil, ErrNotFound
	}
	if !admin && b.OwnerID() != ownerID {
		return nil, ErrNotOwner
	}
	return b, nil
}

func (s *Service) checkCooldown(ownerID uuid.UUID) error {
	cooldown := s.cfg.Limits.CreationCooldown
	if cooldown <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastCreation[ownerID]; ok {
		if wait := cooldown - time.Since(last); wait > 0 {
			return fmt.Errorf("%w: %s left", ErrCooldown, wait.Round(time.Second))
		}
	}
	return nil
}

func (s *Service) checkActiveLimits(ownerID uuid.UUID) error {
	if max := s.cfg.Limits.MaxActiveBots; max > 0 && s.registry.ActiveCount(ownerID) >= max {
		return fmt.Errorf("%w: %d active", ErrLimitReached, max)
	}
	if max := s.cfg.Limits.MaxTotalBots; max > 0 && s.registry.TotalActive() >= max {
		return ErrServerLimit
	}
	return nil
}

func (s *Service) checkTotalOwnedLimit(ownerID uuid.UUID) error {
	maxReserved := s.cfg.Limits.MaxReservedBots
	if maxReserved <= 0 {
		return nil
	}
	owned := s.registry.ActiveCount(ownerID) + s.registry.ReservedCount(ownerID)
	maxOwned := s.cfg.Limits.MaxActiveBots + maxReserved
	if owned >= maxOwned {
		return fmt.Errorf("%w: %d of %d owned", ErrLimitReached, owned, maxOwned)
	}
	return nil
}

func (s *Service) validateName(name string) error {
	if len(name) < s.cfg.Naming.MinLength {
		return fmt.Errorf("%w: shorter than %d characters", ErrInvalidName, s.cfg.Naming.MinLength)
	}
	if len(name) > maxInternalNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxInternalNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: only letters, digits, and underscores allowed", ErrInvalidName)
	}
	lower := strings.ToLower(name)
	for _, blocked := range s.cfg.Naming.BlockedWords {
		if blocked != "" && strings.Contains(lower, strings.ToLower(blocked)) {
			return fmt.Errorf("%w: contains blocked word", ErrInvalidName)
		}
	}
	return nil
}

// persist writes the bot's record out. Persistence failures are logged and
// never abort the in-memory transition.
func (s *Service) persist(ctx context.Context, b *bot.Bot) {
	if err := s.store.Upsert(ctx, b.Record()); err != nil {
		s.logger.Warn("failed to persist rental", "bot", b.Name(), "error", err)
	}
}
