// ABOUTME: Periodic sweep over all rentals, expiry, warnings, cleanup, reconnects
// ABOUTME: Runs as a single context-cancelled ticker goroutine

package rental

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ximpify/rentabot/internal/bot"
)

// Sweeper walks all rentals on a fixed interval. It expires active leases
// that ran past their grace period, warns owners at configured thresholds,
// nudges dropped sessions back online, and garbage-collects reserved bots
// nobody has touched within the retention window.
type Sweeper struct {
	service *Service
	logger  *slog.Logger

	// warningsSent marks name-threshold pairs already delivered, cleared
	// when the bot expires. Touched only from the sweep goroutine.
	warningsSent map[string]bool
	lastCleanup  time.Time
}

// NewSweeper creates a sweeper over the given service.
func NewSweeper(service *Service) *Sweeper {
	return &Sweeper{
		service:      service,
		logger:       service.logger.With("component", "sweeper"),
		warningsSent: make(map[string]bool),
	}
}

// Run blocks, sweeping at the configured check interval until the context
// is done.
func (w *Sweeper) Run(ctx context.Context) {
	interval := w.service.cfg.Rentals.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("sweeper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass: expiry and warnings for active bots, the reconnect
// check, and (at its own lower frequency) reserved-bot cleanup.
func (w *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()
	grace := w.service.cfg.Rentals.GracePeriod

	for _, b := range w.service.registry.All() {
		if !b.Status().Active() {
			continue
		}

		remaining := b.ExpiresAt().Sub(now)
		if remaining < -grace {
			w.service.Expire(ctx, b.Name())
			w.clearWarnings(b.Name())
			continue
		}
		w.maybeWarn(b, remaining)
	}

	w.service.registry.CheckSessions()

	if interval := w.service.cfg.Cleanup.Interval; interval > 0 && now.Sub(w.lastCleanup) >= interval {
		w.lastCleanup = now
		w.cleanup(ctx, now)
	}
}

// maybeWarn notifies the owner when the lease just crossed a warning
// threshold. Each threshold fires once per lease.
func (w *Sweeper) maybeWarn(b *bot.Bot, remaining time.Duration) {
	if !w.service.cfg.Rentals.WarningsEnabled {
		return
	}

	minutes := int(remaining.Minutes())
	for _, threshold := range w.service.cfg.Rentals.WarningTimes {
		key := fmt.Sprintf("%s-%d", b.Name(), threshold)
		if minutes <= threshold && minutes > threshold-1 && !w.warningsSent[key] {
			w.warningsSent[key] = true
			w.service.notifier.Notify(b.OwnerID(), "rental.expiry_warning",
				"bot", b.Name(), "time", formatDuration(remaining))
			w.logger.Debug("expiry warning sent", "bot", b.Name(), "minutes_left", minutes)
		}
	}
}

func (w *Sweeper) clearWarnings(name string) {
	prefix := name + "-"
	for key := range w.warningsSent {
		if strings.HasPrefix(key, prefix) {
			delete(w.warningsSent, key)
		}
	}
}

// cleanup deletes reserved bots whose last activity predates the retention
// window, from both the registry and the store.
func (w *Sweeper) cleanup(ctx context.Context, now time.Time) {
	cfg := w.service.cfg.Cleanup
	if !cfg.Enabled || cfg.Retention <= 0 {
		return
	}
	cutoff := now.Add(-cfg.Retention)

	for _, b := range w.service.registry.All() {
		if !b.Status().Reserved() || !b.LastActiveAt().Before(cutoff) {
			continue
		}

		name := b.Name()
		if cfg.NotifyBeforeCleanup {
			w.service.notifier.Notify(b.OwnerID(), "rental.cleaned_up", "bot", name)
		}
		w.service.registry.Delete(name)
		if err := w.service.store.Delete(ctx, name); err != nil {
			w.logger.Warn("failed to delete cleaned-up rental record", "bot", name, "error", err)
		}
		w.clearWarnings(name)
		w.logger.Info("cleaned up stale reserved bot", "bot", name)
	}
}

// formatDuration renders lease time the way owners read it.
func formatDuration(d time.Duration) string {
	seconds := int64(d.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d second(s)", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%d minute(s)", seconds/60)
	case seconds < 86400:
		hours, mins := seconds/3600, (seconds%3600)/60
		if mins > 0 {
			return fmt.Sprintf("%d hour(s) %d min", hours, mins)
		}
		return fmt.Sprintf("%d hour(s)", hours)
	default:
		days, hours := seconds/86400, (seconds%86400)/3600
		if hours > 0 {
			return fmt.Sprintf("%d day(s) %d hour(s)", days, hours)
		}
		return fmt.Sprintf("%d day(s)", days)
	}
}
