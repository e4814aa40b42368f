// ABOUTME: Package documentation for the rental package
// ABOUTME: Describes the policy layer and the expiry sweeper

// Package rental implements rental policy on top of the bot registry.
//
// Service enforces what the registry does not: who may touch a bot, how
// many bots an owner may hold, creation cooldowns, lease duration bounds,
// and name rules. Every lifecycle transition persists through the store
// right after the in-memory change; persistence failures are logged and
// never roll the transition back. Precondition violations come back as
// sentinel errors for callers to match on.
//
// Sweeper runs the clock: on a fixed interval it expires active leases past
// the grace period, delivers one-shot warnings as leases approach their
// thresholds, kicks dropped sessions back toward a reconnect, and on a
// slower cadence deletes reserved bots that have sat untouched beyond the
// retention window.
package rental
