// ABOUTME: Package documentation for the bot package
// ABOUTME: Describes rented bots, their lifecycle, and the registry

// Package bot implements rented game-server bots.
//
// A Bot merges the durable rental (owner, lease clock, last position) with
// the live session (connection, reconnect attempts, health). The lease moves
// between three states: ACTIVE bots hold a connection and burn lease time,
// STOPPED bots bank their unspent time for later, EXPIRED bots are out of
// time and sit offline until re-leased or cleaned up.
//
// Session behavior is driven by protocol events: bots confirm teleports,
// respawn after dying, answer teleport requests from their owner, log into
// auth plugins, and reconnect with a delay when the link drops. Scripted
// idle activity keeps connected bots from being kicked as AFK.
//
// The Registry tracks every bot across all states, keyed by internal name,
// and maintains per-owner active counts for quota checks. Policy such as
// limits, cooldowns, and persistence lives one level up in the rental
// package.
package bot
