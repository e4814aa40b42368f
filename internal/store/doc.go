// ABOUTME: Package documentation for the store package
// ABOUTME: Describes the persistence layer for rented bots

// Package store provides persistence for rented bots.
//
// A BotRecord is the durable half of a bot: identity, ownership, lease
// state, and last known position. Live session state (connections, timers,
// reconnect attempts) never touches the store.
//
// Two implementations are provided. SQLiteStore persists records to a
// SQLite database with the schema created on first open. MemoryStore
// keeps records in a map and is mainly for tests.
//
// Both implementations reclassify on load: an ACTIVE record whose lease
// expired while the process was down comes back as EXPIRED with no time
// remaining, and the correction is written back so a second load agrees
// with the first.
package store
