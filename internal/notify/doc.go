// ABOUTME: Package documentation for the notify package
// ABOUTME: Describes owner notifications and server command dispatch

// Package notify carries messages out of the bot service.
//
// Notifier delivers owner-facing messages (expiry warnings, death reports,
// cleanup notices). CommandDispatcher pushes console-level commands to the
// game server for actions a bot cannot do over its own connection.
//
// Both are fire and forget. HTTP implementations post JSON to configured
// webhook URLs in a background goroutine; log implementations stand in
// when no endpoint is configured. Nothing in this package returns errors
// to callers, since a failed notification must never derail a lifecycle
// transition.
package notify
