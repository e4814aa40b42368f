// ABOUTME: Lifecycle status for rented bots
// ABOUTME: ACTIVE bots hold a connection, STOPPED and EXPIRED bots hold a reserved slot

package bot

import "fmt"

// Status is the lifecycle state of a rented bot.
type Status string

const (
	// StatusActive means the lease clock is running and the bot should be
	// connected to the game server.
	StatusActive Status = "ACTIVE"

	// StatusStopped means the owner paused the rental. The lease clock is
	// frozen and the remaining time is banked.
	StatusStopped Status = "STOPPED"

	// StatusExpired means the lease ran out. The bot is kept offline until
	// the owner buys more hours or cleanup removes it.
	StatusExpired Status = "EXPIRED"
)

// ParseStatus converts a stored status string back into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusStopped, StatusExpired:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown bot status %q", s)
	}
}

// Active reports whether the bot occupies an active slot.
func (s Status) Active() bool {
	return s == StatusActive
}

// Reserved reports whether the bot occupies a reserved slot.
func (s Status) Reserved() bool {
	return s == StatusStopped || s == StatusExpired
}
