// ABOUTME: Typed outbound protocol commands emitted by a bot session.
// ABOUTME: A closed set of variants mapped onto wire frames by the transport.

package protocol

// Command is an outbound protocol command.
type Command interface {
	command()
}

// ChatCommand runs a slash command as the bot (without the leading slash).
type ChatCommand struct {
	Command string
}

// MoveCommand updates the bot's position and rotation.
type MoveCommand struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	OnGround   bool
}

// SwingCommand swings the bot's main hand.
type SwingCommand struct{}

// SneakCommand toggles the bot's crouch input.
type SneakCommand struct {
	Sneaking bool
}

// TeleportConfirmCommand acknowledges a server position update. Mandatory
// after every PositionEvent.
type TeleportConfirmCommand struct {
	TeleportID int32
}

// RespawnCommand requests a respawn after death, like a player clicking the
// respawn button.
type RespawnCommand struct{}

func (ChatCommand) command()            {}
func (MoveCommand) command()            {}
func (SwingCommand) command()           {}
func (SneakCommand) command()           {}
func (TeleportConfirmCommand) command() {}
func (RespawnCommand) command()         {}
