// ABOUTME: Typed inbound protocol events delivered to a session handler.
// ABOUTME: A closed set of variants; handlers dispatch with a type switch.

package protocol

// Event is an inbound protocol event. The set of implementations is closed;
// handlers are expected to type-switch over it.
type Event interface {
	event()
}

// LoginEvent carries the entity id assigned to the bot on join.
type LoginEvent struct {
	EntityID int32
}

// PositionEvent is an authoritative position update from the server. Every
// PositionEvent must be answered with a TeleportConfirmCommand carrying the
// same TeleportID, or the server considers the client desynced.
type PositionEvent struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	World      string
	TeleportID int32
}

// RespawnEvent signals a dimension change or death respawn. The previous
// position is no longer valid until the next PositionEvent.
type RespawnEvent struct{}

// HealthEvent carries the bot's current health and food levels.
type HealthEvent struct {
	Health float32
	Food   int32
}

// ChatEvent is a chat message visible to the bot, either system-generated or
// player-authored.
type ChatEvent struct {
	Content string
	Player  bool
}

// ConnectedEvent signals that the session is established and the bot is in
// the world.
type ConnectedEvent struct{}

// DisconnectingEvent carries the server-announced reason shortly before the
// connection drops.
type DisconnectingEvent struct {
	Reason string
}

// DisconnectedEvent signals that the session is gone. Reason may be empty
// when the transport failed without a server-announced cause.
type DisconnectedEvent struct {
	Reason string
}

// PacketErrorEvent reports a frame the session could not decode. The session
// stays up.
type PacketErrorEvent struct {
	Err error
}

func (LoginEvent) event()         {}
func (PositionEvent) event()      {}
func (RespawnEvent) event()       {}
func (HealthEvent) event()        {}
func (ChatEvent) event()          {}
func (ConnectedEvent) event()     {}
func (DisconnectingEvent) event() {}
func (DisconnectedEvent) event()  {}
func (PacketErrorEvent) event()   {}

// Handler receives inbound events. Calls arrive on the session's read-loop
// goroutine and must not block beyond emitting outbound commands.
type Handler interface {
	HandleEvent(ev Event)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(Event)

// HandleEvent calls f(ev).
func (f HandlerFunc) HandleEvent(ev Event) {
	f(ev)
}
