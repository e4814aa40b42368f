// ABOUTME: JSON wire framing for the websocket bot protocol.
// ABOUTME: Maps frames to the typed Event and Command sets.

package protocol

import "fmt"

// Frame type discriminators. Clientbound and serverbound share the envelope.
const (
	frameHello      = "hello"
	frameLogin      = "login"
	framePosition   = "position"
	frameRespawn    = "respawn"
	frameHealth     = "health"
	frameChat       = "chat"
	frameDisconnect = "disconnect"

	frameChatCommand = "chat_command"
	frameMove        = "move"
	frameSwing       = "swing"
	frameSneak       = "sneak"
	frameTeleportAck = "teleport_ack"
	frameRespawnReq  = "respawn_request"
)

// frame is the shared JSON envelope. Only the fields relevant to Type are
// populated.
type frame struct {
	Type string `json:"type"`

	Username string `json:"username,omitempty"`
	EntityID int32  `json:"entity_id,omitempty"`

	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Z          float64 `json:"z,omitempty"`
	Yaw        float32 `json:"yaw,omitempty"`
	Pitch      float32 `json:"pitch,omitempty"`
	World      string  `json:"world,omitempty"`
	TeleportID int32   `json:"teleport_id,omitempty"`
	OnGround   bool    `json:"on_ground,omitempty"`

	Health float32 `json:"health,omitempty"`
	Food   int32   `json:"food,omitempty"`

	Content string `json:"content,omitempty"`
	Player  bool   `json:"player,omitempty"`

	Command  string `json:"command,omitempty"`
	Sneaking bool   `json:"sneaking,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// decodeFrame converts an inbound frame into its Event variant.
func decodeFrame(f frame) (Event, error) {
	switch f.Type {
	case frameLogin:
		return LoginEvent{EntityID: f.EntityID}, nil
	case framePosition:
		return PositionEvent{
			X: f.X, Y: f.Y, Z: f.Z,
			Yaw: f.Yaw, Pitch: f.Pitch,
			World:      f.World,
			TeleportID: f.TeleportID,
		}, nil
	case frameRespawn:
		return RespawnEvent{}, nil
	case frameHealth:
		return HealthEvent{Health: f.Health, Food: f.Food}, nil
	case frameChat:
		return ChatEvent{Content: f.Content, Player: f.Player}, nil
	case frameDisconnect:
		return DisconnectingEvent{Reason: f.Reason}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}

// encodeCommand converts an outbound command into its wire frame.
func encodeCommand(cmd Command) frame {
	switch c := cmd.(type) {
	case ChatCommand:
		return frame{Type: frameChatCommand, Command: c.Command}
	case MoveCommand:
		return frame{
			Type: frameMove,
			X:    c.X, Y: c.Y, Z: c.Z,
			Yaw: c.Yaw, Pitch: c.Pitch,
			OnGround: c.OnGround,
		}
	case SwingCommand:
		return frame{Type: frameSwing}
	case SneakCommand:
		return frame{Type: frameSneak, Sneaking: c.Sneaking}
	case TeleportConfirmCommand:
		return frame{Type: frameTeleportAck, TeleportID: c.TeleportID}
	case RespawnCommand:
		return frame{Type: frameRespawnReq}
	default:
		// The Command set is closed; hitting this is a programming error.
		panic(fmt.Sprintf("unknown command type %T", cmd))
	}
}
