// ABOUTME: Tests for the JSON frame codec.
// ABOUTME: Covers inbound event decoding and outbound command encoding.

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name string
		in   frame
		want Event
	}{
		{
			name: "login",
			in:   frame{Type: frameLogin, EntityID: 42},
			want: LoginEvent{EntityID: 42},
		},
		{
			name: "position carries teleport id",
			in:   frame{Type: framePosition, X: 1.5, Y: 64, Z: -3.25, Yaw: 90, Pitch: -10, World: "world", TeleportID: 7},
			want: PositionEvent{X: 1.5, Y: 64, Z: -3.25, Yaw: 90, Pitch: -10, World: "world", TeleportID: 7},
		},
		{
			name: "respawn",
			in:   frame{Type: frameRespawn},
			want: RespawnEvent{},
		},
		{
			name: "health",
			in:   frame{Type: frameHealth, Health: 12.5, Food: 18},
			want: HealthEvent{Health: 12.5, Food: 18},
		},
		{
			name: "player chat",
			in:   frame{Type: frameChat, Content: "hello", Player: true},
			want: ChatEvent{Content: "hello", Player: true},
		},
		{
			name: "disconnect reason",
			in:   frame{Type: frameDisconnect, Reason: "Kicked for spamming"},
			want: DisconnectingEvent{Reason: "Kicked for spamming"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeFrame(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeFrame_Unknown(t *testing.T) {
	_, err := decodeFrame(frame{Type: "mystery"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mystery")
}

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name string
		in   Command
		want frame
	}{
		{
			name: "chat command",
			in:   ChatCommand{Command: "tpaccept"},
			want: frame{Type: frameChatCommand, Command: "tpaccept"},
		},
		{
			name: "move",
			in:   MoveCommand{X: 10, Y: 65, Z: 20, Yaw: 45, Pitch: 5, OnGround: true},
			want: frame{Type: frameMove, X: 10, Y: 65, Z: 20, Yaw: 45, Pitch: 5, OnGround: true},
		},
		{
			name: "teleport confirm echoes id",
			in:   TeleportConfirmCommand{TeleportID: 99},
			want: frame{Type: frameTeleportAck, TeleportID: 99},
		},
		{
			name: "sneak on",
			in:   SneakCommand{Sneaking: true},
			want: frame{Type: frameSneak, Sneaking: true},
		},
		{
			name: "swing",
			in:   SwingCommand{},
			want: frame{Type: frameSwing},
		},
		{
			name: "respawn request",
			in:   RespawnCommand{},
			want: frame{Type: frameRespawnReq},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeCommand(tt.in))
		})
	}
}
