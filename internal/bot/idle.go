// ABOUTME: Scripted idle activity keeping bots from being flagged as AFK
// ABOUTME: Action variants use randomized timing and server-plausible movement

package bot

import (
	"math"
	"time"

	"github.com/ximpify/rentabot/internal/protocol"
)

const (
	// idleReentryWindow suppresses a new idle action while the previous one
	// may still be playing out.
	idleReentryWindow = 2 * time.Second

	// jump physics, matching vanilla client movement
	jumpInitialVelocity = 0.42
	jumpGravity         = 0.08
	jumpTickInterval    = 50 * time.Millisecond
)

// PerformIdleActivity runs one randomized idle action: a short pre-delay,
// an optional arm-swing flourish, then one variant picked from the
// configured set. It is a no-op while disconnected, before the first
// position arrives, or inside the re-entry window of the previous action.
func (b *Bot) PerformIdleActivity() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected || b.session == nil {
		return
	}
	if !b.posInit {
		b.logger.Debug("skipping idle action, no position yet")
		return
	}
	if time.Since(b.lastAction) < idleReentryWindow {
		b.logger.Debug("skipping idle action, previous still in progress")
		return
	}
	b.lastAction = time.Now()

	types := b.deps.Behavior.IdleActivity.Types
	if len(types) == 0 {
		return
	}

	// Random pre-delay keeps the timing unpredictable to AFK detectors.
	preDelay := time.Duration(b.rng.Float64() * 1500 * float64(time.Millisecond))
	gen := b.gen

	b.after(preDelay, gen, func() {
		variant := types[b.rng.Intn(len(types))]
		b.logger.Debug("performing idle action", "variant", variant,
			"x", b.pos.X, "y", b.pos.Y, "z", b.pos.Z)

		if b.rng.Float64() < 0.3 {
			b.sendLocked(protocol.SwingCommand{})
		}

		b.runIdleActionLocked(variant, gen)
	})
}

func (b *Bot) runIdleActionLocked(variant string, gen uint64) {
	switch variant {
	case "look":
		b.idleLookLocked(gen)
	case "sneak":
		b.idleSneakLocked(gen)
	case "jump":
		b.idleJumpLocked(gen)
	case "move":
		b.idleMoveLocked(gen)
	case "swing":
		b.idleSwingLocked(gen)
	case "combo", "all":
		b.idleComboLocked(gen)
	default:
		b.logger.Debug("unknown idle action variant", "variant", variant)
	}
}

// idleLookLocked glances aside and looks back a second later.
func (b *Bot) idleLookLocked(gen uint64) {
	newYaw := b.pos.Yaw + float32(b.rng.Float64()*30-15)
	newPitch := clampPitch(b.pos.Pitch + float32(b.rng.Float64()*20-10))

	b.sendLocked(b.moveCommandLocked(newYaw, newPitch, true))
	b.pos.Yaw = newYaw
	b.pos.Pitch = newPitch

	b.after(time.Second, gen, func() {
		returnYaw := b.pos.Yaw - float32(b.rng.Float64()*20-10)
		b.sendLocked(b.moveCommandLocked(returnYaw, b.pos.Pitch, true))
		b.pos.Yaw = returnYaw
	})
}

// idleSneakLocked crouches for one to three seconds.
func (b *Bot) idleSneakLocked(gen uint64) {
	b.sendLocked(
		protocol.SneakCommand{Sneaking: true},
		b.moveCommandLocked(b.pos.Yaw, b.pos.Pitch, true),
	)

	duration := time.Second + time.Duration(b.rng.Float64()*2*float64(time.Second))
	b.after(duration, gen, func() {
		b.sendLocked(
			protocol.SneakCommand{Sneaking: false},
			b.moveCommandLocked(b.pos.Yaw, b.pos.Pitch, true),
		)
	})
}

// idleJumpLocked plays a full jump arc tick by tick so the server's physics
// checks see a plausible trajectory. The arc ends exactly at the starting Y.
func (b *Bot) idleJumpLocked(gen uint64) {
	startY := b.pos.Y
	b.logger.Debug("jumping", "start_y", startY)

	go func() {
		velocity := jumpInitialVelocity
		currentY := startY

		// Ascending phase.
		for velocity > 0 {
			currentY += velocity
			velocity -= jumpGravity
			if !b.sendJumpFrame(gen, currentY, false) {
				return
			}
			time.Sleep(jumpTickInterval)
		}

		// Descending phase.
		for currentY > startY {
			velocity -= jumpGravity
			currentY += velocity
			if currentY <= startY {
				currentY = startY
			}
			if !b.sendJumpFrame(gen, currentY, currentY <= startY) {
				return
			}
			time.Sleep(jumpTickInterval)
		}

		b.sendJumpFrame(gen, startY, true)
	}()
}

// sendJumpFrame sends one arc position, reporting false once the session
// the jump started under is gone.
func (b *Bot) sendJumpFrame(gen uint64, y float64, onGround bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != gen || !b.connected {
		return false
	}
	b.sendLocked(protocol.MoveCommand{
		X: b.pos.X, Y: y, Z: b.pos.Z,
		Yaw: b.pos.Yaw, Pitch: b.pos.Pitch,
		OnGround: onGround,
	})
	return true
}

// idleMoveLocked steps a short distance in a random direction and returns.
func (b *Bot) idleMoveLocked(gen uint64) {
	distance := 0.1 + b.rng.Float64()*0.2
	angle := b.rng.Float64() * 2 * math.Pi
	newX := b.pos.X + math.Cos(angle)*distance
	newZ := b.pos.Z + math.Sin(angle)*distance
	origX, origZ := b.pos.X, b.pos.Z

	b.sendLocked(protocol.MoveCommand{
		X: newX, Y: b.pos.Y, Z: newZ,
		Yaw: b.pos.Yaw, Pitch: b.pos.Pitch, OnGround: true,
	})

	b.after(time.Second, gen, func() {
		b.sendLocked(protocol.MoveCommand{
			X: origX, Y: b.pos.Y, Z: origZ,
			Yaw: b.pos.Yaw, Pitch: b.pos.Pitch, OnGround: true,
		})
	})
}

// idleSwingLocked swings the arm, sometimes twice.
func (b *Bot) idleSwingLocked(gen uint64) {
	b.sendLocked(protocol.SwingCommand{})

	if b.rng.Float64() < 0.4 {
		delay := time.Duration(250+b.rng.Intn(500)) * time.Millisecond
		b.after(delay, gen, func() {
			b.sendLocked(protocol.SwingCommand{})
		})
	}
}

// idleComboLocked layers a glance, an arm swing, and a step-and-return.
func (b *Bot) idleComboLocked(gen uint64) {
	newYaw := b.pos.Yaw + float32(b.rng.Float64()*40-20)
	newPitch := clampPitch(b.pos.Pitch + float32(b.rng.Float64()*20-10))
	b.sendLocked(b.moveCommandLocked(newYaw, newPitch, true))
	b.pos.Yaw = newYaw
	b.pos.Pitch = newPitch

	b.sendLocked(protocol.SwingCommand{})

	distance := 0.05 + b.rng.Float64()*0.15
	angle := b.rng.Float64() * 2 * math.Pi
	newX := b.pos.X + math.Cos(angle)*distance
	newZ := b.pos.Z + math.Sin(angle)*distance
	origX, origZ := b.pos.X, b.pos.Z

	b.after(500*time.Millisecond, gen, func() {
		b.sendLocked(protocol.MoveCommand{
			X: newX, Y: b.pos.Y, Z: newZ,
			Yaw: b.pos.Yaw, Pitch: b.pos.Pitch, OnGround: true,
		})
		b.after(500*time.Millisecond, gen, func() {
			b.sendLocked(protocol.MoveCommand{
				X: origX, Y: b.pos.Y, Z: origZ,
				Yaw: b.pos.Yaw, Pitch: b.pos.Pitch, OnGround: true,
			})
		})
	})
}

// moveCommandLocked builds a position command holding the current location
// with the given view angles.
func (b *Bot) moveCommandLocked(yaw, pitch float32, onGround bool) protocol.MoveCommand {
	return protocol.MoveCommand{
		X: b.pos.X, Y: b.pos.Y, Z: b.pos.Z,
		Yaw: yaw, Pitch: pitch, OnGround: onGround,
	}
}

func clampPitch(p float32) float32 {
	if p < -90 {
		return -90
	}
	if p > 90 {
		return 90
	}
	return p
}
