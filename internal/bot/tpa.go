// ABOUTME: Teleport-request handling based on chat pattern matching
// ABOUTME: Owner requests are accepted and anchor the spawn point, others are denied

package bot

import (
	"strings"
	"time"

	"github.com/ximpify/rentabot/internal/protocol"
)

func chatCommand(command string) protocol.ChatCommand {
	return protocol.ChatCommand{Command: command}
}

const (
	tpaResponseDelay = 1 * time.Second
	// tpaHereAnchorDelay waits for the teleport to land before reading the
	// position back as the new anchor.
	tpaHereAnchorDelay = 2 * time.Second
)

// handleChat scans an incoming chat line for teleport requests. Matching is
// substring based against the configured pattern lists, case-insensitive.
func (b *Bot) handleChat(content string) {
	message := strings.ToLower(content)
	b.logger.Debug("chat received", "message", message)

	isTPA := matchesAny(message, b.deps.Behavior.TPAPatterns)
	isTPAHere := false
	if !isTPA {
		isTPAHere = matchesAny(message, b.deps.Behavior.TPAHerePatterns)
	}
	if !isTPA && !isTPAHere {
		return
	}

	requester := extractRequester(message)
	if requester == "" {
		return
	}

	gen := b.gen
	if strings.EqualFold(requester, b.ownerName) {
		switch {
		case isTPA && b.deps.Behavior.AcceptOwnerTPA:
			b.logger.Debug("accepting teleport request from owner", "requester", requester)
			b.after(tpaResponseDelay, gen, func() {
				b.sendLocked(chatCommand("tpaccept"))
				// The owner lands at the bot, so the bot's current spot
				// becomes the anchor right away.
				b.saveSpawnLocked()
			})
		case isTPAHere && b.deps.Behavior.AcceptOwnerTPAHere:
			b.logger.Debug("accepting teleport-here request from owner", "requester", requester)
			b.after(tpaResponseDelay, gen, func() {
				b.sendLocked(chatCommand("tpaccept"))
				b.after(tpaHereAnchorDelay, gen, func() {
					b.saveSpawnLocked()
				})
			})
		}
		return
	}

	if b.deps.Behavior.DenyOthersTPA {
		b.logger.Debug("denying teleport request", "requester", requester)
		b.after(tpaResponseDelay, gen, func() {
			b.sendLocked(chatCommand("tpdeny"))
		})
	}
}

func matchesAny(message string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(message, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// extractRequester pulls the requesting player's name out of a chat line.
// Plugins put the name first, so the first token stripped of decoration is
// the best guess.
func extractRequester(message string) string {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range fields[0] {
		if isNameRune(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
