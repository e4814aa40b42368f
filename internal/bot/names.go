// ABOUTME: Username sanitization for game-server connection names
// ABOUTME: Produces valid account names regardless of what the owner typed

package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// SanitizeUsername turns an arbitrary string into a valid game account name.
// Valid names contain only [a-zA-Z0-9_] and are 3 to 16 characters long.
// The first letter after each underscore is capitalized so the name round
// trips through case-sensitive auth plugins.
func SanitizeUsername(name string) string {
	var b strings.Builder
	capitalizeNext := true
	for _, r := range name {
		switch {
		case r == '_':
			b.WriteRune(r)
			capitalizeNext = true
		case isNameRune(r):
			if capitalizeNext {
				b.WriteRune(unicode.ToUpper(r))
				capitalizeNext = false
			} else {
				b.WriteRune(r)
			}
		}
	}

	sanitized := b.String()
	if sanitized == "" {
		sanitized = fmt.Sprintf("Bot_%d", time.Now().UnixMilli()%10000)
	}
	if len(sanitized) > 16 {
		sanitized = sanitized[:16]
	}
	if len(sanitized) < 3 {
		sanitized += "_Bot"
	}
	return sanitized
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
