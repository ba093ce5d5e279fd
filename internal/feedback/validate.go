package feedback

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/feedbot/core/telegram/format"
)

const (
	minEmailLen = 6
	maxEmailLen = 254

	// EchoLimit bounds how much of a comment is echoed back in the closing message.
	EchoLimit = 600
	echoMore  = "…"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

// ValidEmail is a shape check, not RFC validation.
func ValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < minEmailLen || n > maxEmailLen {
		return false
	}
	return emailRe.MatchString(s)
}

// ValidText rejects empty and whitespace-only input.
func ValidText(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ValidScore accepts 1..5.
func ValidScore(n int) bool {
	return n >= 1 && n <= 5
}

// EchoComment truncates a comment for display and escapes it for HTML parse mode.
func EchoComment(s string) string {
	return format.EscapeHTML(format.Truncate(s, EchoLimit, echoMore))
}
