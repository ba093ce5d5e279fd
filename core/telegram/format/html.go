// Package format prepares user-provided text for Telegram messages.
package format

import "strings"

// htmlEscaper covers the characters Telegram's HTML parse mode requires to
// be escaped outside tags and entities.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML makes s safe to embed in a ModeHTML message.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Truncate cuts s to at most limit runes and appends more when it had to
// cut. A limit <= 0 disables truncation.
func Truncate(s string, limit int, more string) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + more
		}
		n++
	}
	return s
}
