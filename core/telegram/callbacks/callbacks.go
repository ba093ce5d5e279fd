// Package callbacks decodes inline button callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Separator joins unique and payload inside telebot callback data.
const Separator = "|"

// ParseCallbackData splits telebot's "\f<unique>|<payload>" encoding.
// When telebot already routed the callback to a unique handler, Unique is
// set and Data holds the bare payload.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	unique, payload, _ := strings.Cut(raw, Separator)
	return strings.TrimSpace(unique), payload
}

// Token reassembles the callback as "<unique><sep><payload>", the form in
// which the button was declared. A callback without payload yields unique.
func Token(c tele.Context, sep string) string {
	unique, payload := ParseCallbackData(c.Callback())
	if payload == "" {
		return unique
	}
	return unique + sep + payload
}

// SplitToken is the inverse of Token: the part before the first sep becomes
// the unique key and the rest the payload.
func SplitToken(token, sep string) (unique, payload string) {
	unique, payload, _ = strings.Cut(token, sep)
	return unique, payload
}
