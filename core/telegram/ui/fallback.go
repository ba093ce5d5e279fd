// Package ui holds bot-level presentation hooks shared by routers.
package ui

import (
	tg "github.com/m3rciful/feedbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// FallbackProvider exposes handlers used when incoming updates cannot be
// mapped to commands, callbacks or an active conversation.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// InstallFallbacks sets the provider's handlers on reg. Nil handlers keep
// the registry defaults.
func InstallFallbacks(reg *tg.Registry, p FallbackProvider) {
	if reg == nil || p == nil {
		return
	}
	if h := p.UnknownCallback(); h != nil {
		reg.SetCallbackNotFound(h)
	}
	if h := p.UnknownText(); h != nil {
		reg.SetTextFallback(h)
	}
}
