package bot

import tele "gopkg.in/telebot.v4"

// UnknownText drops free text the conversation is not waiting for.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(tele.Context) error { return nil }
}

// UnknownCallback silently acknowledges buttons with an unknown key, such as
// ones left over from an older keyboard layout.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error { return c.Respond() }
}

// OnRateLimited acknowledges throttled callbacks so the client spinner stops.
func (b *Bot) OnRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond()
	}
	return nil
}
