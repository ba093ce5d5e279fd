package router

import (
	"time"

	tg "github.com/m3rciful/feedbot/core/telegram"
	"github.com/m3rciful/feedbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free text while a dialog is waiting for it.
type Conversation interface {
	AwaitsText(c tele.Context) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
	// Wrap is applied to the text handler inside the logger middleware,
	// after rid and logging context are set up.
	Wrap []tele.MiddlewareFunc
}

// TextRoutes builds the OnText route. Text goes to the conversation when it
// awaits input, then to command aliases, then to the registry fallback.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	var handler tele.HandlerFunc = func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if conv != nil && conv.AwaitsText(c) {
			return run(c, "conversation.text", start, func() error {
				return conv.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := "command." + normalizeHandlerName(key)
				return run(c, name, start, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return run(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return run(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		summarize(c, "unknown_text", start, "skip", nil)
		return nil
	}

	for i := len(opts.Wrap) - 1; i >= 0; i-- {
		if opts.Wrap[i] != nil {
			handler = opts.Wrap[i](handler)
		}
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
