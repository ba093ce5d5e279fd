package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/feedbot/core/telegram"
	"github.com/m3rciful/feedbot/core/telegram/callbacks"
	"github.com/m3rciful/feedbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound overrides the registry fallback for unknown keys.
	NotFound tele.HandlerFunc
	// Wrap is applied to the callback handler inside the logger middleware.
	Wrap []tele.MiddlewareFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Known callbacks are acknowledged before dispatch so the client stops its
// spinner; the not-found fallback answers on its own.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	var handler tele.HandlerFunc = func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := opts.NotFound
			if fallback == nil {
				fallback = reg.CallbackNotFound()
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return run(c, name, start, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return c.Respond()
			}, extras...)
		}

		_ = c.Respond()
		return run(c, name, start, func() error {
			return cbHandler(c)
		}, extras...)
	}

	for i := len(opts.Wrap) - 1; i >= 0; i-- {
		if opts.Wrap[i] != nil {
			handler = opts.Wrap[i](handler)
		}
	}

	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
