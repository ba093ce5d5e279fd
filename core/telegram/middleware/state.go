package middleware

import (
	"log/slog"

	"github.com/m3rciful/feedbot/core/logger"
	tghelpers "github.com/m3rciful/feedbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// StepSource reports the conversation step a user is currently in.
type StepSource interface {
	CurrentStep(c tele.Context) (string, bool)
}

// StepFunc adapts a function to StepSource.
type StepFunc func(c tele.Context) (string, bool)

// CurrentStep calls f.
func (f StepFunc) CurrentStep(c tele.Context) (string, bool) { return f(c) }

// ConversationStep tags the update's logging context with the sender's
// current conversation step, so every log line of the update carries it.
func ConversationStep(src StepSource) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if src == nil || c.Sender() == nil {
				return next(c)
			}
			step, ok := src.CurrentStep(c)
			if !ok || step == "" {
				return next(c)
			}
			ctx := logger.WithStep(tghelpers.BuildContext(c), step)
			tghelpers.StoreContext(c, ctx)
			logger.Debug(ctx, "tg", "conversation.step", slog.String("status", "ok"))
			return next(c)
		}
	}
}
