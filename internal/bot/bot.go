// Package bot connects the feedback conversation engine to Telegram.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/feedbot/core/logger"
	tg "github.com/m3rciful/feedbot/core/telegram"
	"github.com/m3rciful/feedbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/feedbot/core/telegram/helpers"
	"github.com/m3rciful/feedbot/internal/feedback"
	"github.com/m3rciful/feedbot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

// tokenSep joins a button's unique key and payload back into an engine token.
const tokenSep = ":"

// Engine is the part of *feedback.Engine the bot drives.
type Engine interface {
	Handle(ctx context.Context, actor feedback.Actor, ev feedback.Event) (feedback.Reply, error)
	AwaitsText(ctx context.Context, userID int64) bool
	CurrentStep(ctx context.Context, userID int64) (feedback.Step, error)
	Texts() feedback.Texts
}

// StatsSource aggregates stored feedback for /stats.
type StatsSource interface {
	Stats(ctx context.Context) ([]storage.CategoryStats, error)
}

// Bot turns Telegram updates into engine events and sends back the replies.
type Bot struct {
	engine Engine
	stats  StatsSource
}

// New builds a Bot. stats may be nil, in which case /stats is not registered.
func New(engine Engine, stats StatsSource) *Bot {
	return &Bot{engine: engine, stats: stats}
}

// Register adds the bot's commands and callback keys to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	errs := []error{
		reg.RegisterCommand("/start", tg.Command{
			Handler:     b.onStart,
			Description: "Start leaving feedback",
		}),
		reg.RegisterCommand("/menu", tg.Command{
			Handler:     b.onMenu,
			Description: "Back to the main menu",
		}),
	}
	if b.stats != nil {
		errs = append(errs, reg.RegisterCommand("/stats", tg.Command{
			Handler:     b.onStats,
			Description: "Feedback statistics",
			AdminOnly:   true,
		}))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	for _, prefix := range feedback.TokenPrefixes {
		if err := reg.RegisterCallback(prefix, b.onCallback); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) onStart(c tele.Context) error {
	return b.dispatch(c, feedback.Start{})
}

func (b *Bot) onMenu(c tele.Context) error {
	return b.dispatch(c, feedback.Navigate{Target: feedback.NavMenu})
}

func (b *Bot) onCallback(c tele.Context) error {
	token := callbacks.Token(c, tokenSep)
	ev, ok := feedback.ParseToken(token)
	if !ok {
		logger.Debug(tghelpers.BuildContext(c), "tg", "callback.malformed",
			slog.String("status", "skip"),
			slog.String("token", logger.SanitizeLimit(token, 64)),
		)
		return nil
	}
	return b.dispatch(c, ev)
}

// AwaitsText reports whether the sender's conversation waits for free text.
func (b *Bot) AwaitsText(c tele.Context) bool {
	user := c.Sender()
	if user == nil {
		return false
	}
	return b.engine.AwaitsText(tghelpers.BuildContext(c), user.ID)
}

// HandleText feeds the message text to the conversation.
func (b *Bot) HandleText(c tele.Context) error {
	return b.dispatch(c, feedback.SubmitText{Text: c.Text()})
}

// CurrentStep reports the sender's conversation step for log tagging.
func (b *Bot) CurrentStep(c tele.Context) (string, bool) {
	user := c.Sender()
	if user == nil {
		return "", false
	}
	step, err := b.engine.CurrentStep(tghelpers.BuildContext(c), user.ID)
	if err != nil {
		return "", false
	}
	return string(step), true
}

// dispatch runs ev through the engine and sends the reply. Send failures are
// logged and dropped; the engine error is returned for the handler summary.
func (b *Bot) dispatch(c tele.Context, ev feedback.Event) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	actor := feedback.Actor{UserID: user.ID, Username: user.Username}

	rep, err := b.engine.Handle(ctx, actor, ev)
	if !rep.Empty() {
		if sendErr := tghelpers.SendBatch(c, Render(rep)...); sendErr != nil {
			logger.Warn(ctx, "tg", "reply.send_failed",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(sendErr.Error(), 256)),
			)
		}
	}
	return err
}
