package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/feedbot/core/logger"
	"github.com/m3rciful/feedbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// Message is one outbound text with its send options.
type Message struct {
	Text    string
	Options *tele.SendOptions
}

func orderKey(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	job := sender.Job{Key: orderKey(c), Action: action, Endpoint: endpoint, Run: run}
	if err := disp.Enqueue(ctx, job); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return SendBatch(c, Message{Text: text, Options: sendOpts})
}

// Keys of the per-update reply counters read by the handler summary.
const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// noteQueued counts msgs against the current update when they are queued,
// since the dispatcher may deliver them after the handler returns.
func noteQueued(c tele.Context, msgs []Message) {
	n, _ := c.Get(keyMessages).(int)
	c.Set(keyMessages, n+len(msgs))
	for _, m := range msgs {
		if m.Options != nil && m.Options.ReplyMarkup != nil && !m.Options.ReplyMarkup.RemoveKeyboard {
			c.Set(keyKeyboard, true)
			return
		}
	}
}

// Counters reports how many messages the update queued and whether any of
// them carried a keyboard.
func Counters(c tele.Context) (messages int, keyboard bool) {
	messages, _ = c.Get(keyMessages).(int)
	keyboard, _ = c.Get(keyKeyboard).(bool)
	return messages, keyboard
}

// SendBatch delivers msgs in order as a single dispatcher job. A retried job
// resumes after the last message that went through.
func SendBatch(c tele.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	noteQueued(c, msgs)
	action := "send.text"
	if len(msgs) > 1 {
		action = "send.batch"
	}
	next := 0
	return sendAsync(c, action, "sendMessage", func() error {
		for next < len(msgs) {
			m := msgs[next]
			var err error
			if m.Options != nil {
				err = c.Send(m.Text, m.Options)
			} else {
				err = c.Send(m.Text)
			}
			if err != nil {
				return err
			}
			next++
		}
		return nil
	})
}
