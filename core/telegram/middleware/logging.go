package middleware

import (
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m3rciful/feedbot/core/logger"
	"github.com/m3rciful/feedbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/feedbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers update ids whose receipt line was written, because
// LoggerMiddleware runs both globally and on each route.
type seenUpdates struct {
	mu   sync.Mutex
	ids  map[int]time.Time
	keep time.Duration
}

var receipts = &seenUpdates{ids: make(map[int]time.Time), keep: 10 * time.Second}

// first reports whether id is seen for the first time within keep.
func (s *seenUpdates) first(id int) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.ids[id]; ok && now.Sub(at) <= s.keep {
		return false
	}
	s.ids[id] = now
	if len(s.ids) > 1024 {
		for k, at := range s.ids {
			if now.Sub(at) > s.keep {
				delete(s.ids, k)
			}
		}
	}
	return true
}

// LoggerMiddleware sets the update rid and logging context, and writes one
// sampled receipt line per update. Message text is never logged, only its
// length and the command name.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.NewContext(c)
		upd := c.Update()
		if logger.ShouldSampleDebug() && receipts.first(upd.ID) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c, upd)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil && user.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
	}
	switch {
	case upd.Callback != nil:
		if key, _ := callbacks.ParseCallbackData(upd.Callback); key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 64)))
		}
	case upd.Message != nil:
		text := c.Text()
		if strings.HasPrefix(text, "/") {
			cmd, _, _ := strings.Cut(text, " ")
			attrs = append(attrs, slog.String("command", logger.SanitizeLimit(cmd, 64)))
		}
		attrs = append(attrs, slog.Int("text_len", utf8.RuneCountInString(text)))
	}
	return attrs
}
