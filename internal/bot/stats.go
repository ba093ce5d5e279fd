package bot

import (
	"fmt"
	"strings"

	tghelpers "github.com/m3rciful/feedbot/core/telegram/helpers"
	"github.com/m3rciful/feedbot/internal/feedback"
	"github.com/m3rciful/feedbot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) onStats(c tele.Context) error {
	texts := b.engine.Texts()
	rows, err := b.stats.Stats(tghelpers.BuildContext(c))
	if err != nil {
		_ = tghelpers.SendText(c, texts.InternalError)
		return fmt.Errorf("load stats: %w", err)
	}
	return tghelpers.SendText(c, FormatStats(texts, rows))
}

// FormatStats renders one line per category under the stats header.
func FormatStats(texts feedback.Texts, rows []storage.CategoryStats) string {
	if len(rows) == 0 {
		return texts.Stats.Empty
	}
	var sb strings.Builder
	sb.WriteString(texts.Stats.Header)
	for _, r := range rows {
		label := r.Category
		if cat, ok := feedback.ParseCategory(r.Category); ok {
			label = texts.Label(cat)
		}
		sb.WriteByte('\n')
		fmt.Fprintf(&sb, texts.Stats.Line, label, r.Total, r.AvgUsefulness, r.AvgUsability)
	}
	return sb.String()
}
