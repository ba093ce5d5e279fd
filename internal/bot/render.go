package bot

import (
	"github.com/m3rciful/feedbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/feedbot/core/telegram/helpers"
	"github.com/m3rciful/feedbot/core/telegram/keyboard"
	"github.com/m3rciful/feedbot/internal/feedback"

	tele "gopkg.in/telebot.v4"
)

// Render converts engine prompts into outbound messages, in order.
func Render(rep feedback.Reply) []tghelpers.Message {
	msgs := make([]tghelpers.Message, 0, len(rep.Prompts))
	for _, p := range rep.Prompts {
		opts := &tele.SendOptions{}
		if p.HTML {
			opts.ParseMode = tele.ModeHTML
		}
		switch {
		case len(p.Choices) > 0:
			opts.ReplyMarkup = choicesMarkup(p.Choices)
		case p.RemoveKeyboard:
			opts.ReplyMarkup = keyboard.RemoveKeyboard()
		}
		msgs = append(msgs, tghelpers.Message{Text: p.Text, Options: opts})
	}
	return msgs
}

func choicesMarkup(rows [][]feedback.Choice) *tele.ReplyMarkup {
	btnRows := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, ch := range row {
			unique, payload := callbacks.SplitToken(ch.Token, tokenSep)
			btns = append(btns, keyboard.InlineBtn{Text: ch.Label, Unique: unique, Data: payload})
		}
		btnRows = append(btnRows, btns)
	}
	return keyboard.InlineButtonsRows(btnRows...)
}
