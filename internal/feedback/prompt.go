package feedback

import (
	"fmt"
	"strconv"
	"strings"
)

// Choice is a single button: a label and the event token it sends back.
type Choice struct {
	Label string
	Token string
}

// Prompt is one outbound message. Choices are laid out in rows.
type Prompt struct {
	Text    string
	Choices [][]Choice
	// HTML marks Text as HTML parse mode.
	HTML bool
	// RemoveKeyboard asks the transport to send the message without any markup.
	RemoveKeyboard bool
}

// Reply is everything an event produces, in send order.
type Reply struct {
	Prompts []Prompt
}

func reply(prompts ...Prompt) Reply {
	return Reply{Prompts: prompts}
}

// Empty reports whether nothing should be sent.
func (r Reply) Empty() bool {
	return len(r.Prompts) == 0
}

func (e *Engine) menuPrompt() Prompt {
	b := e.texts.Buttons
	return Prompt{
		Text: e.texts.Greeting,
		Choices: [][]Choice{
			{{Label: b.Review, Token: token(TokenMenu, string(CategoryReview))}},
			{{Label: b.Bug, Token: token(TokenMenu, string(CategoryBug))}},
			{{Label: b.Idea, Token: token(TokenMenu, string(CategoryIdea))}},
		},
	}
}

func (e *Engine) backToMenu() [][]Choice {
	return [][]Choice{{{Label: e.texts.Buttons.BackToMenu, Token: token(TokenNav, string(NavMenu))}}}
}

func (e *Engine) afterSaved() [][]Choice {
	b := e.texts.Buttons
	return [][]Choice{
		{{Label: b.SendMore, Token: token(TokenNav, string(NavMenu))}},
		{{Label: b.Close, Token: token(TokenNav, string(NavClose))}},
	}
}

func (e *Engine) introPrompt(c Category) Prompt {
	text := e.texts.ReviewIntro
	switch c {
	case CategoryBug:
		text = e.texts.BugIntro
	case CategoryIdea:
		text = e.texts.IdeaIntro
	}
	formats := FormatsFor(c)
	row := make([]Choice, 0, len(formats))
	for _, f := range formats {
		row = append(row, Choice{Label: e.formatLabel(f), Token: token(TokenFormat, string(c), string(f))})
	}
	return Prompt{Text: text, Choices: append([][]Choice{row}, e.backToMenu()...)}
}

func (e *Engine) formatLabel(f Format) string {
	switch f {
	case FormatShort:
		return e.texts.Buttons.Short
	case FormatDetailed:
		return e.texts.Buttons.Detailed
	default:
		return e.texts.Buttons.Template
	}
}

func (e *Engine) guidePrompt(c Category, f Format) Prompt {
	var guide string
	switch c {
	case CategoryBug:
		guide = e.texts.BugTemplate
	case CategoryIdea:
		guide = e.texts.IdeaTemplate
	default:
		switch f {
		case FormatShort:
			guide = e.texts.ReviewShort
		case FormatDetailed:
			guide = e.texts.ReviewDetailed
		default:
			guide = e.texts.ReviewTemplate
		}
	}
	return Prompt{Text: guide + "\n\n" + e.texts.AskWrite, Choices: e.backToMenu()}
}

func (e *Engine) ratingPrompt(text, prefix string) Prompt {
	row := make([]Choice, 0, 5)
	for n := 1; n <= 5; n++ {
		row = append(row, Choice{
			Label: fmt.Sprintf(e.texts.Buttons.Star, n),
			Token: token(prefix, strconv.Itoa(n)),
		})
	}
	return Prompt{Text: text, Choices: [][]Choice{row}}
}

func (e *Engine) followupOffer() Prompt {
	b := e.texts.Buttons
	return Prompt{
		Text: e.texts.FollowupOffer,
		Choices: [][]Choice{
			{{Label: b.FollowupYes, Token: token(TokenFollowup, "yes")}},
			{{Label: b.FollowupNo, Token: token(TokenFollowup, "no")}},
		},
	}
}

func (e *Engine) contactPrompt(text string) Prompt {
	b := e.texts.Buttons
	return Prompt{
		Text: text,
		Choices: [][]Choice{
			{{Label: b.ContactTG, Token: token(TokenContact, string(ContactTelegram))}},
			{{Label: b.ContactMail, Token: token(TokenContact, string(ContactEmail))}},
			{{Label: b.ContactNone, Token: token(TokenContact, string(ContactNone))}},
		},
	}
}

func (e *Engine) saveErrorPrompt(err *PersistenceError) Prompt {
	return Prompt{Text: fmt.Sprintf(e.texts.SaveError, err.Code()), Choices: e.backToMenu()}
}

// Bucket classifies the averaged ratings.
type Bucket string

const (
	BucketHigh Bucket = "high"
	BucketMid  Bucket = "mid"
	BucketLow  Bucket = "low"
)

// Average returns the mean of the two ratings.
func Average(usefulness, usability int) float64 {
	return float64(usefulness+usability) / 2
}

// BucketOf maps averaged ratings: >= 4 high, >= 3 mid, else low.
func BucketOf(usefulness, usability int) Bucket {
	switch avg := Average(usefulness, usability); {
	case avg >= 4:
		return BucketHigh
	case avg >= 3:
		return BucketMid
	default:
		return BucketLow
	}
}

// OffersFollowup reports whether the follow-up offer precedes the contact prompt.
func OffersFollowup(usefulness, usability int) bool {
	return Average(usefulness, usability) <= 3
}

const fallbackTail = "Thank you for the feedback."

func (e *Engine) closingMessage(c Category, comment string, usefulness, usability int) Prompt {
	label := e.texts.Label(c)
	var header string
	switch c {
	case CategoryBug:
		header = "🐞 " + label + " recorded."
	case CategoryIdea:
		header = "💡 " + label + " recorded."
	default:
		header = "✅ " + label + " recorded."
	}

	var pool []string
	switch BucketOf(usefulness, usability) {
	case BucketHigh:
		pool = e.texts.Final.High
	case BucketMid:
		pool = e.texts.Final.Mid
	default:
		pool = e.texts.Final.Low
	}
	tail := fallbackTail
	if len(pool) > 0 {
		tail = pool[e.picker.Pick(len(pool))]
	}

	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "\n\n⭐ Usefulness: %d/5\n⭐ Usability: %d/5", usefulness, usability)
	b.WriteString("\n\n")
	b.WriteString(tail)
	if ValidText(comment) {
		b.WriteString("\n\n📝 Message:\n<code>")
		b.WriteString(EchoComment(comment))
		b.WriteString("</code>")
	}
	return Prompt{Text: b.String(), HTML: true, RemoveKeyboard: true}
}
