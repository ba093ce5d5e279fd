package feedback

import (
	"fmt"
	"strings"
)

// Texts holds every user-facing string. Config overrides any subset.
type Texts struct {
	Greeting string `yaml:"greeting"`
	Close    string `yaml:"close"`

	ReviewIntro string `yaml:"review_intro"`
	BugIntro    string `yaml:"bug_intro"`
	IdeaIntro   string `yaml:"idea_intro"`

	ReviewShort    string `yaml:"review_short"`
	ReviewTemplate string `yaml:"review_template"`
	ReviewDetailed string `yaml:"review_detailed"`
	BugTemplate    string `yaml:"bug_template"`
	IdeaTemplate   string `yaml:"idea_template"`
	AskWrite       string `yaml:"ask_write"`

	AskUsefulness string `yaml:"ask_usefulness"`
	AskUsability  string `yaml:"ask_usability"`

	// SaveError is a format string receiving the backend error code.
	SaveError     string `yaml:"save_error"`
	InternalError string `yaml:"internal_error"`

	FollowupOffer string `yaml:"followup_offer"`
	FollowupAsk   string `yaml:"followup_ask"`
	FollowupSaved string `yaml:"followup_saved"`

	ContactAsk      string `yaml:"contact_ask"`
	EmailAsk        string `yaml:"email_ask"`
	EmailInvalid    string `yaml:"email_invalid"`
	ContactSavedAs  string `yaml:"contact_saved_as"`
	ContactSaved    string `yaml:"contact_saved"`
	ContactDeclined string `yaml:"contact_declined"`

	Labels  CategoryLabels `yaml:"labels"`
	Final   FinalPools     `yaml:"final"`
	Buttons ButtonLabels   `yaml:"buttons"`
	Stats   StatsTexts     `yaml:"stats"`
}

// CategoryLabels names categories in closing messages.
type CategoryLabels struct {
	Review string `yaml:"review"`
	Bug    string `yaml:"bug"`
	Idea   string `yaml:"idea"`
}

// FinalPools are the closing-message tails per score bucket.
type FinalPools struct {
	High []string `yaml:"high"`
	Mid  []string `yaml:"mid"`
	Low  []string `yaml:"low"`
}

// ButtonLabels are inline keyboard captions.
type ButtonLabels struct {
	Review      string `yaml:"review"`
	Bug         string `yaml:"bug"`
	Idea        string `yaml:"idea"`
	Short       string `yaml:"short"`
	Template    string `yaml:"template"`
	Detailed    string `yaml:"detailed"`
	BackToMenu  string `yaml:"back_to_menu"`
	SendMore    string `yaml:"send_more"`
	Close       string `yaml:"close"`
	FollowupYes string `yaml:"followup_yes"`
	FollowupNo  string `yaml:"followup_no"`
	ContactTG   string `yaml:"contact_tg"`
	ContactMail string `yaml:"contact_email"`
	ContactNone string `yaml:"contact_none"`
	// Star is a format string receiving the score.
	Star string `yaml:"star"`
}

// StatsTexts format the admin /stats reply.
type StatsTexts struct {
	Header string `yaml:"header"`
	// Line receives label, count, avg usefulness, avg usability.
	Line  string `yaml:"line"`
	Empty string `yaml:"empty"`
}

// DefaultTexts returns the built-in English texts.
func DefaultTexts() Texts {
	return Texts{
		Greeting: "Hi! This bot collects feedback about the app.\n\nWhat would you like to do?",
		Close:    "Thanks! The dialog is closed. Send /start any time to come back.",

		ReviewIntro: "Great, let's write a review. Pick a format or just type your message.",
		BugIntro:    "Sorry about that. Describe the bug: use the template or just type your message.",
		IdeaIntro:   "We love ideas. Use the template or just type your message.",

		ReviewShort:    "One or two sentences are enough: what you liked and what you did not.",
		ReviewTemplate: "1. What do you use the app for?\n2. What works well?\n3. What gets in the way?",
		ReviewDetailed: "Tell us everything: your scenario, what worked, what did not, and what you expected instead.",
		BugTemplate:    "1. What did you do?\n2. What did you expect?\n3. What happened instead?\n4. Device and app version",
		IdeaTemplate:   "1. What problem does the idea solve?\n2. How should it work?\n3. Who else would benefit?",
		AskWrite:       "Write your message in one go.",

		AskUsefulness: "How useful is the app for you? (1 to 5)",
		AskUsability:  "How easy is the app to use? (1 to 5)",

		SaveError:     "Could not save your feedback (error code: %s). Please try again or go back to the menu.",
		InternalError: "Something went wrong. Please send /start and try again.",

		FollowupOffer: "If you like, tell us in one message what exactly went wrong. It helps us improve faster.",
		FollowupAsk:   "Write your clarification in one message (what went wrong / what to improve):",
		FollowupSaved: "Thanks! Your clarification was added.\n\nLeave a contact so we can reply? (optional)",

		ContactAsk:      "Leave a contact so we can reply? (optional)",
		EmailAsk:        "Send your email in one message (for example: yourname@gmail.com).",
		EmailInvalid:    "That does not look like an email. Example: yourname@gmail.com\n\nTry again or go back to the menu.",
		ContactSavedAs:  "Contact saved: %s\nThank you!",
		ContactSaved:    "Contact saved. Thank you!",
		ContactDeclined: "Got it. Thank you!",

		Labels: CategoryLabels{
			Review: "Review",
			Bug:    "Bug report",
			Idea:   "Idea",
		},
		Final: FinalPools{
			High: []string{
				"Thank you! Glad the app works well for you.",
				"Awesome, thanks for the kind words!",
			},
			Mid: []string{
				"Thanks! We will work on making it better.",
				"Thank you, noted. There is room to grow.",
			},
			Low: []string{
				"Thank you for being honest. We will look into it.",
				"Sorry the experience was rough. Your feedback helps us fix it.",
			},
		},
		Buttons: ButtonLabels{
			Review:      "📝 Leave a review",
			Bug:         "🐞 Report a bug",
			Idea:        "💡 Suggest an idea",
			Short:       "✍️ Short",
			Template:    "🧩 Template",
			Detailed:    "📝 Detailed",
			BackToMenu:  "⬅️ Menu",
			SendMore:    "➕ Send more",
			Close:       "✅ Close",
			FollowupYes: "🛠 Explain what went wrong",
			FollowupNo:  "No, thanks",
			ContactTG:   "📨 Telegram",
			ContactMail: "📧 Email",
			ContactNone: "❌ Not needed",
			Star:        "⭐ %d",
		},
		Stats: StatsTexts{
			Header: "Feedback stats:",
			Line:   "%s: %d (usefulness %.1f, usability %.1f)",
			Empty:  "No feedback yet.",
		},
	}
}

// Label names a category for display.
func (t Texts) Label(c Category) string {
	switch c {
	case CategoryBug:
		return t.Labels.Bug
	case CategoryIdea:
		return t.Labels.Idea
	default:
		return t.Labels.Review
	}
}

// Validate rejects text sets the engine cannot render.
func (t Texts) Validate() error {
	pools := map[string][]string{"high": t.Final.High, "mid": t.Final.Mid, "low": t.Final.Low}
	for name, pool := range pools {
		if len(pool) == 0 {
			return fmt.Errorf("texts.final.%s must not be empty", name)
		}
	}
	verbs := map[string]struct{ text, verb string }{
		"texts.save_error":       {t.SaveError, "%s"},
		"texts.contact_saved_as": {t.ContactSavedAs, "%s"},
		"texts.buttons.star":     {t.Buttons.Star, "%d"},
	}
	for name, v := range verbs {
		if strings.Count(v.text, "%") != 1 || !strings.Contains(v.text, v.verb) {
			return fmt.Errorf("%s must contain exactly one %s verb", name, v.verb)
		}
	}
	return nil
}
