package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/feedbot/core/logger"
)

const component = "service.feedback"

// Submission is the row written once per completed cycle.
type Submission struct {
	UserID     int64
	Username   string
	Category   Category
	Comment    string
	Usefulness int
	Usability  int
}

// Patch is an optional post-submission update. Nil fields are left untouched.
type Patch struct {
	FollowupComment *string
	ContactType     *ContactType
	ContactValue    *string
}

// Repository persists feedback rows. Update must be idempotent.
type Repository interface {
	Insert(ctx context.Context, sub Submission) (string, error)
	Update(ctx context.Context, recordID string, patch Patch) error
}

// Actor identifies the user behind an event.
type Actor struct {
	UserID   int64
	Username string
}

// Options tune an Engine. Zero values select defaults.
type Options struct {
	Texts  *Texts
	Picker Picker
}

// Engine runs the per-user feedback conversation.
type Engine struct {
	store  Store
	repo   Repository
	texts  Texts
	picker Picker
}

// NewEngine wires the conversation engine to its collaborators.
func NewEngine(store Store, repo Repository, opts Options) *Engine {
	texts := DefaultTexts()
	if opts.Texts != nil {
		texts = *opts.Texts
	}
	picker := opts.Picker
	if picker == nil {
		picker = RandomPicker()
	}
	return &Engine{store: store, repo: repo, texts: texts, picker: picker}
}

// Texts returns the strings the engine renders with.
func (e *Engine) Texts() Texts {
	return e.texts
}

// CurrentStep returns the user's stored conversation step.
func (e *Engine) CurrentStep(ctx context.Context, userID int64) (Step, error) {
	st, err := e.store.Load(ctx, userID)
	if err != nil {
		return "", err
	}
	return st.Step(), nil
}

// AwaitsText reports whether the user's next free-text message is meaningful.
func (e *Engine) AwaitsText(ctx context.Context, userID int64) bool {
	st, err := e.store.Load(ctx, userID)
	if err != nil {
		logger.Warn(ctx, component, "state.load_failed",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return false
	}
	switch s := st.(type) {
	case AwaitingText, AwaitingFollowup:
		return true
	case AwaitingContact:
		return s.EmailPending
	}
	return false
}

// Handle applies one event to the user's conversation and returns the
// prompts to deliver. A *PersistenceError is returned together with a
// user-facing reply; the conversation step is left unchanged so the
// action can be retried.
func (e *Engine) Handle(ctx context.Context, actor Actor, ev Event) (Reply, error) {
	st, err := e.store.Load(ctx, actor.UserID)
	if err != nil {
		return reply(Prompt{Text: e.texts.InternalError}), fmt.Errorf("load conversation: %w", err)
	}

	switch ev := ev.(type) {
	case Start:
		return e.reset(ctx, actor, st, e.menuPrompt())
	case Navigate:
		if ev.Target == NavClose {
			return e.reset(ctx, actor, st, Prompt{Text: e.texts.Close, RemoveKeyboard: true})
		}
		return e.reset(ctx, actor, st, e.menuPrompt())
	case ChooseCategory:
		return e.chooseCategory(ctx, actor, st, ev)
	case ChooseFormat:
		return e.chooseFormat(ctx, actor, st, ev)
	case SubmitText:
		return e.submitText(ctx, actor, st, ev)
	case SubmitRating:
		return e.submitRating(ctx, actor, st, ev)
	case FollowupChoice:
		return e.followupChoice(ctx, actor, st, ev)
	case ContactChoice:
		return e.contactChoice(ctx, actor, st, ev)
	}
	return Reply{}, nil
}

func (e *Engine) chooseCategory(ctx context.Context, actor Actor, st State, ev ChooseCategory) (Reply, error) {
	switch st.(type) {
	case Menu, Done:
	default:
		return e.stale(ctx, actor, st, "choose_category")
	}
	return e.transition(ctx, actor, st, AwaitingText{Category: ev.Category}, e.introPrompt(ev.Category))
}

func (e *Engine) chooseFormat(ctx context.Context, actor Actor, st State, ev ChooseFormat) (Reply, error) {
	cur, ok := st.(AwaitingText)
	if !ok || cur.Category != ev.Category || !formatAllowed(ev.Category, ev.Format) {
		return e.stale(ctx, actor, st, "format_choice")
	}
	next := AwaitingText{Category: cur.Category, Format: ev.Format}
	return e.transition(ctx, actor, st, next, e.guidePrompt(ev.Category, ev.Format))
}

func (e *Engine) submitText(ctx context.Context, actor Actor, st State, ev SubmitText) (Reply, error) {
	text := strings.TrimSpace(ev.Text)

	switch cur := st.(type) {
	case AwaitingText:
		if !ValidText(text) {
			return e.invalid(ctx, &ValidationError{Field: "comment", Reason: "empty"},
				Prompt{Text: e.texts.AskWrite, Choices: e.backToMenu()})
		}
		next := AwaitingUsefulness{Category: cur.Category, Comment: text}
		return e.transition(ctx, actor, st, next, e.ratingPrompt(e.texts.AskUsefulness, TokenUseful))

	case AwaitingFollowup:
		if !ValidText(text) {
			return e.invalid(ctx, &ValidationError{Field: "followup", Reason: "empty"},
				Prompt{Text: e.texts.FollowupAsk, Choices: e.backToMenu()})
		}
		if err := e.update(ctx, "update_followup", cur.RecordID, Patch{FollowupComment: &text}); err != nil {
			return e.persistFailed(ctx, err)
		}
		return e.transition(ctx, actor, st, AwaitingContact{RecordID: cur.RecordID}, e.contactPrompt(e.texts.FollowupSaved))

	case AwaitingContact:
		if !cur.EmailPending {
			return Reply{}, nil
		}
		if !ValidEmail(text) {
			return e.invalid(ctx, &ValidationError{Field: "email", Reason: "not an email"},
				Prompt{Text: e.texts.EmailInvalid, Choices: e.backToMenu()})
		}
		ct := ContactEmail
		if err := e.update(ctx, "update_contact", cur.RecordID, Patch{ContactType: &ct, ContactValue: &text}); err != nil {
			return e.persistFailed(ctx, err)
		}
		return e.transition(ctx, actor, st, Done{}, Prompt{Text: e.texts.ContactSaved, Choices: e.afterSaved()})
	}

	// free text outside a text-awaiting step is ignored
	return Reply{}, nil
}

func (e *Engine) submitRating(ctx context.Context, actor Actor, st State, ev SubmitRating) (Reply, error) {
	if !ValidScore(ev.Value) {
		logger.Debug(ctx, component, "rating.malformed",
			slog.Int("value", ev.Value),
			slog.String("kind", string(ev.Kind)),
		)
		return Reply{}, nil
	}

	switch cur := st.(type) {
	case AwaitingUsefulness:
		if ev.Kind != RatingUsefulness {
			break
		}
		next := AwaitingUsability{Category: cur.Category, Comment: cur.Comment, Usefulness: ev.Value}
		return e.transition(ctx, actor, st, next, e.ratingPrompt(e.texts.AskUsability, TokenUsable))

	case AwaitingUsability:
		if ev.Kind != RatingUsability {
			break
		}
		if _, ok := ParseCategory(string(cur.Category)); !ok || !ValidText(cur.Comment) || !ValidScore(cur.Usefulness) {
			break
		}
		return e.submit(ctx, actor, st, cur, ev.Value)
	}
	return e.stale(ctx, actor, st, "rating:"+string(ev.Kind))
}

func (e *Engine) submit(ctx context.Context, actor Actor, st State, cur AwaitingUsability, usability int) (Reply, error) {
	sub := Submission{
		UserID:     actor.UserID,
		Username:   actor.Username,
		Category:   cur.Category,
		Comment:    cur.Comment,
		Usefulness: cur.Usefulness,
		Usability:  usability,
	}
	id, err := e.repo.Insert(ctx, sub)
	if err != nil {
		return e.persistFailed(ctx, asPersistenceError("insert", err))
	}

	bucket := BucketOf(sub.Usefulness, sub.Usability)
	logger.Info(ctx, component, "feedback.saved",
		slog.String("status", "ok"),
		slog.String("record_id", id),
		slog.String("category", string(sub.Category)),
		slog.String("bucket", string(bucket)),
	)

	closing := e.closingMessage(sub.Category, sub.Comment, sub.Usefulness, sub.Usability)
	if OffersFollowup(sub.Usefulness, sub.Usability) {
		return e.transition(ctx, actor, st, Done{RecordID: id, FollowupOffered: true}, closing, e.followupOffer())
	}
	return e.transition(ctx, actor, st, AwaitingContact{RecordID: id}, closing, e.contactPrompt(e.texts.ContactAsk))
}

func (e *Engine) followupChoice(ctx context.Context, actor Actor, st State, ev FollowupChoice) (Reply, error) {
	id, ok := submittedRecord(st)
	if !ok {
		return e.stale(ctx, actor, st, "followup_choice")
	}
	if !ev.Want {
		return e.transition(ctx, actor, st, AwaitingContact{RecordID: id}, e.contactPrompt(e.texts.ContactAsk))
	}
	return e.transition(ctx, actor, st, AwaitingFollowup{RecordID: id},
		Prompt{Text: e.texts.FollowupAsk, Choices: e.backToMenu()})
}

func (e *Engine) contactChoice(ctx context.Context, actor Actor, st State, ev ContactChoice) (Reply, error) {
	id, ok := submittedRecord(st)
	if !ok {
		return e.stale(ctx, actor, st, "contact_choice")
	}

	switch ev.Type {
	case ContactNone:
		return e.transition(ctx, actor, st, Done{}, Prompt{Text: e.texts.ContactDeclined, Choices: e.afterSaved()})

	case ContactTelegram:
		value := strconv.FormatInt(actor.UserID, 10)
		text := e.texts.ContactSaved
		if actor.Username != "" {
			value = "@" + actor.Username
			text = fmt.Sprintf(e.texts.ContactSavedAs, value)
		}
		ct := ContactTelegram
		if err := e.update(ctx, "update_contact", id, Patch{ContactType: &ct, ContactValue: &value}); err != nil {
			return e.persistFailed(ctx, err)
		}
		return e.transition(ctx, actor, st, Done{}, Prompt{Text: text, Choices: e.afterSaved()})

	case ContactEmail:
		return e.transition(ctx, actor, st, AwaitingContact{RecordID: id, EmailPending: true},
			Prompt{Text: e.texts.EmailAsk, Choices: e.backToMenu()})
	}
	return Reply{}, nil
}

func (e *Engine) update(ctx context.Context, op, id string, patch Patch) *PersistenceError {
	if err := e.repo.Update(ctx, id, patch); err != nil {
		return asPersistenceError(op, err)
	}
	logger.Info(ctx, component, "feedback."+op,
		slog.String("status", "ok"),
		slog.String("record_id", id),
	)
	return nil
}

func (e *Engine) transition(ctx context.Context, actor Actor, from, to State, prompts ...Prompt) (Reply, error) {
	if err := e.store.Save(ctx, actor.UserID, to); err != nil {
		return reply(Prompt{Text: e.texts.InternalError}), fmt.Errorf("save conversation: %w", err)
	}
	logger.Debug(ctx, component, "transition",
		slog.Int64("user_id", actor.UserID),
		slog.String("from", string(from.Step())),
		slog.String("step", string(to.Step())),
	)
	return reply(prompts...), nil
}

func (e *Engine) reset(ctx context.Context, actor Actor, from State, p Prompt) (Reply, error) {
	return e.transition(ctx, actor, from, Menu{}, p)
}

func (e *Engine) stale(ctx context.Context, actor Actor, st State, event string) (Reply, error) {
	serr := &StaleStateError{Step: st.Step(), Event: event}
	logger.Warn(ctx, component, "state.stale",
		slog.String("status", "skip"),
		slog.Int64("user_id", actor.UserID),
		slog.String("err", serr.Error()),
	)
	return e.reset(ctx, actor, st, e.menuPrompt())
}

func (e *Engine) invalid(ctx context.Context, verr *ValidationError, p Prompt) (Reply, error) {
	logger.Debug(ctx, component, "input.invalid",
		slog.String("status", "skip"),
		slog.String("err", verr.Error()),
	)
	return reply(p), nil
}

func (e *Engine) persistFailed(ctx context.Context, perr *PersistenceError) (Reply, error) {
	logger.Error(ctx, component, "feedback.persist_failed",
		slog.String("status", "fail"),
		slog.String("op", perr.Op),
		slog.String("err_code", perr.Code()),
		slog.String("err", perr.Error()),
	)
	return reply(e.saveErrorPrompt(perr)), perr
}

func asPersistenceError(op string, err error) *PersistenceError {
	var perr *PersistenceError
	if errors.As(err, &perr) {
		return perr
	}
	code := "unknown"
	if errors.Is(err, ErrNotFound) {
		code = "not_found"
	}
	return NewPersistenceError(op, code, err)
}
