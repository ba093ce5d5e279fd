package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/feedbot/core/telegram"
	tghelpers "github.com/m3rciful/feedbot/core/telegram/helpers"
	"github.com/m3rciful/feedbot/internal/feedback"
	"github.com/m3rciful/feedbot/internal/storage"
)

// fakeContext answers the handful of tele.Context calls the bot makes.
type fakeContext struct {
	tele.Context
	user      *tele.User
	text      string
	cb        *tele.Callback
	sent      []string
	opts      []*tele.SendOptions
	responded int
	store     map[string]any
}

func newContext(user *tele.User) *fakeContext {
	return &fakeContext{user: user, store: map[string]any{}}
}

func (f *fakeContext) Sender() *tele.User       { return f.user }
func (f *fakeContext) Update() tele.Update      { return tele.Update{ID: 7} }
func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }
func (f *fakeContext) Get(key string) any       { return f.store[key] }
func (f *fakeContext) Set(key string, v any)    { f.store[key] = v }

func (f *fakeContext) Chat() *tele.Chat {
	if f.user == nil {
		return nil
	}
	return &tele.Chat{ID: f.user.ID}
}

func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.responded++
	return nil
}

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, what.(string))
	var o *tele.SendOptions
	if len(opts) > 0 {
		o, _ = opts[0].(*tele.SendOptions)
	}
	f.opts = append(f.opts, o)
	return nil
}

type memRepo struct {
	inserted []feedback.Submission
	patches  []feedback.Patch
}

func (r *memRepo) Insert(_ context.Context, sub feedback.Submission) (string, error) {
	r.inserted = append(r.inserted, sub)
	return fmt.Sprintf("rec-%d", len(r.inserted)), nil
}

func (r *memRepo) Update(_ context.Context, _ string, p feedback.Patch) error {
	r.patches = append(r.patches, p)
	return nil
}

type statsFunc func(ctx context.Context) ([]storage.CategoryStats, error)

func (f statsFunc) Stats(ctx context.Context) ([]storage.CategoryStats, error) { return f(ctx) }

func newBot(t *testing.T) (*Bot, *memRepo) {
	t.Helper()
	tghelpers.SetDispatcher(nil)
	repo := &memRepo{}
	engine := feedback.NewEngine(feedback.NewMemoryStore(0), repo, feedback.Options{})
	return New(engine, nil), repo
}

func press(c *fakeContext, unique, data string) {
	c.cb = &tele.Callback{Unique: unique, Data: data}
	c.sent, c.opts = nil, nil
}

func TestRegisterAddsCommandsAndCallbacks(t *testing.T) {
	engine := feedback.NewEngine(feedback.NewMemoryStore(0), &memRepo{}, feedback.Options{})
	b := New(engine, statsFunc(func(context.Context) ([]storage.CategoryStats, error) { return nil, nil }))
	reg := tg.NewRegistry()

	require.NoError(t, b.Register(reg))
	assert.ElementsMatch(t, feedback.TokenPrefixes, reg.ListCallbacks())

	cmds := reg.Commands()
	require.Contains(t, cmds, "/start")
	require.Contains(t, cmds, "/menu")
	require.Contains(t, cmds, "/stats")
	assert.True(t, cmds["/stats"].AdminOnly)
	assert.Len(t, reg.ListCommands(true), 2)

	assert.Error(t, b.Register(reg), "callback keys are registered once")
}

func TestRegisterWithoutStatsSkipsCommand(t *testing.T) {
	b, _ := newBot(t)
	reg := tg.NewRegistry()
	require.NoError(t, b.Register(reg))
	assert.NotContains(t, reg.Commands(), "/stats")
}

func TestStartRendersMenuButtons(t *testing.T) {
	b, _ := newBot(t)
	c := newContext(&tele.User{ID: 1})

	require.NoError(t, b.onStart(c))
	require.Len(t, c.sent, 1)
	texts := feedback.DefaultTexts()
	assert.Equal(t, texts.Greeting, c.sent[0])

	markup := c.opts[0].ReplyMarkup
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 3)
	btn := markup.InlineKeyboard[1][0]
	assert.Equal(t, texts.Buttons.Bug, btn.Text)
	assert.Equal(t, "menu", btn.Unique)
	assert.Equal(t, "BUG", btn.Data)
}

func TestFullCycleThroughCallbacksAndText(t *testing.T) {
	b, repo := newBot(t)
	texts := feedback.DefaultTexts()
	c := newContext(&tele.User{ID: 2, Username: "ann"})

	require.NoError(t, b.onStart(c))
	assert.False(t, b.AwaitsText(c))

	press(c, "menu", "BUG")
	require.NoError(t, b.onCallback(c))
	assert.Equal(t, []string{texts.BugIntro}, c.sent)
	assert.True(t, b.AwaitsText(c))

	step, ok := b.CurrentStep(c)
	require.True(t, ok)
	assert.Equal(t, string(feedback.StepAwaitingText), step)

	c.cb, c.sent, c.opts = nil, nil, nil
	c.text = "app crashes on <login>"
	require.NoError(t, b.HandleText(c))
	assert.Equal(t, []string{texts.AskUsefulness}, c.sent)
	stars := c.opts[0].ReplyMarkup.InlineKeyboard[0]
	require.Len(t, stars, 5)
	assert.Equal(t, "useful", stars[0].Unique)
	assert.Equal(t, "1", stars[0].Data)

	press(c, "useful", "2")
	require.NoError(t, b.onCallback(c))
	assert.Equal(t, []string{texts.AskUsability}, c.sent)

	press(c, "usable", "2")
	require.NoError(t, b.onCallback(c))
	require.Len(t, c.sent, 2)
	assert.Equal(t, tele.ModeHTML, c.opts[0].ParseMode)
	assert.True(t, c.opts[0].ReplyMarkup.RemoveKeyboard)
	assert.Contains(t, c.sent[0], "app crashes on &lt;login&gt;")
	assert.Equal(t, texts.FollowupOffer, c.sent[1])

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, "ann", repo.inserted[0].Username)
	assert.Equal(t, feedback.CategoryBug, repo.inserted[0].Category)
}

func TestMalformedCallbackIsIgnored(t *testing.T) {
	b, _ := newBot(t)
	c := newContext(&tele.User{ID: 3})
	require.NoError(t, b.onStart(c))

	c.cb = &tele.Callback{Data: "\fuseful|9"}
	c.sent = nil
	require.NoError(t, b.onCallback(c))
	assert.Empty(t, c.sent)

	step, ok := b.CurrentStep(c)
	require.True(t, ok)
	assert.Equal(t, string(feedback.StepMenu), step)
}

func TestStaleCallbackResetsToMenu(t *testing.T) {
	b, _ := newBot(t)
	c := newContext(&tele.User{ID: 4})

	press(c, "useful", "5")
	require.NoError(t, b.onCallback(c))
	assert.Equal(t, []string{feedback.DefaultTexts().Greeting}, c.sent)
}

func TestMenuCommandNavigates(t *testing.T) {
	b, _ := newBot(t)
	c := newContext(&tele.User{ID: 5})
	press(c, "menu", "IDEA")
	require.NoError(t, b.onCallback(c))

	c.cb, c.sent = nil, nil
	require.NoError(t, b.onMenu(c))
	assert.Equal(t, []string{feedback.DefaultTexts().Greeting}, c.sent)
	assert.False(t, b.AwaitsText(c))
}

func TestNoSenderIsNoop(t *testing.T) {
	b, _ := newBot(t)
	c := newContext(nil)
	assert.False(t, b.AwaitsText(c))
	_, ok := b.CurrentStep(c)
	assert.False(t, ok)
}

func TestFormatStats(t *testing.T) {
	texts := feedback.DefaultTexts()
	assert.Equal(t, texts.Stats.Empty, FormatStats(texts, nil))

	got := FormatStats(texts, []storage.CategoryStats{
		{Category: "BUG", Total: 3, AvgUsefulness: 2, AvgUsability: 2.5},
		{Category: "LEGACY", Total: 1, AvgUsefulness: 4, AvgUsability: 4},
	})
	assert.Equal(t, "Feedback stats:\nBug report: 3 (usefulness 2.0, usability 2.5)\nLEGACY: 1 (usefulness 4.0, usability 4.0)", got)
}

func TestStatsCommandReportsFailure(t *testing.T) {
	tghelpers.SetDispatcher(nil)
	engine := feedback.NewEngine(feedback.NewMemoryStore(0), &memRepo{}, feedback.Options{})
	boom := errors.New("boom")
	b := New(engine, statsFunc(func(context.Context) ([]storage.CategoryStats, error) { return nil, boom }))
	c := newContext(&tele.User{ID: 9})

	err := b.onStats(c)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{feedback.DefaultTexts().InternalError}, c.sent)
}

func TestFallbacks(t *testing.T) {
	b, _ := newBot(t)
	c := newContext(&tele.User{ID: 6})

	require.NoError(t, b.UnknownText()(c))
	assert.Empty(t, c.sent)

	require.NoError(t, b.UnknownCallback()(c))
	assert.Equal(t, 1, c.responded)

	require.NoError(t, b.OnRateLimited(c))
	assert.Equal(t, 1, c.responded, "plain messages are not answered")
	c.cb = &tele.Callback{Unique: "nav", Data: "MENU"}
	require.NoError(t, b.OnRateLimited(c))
	assert.Equal(t, 2, c.responded)
}
