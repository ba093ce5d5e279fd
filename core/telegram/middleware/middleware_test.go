package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/feedbot/core/logger"
	tghelpers "github.com/m3rciful/feedbot/core/telegram/helpers"
)

type fakeContext struct {
	tele.Context
	user      *tele.User
	upd       tele.Update
	store     map[string]any
	sent      int
	responded int
}

func newFake(userID int64) *fakeContext {
	return &fakeContext{
		user:  &tele.User{ID: userID},
		upd:   tele.Update{ID: 1, Message: &tele.Message{Text: "hi"}},
		store: map[string]any{},
	}
}

func (f *fakeContext) Sender() *tele.User { return f.user }

func (f *fakeContext) Chat() *tele.Chat {
	if f.user == nil {
		return nil
	}
	return &tele.Chat{ID: f.user.ID, Type: tele.ChatPrivate}
}

func (f *fakeContext) Update() tele.Update { return f.upd }
func (f *fakeContext) Text() string { return "hi" }
func (f *fakeContext) Get(key string) any { return f.store[key] }
func (f *fakeContext) Set(key string, v any) { f.store[key] = v }

func (f *fakeContext) Callback() *tele.Callback { return f.upd.Callback }

func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.responded++
	return nil
}

func (f *fakeContext) Send(any, ...any) error {
	f.sent++
	return nil
}

func TestAdminOnlyMiddleware(t *testing.T) {
	var reached, rejected int
	next := func(tele.Context) error { reached++; return nil }
	onReject := func(tele.Context) error { rejected++; return nil }

	h := AdminOnlyMiddleware(AdminOptions{AdminID: 5, OnReject: onReject})(next)
	require.NoError(t, h(newFake(5)))
	require.NoError(t, h(newFake(6)))
	assert.Equal(t, 1, reached)
	assert.Equal(t, 1, rejected)

	unset := AdminOnlyMiddleware(AdminOptions{})(next)
	require.NoError(t, unset(newFake(5)))
	assert.Equal(t, 1, reached)
}

func TestConversationStepTagsContext(t *testing.T) {
	c := newFake(1)
	src := StepFunc(func(tele.Context) (string, bool) { return "AWAITING_TEXT", true })

	var step string
	h := ConversationStep(src)(func(c tele.Context) error {
		step = logger.StepFrom(tghelpers.BuildContext(c))
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, "AWAITING_TEXT", step)
}

func TestConversationStepWithoutSource(t *testing.T) {
	called := false
	h := ConversationStep(nil)(func(tele.Context) error { called = true; return nil })
	require.NoError(t, h(newFake(1)))
	assert.True(t, called)
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := 0
	h := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})(func(tele.Context) error { return nil })

	require.NoError(t, h(newFake(1)))
	require.NoError(t, h(newFake(1)))
	require.NoError(t, h(newFake(2)))
	assert.Equal(t, 1, limited)

	cb := newFake(3)
	cb.upd = tele.Update{ID: 2, Callback: &tele.Callback{Data: "\fnav|MENU"}}
	excluded := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})(func(tele.Context) error { return nil })
	require.NoError(t, excluded(cb))
	require.NoError(t, excluded(cb))
	assert.Equal(t, 1, limited)
}

func TestRecoverMiddlewareSwallowsPanic(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	assert.NotPanics(t, func() { _ = h(newFake(1)) })
}

func TestLimiterPrunesStaleUsers(t *testing.T) {
	lim := newLimiter(time.Second)
	start := time.Now()
	for i := 0; i <= pruneThreshold; i++ {
		require.True(t, lim.allow(int64(i), start))
	}
	assert.False(t, lim.allow(0, start.Add(time.Millisecond)))

	later := start.Add(2 * time.Second)
	require.True(t, lim.allow(-1, later))
	assert.LessOrEqual(t, len(lim.last), 2)
}

func TestRecoverReturnsPanicError(t *testing.T) {
	c := newFake(1)
	c.upd = tele.Update{ID: 3, Callback: &tele.Callback{Data: "\fnav|MENU"}}
	err := RecoverMiddleware(func(tele.Context) error { panic("boom") })(c)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "boom", perr.Value)
	assert.Equal(t, "panic", perr.Code())
	assert.Equal(t, 1, c.responded)
}
