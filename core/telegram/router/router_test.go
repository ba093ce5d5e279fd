package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/feedbot/core/telegram"
)

type fakeContext struct {
	tele.Context
	upd       tele.Update
	text      string
	store     map[string]any
	responded int
}

func newText(text string) *fakeContext {
	return &fakeContext{
		upd:   tele.Update{ID: 7, Message: &tele.Message{Text: text}},
		text:  text,
		store: map[string]any{},
	}
}

func newCallback(data string) *fakeContext {
	return &fakeContext{
		upd:   tele.Update{ID: 8, Callback: &tele.Callback{Data: data}},
		store: map[string]any{},
	}
}

func (f *fakeContext) Sender() *tele.User       { return &tele.User{ID: 42} }
func (f *fakeContext) Chat() *tele.Chat         { return &tele.Chat{ID: 42, Type: tele.ChatPrivate} }
func (f *fakeContext) Update() tele.Update      { return f.upd }
func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Callback() *tele.Callback { return f.upd.Callback }
func (f *fakeContext) Get(key string) any       { return f.store[key] }
func (f *fakeContext) Set(key string, v any)    { f.store[key] = v }

func (f *fakeContext) Respond(...*tele.CallbackResponse) error {
	f.responded++
	return nil
}

type conversation struct {
	awaits bool
	got    []string
}

func (c *conversation) AwaitsText(tele.Context) bool { return c.awaits }

func (c *conversation) HandleText(ctx tele.Context) error {
	c.got = append(c.got, ctx.Text())
	return nil
}

func TestTextRoutesPreferConversation(t *testing.T) {
	reg := tg.NewRegistry()
	var fallback int
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	conv := &conversation{awaits: true}
	routes := TextRoutes(conv, reg, TextOptions{})
	require.Len(t, routes, 1)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)

	require.NoError(t, routes[0].Handler(newText("the app crashes")))
	assert.Equal(t, []string{"the app crashes"}, conv.got)
	assert.Zero(t, fallback)

	conv.awaits = false
	require.NoError(t, routes[0].Handler(newText("hello")))
	assert.Len(t, conv.got, 1)
	assert.Equal(t, 1, fallback)
}

func TestTextRoutesResolveAliases(t *testing.T) {
	reg := tg.NewRegistry()
	var menu int
	require.NoError(t, reg.RegisterCommand("/menu", tg.Command{
		Handler:     func(tele.Context) error { menu++; return nil },
		Description: "Open the menu",
		Aliases:     []string{"m"},
	}))

	routes := TextRoutes(nil, reg, TextOptions{})
	require.NoError(t, routes[0].Handler(newText("m")))
	assert.Equal(t, 1, menu)
}

func TestTextRoutesWrapRunsInsideLogger(t *testing.T) {
	var wrapped int
	wrap := func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			wrapped++
			assert.NotEmpty(t, c.Get("rid"))
			return next(c)
		}
	}
	routes := TextRoutes(nil, nil, TextOptions{Wrap: []tele.MiddlewareFunc{wrap}})
	require.NoError(t, routes[0].Handler(newText("hi")))
	assert.Equal(t, 1, wrapped)
}

func TestCallbackRouteAcknowledgesKnownKeys(t *testing.T) {
	reg := tg.NewRegistry()
	var got string
	require.NoError(t, reg.RegisterCallback("menu", func(c tele.Context) error {
		got = c.Callback().Data
		return nil
	}))

	route := CallbackRoute(reg, CallbackOptions{})
	c := newCallback("\fmenu|BUG")
	require.NoError(t, route.Handler(c))
	assert.Equal(t, "\fmenu|BUG", got)
	assert.Equal(t, 1, c.responded)
}

func TestCallbackRouteUnknownKeyUsesNotFound(t *testing.T) {
	reg := tg.NewRegistry()
	var notFound int
	route := CallbackRoute(reg, CallbackOptions{NotFound: func(c tele.Context) error {
		notFound++
		return c.Respond()
	}})

	c := newCallback("\fgone|1")
	require.NoError(t, route.Handler(c))
	assert.Equal(t, 1, notFound)
	assert.Equal(t, 1, c.responded)
}

func TestCommandRoutesGuardAdminCommands(t *testing.T) {
	reg := tg.NewRegistry()
	var stats, rejected int
	require.NoError(t, reg.RegisterCommand("/stats", tg.Command{
		Handler:     func(tele.Context) error { stats++; return nil },
		Description: "Feedback stats",
		AdminOnly:   true,
	}))

	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       1,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	require.Len(t, routes, 1)
	assert.Equal(t, "/stats", routes[0].Endpoint)

	require.NoError(t, routes[0].Handler(newText("/stats")))
	assert.Zero(t, stats)
	assert.Equal(t, 1, rejected)
}

type codedError struct{}

func (codedError) Error() string { return "write failed" }
func (codedError) Code() string  { return "persistence failed" }

type plainError struct{}

func (*plainError) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Empty(t, deriveErrorCode(nil))
	assert.Equal(t, "PERSISTENCE_FAILED", deriveErrorCode(fmt.Errorf("save: %w", codedError{})))
	assert.Equal(t, "PLAINERROR", deriveErrorCode(&plainError{}))
	assert.Equal(t, "ERRORSTRING", deriveErrorCode(errors.New("anonymous")))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "start_now", normalizeHandlerName(" /Start now "))
	assert.Equal(t, "unknown", normalizeHandlerName("/"))
	assert.Equal(t, "menu", normalizeHandlerName("menu"))
}
