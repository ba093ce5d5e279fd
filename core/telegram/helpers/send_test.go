package helpers

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/feedbot/core/telegram/sender"
)

// recordingContext captures Send calls; embedded nil methods are never reached.
type recordingContext struct {
	tele.Context
	sent     []string
	opts     []*tele.SendOptions
	failAt   int
	fails    int
	failWith error
	store    map[string]any
}

func (r *recordingContext) Send(what any, opts ...any) error {
	if r.fails > 0 && len(r.sent) == r.failAt {
		r.fails--
		return r.failWith
	}
	r.sent = append(r.sent, what.(string))
	var o *tele.SendOptions
	if len(opts) > 0 {
		o, _ = opts[0].(*tele.SendOptions)
	}
	r.opts = append(r.opts, o)
	return nil
}

func (r *recordingContext) Chat() *tele.Chat { return &tele.Chat{ID: 10} }
func (r *recordingContext) Sender() *tele.User { return &tele.User{ID: 10} }
func (r *recordingContext) Update() tele.Update { return tele.Update{ID: 1} }
func (r *recordingContext) Get(key string) any { return r.store[key] }
func (r *recordingContext) Set(key string, v any) { r.store[key] = v }

func newRecording() *recordingContext {
	return &recordingContext{store: map[string]any{}}
}

func TestSendBatchWithoutDispatcherSendsInOrder(t *testing.T) {
	SetDispatcher(nil)
	c := newRecording()

	require.NoError(t, SendBatch(c,
		Message{Text: "one"},
		Message{Text: "two", Options: &tele.SendOptions{ParseMode: tele.ModeHTML}},
	))
	assert.Equal(t, []string{"one", "two"}, c.sent)
	assert.Nil(t, c.opts[0])
	assert.Equal(t, tele.ModeHTML, c.opts[1].ParseMode)
}

func TestSendBatchPropagatesFailure(t *testing.T) {
	SetDispatcher(nil)
	c := newRecording()
	c.failAt, c.fails, c.failWith = 1, 1, errors.New("bad request")

	err := SendBatch(c, Message{Text: "one"}, Message{Text: "two"})
	assert.Error(t, err)
	assert.Equal(t, []string{"one"}, c.sent)
}

func TestSendTextPassesOptions(t *testing.T) {
	SetDispatcher(nil)
	c := newRecording()
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}

	require.NoError(t, SendText(c, "<b>x</b>", opts))
	require.Len(t, c.opts, 1)
	assert.Same(t, opts, c.opts[0])
}

func TestSendBatchEmpty(t *testing.T) {
	assert.NoError(t, SendBatch(newRecording()))
}

func TestSendBatchRetryResumesAfterDeliveredMessages(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	SetDispatcher(d)
	t.Cleanup(func() { SetDispatcher(nil) })

	c := newRecording()
	c.failAt, c.fails = 1, 1
	c.failWith = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}

	require.NoError(t, SendBatch(c, Message{Text: "one"}, Message{Text: "two"}, Message{Text: "three"}))
	d.Close()

	assert.Equal(t, []string{"one", "two", "three"}, c.sent)
	assert.Zero(t, d.Failed())
}

func TestCountersTrackQueuedMessages(t *testing.T) {
	SetDispatcher(nil)
	c := newRecording()

	n, kb := Counters(c)
	assert.Zero(t, n)
	assert.False(t, kb)

	require.NoError(t, SendText(c, "plain"))
	require.NoError(t, SendText(c, "<b>x</b>", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{RemoveKeyboard: true}}))
	n, kb = Counters(c)
	assert.Equal(t, 2, n)
	assert.False(t, kb, "keyboard removal is not a keyboard")

	require.NoError(t, SendBatch(c,
		Message{Text: "a"},
		Message{Text: "b", Options: &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{{{Text: "x"}}}}}},
	))
	n, kb = Counters(c)
	assert.Equal(t, 4, n)
	assert.True(t, kb)
}
