package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func send(key int64, run func() error) Job {
	return Job{Key: key, Action: "send.text", Endpoint: "sendMessage", Run: run}
}

func TestDispatcherKeepsOrderPerChat(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 300})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	chats := []int64{7, 8, -9}
	for i := 0; i < 50; i++ {
		for _, chat := range chats {
			chat, i := chat, i
			require.NoError(t, d.Enqueue(context.Background(), send(chat, func() error {
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			})))
		}
	}
	d.Close()

	for _, chat := range chats {
		require.Len(t, got[chat], 50)
		for i, v := range got[chat] {
			assert.Equal(t, i, v, "chat %d", chat)
		}
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	require.NoError(t, d.Enqueue(context.Background(), send(1, func() error {
		if calls.Add(1) < 3 {
			return dial
		}
		return nil
	})))
	d.Close()

	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.Failed())
}

func TestDispatcherGivesUpOnPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})

	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), send(1, func() error {
		calls.Add(1)
		return errors.New("bad request")
	})))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.Failed())
}

func TestDispatcherStopsAtDeadline(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 5, RetryBackoff: time.Hour, MaxDuration: 20 * time.Millisecond})

	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), send(1, func() error {
		calls.Add(1)
		return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	})))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.Failed())
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()

	err := d.Enqueue(context.Background(), send(1, func() error { return nil }))
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, d.Enqueue(context.Background(), send(1, nil)))
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, d.Enqueue(context.Background(), send(1, func() error {
		close(started)
		<-release
		return nil
	})))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), send(1, func() error { return nil })))
	err := d.Enqueue(context.Background(), send(1, func() error { return nil }))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	d.Close()
}

func TestRedactMasksToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:ABC-def_ghi/sendMessage": timeout`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`, redact(err))
	assert.Empty(t, redact(nil))
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"timeout":  fmt.Errorf("send: %w", context.DeadlineExceeded),
		"dns":      &net.DNSError{Err: "no such host", Name: "api.telegram.org"},
		"dial":     &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")},
		"http_4xx": &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"},
		"http_5xx": errors.New("telegram: internal error (502)"),
		"unknown":  errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, classify(err), "%v", err)
	}
	assert.Empty(t, classify(nil))
}
