package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	wrapped := &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}

	assert.False(t, ShouldRetry(nil))
	assert.True(t, ShouldRetry(dial))
	assert.True(t, ShouldRetry(wrapped))
	assert.True(t, ShouldRetry(fmt.Errorf("send: %w", wrapped)))
	assert.True(t, ShouldRetry(tele.FloodError{RetryAfter: 3}))
	assert.True(t, ShouldRetry(&tele.Error{Code: 502, Description: "Bad Gateway"}))
	assert.False(t, ShouldRetry(tele.ErrBlockedByUser))
	assert.False(t, ShouldRetry(errors.New("boom")))
	assert.False(t, ShouldRetry(context.Canceled))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, RetryAfter(tele.FloodError{RetryAfter: 3}))
	assert.Zero(t, RetryAfter(errors.New("boom")))
}
