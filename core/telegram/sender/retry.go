package sender

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/feedbot/core/logger"
	"github.com/m3rciful/feedbot/core/telegram/netutil"
)

const component = "tg.sender"

// deliver runs j until it succeeds, fails permanently, exhausts its retries
// or runs out of time. Backoff grows linearly and honours flood-control
// pauses requested by Telegram.
func (d *Dispatcher) deliver(ctx context.Context, j Job) error {
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	attempt := 0
	var err error
	for attempt < attempts {
		attempt++
		if err = deadline.Err(); err != nil {
			break
		}
		if err = j.Run(); err == nil {
			logger.Debug(ctx, component, "send.success", jobAttrs(j, attempt, start)...)
			return nil
		}
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		delay := max(d.opts.RetryBackoff*time.Duration(attempt), netutil.RetryAfter(err))
		logger.Debug(ctx, component, "send.retry", append(jobAttrs(j, attempt, start),
			slog.Duration("delay", delay),
			slog.String("error_kind", classify(err)),
		)...)
		if !sleep(deadline, delay) {
			err = deadline.Err()
			break
		}
	}

	logger.Error(ctx, component, "send.fail", append(jobAttrs(j, attempt, start),
		slog.String("error", redact(err)),
		slog.String("error_kind", classify(err)),
	)...)
	return err
}

// sleep waits for delay and reports false if ctx ended first.
func sleep(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// jobAttrs describes j; update ids come from ctx through the log handler.
func jobAttrs(j Job, attempt int, start time.Time) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.Action)}
	if j.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.Endpoint))
	}
	if attempt > 1 {
		attrs = append(attrs, slog.Int("attempt", attempt))
	}
	return append(attrs, slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()))
}
