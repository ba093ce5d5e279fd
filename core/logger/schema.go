package logger

import (
	"log/slog"
	"strings"
)

// knownOutcome lists the accepted outcome values; others are dropped.
var knownOutcome = set("ok", "fail", "cancelled", "rate_limited")

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaultKeyOrder puts correlation fields first, then the update, the
// conversation, storage and transport details; remaining keys sort by name.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"step",
	"from",
	"cb_key",
	"command",
	"text_len",
	"outcome",
	"duration_ms",
	"elapsed_ms",
	"messages",
	"kb",
	"category",
	"format",
	"bucket",
	"record_id",
	"op",
	"store",
	"driver",
	"db",
	"host",
	"port",
	"mode",
	"listen",
	"public_url",
	"action",
	"endpoint",
	"attempt",
	"attempts",
	"err",
	"err_code",
	"error_kind",
	"cause",
}
