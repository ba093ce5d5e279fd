// Package logger provides the bot's structured slog setup: a flat key=value
// or JSON handler with stable key order, an asynchronous writer, per-component
// loggers and update correlation data carried in context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/feedbot/core/buildinfo"
	coreconfig "github.com/m3rciful/feedbot/core/config"
)

const (
	defaultSampleKeep  = 1
	defaultSampleEvery = 50
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutDown   bool

	writers []*asyncWriter
	closers []io.Closer

	levelVar slog.LevelVar

	debugSampler = newSampler(defaultSampleKeep, defaultSampleEvery)
	traceAll     bool

	// L is the base logger. It stays nil until InitLogger runs.
	L *slog.Logger

	// DB logs database connection events.
	DB *slog.Logger
	// MIG logs schema migration events.
	MIG *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// Conversation logs conversation store activity.
	Conversation *slog.Logger
)

func init() {
	// Component loggers discard output until InitLogger installs the real handler.
	wireComponents(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// settings is the logging part of the config after defaults are applied.
type settings struct {
	format      logFormat
	level       slog.Level
	keyOrder    []string
	sampleKeep  int
	sampleEvery int
	profile     string
	botFile     string
	errorsFile  string
}

func settingsFrom(cfg *coreconfig.Config) settings {
	s := settings{
		format:      formatJSON,
		level:       slog.LevelInfo,
		keyOrder:    slices.Clone(defaultKeyOrder),
		sampleKeep:  defaultSampleKeep,
		sampleEvery: defaultSampleEvery,
		profile:     "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	s.level = parseLevel(lc.Level)

	if order := splitKeys(lc.KeysOrder); len(order) > 0 {
		s.keyOrder = order
	}
	if ratio := strings.TrimSpace(lc.DebugSample); ratio != "" {
		if keep, every, ok := parseRatio(ratio); ok {
			s.sampleKeep, s.sampleEvery = keep, every
		}
	}

	if dir := strings.TrimSpace(lc.Dir); dir != "" {
		if f := strings.TrimSpace(lc.BotFile); f != "" {
			s.botFile = filepath.Join(dir, f)
		}
		if f := strings.TrimSpace(lc.ErrorsFile); f != "" {
			s.errorsFile = filepath.Join(dir, f)
		}
	}
	return s
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// InitLogger configures the global structured logger. Only the first call
// has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		s := settingsFrom(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleKeep, s.sampleEvery)
		traceAll = envFlag("LOG_TRACE")

		outputs := []io.Writer{os.Stdout}
		if s.botFile != "" {
			f, err := openLogFile(s.botFile)
			if err != nil {
				initErr = err
				return
			}
			outputs = append(outputs, f)
		}
		hc := handlerConfig{
			level:    &levelVar,
			writer:   track(newAsyncWriter(outputs, 64*1024)),
			format:   s.format,
			keyOrder: s.keyOrder,
		}
		if s.errorsFile != "" {
			f, err := openLogFile(s.errorsFile)
			if err != nil {
				initErr = err
				return
			}
			hc.errWriter = track(newAsyncWriter([]io.Writer{f}, 16*1024))
		}

		logger := slog.New(newStructuredHandler(hc))
		L = logger
		slog.SetDefault(logger)
		wireComponents(logger)
		logStartup(s)
	})
	return initErr
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	closers = append(closers, f)
	return f, nil
}

func track(w *asyncWriter) *asyncWriter {
	writers = append(writers, w)
	return w
}

func wireComponents(base *slog.Logger) {
	DB = base.With("component", "db")
	MIG = base.With("component", "db.migrate")
	TG = base.With("component", "tg")
	TWire = base.With("component", "tg.wire")
	Conversation = base.With("component", "store.conversation")
}

func logStartup(s settings) {
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", "app"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", s.profile),
		slog.String("log_level", levelName(s.level)),
		slog.Bool("errors_file", s.errorsFile != ""),
	)
}

// Shutdown flushes buffered output and closes log files. Later calls are no-ops.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutDown {
		return nil
	}
	shutDown = true

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes event through logg, or the context logger when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs with the component resolved from name or the context logger.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	logg := Component(component)
	if logg == nil {
		if logg = FromContext(ctx); logg != nil && strings.TrimSpace(component) != "" {
			logg = logg.With("component", strings.TrimSpace(component))
		}
	}
	LogEvent(ctx, logg, level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be
// written. LOG_TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceAll || debugSampler.Allow()
}
