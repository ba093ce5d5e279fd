package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level  slog.Leveler
	writer *asyncWriter
	// errWriter, when set, also receives WARN and above.
	errWriter *asyncWriter
	format    logFormat
	keyOrder  []string
}

// structuredHandler renders flat records as key=value or JSON lines with a
// stable leading key order.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	rec := make(record, 16)
	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["level"] = levelName(r.Level)
	if h.cfg.format == formatJSON {
		rec["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		h.collect(rec, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(rec, a)
		return true
	})
	rec.fromContext(ctx)
	rec.compactRID(h.cfg.format == formatJSON)
	rec.setDefault("event", r.Message, "unknown")
	rec.setDefault("component", "app")
	rec.normalizeEnums()
	rec.pruneEmpty()

	var line []byte
	if h.cfg.format == formatJSON {
		var err error
		if line, err = rec.json(h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = rec.kv(h.cfg.keyOrder)
	}
	line = append(line, '\n')

	if err := h.cfg.writer.Write(line); err != nil {
		return err
	}
	if h.cfg.errWriter != nil && r.Level >= slog.LevelWarn {
		return h.cfg.errWriter.Write(line)
	}
	return nil
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clone(h.attrs), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clone(h.groups), name)
	return &clone
}

func (h *structuredHandler) collect(rec record, a slog.Attr) {
	flatten(strings.Join(h.groups, "."), a, func(key string, v slog.Value) {
		if key == "" {
			return
		}
		if k, val, ok := normalizeValue(key, v); ok {
			rec[k] = val
		}
	})
}

func flatten(prefix string, a slog.Attr, fn func(string, slog.Value)) {
	key := a.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		fn(key, v)
		return
	}
	for _, child := range v.Group() {
		flatten(key, child, fn)
	}
}

// durationKey renames duration attributes to carry a _ms suffix.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

func normalizeValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// record is one log line before rendering.
type record map[string]any

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// setDefault stores the first non-empty candidate when key is unset.
func (r record) setDefault(key string, candidates ...string) {
	if r.str(key) != "" {
		return
	}
	for _, c := range candidates {
		if c != "" {
			r[key] = c
			return
		}
	}
}

func (r record) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	meta := updateMetaFrom(ctx)
	fill := func(key string, v any, present bool) {
		if _, ok := r[key]; !ok && present {
			r[key] = v
		}
	}
	fill("rid", RIDFrom(ctx), RIDFrom(ctx) != "")
	fill("update_id", meta.updateID, meta.updateID != 0)
	fill("user_id", meta.userID, meta.userID != 0)
	fill("chat_id", meta.chatID, meta.chatID != 0)
	fill("handler", HandlerFrom(ctx), HandlerFrom(ctx) != "")
	fill("step", StepFrom(ctx), StepFrom(ctx) != "")
}

// compactRID shortens rid for reading; JSON lines keep the original as rid_full.
func (r record) compactRID(keepFull bool) {
	rid := r.str("rid")
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if _, seen := r["rid_full"]; keepFull && !seen {
		r["rid_full"] = rid
	}
	r["rid"] = compact
}

func (r record) normalizeEnums() {
	if s := strings.ToLower(r.str("status")); s != "" {
		r["status"] = s
	}
	if o := strings.ToLower(r.str("outcome")); o != "" {
		if _, ok := knownOutcome[o]; ok {
			r["outcome"] = o
		} else {
			delete(r, "outcome")
		}
	}
}

func (r record) pruneEmpty() {
	for k, v := range r {
		if v == nil {
			delete(r, k)
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			delete(r, k)
		}
	}
}

// keys returns the ordered prefix followed by the remaining keys sorted.
func (r record) keys(order []string) []string {
	out := make([]string, 0, len(r))
	seen := make(map[string]struct{}, len(order))
	for _, k := range order {
		if _, ok := r[k]; ok {
			out = append(out, k)
			seen[k] = struct{}{}
		}
	}
	rest := make([]string, 0, len(r)-len(out))
	for k := range r {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func (r record) json(order []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys(order) {
		data, err := json.Marshal(r[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r record) kv(order []string) []byte {
	var buf bytes.Buffer
	for i, k := range r.keys(order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(r[k]))
	}
	return buf.Bytes()
}

func kvValue(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
