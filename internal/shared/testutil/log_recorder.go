package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// LogRecord is one captured log line. Attrs holds the record's own
// attributes together with those added through Logger.With, group names
// joined with dots.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

type logStore struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogRecorder is a slog.Handler that keeps every record for assertions.
// Loggers derived with With or WithGroup share the recorder's store.
type LogRecorder struct {
	store  *logStore
	t      *testing.T
	attrs  map[string]any
	prefix string
}

// NewTestLogger returns a logger writing into a fresh LogRecorder. Records
// are echoed with t.Logf so failing tests show what the code logged.
func NewTestLogger(t *testing.T) (*slog.Logger, *LogRecorder) {
	rec := &LogRecorder{store: &logStore{}, t: t, attrs: map[string]any{}}
	return slog.New(rec), rec
}

// Enabled implements slog.Handler. Every level is captured.
func (h *LogRecorder) Enabled(context.Context, slog.Level) bool { return true }

// Handle implements slog.Handler.
func (h *LogRecorder) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, h.prefix, a)
		return true
	})

	h.store.mu.Lock()
	h.store.records = append(h.store.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	h.store.mu.Unlock()

	if h.t != nil {
		h.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		addAttr(next.attrs, h.prefix, a)
	}
	return next
}

// WithGroup implements slog.Handler.
func (h *LogRecorder) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	return next
}

func (h *LogRecorder) clone() *LogRecorder {
	attrs := make(map[string]any, len(h.attrs))
	for k, v := range h.attrs {
		attrs[k] = v
	}
	return &LogRecorder{store: h.store, t: h.t, attrs: attrs, prefix: h.prefix}
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

// Records returns a copy of everything captured so far.
func (h *LogRecorder) Records() []LogRecord {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	out := make([]LogRecord, len(h.store.records))
	copy(out, h.store.records)
	return out
}

// Count returns the number of captured records.
func (h *LogRecorder) Count() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.records)
}

// Messages returns the messages logged at level, in order.
func (h *LogRecorder) Messages(level slog.Level) []string {
	var out []string
	for _, r := range h.Records() {
		if r.Level == level {
			out = append(out, r.Message)
		}
	}
	return out
}

// ContainsMessage reports whether any record's message contains message.
func (h *LogRecorder) ContainsMessage(message string) bool {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, message) {
			return true
		}
	}
	return false
}

// Find returns the first record whose message contains message.
func (h *LogRecorder) Find(message string) (LogRecord, bool) {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, message) {
			return r, true
		}
	}
	return LogRecord{}, false
}

// TB is the part of testing.TB the log assertions need.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
}

// AssertLogContains fails t unless a record at level contains message.
func AssertLogContains(t TB, logs *LogRecorder, level slog.Level, message string) {
	t.Helper()
	for _, m := range logs.Messages(level) {
		if strings.Contains(m, message) {
			return
		}
	}
	assert.Failf(t, "log message not found",
		"no %s record contains %q; captured %s records: %q", level, message, level, logs.Messages(level))
}

// AssertLogAttr fails t unless some record carries key with the given value.
// Integers are captured as int64 and floats as float64.
func AssertLogAttr(t TB, logs *LogRecorder, key string, want any) {
	t.Helper()
	var seen []any
	for _, r := range logs.Records() {
		if v, ok := r.Attrs[key]; ok {
			if v == want {
				return
			}
			seen = append(seen, v)
		}
	}
	assert.Failf(t, "log attribute not found", "no record has %s=%v; values seen: %v", key, want, seen)
}
