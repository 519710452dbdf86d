package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// LogRecord is one captured record. Attribute keys inside groups are joined
// with dots, and attributes added with Logger.With are included.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// String returns the attribute as a string, or "" when it is absent.
func (r LogRecord) String(key string) string {
	if v, ok := r.Attrs[key].(string); ok {
		return v
	}
	return ""
}

type logSink struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogCapture is a slog.Handler keeping every record in memory. Handlers
// derived through WithAttrs and WithGroup write to the same capture.
type LogCapture struct {
	sink  *logSink
	base  map[string]any
	group string
	t     testing.TB
}

// NewTestLogger returns a logger that records everything it is given and
// echoes each record to the test log when t is not nil.
func NewTestLogger(t testing.TB) (*slog.Logger, *LogCapture) {
	h := &LogCapture{sink: &logSink{}, base: map[string]any{}, t: t}
	return slog.New(h), h
}

// Enabled implements slog.Handler
func (h *LogCapture) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler
func (h *LogCapture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.base)+r.NumAttrs())
	for k, v := range h.base {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, h.group, a)
		return true
	})

	h.sink.mu.Lock()
	h.sink.records = append(h.sink.records, LogRecord{Level: r.Level, Message: r.Message, Attrs: attrs})
	h.sink.mu.Unlock()

	if h.t != nil {
		h.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	base := make(map[string]any, len(h.base)+len(attrs))
	for k, v := range h.base {
		base[k] = v
	}
	for _, a := range attrs {
		flatten(base, h.group, a)
	}
	return &LogCapture{sink: h.sink, base: base, group: h.group, t: h.t}
}

// WithGroup implements slog.Handler
func (h *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &LogCapture{sink: h.sink, base: h.base, group: join(h.group, name), t: h.t}
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		for _, member := range a.Value.Group() {
			flatten(dst, join(prefix, a.Key), member)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[join(prefix, a.Key)] = a.Value.Any()
}

func join(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// Records returns a copy of everything captured so far
func (h *LogCapture) Records() []LogRecord {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	out := make([]LogRecord, len(h.sink.records))
	copy(out, h.sink.records)
	return out
}

// Find returns the records with the given message in capture order
func (h *LogCapture) Find(message string) []LogRecord {
	var out []LogRecord
	for _, r := range h.Records() {
		if r.Message == message {
			out = append(out, r)
		}
	}
	return out
}

func dump(t testing.TB, h *LogCapture) {
	t.Helper()
	t.Logf("captured logs:")
	for _, r := range h.Records() {
		t.Logf("  - [%s] %s %v", r.Level, r.Message, r.Attrs)
	}
}

// AssertLogContains fails t unless a record with message was logged at level
func AssertLogContains(t testing.TB, h *LogCapture, level slog.Level, message string) {
	t.Helper()
	for _, r := range h.Find(message) {
		if r.Level == level {
			return
		}
	}
	t.Errorf("log message %q not found at level %s", message, level)
	dump(t, h)
}

// AssertLogAttr fails t unless some record carries key with value
func AssertLogAttr(t testing.TB, h *LogCapture, key string, value any) {
	t.Helper()
	for _, r := range h.Records() {
		if v, ok := r.Attrs[key]; ok && v == value {
			return
		}
	}
	t.Errorf("log attribute %s=%v not found", key, value)
	dump(t, h)
}

// AssertNoErrors fails t for every error level record
func AssertNoErrors(t testing.TB, h *LogCapture) {
	t.Helper()
	for _, r := range h.Records() {
		if r.Level >= slog.LevelError {
			t.Errorf("unexpected error log: %s %v", r.Message, r.Attrs)
		}
	}
}

// AssertStepFailed fails t unless a step_failed record names step and
// classifies the failure as errType.
func AssertStepFailed(t testing.TB, h *LogCapture, step, errType string) {
	t.Helper()
	for _, r := range h.Find("step_failed") {
		if r.String("step") == step && r.String("error_type") == errType {
			return
		}
	}
	t.Errorf("no step_failed record for step %q with error_type %q", step, errType)
	dump(t, h)
}

// AssertRunID fails t unless every listed message was logged and each of
// those records carries run_id.
func AssertRunID(t testing.TB, h *LogCapture, runID string, messages ...string) {
	t.Helper()
	for _, msg := range messages {
		records := h.Find(msg)
		if len(records) == 0 {
			t.Errorf("log message %q not found", msg)
			continue
		}
		for _, r := range records {
			if got := r.String("run_id"); got != runID {
				t.Errorf("%s: run_id = %q, want %q", msg, got, runID)
			}
		}
	}
}
