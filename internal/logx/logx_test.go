package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"unicode/utf8"

	"pkt.systems/pslog"
	"pkt.systems/taskstream/schema"
)

func TestWithTaskAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newTestLogger(capture))
	log := WithTask(ctx, "task-1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["task"] != "task-1" {
		t.Fatalf("expected task field, got %+v", entry)
	}
}

func TestWithTaskSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	logger := newTestLogger(capture).With("task", "task-1")
	ctx := ContextWithTaskLogger(context.Background(), logger, "task-1")
	WithTask(ctx, "task-1").Info("hello")

	line := capture.buf.String()
	if n := bytes.Count([]byte(line), []byte(`"task"`)); n != 1 {
		t.Fatalf("expected task field once, got %d in %s", n, line)
	}
}

func TestWithClientAddsField(t *testing.T) {
	capture := &logCapture{}
	ctx := pslog.ContextWithLogger(context.Background(), newTestLogger(capture))
	WithClient(ctx, schema.ClientID("c-1")).Info("hello")

	entry := capture.firstEntry(t)
	if entry["client"] != "c-1" {
		t.Fatalf("expected client field, got %+v", entry)
	}
}

func TestWithClientSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	logger := newTestLogger(capture).With("client", "c-1")
	ctx := ContextWithClient(pslog.ContextWithLogger(context.Background(), logger), "c-1")
	WithClient(ctx, "c-1").Info("hello")

	line := capture.buf.String()
	if n := bytes.Count([]byte(line), []byte(`"client"`)); n != 1 {
		t.Fatalf("expected client field once, got %d in %s", n, line)
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("abcdef", 3); got != "abc" {
		t.Fatalf("Preview = %q", got)
	}
	if got := Preview("abc", 0); got != "abc" {
		t.Fatalf("Preview with no limit = %q", got)
	}
	cases := []struct {
		value string
		max   int
		want  string
	}{
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"日本語", 4, "日"},
		{"日本語", 6, "日本"},
	}
	for _, tc := range cases {
		got := Preview(tc.value, tc.max)
		if got != tc.want || !utf8.ValidString(got) {
			t.Fatalf("Preview(%q, %d) = %q, want %q", tc.value, tc.max, got, tc.want)
		}
	}
}

func newTestLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
