package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"pkt.systems/taskstream/schema"
)

type fakeEngine struct {
	mu sync.Mutex

	taskID       schema.TaskID
	createErr    error
	subscribeErr error
	toggleErr    error
	updates      [][]byte
	tailErr      error
	block        bool

	created  []schema.TaskRequest
	toggles  []schema.Mode
	streams  []*fakeStream
	received int
}

func (f *fakeEngine) CreateTask(_ context.Context, req schema.TaskRequest) (schema.TaskID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.taskID, nil
}

func (f *fakeEngine) SubscribeState(context.Context) (SnapshotStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	stream := &fakeStream{engine: f, updates: f.updates, tailErr: f.tailErr, block: f.block}
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeEngine) ToggleMode(_ context.Context, mode schema.Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, mode)
	return f.toggleErr
}

func (f *fakeEngine) toggleCalls() []schema.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schema.Mode(nil), f.toggles...)
}

type fakeStream struct {
	engine  *fakeEngine
	updates [][]byte
	tailErr error
	block   bool
	pos     int
	closed  bool
}

func (s *fakeStream) Next(ctx context.Context) (RawSnapshot, error) {
	if s.pos < len(s.updates) {
		update := s.updates[s.pos]
		s.pos++
		s.engine.mu.Lock()
		s.engine.received++
		s.engine.mu.Unlock()
		return RawSnapshot{StateJSON: update}, nil
	}
	if s.block {
		<-ctx.Done()
		return RawSnapshot{}, ctx.Err()
	}
	if s.tailErr != nil {
		return RawSnapshot{}, s.tailErr
	}
	return RawSnapshot{}, io.EOF
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type recordingSink struct {
	displayed []schema.Message
	completed []schema.Message
	reports   []error
}

func (r *recordingSink) Display(_ context.Context, msg schema.Message) {
	r.displayed = append(r.displayed, msg)
}

func (r *recordingSink) Complete(_ context.Context, msg schema.Message) {
	r.completed = append(r.completed, msg)
}

func (r *recordingSink) Report(_ context.Context, err error) {
	r.reports = append(r.reports, err)
}

func (r *recordingSink) texts() []string {
	out := make([]string, 0, len(r.displayed))
	for _, msg := range r.displayed {
		out = append(out, msg.TextValue())
	}
	return out
}

type wireMsg struct {
	kind    string
	subkind string
	text    *string
	partial bool
	index   int
}

func say(subkind, text string, partial bool, index int) wireMsg {
	return wireMsg{kind: "say", subkind: subkind, text: schema.StringPtr(text), partial: partial, index: index}
}

func ask(subkind, text string, index int) wireMsg {
	return wireMsg{kind: "ask", subkind: subkind, text: schema.StringPtr(text), index: index}
}

func stateJSON(t *testing.T, mode string, msgs ...wireMsg) []byte {
	t.Helper()
	payload := schema.StatePayload{Mode: schema.StringPtr(mode), Messages: []schema.WireMessage{}}
	for _, m := range msgs {
		wire := schema.WireMessage{
			Type:                     m.kind,
			Text:                     m.text,
			ConversationHistoryIndex: schema.IntPtr(m.index),
		}
		if m.partial {
			wire.Partial = schema.BoolPtr(true)
		}
		subkind := m.subkind
		if m.kind == "ask" {
			wire.Ask = &subkind
		} else {
			wire.Say = &subkind
		}
		payload.Messages = append(payload.Messages, wire)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	return data
}

func decoded(t *testing.T, mode string, msgs ...wireMsg) schema.Snapshot {
	t.Helper()
	snapshot, err := DecodeSnapshot(RawSnapshot{StateJSON: stateJSON(t, mode, msgs...)})
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	return snapshot
}

var errBoom = errors.New("boom")
