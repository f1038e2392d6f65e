package core

import (
	"context"

	"pkt.systems/taskstream/schema"
)

// Engine is the remote task engine a session talks to.
type Engine interface {
	CreateTask(ctx context.Context, req schema.TaskRequest) (schema.TaskID, error)
	SubscribeState(ctx context.Context) (SnapshotStream, error)
	ModeToggler
}

// ModeToggler requests a plan/act mode change on the engine.
type ModeToggler interface {
	ToggleMode(ctx context.Context, mode schema.Mode) error
}

// RawSnapshot is an undecoded state update as received from the engine.
type RawSnapshot struct {
	StateJSON []byte
}

// SnapshotStream yields raw state updates. Next returns io.EOF once the
// engine ends the stream.
type SnapshotStream interface {
	Next(ctx context.Context) (RawSnapshot, error)
	Close() error
}

// Sink receives everything the state loop surfaces.
type Sink interface {
	// Display is called for each message worth showing.
	Display(ctx context.Context, msg schema.Message)
	// Complete is called once with the terminal completion message.
	Complete(ctx context.Context, msg schema.Message)
	// Report is called for non-fatal problems (decode and toggle failures).
	Report(ctx context.Context, err error)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are ignored.
type SinkFuncs struct {
	OnDisplay  func(ctx context.Context, msg schema.Message)
	OnComplete func(ctx context.Context, msg schema.Message)
	OnReport   func(ctx context.Context, err error)
}

// Display implements Sink.
func (s SinkFuncs) Display(ctx context.Context, msg schema.Message) {
	if s.OnDisplay != nil {
		s.OnDisplay(ctx, msg)
	}
}

// Complete implements Sink.
func (s SinkFuncs) Complete(ctx context.Context, msg schema.Message) {
	if s.OnComplete != nil {
		s.OnComplete(ctx, msg)
	}
}

// Report implements Sink.
func (s SinkFuncs) Report(ctx context.Context, err error) {
	if s.OnReport != nil {
		s.OnReport(ctx, err)
	}
}
