package core

import (
	"context"
	"errors"
	"io"

	"pkt.systems/pslog"
	"pkt.systems/taskstream/internal/logx"
	"pkt.systems/taskstream/schema"
)

// Status is how a state loop ended without a fatal error.
type Status string

const (
	// StatusCompleted means the task reported its completion result.
	StatusCompleted Status = "completed"
	// StatusStreamClosed means the engine ended the state stream.
	StatusStreamClosed Status = "stream_closed"
	// StatusCancelled means the caller cancelled the context.
	StatusCancelled Status = "cancelled"
)

// Outcome summarises a finished state loop.
type Outcome struct {
	Status         Status
	Result         string
	Watermark      int
	Snapshots      int
	Displayed      int
	DecodeErrors   int
	Toggles        int
	ToggleFailures int
}

// State is the per-session state threaded through each snapshot step.
type State struct {
	Session   *Session
	Watermark *Watermark

	completed      bool
	result         string
	snapshots      int
	displayed      int
	decodeErrors   int
	toggles        int
	toggleFailures int
}

// NewState returns fresh per-session state for session.
func NewState(session *Session) *State {
	return &State{Session: session, Watermark: NewWatermark()}
}

// Completed reports whether the completion result was seen.
func (s *State) Completed() bool {
	return s.completed
}

// Outcome snapshots the counters with the given status.
func (s *State) Outcome(status Status) Outcome {
	return Outcome{
		Status:         status,
		Result:         s.result,
		Watermark:      s.Watermark.Value(),
		Snapshots:      s.snapshots,
		Displayed:      s.displayed,
		DecodeErrors:   s.decodeErrors,
		Toggles:        s.toggles,
		ToggleFailures: s.toggleFailures,
	}
}

// Loop walks an engine's state stream for one session at a time.
type Loop struct {
	engine Engine
	sink   Sink
}

// NewLoop constructs a Loop. A nil sink discards everything.
func NewLoop(engine Engine, sink Sink) *Loop {
	if sink == nil {
		sink = SinkFuncs{}
	}
	return &Loop{engine: engine, sink: sink}
}

// Run subscribes to the engine's state stream and processes snapshots in
// order until the task completes, the stream ends or ctx is cancelled. The
// stream and the session are released on every return path. Transport
// failures are returned as *EngineError; decode and toggle failures are
// reported to the sink and the loop carries on.
func (l *Loop) Run(ctx context.Context, session *Session) (Outcome, error) {
	if session == nil {
		return Outcome{Watermark: WatermarkUnset}, NewEngineError(EngineErrorInvalidRequest, "run", errors.New("session is required"))
	}
	if session.Closed() {
		return Outcome{Watermark: WatermarkUnset}, NewEngineError(EngineErrorInvalidRequest, "run", schema.ErrSessionClosed)
	}
	defer session.Close()
	if l == nil || l.engine == nil {
		return Outcome{Watermark: WatermarkUnset}, NewEngineError(EngineErrorConnection, "subscribe_state", errors.New("engine not configured"))
	}

	log := logx.WithTask(ctx, session.ID)
	ctx = logx.ContextWithTaskLogger(ctx, log, session.ID)
	state := NewState(session)

	if ctx.Err() != nil {
		log.Info("state loop cancelled", "snapshots", 0)
		return state.Outcome(StatusCancelled), nil
	}

	log.Debug("state subscribe", "mode", session.Mode.Intended())
	stream, err := l.engine.SubscribeState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("state loop cancelled", "snapshots", 0)
			return state.Outcome(StatusCancelled), nil
		}
		log.Warn("state subscribe failed", "err", err)
		return state.Outcome(""), classify("subscribe_state", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			log.Debug("state stream close failed", "err", cerr)
		}
	}()

	for {
		if ctx.Err() != nil {
			log.Info("state loop cancelled", "snapshots", state.snapshots, "watermark", state.Watermark.Value())
			return state.Outcome(StatusCancelled), nil
		}
		raw, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("state stream closed", "snapshots", state.snapshots, "watermark", state.Watermark.Value())
				return state.Outcome(StatusStreamClosed), nil
			}
			if ctx.Err() != nil {
				log.Info("state loop cancelled", "snapshots", state.snapshots, "watermark", state.Watermark.Value())
				return state.Outcome(StatusCancelled), nil
			}
			log.Warn("state stream failed", "err", err)
			return state.Outcome(""), classify("subscribe_state", err)
		}
		state.snapshots++
		snapshot, err := DecodeSnapshot(raw)
		if err != nil {
			state.decodeErrors++
			log.Warn("state decode failed", "err", err, "preview", logx.Preview(string(raw.StateJSON), 200))
			l.sink.Report(ctx, err)
			continue
		}
		if l.Apply(ctx, state, snapshot) {
			return state.Outcome(StatusCompleted), nil
		}
	}
}

// Apply processes one decoded snapshot against state and reports whether the
// task completed. Once completed, further snapshots are ignored.
func (l *Loop) Apply(ctx context.Context, state *State, snapshot schema.Snapshot) bool {
	if state.completed {
		return true
	}
	log := pslog.Ctx(ctx)
	log.Trace("state snapshot", "mode", snapshot.Mode, "messages", len(snapshot.Messages), "watermark", state.Watermark.Value())

	mode := state.Session.Mode
	toggled, err := mode.Reconcile(ctx, snapshot.Mode, l.engine)
	if toggled {
		state.toggles++
		log.Info("mode toggle", "reported", snapshot.Mode, "target", mode.Believed())
	}
	if err != nil {
		state.toggleFailures++
		log.Warn("mode toggle failed", "err", err)
		l.sink.Report(ctx, err)
	}

	ordinal := 0
	for i, msg := range snapshot.Messages {
		if i > 0 && msg.Index == snapshot.Messages[i-1].Index {
			ordinal++
		} else {
			ordinal = 0
		}
		if !state.Watermark.IsNew(msg) {
			continue
		}
		if state.Watermark.Redelivered(msg, ordinal) {
			continue
		}
		if IsCompletion(msg) {
			state.Watermark.Advance(msg, ordinal)
			state.completed = true
			state.result = msg.TextValue()
			log.Info("task completed", "index", msg.Index, "text_len", len(state.result))
			l.sink.Complete(ctx, msg)
			return true
		}
		if ShouldDisplay(msg) {
			state.displayed++
			log.Debug("message surfaced", "kind", msg.Kind, "subkind", msg.Subkind, "index", msg.Index, "partial", msg.IsPartial(), "text_len", len(msg.TextValue()))
			l.sink.Display(ctx, msg)
		}
		state.Watermark.Advance(msg, ordinal)
	}
	return false
}
