package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/taskstream/internal/logx"
	"pkt.systems/taskstream/schema"
)

// Session is a launched task as seen by the client. It is consumed by
// exactly one Loop.Run call.
type Session struct {
	ID   schema.TaskID
	Mode *ModeState

	mu     sync.Mutex
	closed bool
}

// NewSession attaches to an existing task with the given intended mode.
func NewSession(id schema.TaskID, mode schema.Mode) *Session {
	return &Session{ID: id, Mode: NewModeState(mode)}
}

// Close releases the session. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether the session has been released.
func (s *Session) Closed() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Launcher creates tasks on the engine.
type Launcher struct {
	engine Engine
}

// NewLauncher constructs a Launcher.
func NewLauncher(engine Engine) *Launcher {
	return &Launcher{engine: engine}
}

// Launch validates the request and creates exactly one remote task.
func (l *Launcher) Launch(ctx context.Context, text string, settings schema.TaskSettings) (*Session, error) {
	log := logx.Ctx(ctx)
	if l == nil || l.engine == nil {
		return nil, NewEngineError(EngineErrorConnection, "create_task", errors.New("engine not configured"))
	}
	if strings.TrimSpace(text) == "" {
		return nil, NewEngineError(EngineErrorInvalidRequest, "create_task", fmt.Errorf("%w: %w", schema.ErrInvalidRequest, schema.ErrEmptyTask))
	}
	if !settings.Mode.Valid() {
		return nil, NewEngineError(EngineErrorInvalidRequest, "create_task", fmt.Errorf("%w: %w %q", schema.ErrInvalidRequest, schema.ErrInvalidMode, settings.Mode))
	}
	log.Info("task launch", "mode", settings.Mode, "text_len", len(text), "auto_approval", settings.AutoApproval.Enabled)
	log.Debug("task launch approvals",
		"read_files", settings.AutoApproval.Actions.ReadFiles,
		"edit_files", settings.AutoApproval.Actions.EditFiles,
		"execute_safe_commands", settings.AutoApproval.Actions.ExecuteSafeCommands,
		"execute_all_commands", settings.AutoApproval.Actions.ExecuteAllCommands,
		"use_browser", settings.AutoApproval.Actions.UseBrowser,
		"use_mcp", settings.AutoApproval.Actions.UseMCP,
		"max_requests", settings.AutoApproval.MaxRequests,
	)

	id, err := l.engine.CreateTask(ctx, schema.TaskRequest{Text: text, Settings: settings})
	if err != nil {
		log.Warn("task launch failed", "err", err)
		return nil, classify("create_task", err)
	}
	logx.WithTask(ctx, id).Info("task launched")
	return NewSession(id, settings.Mode), nil
}

// classify makes sure err carries an EngineError classification.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EngineError
	if errors.As(err, &existing) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return NewEngineError(EngineErrorCanceled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewEngineError(EngineErrorTimeout, op, err)
	}
	return NewEngineError(EngineErrorUnknown, op, err)
}
