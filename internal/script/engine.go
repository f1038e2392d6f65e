package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/taskstream/schema"
)

// Engine plays a Script. It satisfies enginegrpc.Backend.
type Engine struct {
	script Script

	mu      sync.Mutex
	mode    schema.Mode
	tasks   []schema.TaskRequest
	toggles []schema.Mode
}

// NewEngine validates script and returns an engine positioned at its initial mode.
func NewEngine(script Script) (*Engine, error) {
	if err := script.Validate(); err != nil {
		return nil, err
	}
	mode := schema.ModePlan
	if script.InitialMode != "" {
		mode, _ = schema.ParseMode(script.InitialMode)
	}
	return &Engine{script: script, mode: mode}, nil
}

// NewTask records req, adopts its mode and returns the scripted task id.
func (e *Engine) NewTask(ctx context.Context, req schema.TaskRequest) (schema.TaskID, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("%w: %w", schema.ErrInvalidRequest, schema.ErrEmptyTask)
	}
	id := schema.TaskID(e.script.TaskID)
	if id == "" {
		id = schema.TaskID(uuid.NewString())
	}
	e.mu.Lock()
	e.tasks = append(e.tasks, req)
	if req.Settings.Mode.Valid() {
		e.mode = req.Settings.Mode
	}
	e.mu.Unlock()
	pslog.Ctx(ctx).Debug("script task created", "task", id, "mode", req.Settings.Mode)
	return id, nil
}

// Subscribe sends every step in order, then either returns or holds the
// stream open until ctx ends when the script asks for it.
func (e *Engine) Subscribe(ctx context.Context, send func([]byte) error) error {
	log := pslog.Ctx(ctx)
	for i, step := range e.script.Steps {
		if step.Delay > 0 {
			timer := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		payload, err := e.payload(step)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := send(payload); err != nil {
			return err
		}
		log.Trace("script step sent", "step", i, "bytes", len(payload))
	}
	if e.script.Hold {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

// ToggleMode switches the current mode unless the script rejects toggles.
func (e *Engine) ToggleMode(ctx context.Context, mode schema.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w %q", schema.ErrInvalidMode, mode)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toggles = append(e.toggles, mode)
	if e.script.RejectToggles {
		return schema.ErrToggleRejected
	}
	e.mode = mode
	pslog.Ctx(ctx).Debug("script mode toggled", "mode", mode)
	return nil
}

// Mode returns the engine's current mode.
func (e *Engine) Mode() schema.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Tasks returns the task requests received so far.
func (e *Engine) Tasks() []schema.TaskRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]schema.TaskRequest(nil), e.tasks...)
}

// Toggles returns the requested modes in call order.
func (e *Engine) Toggles() []schema.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]schema.Mode(nil), e.toggles...)
}

func (e *Engine) payload(step Step) ([]byte, error) {
	if step.Raw != "" {
		return []byte(step.Raw), nil
	}
	mode := step.Mode
	if mode == "" {
		mode = string(e.Mode())
	}
	state := schema.StatePayload{Mode: &mode, Messages: make([]schema.WireMessage, 0, len(step.Messages))}
	for _, msg := range step.Messages {
		state.Messages = append(state.Messages, msg.wire())
	}
	return json.Marshal(state)
}
