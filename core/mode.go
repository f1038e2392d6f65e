package core

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/taskstream/schema"
)

// ModeState tracks the mode the caller wants and the mode the client
// believes the engine is in.
type ModeState struct {
	mu       sync.Mutex
	intended schema.Mode
	believed schema.Mode
}

// NewModeState starts with both intended and believed set to initial.
func NewModeState(initial schema.Mode) *ModeState {
	return &ModeState{intended: initial, believed: initial}
}

// Intended returns the mode the caller wants.
func (m *ModeState) Intended() schema.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intended
}

// Believed returns the mode the client currently assumes is active.
func (m *ModeState) Believed() schema.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.believed
}

// SetIntended changes the target mode. The next snapshot that reports a
// different mode triggers a toggle towards it.
func (m *ModeState) SetIntended(mode schema.Mode) error {
	if !mode.Valid() {
		return schema.ErrInvalidMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intended = mode
	return nil
}

// Reconcile compares the reported mode with the intended one. On mismatch it
// issues a blocking toggle towards the intended mode and updates the belief
// right away, whether or not the toggle succeeded. It reports whether a
// toggle was issued.
func (m *ModeState) Reconcile(ctx context.Context, reported schema.Mode, toggler ModeToggler) (bool, error) {
	intended := m.Intended()
	if reported == intended {
		m.setBelieved(reported)
		return false, nil
	}
	if toggler == nil {
		m.setBelieved(intended)
		return true, NewEngineError(EngineErrorToggle, "toggle_mode", errors.New("no mode toggler"))
	}
	err := toggler.ToggleMode(ctx, intended)
	m.setBelieved(intended)
	if err != nil {
		return true, NewEngineError(EngineErrorToggle, "toggle_mode", err)
	}
	return true, nil
}

func (m *ModeState) setBelieved(mode schema.Mode) {
	m.mu.Lock()
	m.believed = mode
	m.mu.Unlock()
}
