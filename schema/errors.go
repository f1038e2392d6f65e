package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmptyTask indicates the task text was empty.
	ErrEmptyTask = errors.New("empty task text")
	// ErrInvalidMode indicates an unknown plan/act mode value.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrMissingMode indicates a state payload without a mode.
	ErrMissingMode = errors.New("state payload has no mode")
	// ErrMissingIndex indicates a message without a conversation history index.
	ErrMissingIndex = errors.New("message has no conversationHistoryIndex")
	// ErrSessionClosed indicates the session was already consumed.
	ErrSessionClosed = errors.New("session closed")
)

// ErrToggleRejected indicates the engine declined a plan/act mode change.
var ErrToggleRejected = errors.New("mode toggle rejected")
