package core

import (
	"errors"
	"fmt"
)

// EngineErrorKind classifies engine failures for callers.
type EngineErrorKind string

const (
	// EngineErrorUnknown is an uncategorized engine failure.
	EngineErrorUnknown EngineErrorKind = "unknown"
	// EngineErrorConnection indicates the engine is unreachable or the
	// transport dropped.
	EngineErrorConnection EngineErrorKind = "connection"
	// EngineErrorInvalidRequest indicates a malformed task-creation request.
	EngineErrorInvalidRequest EngineErrorKind = "invalid_request"
	// EngineErrorDecode indicates a state update could not be decoded.
	EngineErrorDecode EngineErrorKind = "decode"
	// EngineErrorToggle indicates a mode change request failed.
	EngineErrorToggle EngineErrorKind = "toggle"
	// EngineErrorUnauthorized indicates authentication failed.
	EngineErrorUnauthorized EngineErrorKind = "unauthorized"
	// EngineErrorPermissionDenied indicates authorization failed.
	EngineErrorPermissionDenied EngineErrorKind = "permission_denied"
	// EngineErrorTimeout indicates a deadline was exceeded.
	EngineErrorTimeout EngineErrorKind = "timeout"
	// EngineErrorCanceled indicates the request was canceled.
	EngineErrorCanceled EngineErrorKind = "canceled"
)

// EngineError wraps engine failures with a stable classification.
type EngineError struct {
	Kind    EngineErrorKind
	Op      string
	Message string
	Err     error
}

// NewEngineError constructs a classified engine error.
func NewEngineError(kind EngineErrorKind, op string, err error) *EngineError {
	return &EngineError{Kind: kind, Op: op, Err: err}
}

func (e *EngineError) Error() string {
	if e == nil {
		return "engine error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("engine %s failed", e.Op)
	}
	return "engine error"
}

func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorKind returns the classification of err, or "" when err carries none.
func ErrorKind(err error) EngineErrorKind {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return EngineErrorDecode
	}
	return ""
}

// DecodeError reports a state update that could not be decoded.
type DecodeError struct {
	payload []byte
	err     error
}

func newDecodeError(payload []byte, err error) *DecodeError {
	return &DecodeError{payload: append([]byte(nil), payload...), err: err}
}

func (e *DecodeError) Error() string {
	if e == nil || e.err == nil {
		return "state decode error"
	}
	return "state decode: " + e.err.Error()
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Payload returns the raw state JSON that failed to decode.
func (e *DecodeError) Payload() []byte {
	if e == nil {
		return nil
	}
	return e.payload
}
