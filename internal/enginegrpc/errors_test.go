package enginegrpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pkt.systems/taskstream/core"
	"pkt.systems/taskstream/schema"
)

func TestWrapEngineErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind core.EngineErrorKind
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), core.EngineErrorConnection},
		{"invalid argument", status.Error(codes.InvalidArgument, "bad"), core.EngineErrorInvalidRequest},
		{"unauthenticated", status.Error(codes.Unauthenticated, "no auth"), core.EngineErrorUnauthorized},
		{"permission denied", status.Error(codes.PermissionDenied, "nope"), core.EngineErrorPermissionDenied},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), core.EngineErrorTimeout},
		{"status canceled", status.Error(codes.Canceled, "gone"), core.EngineErrorCanceled},
		{"internal", status.Error(codes.Internal, "boom"), core.EngineErrorUnknown},
		{"context canceled", context.Canceled, core.EngineErrorCanceled},
		{"context deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), core.EngineErrorTimeout},
		{"plain", errors.New("plain"), core.EngineErrorUnknown},
	}
	for _, tc := range cases {
		wrapped := wrapEngineError("subscribe_state", tc.err)
		var engineErr *core.EngineError
		if !errors.As(wrapped, &engineErr) {
			t.Fatalf("%s: expected EngineError, got %T", tc.name, wrapped)
		}
		if engineErr.Kind != tc.kind {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.kind, engineErr.Kind)
		}
		if engineErr.Op != "subscribe_state" {
			t.Fatalf("%s: expected op subscribe_state, got %q", tc.name, engineErr.Op)
		}
		if !errors.Is(wrapped, tc.err) {
			t.Fatalf("%s: expected wrapped error to unwrap to original", tc.name)
		}
	}
}

func TestWrapEngineErrorKeepsExisting(t *testing.T) {
	original := core.NewEngineError(core.EngineErrorToggle, "toggle_mode", errors.New("rejected"))
	if got := wrapEngineError("other", original); got != error(original) {
		t.Fatalf("expected existing EngineError to pass through, got %v", got)
	}
	if wrapEngineError("op", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestBackendStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: %w", schema.ErrInvalidRequest, schema.ErrEmptyTask), codes.InvalidArgument},
		{schema.ErrInvalidMode, codes.InvalidArgument},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.PermissionDenied, "nope"), codes.PermissionDenied},
	}
	for _, tc := range cases {
		st, _ := status.FromError(backendStatus("op", tc.err))
		if st.Code() != tc.code {
			t.Fatalf("%v: expected %s, got %s", tc.err, tc.code, st.Code())
		}
	}
}
