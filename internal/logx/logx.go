package logx

import (
	"context"
	"unicode/utf8"

	"pkt.systems/pslog"
	"pkt.systems/taskstream/schema"
)

type contextKey int

const (
	taskKey contextKey = iota
	clientKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithTask annotates the logger with the task id if present.
func WithTask(ctx context.Context, taskID schema.TaskID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if taskID != "" {
		if current, ok := ctx.Value(taskKey).(schema.TaskID); ok && current == taskID {
			return log
		}
		log = log.With("task", taskID)
	}
	return log
}

// WithClient annotates the logger with the client id if present.
func WithClient(ctx context.Context, clientID schema.ClientID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if clientID != "" {
		if current, ok := ctx.Value(clientKey).(schema.ClientID); ok && current == clientID {
			return log
		}
		log = log.With("client", clientID)
	}
	return log
}

// ContextWithTask stores the task marker on the context for log de-duplication.
func ContextWithTask(ctx context.Context, taskID schema.TaskID) context.Context {
	if ctx == nil || taskID == "" {
		return ctx
	}
	return context.WithValue(ctx, taskKey, taskID)
}

// ContextWithTaskLogger attaches the logger and task marker to the context.
func ContextWithTaskLogger(ctx context.Context, log pslog.Logger, taskID schema.TaskID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithTask(ctx, taskID)
}

// ContextWithClient stores the client marker on the context for log de-duplication.
func ContextWithClient(ctx context.Context, clientID schema.ClientID) context.Context {
	if ctx == nil || clientID == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKey, clientID)
}

// Preview truncates value to at most max bytes for log fields without
// splitting a UTF-8 sequence.
func Preview(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
