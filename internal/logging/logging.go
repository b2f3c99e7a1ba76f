// Package logging provides context-scoped structured logging helpers built
// on log/slog. Components attach identifying values to a context.Context as
// they hand it down the call stack; the root logger pulls them back out as
// attributes so every log line carries session/plan/component/tool-call context
// without threading extra parameters through every function signature.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type contextKey int

const (
	sessionIDKey contextKey = iota
	planIDKey
	componentKey
	toolCallIDKey
)

// WithSession adds a git-session or plan-session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithPlan adds a plan ID to the context.
func WithPlan(ctx context.Context, planID string) context.Context {
	return context.WithValue(ctx, planIDKey, planID)
}

// WithComponent adds a component name to the context (e.g. "planengine", "gitsession").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithToolCall adds a tool-call identifier to the context.
func WithToolCall(ctx context.Context, toolCallID string) context.Context {
	return context.WithValue(ctx, toolCallIDKey, toolCallID)
}

// SessionIDFromContext extracts the session ID from the context, or "" if unset.
func SessionIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, sessionIDKey)
}

// PlanIDFromContext extracts the plan ID from the context, or "" if unset.
func PlanIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, planIDKey)
}

// ComponentFromContext extracts the component name from the context, or "" if unset.
func ComponentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, componentKey)
}

// ToolCallIDFromContext extracts the tool-call ID from the context, or "" if unset.
func ToolCallIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, toolCallIDKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Logger returns the default slog logger enriched with any context values
// present on ctx. Callers use it the same way as slog.Default(): lg.Info(...),
// lg.Warn(...), etc.
func Logger(ctx context.Context) *slog.Logger {
	lg := slog.Default()
	var attrs []any
	if v := SessionIDFromContext(ctx); v != "" {
		attrs = append(attrs, slog.String("session_id", v))
	}
	if v := PlanIDFromContext(ctx); v != "" {
		attrs = append(attrs, slog.String("plan_id", v))
	}
	if v := ComponentFromContext(ctx); v != "" {
		attrs = append(attrs, slog.String("component", v))
	}
	if v := ToolCallIDFromContext(ctx); v != "" {
		attrs = append(attrs, slog.String("tool_call_id", v))
	}
	if len(attrs) == 0 {
		return lg
	}
	return lg.With(attrs...)
}

// Warn logs a warning-level message using the context-derived logger.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Warn(msg, args...)
}

// Info logs an info-level message using the context-derived logger.
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Info(msg, args...)
}

// Debug logs a debug-level message using the context-derived logger.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Debug(msg, args...)
}

// Error logs an error-level message using the context-derived logger.
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Error(msg, args...)
}

// Setup installs a handler appropriate for the given mode. quiet installs a
// JSON handler (for CODEPUNK_QUIET=1 / --json) so log lines don't corrupt the
// single-JSON-object contract on stdout; otherwise a human-readable text
// handler is installed. Both write to stderr, leaving stdout free for the
// command's own JSON/decorated output.
func Setup(quiet bool, level slog.Level) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if quiet {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
