package entitlement

import (
	"context"
	"log/slog"
	"time"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithBackoff sets the delay strategy between conflict retries.
func WithBackoff(b BackoffStrategy) EngineOption {
	return func(e *Engine) {
		if b != nil {
			e.backoff = b
		}
	}
}

// WithMaxAttempts bounds the read-modify-write loop. Values below 1 are ignored.
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithConflictHook registers a callback invoked on every version conflict.
func WithConflictHook(fn func(ctx context.Context, userID string, attempt int)) EngineOption {
	return func(e *Engine) {
		e.onConflict = fn
	}
}
