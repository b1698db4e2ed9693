package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records a single error under the key "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier. Empty ids produce an empty Attr.
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// RequestID records the request identifier. Empty ids produce an empty Attr.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Provider records the entitlement provider (processor, relay, manual).
func Provider(p string) slog.Attr {
	return slog.String("provider", p)
}

// EventID records the provider event identifier.
func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

// EventType records the provider-native event type.
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// Action records a normalized entitlement action.
func Action(a string) slog.Attr {
	return slog.String("action", a)
}

// Outcome records what reconciliation did with a command.
func Outcome(o string) slog.Attr {
	return slog.String("outcome", o)
}

// Feature records a metered feature name.
func Feature(name string) slog.Attr {
	return slog.String("feature", name)
}

// RetryCount records the number of retries performed.
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
