package warden

import (
	"context"
	"time"
)

// ActivityEventType enumerates the auth events worth auditing.
type ActivityEventType string

const (
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventAccountLocked     ActivityEventType = "auth.account.locked"
	ActivityEventAccountRegistered ActivityEventType = "auth.account.registered"
	ActivityEventPasswordReset     ActivityEventType = "auth.password.reset"
	ActivityEventEmailVerified     ActivityEventType = "auth.email.verified"
	ActivityEventEmailChanged      ActivityEventType = "auth.email.changed"
	ActivityEventDeactivated       ActivityEventType = "auth.account.deactivated"
	ActivityEventReactivated       ActivityEventType = "auth.account.reactivated"
)

// ActivityEvent is a light-weight audit record emitted by AuthService.
type ActivityEvent struct {
	EventType  ActivityEventType
	AccountID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives auth events. Sinks run best-effort: a sink error is
// logged and never fails the operation that produced the event.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function into an ActivitySink.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record satisfies the ActivitySink interface.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error { return nil }

func normalizeActivitySink(sink ActivitySink) ActivitySink {
	if sink == nil {
		return noopActivitySink{}
	}
	return sink
}
