// Package audit records security-relevant gateway decisions (logins and
// access denials) as structured events on a dedicated logger.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/bizgw/internal/observability"
)

// EventType groups actions.
type EventType string

const (
	EventTypeAuthentication EventType = "authentication"
	EventTypeAuthorization  EventType = "authorization"
)

// Action is what was attempted.
type Action string

const (
	ActionLogin  Action = "login"
	ActionAccess Action = "access"
)

// Outcome is how it ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
	OutcomeDenied  Outcome = "denied"
)

// Event is one audit record. Subject is an email or user id, never a
// credential.
type Event struct {
	ID        string
	Timestamp time.Time
	Type      EventType
	Action    Action
	Outcome   Outcome
	Subject   string
	Resource  string
	Reason    string
}

// Logger records events. Implementations must be safe for concurrent use.
type Logger interface {
	Log(ctx context.Context, e Event)
}

type logger struct {
	log observability.Logger
	now func() time.Time
}

// NewLogger writes events to l, tagged so they can be routed apart from
// the access log.
func NewLogger(l observability.Logger) Logger {
	if l == nil {
		l = observability.NopLogger()
	}
	return &logger{log: l.With(observability.String("log_type", "audit")), now: time.Now}
}

// Log fills in ID and Timestamp when missing and writes the event with the
// request and trace IDs from ctx.
func (l *logger) Log(ctx context.Context, e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}

	fields := []observability.Field{
		observability.String("event_id", e.ID),
		observability.Time("event_time", e.Timestamp),
		observability.String("event_type", string(e.Type)),
		observability.String("action", string(e.Action)),
		observability.String("outcome", string(e.Outcome)),
	}
	if e.Subject != "" {
		fields = append(fields, observability.String("subject", e.Subject))
	}
	if e.Resource != "" {
		fields = append(fields, observability.String("resource", e.Resource))
	}
	if e.Reason != "" {
		fields = append(fields, observability.String("reason", e.Reason))
	}
	l.log.WithContext(ctx).Info("audit event", fields...)
}

type noopLogger struct{}

// NewNoopLogger discards events.
func NewNoopLogger() Logger {
	return noopLogger{}
}

func (noopLogger) Log(context.Context, Event) {}
