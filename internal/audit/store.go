package audit

import "context"

// Store persists audit events. Sinks are append-only; listing exists so the
// in-memory sink can back tests and local inspection.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySession(ctx context.Context, sessionID string) ([]Event, error)
}
