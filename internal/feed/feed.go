// Package feed provides change-data-capture for the community engine: an
// event source abstraction (Postgres LISTEN/NOTIFY in production, in-memory
// for tests) and per-resource subscribers that keep materialized views in
// sync with the database.
package feed

import "context"

// Event types, matching the database trigger payloads.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Event is one change notification for a resource. New and Old carry the
// row as delivered by the trigger; either may be nil depending on the
// event type.
type Event struct {
	Resource string         `json:"resource"`
	Type     string         `json:"type"`
	New      map[string]any `json:"new,omitempty"`
	Old      map[string]any `json:"old,omitempty"`
}

// Filter restricts a subscription to rows whose named column equals the
// given value. The zero Filter matches every event.
type Filter struct {
	Column string
	Value  string
}

// Source delivers change events for a resource. Subscribe returns the
// event channel and an unsubscribe function; after the unsubscribe function
// returns, no further events are delivered and the channel is closed.
// Subscriptions on different resources are independent.
type Source interface {
	Subscribe(ctx context.Context, resource string, filter Filter) (<-chan Event, func(), error)
}

// valid reports whether an event is well formed enough to apply: a known
// type with the row payload that type requires. Malformed events are
// skipped by subscribers — a tolerated loss, never fatal.
func (e Event) valid() bool {
	switch e.Type {
	case EventInsert, EventUpdate:
		return e.New != nil
	case EventDelete:
		return e.Old != nil
	default:
		return false
	}
}

// matches reports whether the event passes the filter, checking the new
// row first and falling back to the old one.
func (f Filter) matches(e Event) bool {
	if f.Column == "" {
		return true
	}
	if v, ok := e.New[f.Column]; ok {
		return stringValue(v) == f.Value
	}
	if v, ok := e.Old[f.Column]; ok {
		return stringValue(v) == f.Value
	}
	return false
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
