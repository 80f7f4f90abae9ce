package queries

import (
	"context"
	"time"
)

// EventKind is the fixed set of lifecycle event types, one per mutating
// operation.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventUpdated   EventKind = "updated"
	EventAssigned  EventKind = "assigned"
	EventResponded EventKind = "responded"
	EventDeleted   EventKind = "deleted"
)

// Event is one committed mutation. Query carries the full updated entity
// except for deleted events, which carry only the id.
type Event struct {
	Kind    EventKind `json:"kind"`
	QueryID string    `json:"query_id"`
	Query   *Query    `json:"query,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives events after each committed mutation. Delivery is
// fire-and-forget from the engine's perspective; implementations own their
// guarantees. Events for the same query id are published in commit order.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

// Publish implements Notifier.
func (f NotifierFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }

// MultiNotifier fans one event out to several notifiers in order.
type MultiNotifier []Notifier

// Publish implements Notifier.
func (m MultiNotifier) Publish(ctx context.Context, ev Event) {
	for _, n := range m {
		n.Publish(ctx, ev)
	}
}
