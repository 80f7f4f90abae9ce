// Package notify fans lifecycle events out to connected operator sessions.
package notify

import (
	"context"
	"sync"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yavyy/audience-query-system/internal/queries"
)

const defaultBuffer = 64

// Hub is an in-process publish/subscribe fanout implementing
// queries.Notifier. Publish is called synchronously after each committed
// mutation, so every subscriber observes one query's events in commit order.
// A subscriber that falls behind has events dropped rather than stalling the
// engine; dropped events never reorder the ones that are delivered.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	logger log.Logger

	dropped prometheus.Counter
}

// NewHub creates an empty hub. reg may be nil to skip metrics.
func NewHub(logger log.Logger, reg prometheus.Registerer) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	h := &Hub{
		subs:   make(map[*Subscriber]struct{}),
		logger: logger,
	}
	if reg != nil {
		h.dropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aqs_hub_dropped_events_total",
			Help: "Events dropped because a subscriber's buffer was full.",
		})
		reg.MustRegister(h.dropped)
	}
	return h
}

// Subscriber is one attached event consumer.
type Subscriber struct {
	ch   chan queries.Event
	hub  *Hub
	once sync.Once
}

// Subscribe attaches a new consumer with the default buffer.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		ch:  make(chan queries.Event, defaultBuffer),
		hub: h,
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Events is the subscriber's ordered event stream. Closed by Close.
func (s *Subscriber) Events() <-chan queries.Event { return s.ch }

// Close detaches the subscriber and closes its channel.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Publish implements queries.Notifier. It never blocks the caller.
func (h *Hub) Publish(ctx context.Context, ev queries.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.ch <- ev:
		default:
			if h.dropped != nil {
				h.dropped.Inc()
			}
			h.logger.Warn(ctx, "dropping event for slow subscriber",
				"kind", ev.Kind, "query_id", ev.QueryID)
		}
	}
}

// SubscriberCount reports how many consumers are attached.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
