// Package memstore provides an in-memory implementation of queries.Store and
// queries.AgentStore. Suitable for dev/testing.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yavyy/audience-query-system/internal/queries"
)

// Store holds queries and agents in memory.
type Store struct {
	mu      sync.RWMutex
	queries map[string]*queries.Query
	agents  map[string]*queries.Agent
	now     func() time.Time
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{
		queries: make(map[string]*queries.Query),
		agents:  make(map[string]*queries.Agent),
		now:     time.Now,
	}
}

// Get retrieves a query by id. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*queries.Query, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[id]
	if !ok {
		return nil, false, nil
	}
	return q.Clone(), true, nil
}

// Create assigns id and timestamps and stores a copy.
func (s *Store) Create(_ context.Context, q *queries.Query) (*queries.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := q.Clone()
	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	now := s.now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.queries[cp.ID] = cp
	return cp.Clone(), nil
}

// Save replaces the stored record and bumps the modification timestamp.
func (s *Store) Save(_ context.Context, q *queries.Query) (*queries.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := q.Clone()
	cp.UpdatedAt = s.now()
	s.queries[cp.ID] = cp
	return cp.Clone(), nil
}

// Delete removes a query. Returns false for unknown ids.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[id]; !ok {
		return false, nil
	}
	delete(s.queries, id)
	return true, nil
}

// Count returns the number of queries matching the filter.
func (s *Store) Count(_ context.Context, f queries.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, q := range s.queries {
		if matches(q, f) {
			n++
		}
	}
	return n, nil
}

// List returns one page of matching queries.
func (s *Store) List(_ context.Context, f queries.Filter, opts queries.ListOptions) (*queries.Page, error) {
	opts = opts.Normalize()

	s.mu.RLock()
	var matched []*queries.Query
	for _, q := range s.queries {
		if matches(q, f) {
			matched = append(matched, q.Clone())
		}
	}
	s.mu.RUnlock()

	sortQueries(matched, opts)

	total := len(matched)
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return &queries.Page{
		Queries: matched[start:end],
		Total:   total,
		Page:    opts.Page,
		Limit:   opts.Limit,
	}, nil
}

// Timings averages the derived minute metrics across all queries that have
// them.
func (s *Store) Timings(_ context.Context) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var respSum, respN, resSum, resN int
	for _, q := range s.queries {
		if q.ResponseTimeMinutes != nil {
			respSum += *q.ResponseTimeMinutes
			respN++
		}
		if q.ResolutionTimeMinutes != nil {
			resSum += *q.ResolutionTimeMinutes
			resN++
		}
	}

	var avgResp, avgRes float64
	if respN > 0 {
		avgResp = float64(respSum) / float64(respN)
	}
	if resN > 0 {
		avgRes = float64(resSum) / float64(resN)
	}
	return avgResp, avgRes, nil
}

// GetAgent retrieves an operator by id. Returns a copy.
func (s *Store) GetAgent(_ context.Context, id string) (*queries.Agent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *a
	return &cp, true, nil
}

// PutAgent stores an operator, assigning an id when empty.
func (s *Store) PutAgent(_ context.Context, a *queries.Agent) (*queries.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.agents[cp.ID] = &cp
	out := cp
	return &out, nil
}

// matches applies equality filters as AND and the search term as an OR over
// the text fields, case-insensitive.
func matches(q *queries.Query, f queries.Filter) bool {
	if f.Status != "" && q.Status != f.Status {
		return false
	}
	if f.Priority != "" && q.Priority != f.Priority {
		return false
	}
	if f.Category != "" && q.Category != f.Category {
		return false
	}
	if f.Channel != "" && q.Channel != f.Channel {
		return false
	}
	if f.AssignedTo != "" && q.AssignedTo != f.AssignedTo {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(q.Subject), needle) &&
			!strings.Contains(strings.ToLower(q.Message), needle) &&
			!strings.Contains(strings.ToLower(q.CustomerName), needle) &&
			!strings.Contains(strings.ToLower(q.CustomerEmail), needle) {
			return false
		}
	}
	return true
}

var priorityRank = map[queries.Priority]int{
	queries.PriorityLow:      0,
	queries.PriorityMedium:   1,
	queries.PriorityHigh:     2,
	queries.PriorityCritical: 3,
}

func sortQueries(list []*queries.Query, opts queries.ListOptions) {
	less := func(a, b *queries.Query) bool {
		switch opts.SortBy {
		case queries.SortUpdatedAt:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case queries.SortPriority:
			if priorityRank[a.Priority] != priorityRank[b.Priority] {
				return priorityRank[a.Priority] < priorityRank[b.Priority]
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		// stable tie-break so pagination is deterministic
		return a.ID < b.ID
	}
	sort.Slice(list, func(i, j int) bool {
		if opts.Ascending {
			return less(list[i], list[j])
		}
		return less(list[j], list[i])
	})
}
