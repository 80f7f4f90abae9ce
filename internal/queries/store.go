package queries

import "context"

// Filter selects queries. Enumerated fields combine with AND; Search is a
// case-insensitive substring match ORed across subject, message, customer
// name and customer email.
type Filter struct {
	Status     Status
	Priority   Priority
	Category   Category
	Channel    Channel
	AssignedTo string
	Search     string
}

// Sort keys accepted by List. Anything else falls back to SortCreatedAt.
const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortPriority  = "priority"
)

// ListOptions control pagination and ordering. Zero values mean page 1,
// limit 20, newest first.
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	Ascending bool
}

const defaultPageLimit = 20

// Normalize clamps pagination parameters to usable values.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = defaultPageLimit
	}
	switch o.SortBy {
	case SortCreatedAt, SortUpdatedAt, SortPriority:
	default:
		o.SortBy = SortCreatedAt
	}
	return o
}

// Page is one page of query results plus the unpaginated total.
type Page struct {
	Queries []*Query `json:"queries"`
	Total   int      `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
}

// Store is the persistence interface for queries.
//
// Create assigns the id and creation timestamp. Save replaces the stored
// record; two concurrent read-modify-write cycles on the same id race and
// the last writer wins.
type Store interface {
	Get(ctx context.Context, id string) (*Query, bool, error)
	List(ctx context.Context, f Filter, opts ListOptions) (*Page, error)
	Create(ctx context.Context, q *Query) (*Query, error)
	Save(ctx context.Context, q *Query) (*Query, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, f Filter) (int, error)

	// Timings returns the mean response and resolution minutes across all
	// queries that have them, for the dashboard.
	Timings(ctx context.Context) (avgResponse, avgResolution float64, err error)
}

// AgentStore is the read-only view of operators the engine needs.
type AgentStore interface {
	GetAgent(ctx context.Context, id string) (*Agent, bool, error)
}
