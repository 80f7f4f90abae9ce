package queries

import (
	"context"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// batchDelay is the pause between items in a batch analysis run, to stay
// under the remote classifier's rate limits.
const batchDelay = 1 * time.Second

// Service is the business boundary for query triage. Every mutating
// operation is load -> apply -> persist -> emit; exactly one event is
// published per committed mutation.
type Service struct {
	store    Store
	agents   AgentStore
	chain    *Chain
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics

	now        func() time.Time
	batchDelay time.Duration
}

// NewService creates a triage service. notifier and metrics may be nil.
func NewService(store Store, agents AgentStore, chain *Chain, notifier Notifier, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:      store,
		agents:     agents,
		chain:      chain,
		notifier:   notifier,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
		batchDelay: batchDelay,
	}
}

// SubmitInput is a new inbound query.
type SubmitInput struct {
	Subject       string  `json:"subject"`
	Message       string  `json:"message"`
	Channel       Channel `json:"channel"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	CustomerPhone string  `json:"customer_phone"`
}

func (in *SubmitInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(in.Message) == "" {
		missing = append(missing, "message")
	}
	if !ValidChannel(in.Channel) {
		missing = append(missing, "channel")
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		missing = append(missing, "customer_name")
	}
	if strings.TrimSpace(in.CustomerEmail) == "" {
		missing = append(missing, "customer_email")
	}
	if len(missing) > 0 {
		return invalid(missing...)
	}
	return nil
}

// Submit validates the intake, classifies it, persists the new query and
// emits a created event. Classification cannot fail the submission: the
// chain always resolves to a usable result.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Query, error) {
	if err := in.validate(); err != nil {
		s.count("submit", "invalid")
		return nil, err
	}

	cls, err := s.chain.Classify(ctx, Intake{
		Subject:      in.Subject,
		Message:      in.Message,
		CustomerName: in.CustomerName,
	})
	if err != nil {
		// the chain contract says this cannot happen; fail loudly if it does
		s.count("submit", "error")
		return nil, err
	}

	q := &Query{
		Subject:       strings.TrimSpace(in.Subject),
		Message:       in.Message,
		Channel:       in.Channel,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.ToLower(strings.TrimSpace(in.CustomerEmail)),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Status:        StatusNew,
	}
	applyClassification(q, cls)

	created, err := s.store.Create(ctx, q)
	if err != nil {
		s.count("submit", "error")
		return nil, err
	}

	s.logger.Info(ctx, "query submitted",
		"query_id", created.ID,
		"channel", created.Channel,
		"category", created.Category,
		"priority", created.Priority,
		"sentiment", created.Sentiment,
	)
	s.count("submit", "ok")
	s.emit(ctx, EventCreated, created)
	return created, nil
}

// Get retrieves a single query.
func (s *Service) Get(ctx context.Context, id string) (*Query, error) {
	q, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("query", id)
	}
	return q, nil
}

// List returns a page of queries matching the filter.
func (s *Service) List(ctx context.Context, f Filter, opts ListOptions) (*Page, error) {
	return s.store.List(ctx, f, opts)
}

// Reclassify re-runs the classifier over the query's original intake fields
// and overwrites all classifier-derived fields. Status is untouched.
func (s *Service) Reclassify(ctx context.Context, id string) (*Query, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	cls, err := s.chain.Classify(ctx, Intake{
		Subject:      q.Subject,
		Message:      q.Message,
		CustomerName: q.CustomerName,
	})
	if err != nil {
		return nil, err
	}
	applyClassification(q, cls)

	return s.persist(ctx, "reclassify", EventUpdated, q)
}

// Patch is a partial update. Nil fields are left alone. Allowed keys mirror
// the engine's authority: status, priority, category, tags, sentiment and
// the escalation flag.
type Patch struct {
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Sentiment   *Sentiment `json:"sentiment,omitempty"`
	IsEscalated *bool     `json:"is_escalated,omitempty"`
}

func (p *Patch) validate() error {
	var bad []string
	if p.Status != nil && !ValidStatus(*p.Status) {
		bad = append(bad, "status")
	}
	if p.Priority != nil && !ValidPriority(*p.Priority) {
		bad = append(bad, "priority")
	}
	if p.Category != nil && !ValidCategory(*p.Category) {
		bad = append(bad, "category")
	}
	if p.Sentiment != nil && !ValidSentiment(*p.Sentiment) {
		bad = append(bad, "sentiment")
	}
	if len(bad) > 0 {
		return invalid(bad...)
	}
	return nil
}

// UpdateFields applies a partial update. A status change goes through the
// lifecycle helper so resolved/closed timestamps and the resolution metric
// stay consistent.
func (s *Service) UpdateFields(ctx context.Context, id string, p Patch) (*Query, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Status != nil {
		applyStatus(q, *p.Status, s.now())
		if *p.Status == StatusResolved && s.metrics != nil && q.ResolutionTimeMinutes != nil {
			s.metrics.ResolutionMinutes.Observe(float64(*q.ResolutionTimeMinutes))
		}
	}
	if p.Priority != nil {
		q.Priority = *p.Priority
	}
	if p.Category != nil {
		q.Category = *p.Category
	}
	if p.Tags != nil {
		q.Tags = dedupeTags(*p.Tags)
	}
	if p.Sentiment != nil {
		q.Sentiment = *p.Sentiment
	}
	if p.IsEscalated != nil {
		q.IsEscalated = *p.IsEscalated
	}

	return s.persist(ctx, "update", EventUpdated, q)
}

// Assign gives the query to an agent. The agent must resolve via the agent
// store. A new query advances to assigned; reassignment keeps the current
// status.
func (s *Service) Assign(ctx context.Context, id, agentID, byAgentID string) (*Query, error) {
	if _, ok, err := s.agents.GetAgent(ctx, agentID); err != nil {
		return nil, err
	} else if !ok {
		return nil, notFound("agent", agentID)
	}

	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyAssign(q, agentID, byAgentID, s.now())

	return s.persist(ctx, "assign", EventAssigned, q)
}

// Respond appends an agent reply, stamping first-response timing on the
// first reply.
func (s *Service) Respond(ctx context.Context, id, message, byAgentID string) (*Query, error) {
	if strings.TrimSpace(message) == "" {
		return nil, invalid("message")
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	first := q.FirstResponseAt == nil
	applyResponse(q, message, byAgentID, s.now())
	if first && s.metrics != nil && q.ResponseTimeMinutes != nil {
		s.metrics.ResponseMinutes.Observe(float64(*q.ResponseTimeMinutes))
	}

	return s.persist(ctx, "respond", EventResponded, q)
}

// Annotate appends an internal note. Notes never change the status.
func (s *Service) Annotate(ctx context.Context, id, note, byAgentID string) (*Query, error) {
	if strings.TrimSpace(note) == "" {
		return nil, invalid("note")
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	applyNote(q, note, byAgentID, s.now())

	return s.persist(ctx, "annotate", EventUpdated, q)
}

// Delete removes the query permanently. No event is emitted for an unknown
// id.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		s.count("delete", "error")
		return err
	}
	if !ok {
		s.count("delete", "missing")
		return notFound("query", id)
	}

	s.logger.Info(ctx, "query deleted", "query_id", id)
	s.count("delete", "ok")
	s.emitDeleted(ctx, id)
	return nil
}

// SuggestResponse drafts a reply for the query without mutating it.
func (s *Service) SuggestResponse(ctx context.Context, id string) (string, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.chain.Suggest(ctx, q)
}

// BatchItem is one outcome of a batch analysis run.
type BatchItem struct {
	QueryID string `json:"query_id"`
	Error   string `json:"error,omitempty"`
	Query   *Query `json:"query,omitempty"`
}

// BatchAnalyze reclassifies the given queries one at a time with a fixed
// pause between items, so a remote classifier's rate limits are respected.
// It is deliberately not a concurrent fan-out.
func (s *Service) BatchAnalyze(ctx context.Context, ids []string) ([]BatchItem, error) {
	out := make([]BatchItem, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
				return out, ctx.Err()
			}
		}
		q, err := s.Reclassify(ctx, id)
		item := BatchItem{QueryID: id, Query: q}
		if err != nil {
			item.Error = err.Error()
		}
		out = append(out, item)
	}
	return out, nil
}

// Stats is the dashboard aggregate view.
type Stats struct {
	Total                int              `json:"total"`
	ByStatus             map[Status]int   `json:"by_status"`
	ByPriority           map[Priority]int `json:"by_priority"`
	ByCategory           map[Category]int `json:"by_category"`
	ByChannel            map[Channel]int  `json:"by_channel"`
	AvgResponseMinutes   float64          `json:"avg_response_minutes"`
	AvgResolutionMinutes float64          `json:"avg_resolution_minutes"`
}

// DashboardStats counts queries per enumeration and averages the derived
// timing metrics.
func (s *Service) DashboardStats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ByStatus:   make(map[Status]int),
		ByPriority: make(map[Priority]int),
		ByCategory: make(map[Category]int),
		ByChannel:  make(map[Channel]int),
	}

	total, err := s.store.Count(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	st.Total = total

	for _, v := range []Status{StatusNew, StatusAssigned, StatusInProgress, StatusPending, StatusResolved, StatusClosed} {
		n, err := s.store.Count(ctx, Filter{Status: v})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			st.ByStatus[v] = n
		}
	}
	for _, v := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		n, err := s.store.Count(ctx, Filter{Priority: v})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			st.ByPriority[v] = n
		}
	}
	for _, v := range []Category{CategoryQuestion, CategoryRequest, CategoryComplaint, CategoryFeedback, CategoryTechnical, CategoryBilling, CategoryOther} {
		n, err := s.store.Count(ctx, Filter{Category: v})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			st.ByCategory[v] = n
		}
	}
	for _, v := range []Channel{ChannelEmail, ChannelChat, ChannelPhone, ChannelTwitter, ChannelFacebook, ChannelInstagram, ChannelWebsite} {
		n, err := s.store.Count(ctx, Filter{Channel: v})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			st.ByChannel[v] = n
		}
	}

	avgResp, avgRes, err := s.store.Timings(ctx)
	if err != nil {
		return nil, err
	}
	st.AvgResponseMinutes = avgResp
	st.AvgResolutionMinutes = avgRes

	return st, nil
}

// persist saves and emits in one place so every mutation follows the same
// sequence.
func (s *Service) persist(ctx context.Context, op string, kind EventKind, q *Query) (*Query, error) {
	saved, err := s.store.Save(ctx, q)
	if err != nil {
		s.count(op, "error")
		return nil, err
	}
	s.count(op, "ok")
	s.emit(ctx, kind, saved)
	return saved, nil
}

func (s *Service) emit(ctx context.Context, kind EventKind, q *Query) {
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(string(kind)).Inc()
	}
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, Event{
		Kind:    kind,
		QueryID: q.ID,
		Query:   q,
		At:      s.now(),
	})
}

func (s *Service) emitDeleted(ctx context.Context, id string) {
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(string(EventDeleted)).Inc()
	}
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, Event{
		Kind:    EventDeleted,
		QueryID: id,
		At:      s.now(),
	})
}

func (s *Service) count(op, outcome string) {
	if s.metrics == nil {
		return
	}
	switch op {
	case "submit":
		s.metrics.SubmitsTotal.WithLabelValues(outcome).Inc()
	default:
		s.metrics.MutationsTotal.WithLabelValues(op, outcome).Inc()
	}
}
