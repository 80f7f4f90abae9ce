package queries

import (
	"reflect"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestApplyAssign(t *testing.T) {
	t.Parallel()

	q := &Query{Status: StatusNew, CreatedAt: t0}
	applyAssign(q, "agt-1", "mgr-1", t0.Add(5*time.Minute))

	if q.Status != StatusAssigned {
		t.Errorf("status = %q, want assigned", q.Status)
	}
	if q.AssignedTo != "agt-1" || q.AssignedBy != "mgr-1" {
		t.Errorf("assignment = %q by %q", q.AssignedTo, q.AssignedBy)
	}
	if q.AssignedAt == nil || !q.AssignedAt.Equal(t0.Add(5*time.Minute)) {
		t.Errorf("assigned_at = %v", q.AssignedAt)
	}
}

func TestApplyAssign_ReassignKeepsStatus(t *testing.T) {
	t.Parallel()

	q := &Query{Status: StatusInProgress, AssignedTo: "agt-1", CreatedAt: t0}
	applyAssign(q, "agt-2", "mgr-1", t0.Add(time.Hour))

	if q.Status != StatusInProgress {
		t.Errorf("status = %q, reassignment must not change status", q.Status)
	}
	if q.AssignedTo != "agt-2" {
		t.Errorf("assigned_to = %q, want agt-2", q.AssignedTo)
	}
}

func TestApplyResponse_FirstStampsTiming(t *testing.T) {
	t.Parallel()

	q := &Query{Status: StatusNew, CreatedAt: t0}
	applyResponse(q, "on it", "agt-1", t0.Add(12*time.Minute))

	if len(q.Responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(q.Responses))
	}
	if q.FirstResponseAt == nil {
		t.Fatal("FirstResponseAt not stamped")
	}
	if q.ResponseTimeMinutes == nil || *q.ResponseTimeMinutes != 12 {
		t.Errorf("ResponseTimeMinutes = %v, want 12", q.ResponseTimeMinutes)
	}
	if q.Status != StatusInProgress {
		t.Errorf("status = %q, want in-progress", q.Status)
	}
}

func TestApplyResponse_SecondLeavesTimingAlone(t *testing.T) {
	t.Parallel()

	q := &Query{Status: StatusNew, CreatedAt: t0}
	applyResponse(q, "first", "agt-1", t0.Add(10*time.Minute))
	first := *q.FirstResponseAt
	firstMins := *q.ResponseTimeMinutes

	applyResponse(q, "second", "agt-1", t0.Add(3*time.Hour))

	if len(q.Responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(q.Responses))
	}
	if !q.FirstResponseAt.Equal(first) {
		t.Errorf("FirstResponseAt moved: %v -> %v", first, q.FirstResponseAt)
	}
	if *q.ResponseTimeMinutes != firstMins {
		t.Errorf("ResponseTimeMinutes changed: %d -> %d", firstMins, *q.ResponseTimeMinutes)
	}
}

func TestApplyResponse_StatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from Status
		want Status
	}{
		{StatusNew, StatusInProgress},
		{StatusAssigned, StatusInProgress},
		{StatusInProgress, StatusInProgress},
		{StatusPending, StatusPending},
		{StatusResolved, StatusResolved},
		{StatusClosed, StatusClosed},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			t.Parallel()
			q := &Query{Status: tt.from, CreatedAt: t0}
			applyResponse(q, "hi", "agt-1", t0.Add(time.Minute))
			if q.Status != tt.want {
				t.Errorf("status %q -> %q, want %q", tt.from, q.Status, tt.want)
			}
		})
	}
}

func TestApplyStatus_ResolvedStampsOnce(t *testing.T) {
	t.Parallel()

	q := &Query{Status: StatusInProgress, CreatedAt: t0}
	applyStatus(q, StatusResolved, t0.Add(90*time.Minute))

	if q.ResolvedAt == nil {
		t.Fatal("ResolvedAt not stamped")
	}
	if q.ResolutionTimeMinutes == nil || *q.ResolutionTimeMinutes != 90 {
		t.Errorf("ResolutionTimeMinutes = %v, want 90", q.ResolutionTimeMinutes)
	}

	// Reopen and resolve again much later: both stay as first set.
	firstAt := *q.ResolvedAt
	applyStatus(q, StatusInProgress, t0.Add(2*time.Hour))
	applyStatus(q, StatusResolved, t0.Add(48*time.Hour))

	if !q.ResolvedAt.Equal(firstAt) {
		t.Errorf("ResolvedAt moved on re-resolve: %v -> %v", firstAt, q.ResolvedAt)
	}
	if *q.ResolutionTimeMinutes != 90 {
		t.Errorf("ResolutionTimeMinutes recomputed: %d", *q.ResolutionTimeMinutes)
	}
}

func TestApplyStatus_ClosedStampsOnce(t *testing.T) {
	t.Parallel()

	q := &Query{Status: StatusResolved, CreatedAt: t0}
	applyStatus(q, StatusClosed, t0.Add(time.Hour))
	firstAt := *q.ClosedAt

	applyStatus(q, StatusNew, t0.Add(2*time.Hour))
	applyStatus(q, StatusClosed, t0.Add(3*time.Hour))

	if !q.ClosedAt.Equal(firstAt) {
		t.Errorf("ClosedAt moved on re-close: %v -> %v", firstAt, q.ClosedAt)
	}
}

func TestApplyStatus_PermissiveTransitions(t *testing.T) {
	t.Parallel()

	// Any enumerated target is accepted from any state.
	q := &Query{Status: StatusClosed, CreatedAt: t0}
	applyStatus(q, StatusNew, t0)
	if q.Status != StatusNew {
		t.Errorf("status = %q, want new (reopen allowed)", q.Status)
	}
}

func TestApplyNote_NoStatusChange(t *testing.T) {
	t.Parallel()

	for _, st := range []Status{StatusNew, StatusResolved, StatusClosed} {
		q := &Query{Status: st, CreatedAt: t0}
		applyNote(q, "checked logs", "agt-1", t0)
		if q.Status != st {
			t.Errorf("note changed status %q -> %q", st, q.Status)
		}
		if len(q.InternalNotes) != 1 {
			t.Errorf("notes = %d, want 1", len(q.InternalNotes))
		}
	}
}

func TestApplyClassification_ReplacesWholesale(t *testing.T) {
	t.Parallel()

	q := &Query{
		Category:  CategoryBilling,
		Priority:  PriorityLow,
		Sentiment: SentimentPositive,
		Tags:      []string{"old-tag"},
		Summary:   "old",
		Reasoning: "old",
	}
	applyClassification(q, &Classification{
		Category:          CategoryTechnical,
		Priority:          PriorityCritical,
		Sentiment:         SentimentNegative,
		Tags:              []string{"outage", "urgent", "outage"},
		Summary:           "new summary",
		SuggestedResponse: "new draft",
		Reasoning:         "model output",
	})

	if q.Category != CategoryTechnical || q.Priority != PriorityCritical || q.Sentiment != SentimentNegative {
		t.Errorf("classification fields not replaced: %+v", q)
	}
	want := []string{"outage", "urgent"}
	if !reflect.DeepEqual(q.Tags, want) {
		t.Errorf("tags = %v, want deduped %v", q.Tags, want)
	}
	if q.Summary != "new summary" || q.SuggestedResponse != "new draft" || q.Reasoning != "model output" {
		t.Errorf("text fields not replaced: %+v", q)
	}
}

func TestDedupeTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"empty", []string{}, nil},
		{"no dupes", []string{"a", "b"}, []string{"a", "b"}},
		{"keeps first-seen order", []string{"b", "a", "b", "c", "a"}, []string{"b", "a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := dedupeTags(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("dedupeTags(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWholeMinutes_Rounding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"zero", 0, 0},
		{"under half minute", 29 * time.Second, 0},
		{"exactly half rounds up", 30 * time.Second, 1},
		{"just over a minute", 61 * time.Second, 1},
		{"ninety seconds", 90 * time.Second, 2},
		{"hours", 3*time.Hour + 29*time.Second, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := wholeMinutes(t0, t0.Add(tt.elapsed)); got != tt.want {
				t.Errorf("wholeMinutes(+%v) = %d, want %d", tt.elapsed, got, tt.want)
			}
		})
	}
}
