package queries

import (
	"math"
	"time"
)

// Lifecycle transitions. All status writes in the engine go through these
// helpers so the derived timestamps and minute metrics stay consistent.
// The direct status update is deliberately permissive: any enumerated value
// is accepted from any current state, which lets operators correct mistakes
// (including reopening a closed query). The operation-driven transitions
// below only ever advance.

// applyAssign records the assignment and advances a new query to assigned.
// Reassigning an already-assigned query replaces the assignment fields
// without touching the status.
func applyAssign(q *Query, agentID, byAgentID string, now time.Time) {
	q.AssignedTo = agentID
	q.AssignedBy = byAgentID
	at := now
	q.AssignedAt = &at
	if q.Status == StatusNew {
		q.Status = StatusAssigned
	}
}

// applyResponse appends an agent reply, stamps the first-response time on
// the first reply only, and moves new/assigned queries to in-progress.
func applyResponse(q *Query, message, byAgentID string, now time.Time) {
	q.Responses = append(q.Responses, Response{
		Message:     message,
		RespondedBy: byAgentID,
		RespondedAt: now,
	})
	if q.FirstResponseAt == nil {
		at := now
		q.FirstResponseAt = &at
		mins := wholeMinutes(q.CreatedAt, at)
		q.ResponseTimeMinutes = &mins
	}
	if q.Status == StatusNew || q.Status == StatusAssigned {
		q.Status = StatusInProgress
	}
}

// applyStatus sets the status directly. resolvedAt/closedAt are stamped at
// most once; the resolution metric is derived exactly once and never
// recomputed, even if the query is later reopened and resolved again.
func applyStatus(q *Query, target Status, now time.Time) {
	q.Status = target
	switch target {
	case StatusResolved:
		if q.ResolvedAt == nil {
			at := now
			q.ResolvedAt = &at
			mins := wholeMinutes(q.CreatedAt, at)
			q.ResolutionTimeMinutes = &mins
		}
	case StatusClosed:
		if q.ClosedAt == nil {
			at := now
			q.ClosedAt = &at
		}
	}
}

// applyNote appends an internal note. Notes never affect status.
func applyNote(q *Query, note, byAgentID string, now time.Time) {
	q.InternalNotes = append(q.InternalNotes, InternalNote{
		Note:    note,
		AddedBy: byAgentID,
		AddedAt: now,
	})
}

// applyClassification replaces every classifier-derived field wholesale,
// deduplicating tags while keeping first-seen order.
func applyClassification(q *Query, c *Classification) {
	q.Category = c.Category
	q.Priority = c.Priority
	q.Sentiment = c.Sentiment
	q.Tags = dedupeTags(c.Tags)
	q.Summary = c.Summary
	q.SuggestedResponse = c.SuggestedResponse
	q.Reasoning = c.Reasoning
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// wholeMinutes rounds the elapsed time between from and to to the nearest
// minute, matching round((to-from)/60000) on millisecond timestamps.
func wholeMinutes(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Minutes()))
}
