package queries

import "context"

// Intake is the classifier's input: the immutable fields of a submission.
type Intake struct {
	Subject      string
	Message      string
	CustomerName string
}

// Classification is the full set of classifier-derived fields. It replaces
// the previous values wholesale on every (re)classification.
type Classification struct {
	Category          Category  `json:"category"`
	Priority          Priority  `json:"priority"`
	Sentiment         Sentiment `json:"sentiment"`
	Tags              []string  `json:"tags"`
	Summary           string    `json:"summary"`
	SuggestedResponse string    `json:"suggested_response"`
	Reasoning         string    `json:"reasoning"`
}

// Classifier turns an intake into a Classification. Implementations backed
// by a remote model may fail; the rule fallback never does.
type Classifier interface {
	Classify(ctx context.Context, in Intake) (*Classification, error)
}

// Suggester drafts a customer-facing reply for an existing query without
// mutating it.
type Suggester interface {
	Suggest(ctx context.Context, q *Query) (string, error)
}
