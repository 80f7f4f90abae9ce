package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// scriptedClassifier plays back a fixed sequence of results.
type scriptedClassifier struct {
	calls   int
	results []func() (*Classification, error)
	suggest func() (string, error)
}

func (s *scriptedClassifier) Classify(_ context.Context, _ Intake) (*Classification, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		return nil, errors.New("unexpected call")
	}
	return s.results[i]()
}

func (s *scriptedClassifier) Suggest(_ context.Context, _ *Query) (string, error) {
	if s.suggest == nil {
		return "", errors.New("no suggestion")
	}
	return s.suggest()
}

func modelResult() (*Classification, error) {
	return &Classification{
		Category:  CategoryBilling,
		Priority:  PriorityHigh,
		Sentiment: SentimentNegative,
		Summary:   "model summary",
		Reasoning: "model reasoning",
	}, nil
}

func newTestChain(primary Classifier) *Chain {
	c := NewChain(primary, NewRules(), nil, nil)
	c.retryDelay = time.Millisecond
	return c
}

var testIntake = Intake{
	Subject:      "Refund",
	Message:      "I was charged twice, please refund the second payment.",
	CustomerName: "Kai",
}

func TestChain_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &scriptedClassifier{results: []func() (*Classification, error){modelResult}}
	c := newTestChain(primary)

	got, err := c.Classify(context.Background(), testIntake)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Summary != "model summary" {
		t.Errorf("summary = %q, want model result", got.Summary)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1", primary.calls)
	}
}

func TestChain_FallsBackOnError(t *testing.T) {
	t.Parallel()

	primary := &scriptedClassifier{results: []func() (*Classification, error){
		func() (*Classification, error) { return nil, errors.New("boom") },
	}}
	c := newTestChain(primary)

	got, err := c.Classify(context.Background(), testIntake)
	if err != nil {
		t.Fatalf("Classify() error = %v, chain must not fail", err)
	}
	if !strings.HasPrefix(got.Reasoning, "[FALLBACK]") {
		t.Errorf("reasoning = %q, want fallback tag", got.Reasoning)
	}
	if got.Category != CategoryBilling {
		t.Errorf("category = %q, want billing from rules", got.Category)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1 (no retry on hard error)", primary.calls)
	}
}

func TestChain_RetriesOnceWhenBusy(t *testing.T) {
	t.Parallel()

	primary := &scriptedClassifier{results: []func() (*Classification, error){
		func() (*Classification, error) { return nil, fmt.Errorf("503: %w", ErrClassifierBusy) },
		modelResult,
	}}
	c := newTestChain(primary)

	got, err := c.Classify(context.Background(), testIntake)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Summary != "model summary" {
		t.Errorf("summary = %q, want model result after retry", got.Summary)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want 2", primary.calls)
	}
}

func TestChain_BusyTwiceFallsBack(t *testing.T) {
	t.Parallel()

	busy := func() (*Classification, error) { return nil, ErrClassifierBusy }
	primary := &scriptedClassifier{results: []func() (*Classification, error){busy, busy}}
	c := newTestChain(primary)

	got, err := c.Classify(context.Background(), testIntake)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !strings.HasPrefix(got.Reasoning, "[FALLBACK]") {
		t.Errorf("reasoning = %q, want fallback after second busy", got.Reasoning)
	}
	if primary.calls != 2 {
		t.Errorf("primary calls = %d, want exactly 2 (one retry)", primary.calls)
	}
}

func TestChain_ContextCanceledDuringRetryDelay(t *testing.T) {
	t.Parallel()

	primary := &scriptedClassifier{results: []func() (*Classification, error){
		func() (*Classification, error) { return nil, ErrClassifierBusy },
	}}
	c := NewChain(primary, NewRules(), nil, nil)
	c.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := c.Classify(ctx, testIntake)
	if err != nil {
		t.Fatalf("Classify() error = %v, fallback must still resolve", err)
	}
	if !strings.HasPrefix(got.Reasoning, "[FALLBACK]") {
		t.Errorf("reasoning = %q, want fallback", got.Reasoning)
	}
	if primary.calls != 1 {
		t.Errorf("primary calls = %d, want 1 (retry skipped on cancel)", primary.calls)
	}
}

func TestChain_NilPrimaryUsesRules(t *testing.T) {
	t.Parallel()

	c := newTestChain(nil)

	got, err := c.Classify(context.Background(), testIntake)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !strings.HasPrefix(got.Reasoning, "[FALLBACK]") {
		t.Errorf("reasoning = %q, want rules output", got.Reasoning)
	}
}

func TestChain_Suggest_PrimaryWins(t *testing.T) {
	t.Parallel()

	primary := &scriptedClassifier{suggest: func() (string, error) { return "model draft", nil }}
	c := newTestChain(primary)

	got, err := c.Suggest(context.Background(), &Query{CustomerName: "Kai", Subject: "s"})
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if got != "model draft" {
		t.Errorf("suggestion = %q, want model draft", got)
	}
}

func TestChain_Suggest_FallsBackToTemplate(t *testing.T) {
	t.Parallel()

	primary := &scriptedClassifier{} // suggest errors
	c := newTestChain(primary)

	q := &Query{CustomerName: "Kai", Subject: "Refund", Category: CategoryBilling}
	got, err := c.Suggest(context.Background(), q)
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if !strings.Contains(got, "Dear Kai,") {
		t.Errorf("suggestion = %q, want template output", got)
	}
}

func TestChain_Suggest_NilPrimary(t *testing.T) {
	t.Parallel()

	c := newTestChain(nil)
	got, err := c.Suggest(context.Background(), &Query{CustomerName: "Kai", Subject: "s", Category: CategoryOther})
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if got == "" {
		t.Error("expected non-empty template suggestion")
	}
}
