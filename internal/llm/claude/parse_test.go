package claude

import (
	"strings"
	"testing"

	"github.com/yavyy/audience-query-system/internal/queries"
)

const goodJSON = `{
	"category": "technical",
	"priority": "critical",
	"sentiment": "negative",
	"tags": ["outage", "website"],
	"summary": "Customer reports a site outage.",
	"suggestedResponse": "We are on it.",
	"reasoning": "Outage keywords indicate critical priority."
}`

func TestParseClassification_PlainJSON(t *testing.T) {
	t.Parallel()

	got, err := parseClassification(goodJSON)
	if err != nil {
		t.Fatalf("parseClassification() error = %v", err)
	}
	if got.Category != queries.CategoryTechnical {
		t.Errorf("category = %q", got.Category)
	}
	if got.Priority != queries.PriorityCritical {
		t.Errorf("priority = %q", got.Priority)
	}
	if got.Sentiment != queries.SentimentNegative {
		t.Errorf("sentiment = %q", got.Sentiment)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "outage" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.SuggestedResponse != "We are on it." {
		t.Errorf("suggestedResponse = %q", got.SuggestedResponse)
	}
}

func TestParseClassification_Fenced(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"```json\n" + goodJSON + "\n```",
		"```\n" + goodJSON + "\n```",
	} {
		got, err := parseClassification(raw)
		if err != nil {
			t.Fatalf("parseClassification(fenced) error = %v", err)
		}
		if got.Category != queries.CategoryTechnical {
			t.Errorf("category = %q", got.Category)
		}
	}
}

func TestParseClassification_FillerPrefix(t *testing.T) {
	t.Parallel()

	got, err := parseClassification("Here is the analysis:\n" + goodJSON)
	if err != nil {
		t.Fatalf("parseClassification(filler) error = %v", err)
	}
	if got.Priority != queries.PriorityCritical {
		t.Errorf("priority = %q", got.Priority)
	}
}

func TestParseClassification_SurroundingProse(t *testing.T) {
	t.Parallel()

	raw := "Sure! " + goodJSON + "\nLet me know if you need anything else."
	got, err := parseClassification(raw)
	if err != nil {
		t.Fatalf("parseClassification(prose) error = %v", err)
	}
	if got.Sentiment != queries.SentimentNegative {
		t.Errorf("sentiment = %q", got.Sentiment)
	}
}

func TestParseClassification_NormalizesEnumCase(t *testing.T) {
	t.Parallel()

	raw := `{"category":" Technical ","priority":"CRITICAL","sentiment":"Negative"}`
	got, err := parseClassification(raw)
	if err != nil {
		t.Fatalf("parseClassification() error = %v", err)
	}
	if got.Category != queries.CategoryTechnical || got.Priority != queries.PriorityCritical {
		t.Errorf("got %+v, want lowercased enums", got)
	}
	if got.Reasoning != "Model classification." {
		t.Errorf("reasoning = %q, want default for empty", got.Reasoning)
	}
}

func TestParseClassification_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no object", "I could not analyze this query."},
		{"unbalanced", `{"category": "technical"`},
		{"invalid json", `{"category": technical}`},
		{"unknown category", `{"category":"spam","priority":"low","sentiment":"neutral"}`},
		{"unknown priority", `{"category":"other","priority":"sev1","sentiment":"neutral"}`},
		{"unknown sentiment", `{"category":"other","priority":"low","sentiment":"meh"}`},
		{"missing enums", `{"summary":"just a summary"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseClassification(tt.raw); err == nil {
				t.Errorf("parseClassification(%q) = nil error, want failure", tt.raw)
			}
		})
	}
}

func TestFirstJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"nested", `{"a":{"b":2}}`, `{"a":{"b":2}}`, true},
		{"prose around", `text {"a":1} more {"b":2}`, `{"a":1}`, true},
		{"brace inside string", `{"a":"}"}`, `{"a":"}"}`, true},
		{"escaped quote inside string", `{"a":"say \"hi\" {now}"}`, `{"a":"say \"hi\" {now}"}`, true},
		{"no object", "plain text", "", false},
		{"never closes", `{"a":1`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := firstJSONObject(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("firstJSONObject(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"answer prefix", `Answer: {"a":1}`, `{"a":1}`},
		{"response prefix", `RESPONSE: {"a":1}`, `{"a":1}`},
		{"whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := sanitize(tt.in); got != tt.want {
				t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildClassifyPrompt_IncludesIntake(t *testing.T) {
	t.Parallel()

	p := buildClassifyPrompt(queries.Intake{
		Subject:      "Login broken",
		Message:      "Cannot sign in since the update.",
		CustomerName: "Riley",
	})
	for _, want := range []string{"Riley", "Login broken", "Cannot sign in", "suggestedResponse"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildSuggestPrompt_IncludesClassification(t *testing.T) {
	t.Parallel()

	p := buildSuggestPrompt(&queries.Query{
		CustomerName: "Riley",
		Subject:      "Login broken",
		Message:      "Cannot sign in.",
		Category:     queries.CategoryTechnical,
		Priority:     queries.PriorityHigh,
	})
	for _, want := range []string{"Riley", "technical", "high"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
