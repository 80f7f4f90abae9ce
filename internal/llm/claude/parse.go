package claude

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yavyy/audience-query-system/internal/queries"
)

// wireResult is the model's free-text JSON, before validation.
type wireResult struct {
	Category          string   `json:"category"`
	Priority          string   `json:"priority"`
	Sentiment         string   `json:"sentiment"`
	Tags              []string `json:"tags"`
	Summary           string   `json:"summary"`
	SuggestedResponse string   `json:"suggestedResponse"`
	Reasoning         string   `json:"reasoning"`
}

// fillerPrefixes are phrases instruction models sometimes put before the JSON
// despite being told not to.
var fillerPrefixes = []string{
	"answer:",
	"response:",
	"here is the analysis:",
	"here is the json:",
}

// parseClassification turns the model's raw text into a typed result:
// strip fences and filler, extract the first balanced object, parse, and
// validate the required enumerated fields. Any failure is an error so the
// caller falls back.
func parseClassification(raw string) (*queries.Classification, error) {
	cleaned := sanitize(raw)
	obj, ok := firstJSONObject(cleaned)
	if !ok {
		return nil, fmt.Errorf("no JSON object in model output: %.80q", raw)
	}

	var w wireResult
	if err := json.Unmarshal([]byte(obj), &w); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}

	category := queries.Category(strings.ToLower(strings.TrimSpace(w.Category)))
	priority := queries.Priority(strings.ToLower(strings.TrimSpace(w.Priority)))
	sentiment := queries.Sentiment(strings.ToLower(strings.TrimSpace(w.Sentiment)))

	if !queries.ValidCategory(category) {
		return nil, fmt.Errorf("invalid category %q", w.Category)
	}
	if !queries.ValidPriority(priority) {
		return nil, fmt.Errorf("invalid priority %q", w.Priority)
	}
	if !queries.ValidSentiment(sentiment) {
		return nil, fmt.Errorf("invalid sentiment %q", w.Sentiment)
	}

	reasoning := strings.TrimSpace(w.Reasoning)
	if reasoning == "" {
		reasoning = "Model classification."
	}

	return &queries.Classification{
		Category:          category,
		Priority:          priority,
		Sentiment:         sentiment,
		Tags:              w.Tags,
		Summary:           strings.TrimSpace(w.Summary),
		SuggestedResponse: strings.TrimSpace(w.SuggestedResponse),
		Reasoning:         reasoning,
	}, nil
}

func sanitize(raw string) string {
	s := strings.TrimSpace(raw)

	for _, prefix := range []string{"```json", "```"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = strings.TrimSpace(rest)
			break
		}
	}
	if rest, ok := strings.CutSuffix(s, "```"); ok {
		s = strings.TrimSpace(rest)
	}

	lower := strings.ToLower(s)
	for _, filler := range fillerPrefixes {
		if strings.HasPrefix(lower, filler) {
			s = strings.TrimSpace(s[len(filler):])
			break
		}
	}
	return s
}

// firstJSONObject extracts the first balanced {...} block, respecting string
// literals and escapes.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
