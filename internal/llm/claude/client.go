// Package claude implements the remote-model classifier on the Anthropic API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yavyy/audience-query-system/internal/queries"
)

const responseTokens = 1024

// Classifier sends intake text to Claude and parses the structured result.
// Any failure surfaces as an error so the chain can fall back to the rule
// engine; transient provider errors are tagged with queries.ErrClassifierBusy
// so the chain knows a single delayed retry is worthwhile.
type Classifier struct {
	client anthropic.Client
	model  string
}

// New creates a Claude classifier with the given API key and model name.
func New(apiKey, model string) *Classifier {
	return &Classifier{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Classify asks the model for a structured analysis of the intake.
func (c *Classifier) Classify(ctx context.Context, in queries.Intake) (*queries.Classification, error) {
	text, err := c.complete(ctx, classifySystemPrompt, buildClassifyPrompt(in))
	if err != nil {
		return nil, err
	}
	return parseClassification(text)
}

// Suggest drafts a customer-facing reply for an existing query.
func (c *Classifier) Suggest(ctx context.Context, q *queries.Query) (string, error) {
	text, err := c.complete(ctx, suggestSystemPrompt, buildSuggestPrompt(q))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty suggestion")
	}
	return text, nil
}

func (c *Classifier) complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyErr(err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("no text content in model response")
	}
	return out.String(), nil
}

// classifyErr tags retryable provider failures (model loading, overloaded,
// rate limited) so the chain retries once before falling back.
func classifyErr(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429, 503, 529:
			return fmt.Errorf("%w: %v", queries.ErrClassifierBusy, err)
		}
	}
	return fmt.Errorf("claude: %w", err)
}

const classifySystemPrompt = `You analyze customer support queries. Respond ONLY with valid JSON, no markdown and no explanation.`

func buildClassifyPrompt(in queries.Intake) string {
	return fmt.Sprintf(`Analyze this customer support query and respond ONLY with valid JSON (no markdown, no explanation):

Customer: %s
Subject: %s
Message: %s

Respond with this exact JSON structure:
{
  "category": "one of: question, request, complaint, feedback, technical, billing, other",
  "priority": "one of: low, medium, high, critical",
  "sentiment": "one of: positive, neutral, negative",
  "tags": ["key", "topics"],
  "summary": "1-2 sentence summary",
  "suggestedResponse": "professional response draft",
  "reasoning": "why this priority and category"
}

Guidelines:
- CRITICAL: outage, security, payment blocked, account locked, data loss
- HIGH: cannot complete task, billing dispute, urgent deadline
- MEDIUM: feature not working, general inquiry with urgency
- LOW: general questions, feature requests, positive feedback`,
		in.CustomerName, in.Subject, in.Message)
}

const suggestSystemPrompt = `You are a professional customer support agent. You write helpful, empathetic replies.`

func buildSuggestPrompt(q *queries.Query) string {
	return fmt.Sprintf(`Write a helpful, empathetic response to this query:

Customer: %s
Subject: %s
Message: %s
Category: %s
Priority: %s

Write a professional response (2-3 paragraphs) that:
1. Acknowledges their concern
2. Shows empathy
3. Provides helpful next steps
4. Maintains a friendly tone`,
		q.CustomerName, q.Subject, q.Message, q.Category, q.Priority)
}
