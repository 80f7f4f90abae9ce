// Package slack posts high-urgency query events to Slack via incoming
// webhooks, so critical intakes reach the on-duty channel without anyone
// watching the dashboard.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/yavyy/audience-query-system/internal/queries"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier implements queries.Notifier. Only critical-priority intakes and
// escalation updates are forwarded; everything else is ignored.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a Slack notifier. If webhookURL is empty, Publish is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Publish implements queries.Notifier. The webhook call runs detached so the
// engine's commit path never waits on Slack.
func (n *Notifier) Publish(ctx context.Context, ev queries.Event) {
	if n.webhookURL == "" || !wanted(ev) {
		return
	}
	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, httpTimeout)
		defer cancel()
		if err := n.send(ctx, ev); err != nil {
			n.logger.Error(ctx, err, "slack notification failed", "query_id", ev.QueryID)
		}
	}(context.WithoutCancel(ctx))
}

func wanted(ev queries.Event) bool {
	if ev.Query == nil {
		return false
	}
	switch ev.Kind {
	case queries.EventCreated:
		return ev.Query.Priority == queries.PriorityCritical
	case queries.EventUpdated:
		return ev.Query.IsEscalated
	}
	return false
}

func (n *Notifier) send(ctx context.Context, ev queries.Event) error {
	body, err := json.Marshal(buildMessage(ev))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(ev queries.Event) map[string]any {
	q := ev.Query
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(ev),
			{"type": "divider"},
			fieldsBlock(q),
			{"type": "divider"},
			summaryBlock(q),
			{"type": "divider"},
			contextBlock(ev),
		},
	}
}

func headerBlock(ev queries.Event) map[string]any {
	q := ev.Query
	title := "Critical Query"
	if ev.Kind == queries.EventUpdated {
		title = "Query Escalated"
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s: %s", priorityEmoji(q.Priority), title, q.Subject),
		},
	}
}

func fieldsBlock(q *queries.Query) map[string]any {
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Status:* %s", q.Status)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Priority:* %s", q.Priority)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Category:* %s", q.Category)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Sentiment:* %s", q.Sentiment)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Channel:* %s", q.Channel)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Customer:* %s", q.CustomerName)},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func summaryBlock(q *queries.Query) map[string]any {
	text := truncate(q.Summary, maxSummaryLen)
	if text == "" {
		text = "_No summary available._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Summary*\n\n%s", text),
		},
	}
}

func contextBlock(ev queries.Event) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("query %s • %s", ev.QueryID, ev.At.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func priorityEmoji(p queries.Priority) string {
	switch p {
	case queries.PriorityCritical:
		return "\U0001f534" // red circle
	case queries.PriorityHigh:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
