package queries

import (
	"context"
	"fmt"
	"strings"
)

// Rules is the deterministic keyword classifier. It is the fallback path when
// the remote model is unavailable or returns something unusable, and it never
// fails: the same input always produces the same Classification.
type Rules struct{}

// NewRules returns the keyword rule classifier.
func NewRules() *Rules { return &Rules{} }

var (
	positiveWords = []string{
		"thank", "great", "excellent", "love", "appreciate",
		"happy", "good", "amazing", "wonderful", "fantastic",
	}
	negativeWords = []string{
		"angry", "frustrated", "disappointed", "terrible", "unacceptable",
		"bad", "worst", "horrible", "awful", "losing", "down", "broken",
		"failed", "problem", "issue",
	}
	urgentWords = []string{
		"urgent", "immediately", "asap", "critical", "emergency",
		"locked out", "cannot access", "blocked", "down", "outage", "losing",
	}
	highWords = []string{
		"important", "soon", "quickly", "problem", "issue",
		"not working", "broken", "failed",
	}
	gratitudeWords = []string{"thank", "great", "love", "appreciate"}
	technicalWords = []string{
		"login", "password", "account", "access", "website", "down",
		"outage", "not working", "broken", "error", "bug", "crash",
		"loading", "slow",
	}
	billingWords   = []string{"payment", "billing", "invoice", "refund", "charge"}
	complaintWords = []string{"complaint", "unacceptable", "disappointed", "terrible"}
	questionWords  = []string{"?", "how", "what", "when", "why"}
	requestWords   = []string{"request", "need", "want", "could you"}
)

// tagRules map keywords to tags. Tested independently, in order; every match
// appends its tag once.
var tagRules = []struct {
	tag   string
	words []string
}{
	{"account", []string{"account"}},
	{"authentication", []string{"login", "password"}},
	{"billing", []string{"payment", "billing"}},
	{"bug", []string{"bug", "error"}},
	{"urgent", []string{"urgent", "asap"}},
	{"locked-out", []string{"locked"}},
	{"praise", []string{"thank", "praise"}},
	{"customer-service", []string{"support team"}},
	{"website", []string{"website", "site"}},
	{"outage", []string{"down", "outage"}},
	{"performance", []string{"slow", "loading"}},
}

// Classify applies the keyword rules. The error is always nil.
func (r *Rules) Classify(_ context.Context, in Intake) (*Classification, error) {
	text := strings.ToLower(in.Subject + " " + in.Message)

	sentiment := ruleSentiment(text)
	priority := rulePriority(text, sentiment)
	category := ruleCategory(text, sentiment)
	tags := ruleTags(text)

	out := &Classification{
		Category:          category,
		Priority:          priority,
		Sentiment:         sentiment,
		Tags:              tags,
		Summary:           ruleSummary(in, sentiment, category),
		SuggestedResponse: ruleSuggestion(in.CustomerName, in.Subject, sentiment, category, priority),
		Reasoning: fmt.Sprintf("[FALLBACK] Analyzed based on keywords. Sentiment: %s, Priority: %s, Category: %s",
			sentiment, priority, category),
	}
	return out, nil
}

// Suggest drafts a generic reply from the query's stored classification.
func (r *Rules) Suggest(_ context.Context, q *Query) (string, error) {
	return fmt.Sprintf("Dear %s,\n\nThank you for your %s. I'm reviewing your request regarding %q and will provide you with a detailed response shortly.\n\nIf this is urgent, please don't hesitate to reach out.\n\nBest regards,\nSupport Team",
		q.CustomerName, q.Category, q.Subject), nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// ruleSentiment checks positive keywords before negative ones; a bare "!"
// counts as negative.
func ruleSentiment(text string) Sentiment {
	if containsAny(text, positiveWords) {
		return SentimentPositive
	}
	if containsAny(text, negativeWords) || strings.Contains(text, "!") {
		return SentimentNegative
	}
	return SentimentNeutral
}

func rulePriority(text string, sentiment Sentiment) Priority {
	switch {
	case containsAny(text, urgentWords):
		return PriorityCritical
	case containsAny(text, highWords):
		return PriorityHigh
	case strings.Contains(text, "whenever"), strings.Contains(text, "no rush"),
		sentiment == SentimentPositive:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// ruleCategory checks buckets in a fixed order; the first match wins.
func ruleCategory(text string, sentiment Sentiment) Category {
	switch {
	case sentiment == SentimentPositive && containsAny(text, gratitudeWords):
		return CategoryFeedback
	case containsAny(text, technicalWords):
		return CategoryTechnical
	case containsAny(text, billingWords):
		return CategoryBilling
	case containsAny(text, complaintWords):
		return CategoryComplaint
	case containsAny(text, questionWords):
		return CategoryQuestion
	case containsAny(text, requestWords):
		return CategoryRequest
	case strings.Contains(text, "feedback"), strings.Contains(text, "suggest"):
		return CategoryFeedback
	default:
		return CategoryOther
	}
}

func ruleTags(text string) []string {
	var tags []string
	for _, tr := range tagRules {
		if containsAny(text, tr.words) {
			tags = append(tags, tr.tag)
		}
	}
	return tags
}

func ruleSummary(in Intake, sentiment Sentiment, category Category) string {
	subject := strings.ToLower(in.Subject)

	switch sentiment {
	case SentimentPositive:
		return fmt.Sprintf("%s shared positive feedback regarding %s.", in.CustomerName, subject)
	case SentimentNegative:
		var what string
		switch category {
		case CategoryComplaint:
			what = "issues and expressing frustration"
		case CategoryTechnical:
			what = "a technical problem"
		case CategoryBilling:
			what = "a billing concern"
		default:
			what = "a support request"
		}
		return fmt.Sprintf("%s is experiencing %s regarding %s.", in.CustomerName, what, subject)
	default:
		var verb string
		switch category {
		case CategoryQuestion:
			verb = "is asking about"
		case CategoryRequest:
			verb = "is requesting information on"
		default:
			verb = "contacted us regarding"
		}
		return fmt.Sprintf("%s %s %s.", in.CustomerName, verb, subject)
	}
}

func ruleSuggestion(customerName, subject string, sentiment Sentiment, category Category, priority Priority) string {
	switch sentiment {
	case SentimentPositive:
		return fmt.Sprintf("Dear %s,\n\nThank you so much for taking the time to share your wonderful feedback! We're absolutely delighted to hear that you had a great experience with our support team.\n\nYour kind words truly make our day and motivate us to continue providing excellent service. If you ever need anything in the future, please don't hesitate to reach out.\n\nBest regards,\nSupport Team",
			customerName)
	case SentimentNegative:
		urgency := ""
		action := "I'm looking into this matter and will provide you with a resolution as soon as possible."
		if priority == PriorityCritical {
			urgency = ", especially given the urgency"
			action = "I'm escalating your issue to our technical team right away and we'll work to resolve this as quickly as possible. You should expect an update within the next hour."
		}
		return fmt.Sprintf("Dear %s,\n\nThank you for reaching out to us. I sincerely apologize for the inconvenience you're experiencing. I understand how frustrating this situation must be%s.\n\n%s\n\nThank you for your patience.\n\nBest regards,\nSupport Team",
			customerName, urgency, action)
	default:
		kind := "request"
		if category == CategoryQuestion {
			kind = "question"
		}
		return fmt.Sprintf("Dear %s,\n\nThank you for contacting us. I've received your %s regarding %q and I'm here to help.\n\nI'll look into this right away and get back to you with more information shortly.\n\nBest regards,\nSupport Team",
			customerName, kind, subject)
	}
}
