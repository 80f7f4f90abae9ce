package queries

import "time"

// Status tracks where a query is in its resolution lifecycle.
type Status string

const (
	// StatusNew means received, not yet assigned
	StatusNew Status = "new"

	// StatusAssigned means an agent owns it but has not responded
	StatusAssigned Status = "assigned"

	// StatusInProgress means an agent is actively working it
	StatusInProgress Status = "in-progress"

	// StatusPending means waiting on the customer or a third party
	StatusPending Status = "pending"

	// StatusResolved means the issue was fixed
	StatusResolved Status = "resolved"

	// StatusClosed means the query is finished, resolved or not
	StatusClosed Status = "closed"
)

// Channel is the medium a query arrived through.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelChat      Channel = "chat"
	ChannelPhone     Channel = "phone"
	ChannelTwitter   Channel = "twitter"
	ChannelFacebook  Channel = "facebook"
	ChannelInstagram Channel = "instagram"
	ChannelWebsite   Channel = "website"
)

// Category is the classifier-assigned topic bucket.
type Category string

const (
	CategoryQuestion  Category = "question"
	CategoryRequest   Category = "request"
	CategoryComplaint Category = "complaint"
	CategoryFeedback  Category = "feedback"
	CategoryTechnical Category = "technical"
	CategoryBilling   Category = "billing"
	CategoryOther     Category = "other"
)

// Priority is the classifier-assigned urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Sentiment is the classifier-assigned customer tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Role is an operator's permission level.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

// ValidChannel reports whether c is one of the supported intake channels.
func ValidChannel(c Channel) bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelPhone, ChannelTwitter,
		ChannelFacebook, ChannelInstagram, ChannelWebsite:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusPending,
		StatusResolved, StatusClosed:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryQuestion, CategoryRequest, CategoryComplaint, CategoryFeedback,
		CategoryTechnical, CategoryBilling, CategoryOther:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ValidSentiment reports whether s is a known sentiment.
func ValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Response is one outbound agent reply. Responses are append-only and never
// reordered.
type Response struct {
	Message     string    `json:"message"`
	RespondedBy string    `json:"responded_by"`
	RespondedAt time.Time `json:"responded_at"`
}

// InternalNote is an operator-only annotation. Append-only.
type InternalNote struct {
	Note    string    `json:"note"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// Query is a single customer-support contact record under triage.
type Query struct {
	ID string `json:"id"`

	// intake fields, immutable after creation
	Subject       string  `json:"subject"`
	Message       string  `json:"message"`
	Channel       Channel `json:"channel"`
	CustomerName  string  `json:"customer_name"`
	CustomerEmail string  `json:"customer_email"`
	CustomerPhone string  `json:"customer_phone,omitempty"`

	// classifier-derived fields, replaced wholesale on (re)classification
	Category          Category  `json:"category"`
	Priority          Priority  `json:"priority"`
	Sentiment         Sentiment `json:"sentiment"`
	Tags              []string  `json:"tags"`
	Summary           string    `json:"summary"`
	SuggestedResponse string    `json:"suggested_response"`
	Reasoning         string    `json:"reasoning"`

	// lifecycle
	Status     Status     `json:"status"`
	AssignedTo string     `json:"assigned_to,omitempty"`
	AssignedBy string     `json:"assigned_by,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`

	FirstResponseAt *time.Time `json:"first_response_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`

	// derived once from the timestamps above, immutable after first set
	ResponseTimeMinutes   *int `json:"response_time_minutes,omitempty"`
	ResolutionTimeMinutes *int `json:"resolution_time_minutes,omitempty"`

	IsEscalated bool `json:"is_escalated"`
	IsSpam      bool `json:"is_spam"`

	Responses     []Response     `json:"responses,omitempty"`
	InternalNotes []InternalNote `json:"internal_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate stored state through
// the slices.
func (q *Query) Clone() *Query {
	cp := *q
	if q.Tags != nil {
		cp.Tags = append([]string(nil), q.Tags...)
	}
	if q.Responses != nil {
		cp.Responses = append([]Response(nil), q.Responses...)
	}
	if q.InternalNotes != nil {
		cp.InternalNotes = append([]InternalNote(nil), q.InternalNotes...)
	}
	return &cp
}

// Agent is an operator who can be assigned queries. Agents are owned by the
// store; the engine only reads identity and role.
type Agent struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Department string    `json:"department"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}
