// Package types defines core data structures for deskd.
package types

import (
	"fmt"
	"time"
)

// Message represents one inbound email after provider parsing.
// Immutable once ingested.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	Sender      string       `json:"sender"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	ReceivedAt  string       `json:"received_at"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment holds metadata about a message attachment. The content
// itself stays with the mail provider.
type Attachment struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	IntentBankStatement  Intent = "bank_statement"
	IntentPasswordUpdate Intent = "password_update"
	IntentGeneralQuery   Intent = "general_query"
	IntentUrgentHuman    Intent = "urgent_human"
	IntentFallbackHuman  Intent = "fallback_human"
	IntentUnknown        Intent = "unknown"
)

// ValidIntents is the closed set of intents the classifier may produce.
var ValidIntents = []Intent{
	IntentBankStatement, IntentPasswordUpdate, IntentGeneralQuery,
	IntentUrgentHuman, IntentFallbackHuman, IntentUnknown,
}

// ParseIntent converts a string to an Intent, rejecting values outside
// the closed set.
func ParseIntent(s string) (Intent, error) {
	for _, v := range ValidIntents {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unrecognized intent %q", s)
}

// IntentResult is the classifier output for a single message.
type IntentResult struct {
	Intent     Intent            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
}

// Priority constants for tickets.
const (
	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityUrgent   = "urgent"
	PriorityCritical = "critical"
)

// ValidPriorities is the set of allowed ticket priority values.
var ValidPriorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent, PriorityCritical}

// IsValidPriority checks if a priority string is valid.
func IsValidPriority(p string) bool {
	for _, v := range ValidPriorities {
		if v == p {
			return true
		}
	}
	return false
}

// PriorityForIntent maps a classified intent to the initial ticket priority.
func PriorityForIntent(intent Intent) string {
	switch intent {
	case IntentUrgentHuman:
		return PriorityUrgent
	case IntentFallbackHuman:
		return PriorityHigh
	case IntentBankStatement, IntentPasswordUpdate:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// EscalationLevel is a support tier from basic to management attention.
type EscalationLevel string

const (
	Level1       EscalationLevel = "level1"
	Level2       EscalationLevel = "level2"
	Level3       EscalationLevel = "level3"
	LevelUrgent  EscalationLevel = "urgent"
	LevelManager EscalationLevel = "manager"
)

// ValidLevels is the closed set of escalation levels.
var ValidLevels = []EscalationLevel{Level1, Level2, Level3, LevelUrgent, LevelManager}

// ParseLevel converts a string to an EscalationLevel, rejecting values
// outside the closed set.
func ParseLevel(s string) (EscalationLevel, error) {
	for _, v := range ValidLevels {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unrecognized escalation level %q", s)
}

// EscalationReason explains why a ticket was escalated.
type EscalationReason string

const (
	ReasonResponseTime    EscalationReason = "response_time"
	ReasonComplexity      EscalationReason = "complexity"
	ReasonCustomerUrgency EscalationReason = "customer_urgency"
	ReasonUnknownIntent   EscalationReason = "unknown_intent"
	ReasonHumanRequested  EscalationReason = "human_requested"
)

// ProcessingErrorReason builds the reason for a handler failure on a
// specific intent.
func ProcessingErrorReason(intent Intent) EscalationReason {
	return EscalationReason("processing_error_" + string(intent))
}

// Ticket is one support case. Owned by the conversation store; mutated
// only through the router and the escalation engine.
type Ticket struct {
	TicketID        string          `json:"ticket_id"`
	Subject         string          `json:"subject"`
	Requester       string          `json:"requester"`
	ThreadID        string          `json:"thread_id,omitempty"`
	Description     string          `json:"description,omitempty"`
	CurrentIntent   Intent          `json:"current_intent"`
	Priority        string          `json:"priority"`
	EscalationLevel EscalationLevel `json:"escalation_level"`
	CreatedAt       string          `json:"created_at"`
	LastUpdate      string          `json:"last_update"`
	EntryCount      int             `json:"entry_count"`
}

// Direction of a conversation entry.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// ConversationEntry is one turn in a ticket's history. Append-only.
type ConversationEntry struct {
	TicketID  string            `json:"ticket_id"`
	Direction string            `json:"direction"`
	Timestamp string            `json:"timestamp"`
	Sender    string            `json:"sender,omitempty"`
	Body      string            `json:"body"`
	Intent    Intent            `json:"intent,omitempty"`
	Entities  map[string]string `json:"entities,omitempty"`
	MessageID string            `json:"message_id,omitempty"`
}

// EscalationEvent is one append-only audit log row.
type EscalationEvent struct {
	ID        string           `json:"id"`
	TicketID  string           `json:"ticket_id"`
	FromLevel EscalationLevel  `json:"from_level"`
	ToLevel   EscalationLevel  `json:"to_level"`
	Reason    EscalationReason `json:"reason"`
	Details   string           `json:"details,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// Draft status constants.
const (
	DraftPendingReview = "pending_review"
	DraftApproved      = "approved"
	DraftRejected      = "rejected"
	DraftSent          = "sent"
)

// ValidDraftStatuses is the set of allowed draft statuses.
var ValidDraftStatuses = []string{DraftPendingReview, DraftApproved, DraftRejected, DraftSent}

// IsValidDraftStatus checks if a draft status string is valid.
func IsValidDraftStatus(s string) bool {
	for _, v := range ValidDraftStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Draft is a proposed outbound reply awaiting human review. Nothing is
// sent automatically; sending is gated on status == approved.
type Draft struct {
	DraftID       string   `json:"draft_id"`
	TicketID      string   `json:"ticket_id,omitempty"`
	ToAddress     string   `json:"to_address"`
	Subject       string   `json:"subject"`
	Body          string   `json:"body"`
	Attachments   []string `json:"attachments,omitempty"`
	Status        string   `json:"status"`
	CreatedAt     string   `json:"created_at"`
	ReviewedAt    string   `json:"reviewed_at,omitempty"`
	ReviewerNotes string   `json:"reviewer_notes,omitempty"`
}

// HandlerResponse is what an intent handler proposes to send back.
// A nil response means no customer-facing reply is warranted.
type HandlerResponse struct {
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
}

// ParseTime parses the RFC 3339 timestamps the stores write.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
