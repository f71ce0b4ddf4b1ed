// Package handler holds the intent-specific responders the orchestrator
// dispatches to once a message is routed. Each handler proposes a reply
// body; a nil response means no customer-facing reply is warranted.
package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openhelpdesk/deskd/internal/types"
)

// Handler responds to one classified intent.
type Handler interface {
	Handle(ctx context.Context, msg *types.Message, result *types.IntentResult, ticketID string) (*types.HandlerResponse, error)
}

// Canned acknowledgment bodies for the escalation paths.
const (
	EscalationAck = "Thank you for contacting us. Your request has been escalated to a human agent who will respond shortly."
	UnknownAck    = "Thank you for your message. We're reviewing your request and will respond soon."
)

// Registry maps routable intents to handlers. The escalation intents
// (urgent_human, fallback_human, unknown) are handled by the
// orchestrator directly and have no entry here.
type Registry map[types.Intent]Handler

// ContextRetriever is the knowledge-base slice the general-query
// handler needs.
type ContextRetriever interface {
	GetContext(query string) (string, error)
}

// Composer drafts a grounded reply from a question and retrieved
// context. Optional; handlers fall back to a template without one.
type Composer interface {
	Compose(ctx context.Context, question, kbContext string, history []*types.ConversationEntry) (string, error)
}

// HistorySource supplies recent conversation turns for composition.
type HistorySource interface {
	RecentEntries(ticketID string, n int) ([]*types.ConversationEntry, error)
}

// NewRegistry wires the default handlers.
func NewRegistry(retriever ContextRetriever, composer Composer, history HistorySource) Registry {
	return Registry{
		types.IntentBankStatement:  &BankStatement{},
		types.IntentPasswordUpdate: &PasswordUpdate{},
		types.IntentGeneralQuery:   &GeneralQuery{Retriever: retriever, Composer: composer, History: history},
	}
}

// BankStatement answers statement requests. Statement rendering lives
// with an external document service; the reply references the
// statements by name.
type BankStatement struct{}

func (h *BankStatement) Handle(_ context.Context, msg *types.Message, result *types.IntentResult, _ string) (*types.HandlerResponse, error) {
	months := 3
	if m, ok := result.Entities["months"]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(m)); err == nil && n > 0 && n <= 24 {
			months = n
		}
	}

	attachments := make([]string, 0, months)
	for i := 1; i <= months; i++ {
		attachments = append(attachments, fmt.Sprintf("bank_statement_month_%d.pdf", i))
	}

	body := fmt.Sprintf(
		"Hello,\n\nAs requested, please find your bank statements for the last %d month(s) attached.\n\nIf anything looks off, just reply to this email and we'll take another look.\n\nBest regards,\nSupport Team",
		months,
	)
	return &types.HandlerResponse{Body: body, Attachments: attachments}, nil
}

// PasswordUpdate replies with a secure reset link. Credentials the
// customer may have mailed in are never echoed back.
type PasswordUpdate struct{}

func (h *PasswordUpdate) Handle(_ context.Context, msg *types.Message, _ *types.IntentResult, _ string) (*types.HandlerResponse, error) {
	body := "Hello,\n\nWe received your request to update your password. For your security we never change passwords over email.\n\nPlease use the secure link below to set a new password. The link expires in 30 minutes.\n\n  https://account.example.com/reset\n\nIf you did not request this change, please contact us immediately.\n\nBest regards,\nSupport Team"
	return &types.HandlerResponse{Body: body}, nil
}

// GeneralQuery answers product questions from the knowledge base.
type GeneralQuery struct {
	Retriever ContextRetriever
	Composer  Composer
	History   HistorySource
}

func (h *GeneralQuery) Handle(ctx context.Context, msg *types.Message, result *types.IntentResult, ticketID string) (*types.HandlerResponse, error) {
	question := msg.Body
	if q, ok := result.Entities["specific_question"]; ok && q != "" {
		question = q
	}

	var kbContext string
	if h.Retriever != nil {
		var err error
		kbContext, err = h.Retriever.GetContext(question)
		if err != nil {
			return nil, fmt.Errorf("retrieve context: %w", err)
		}
	}

	if h.Composer != nil {
		var history []*types.ConversationEntry
		if h.History != nil && ticketID != "" {
			history, _ = h.History.RecentEntries(ticketID, 5)
		}
		body, err := h.Composer.Compose(ctx, question, kbContext, history)
		if err != nil {
			return nil, fmt.Errorf("compose reply: %w", err)
		}
		return &types.HandlerResponse{Body: body}, nil
	}

	// No composer configured: answer from the excerpts directly.
	if kbContext == "" {
		body := "Hello,\n\nThanks for your question. We couldn't find an immediate answer in our knowledge base, so a support agent will follow up with you shortly.\n\nBest regards,\nSupport Team"
		return &types.HandlerResponse{Body: body}, nil
	}
	body := fmt.Sprintf(
		"Hello,\n\nThanks for your question. Here is what we found in our documentation:\n\n%s\n\nIf this doesn't fully answer your question, just reply and an agent will help out.\n\nBest regards,\nSupport Team",
		kbContext,
	)
	return &types.HandlerResponse{Body: body}, nil
}
