// Package router decides ticket affinity for inbound messages: whether
// a message opens a new ticket or appends to an existing one, and when
// intent drift forces a fresh ticket.
package router

import (
	"fmt"
	"regexp"

	"github.com/openhelpdesk/deskd/internal/types"
)

// Action is the routing outcome for one message.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionAppend Action = "APPEND"
)

// Decision is what the orchestrator acts on. TicketID is set only for
// APPEND; CREATE leaves ticket creation to the caller.
type Decision struct {
	Action   Action `json:"action"`
	TicketID string `json:"ticket_id,omitempty"`
	// Reason is advisory, for logs.
	Reason string `json:"reason,omitempty"`
}

// TicketLookup is the slice of the conversation store the router needs.
type TicketLookup interface {
	GetTicket(ticketID string) (*types.Ticket, error)
	TicketByThread(threadID string) (*types.Ticket, error)
}

// Hint patterns, tried in order; first match wins. All matching is
// case-insensitive over subject then body.
var hintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[TICKET-([0-9a-z]+)\]`),
	regexp.MustCompile(`#([0-9]+)`),
	regexp.MustCompile(`(?i)Ticket:\s*([0-9a-z]+)`),
	regexp.MustCompile(`(?i)ID:\s*([0-9a-z]+)`),
}

// ExtractHint recovers a ticket reference from a message's subject and
// body. Returns "" when no pattern matches.
func ExtractHint(subject, body string) string {
	text := subject + " " + body
	for _, pat := range hintPatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// Router routes messages against the conversation store.
type Router struct {
	tickets TicketLookup
}

// New returns a Router backed by the given ticket lookup.
func New(tickets TicketLookup) *Router {
	return &Router{tickets: tickets}
}

// Route decides ticket affinity for a classified message.
//
// With no recoverable hint the action is CREATE. With a hint, the
// referenced ticket's current intent decides: matching intent appends,
// drifted intent opens a new ticket for the new support need. A hint
// pointing at a ticket that no longer exists is treated as absent.
func (r *Router) Route(msg *types.Message, result *types.IntentResult) (*Decision, error) {
	hint := ExtractHint(msg.Subject, msg.Body)

	var ticket *types.Ticket
	var err error
	if hint != "" {
		ticket, err = r.tickets.GetTicket(hint)
		if err != nil {
			return nil, fmt.Errorf("lookup ticket %q: %w", hint, err)
		}
	}
	if ticket == nil && msg.ThreadID != "" {
		// Secondary, additive hint source: an existing ticket on the
		// same mail thread. Never overrides an explicit tag.
		ticket, err = r.tickets.TicketByThread(msg.ThreadID)
		if err != nil {
			return nil, fmt.Errorf("lookup thread %q: %w", msg.ThreadID, err)
		}
	}

	if ticket == nil {
		reason := "no ticket hint"
		if hint != "" {
			reason = fmt.Sprintf("hint %q not found", hint)
		}
		return &Decision{Action: ActionCreate, Reason: reason}, nil
	}

	if ticket.CurrentIntent == result.Intent {
		return &Decision{
			Action:   ActionAppend,
			TicketID: ticket.TicketID,
			Reason:   "intent matches " + ticket.TicketID,
		}, nil
	}

	return &Decision{
		Action: ActionCreate,
		Reason: fmt.Sprintf("intent drift on %s: %s -> %s", ticket.TicketID, ticket.CurrentIntent, result.Intent),
	}, nil
}

// LockScope returns the serialization key for a message before a ticket
// is assigned: the explicit hint if present, otherwise the thread, and
// as a last resort the sender. Two concurrent messages for the same
// conceptual conversation always land on the same scope.
func LockScope(msg *types.Message) string {
	if hint := ExtractHint(msg.Subject, msg.Body); hint != "" {
		return "ticket:" + hint
	}
	if msg.ThreadID != "" {
		return "thread:" + msg.ThreadID
	}
	return "sender:" + msg.Sender
}
