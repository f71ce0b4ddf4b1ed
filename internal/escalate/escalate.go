// Package escalate implements the escalation policy engine: per-level
// SLA rules, the strict-priority escalation checks, and the idempotent
// escalation side effects (audit log, ticket level, notification).
package escalate

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openhelpdesk/deskd/internal/types"
)

// Rule holds the SLA parameters for one escalation level.
type Rule struct {
	MaxResponseTime   time.Duration
	MaxResolutionTime time.Duration
	AutoEscalate      bool
}

// DefaultRules is the per-level rule table. Manager is terminal and
// never auto-escalates.
var DefaultRules = map[types.EscalationLevel]Rule{
	types.Level1:       {MaxResponseTime: 4 * time.Hour, MaxResolutionTime: 24 * time.Hour, AutoEscalate: true},
	types.Level2:       {MaxResponseTime: 2 * time.Hour, MaxResolutionTime: 8 * time.Hour, AutoEscalate: true},
	types.Level3:       {MaxResponseTime: 1 * time.Hour, MaxResolutionTime: 4 * time.Hour, AutoEscalate: true},
	types.LevelUrgent:  {MaxResponseTime: 30 * time.Minute, MaxResolutionTime: 2 * time.Hour, AutoEscalate: true},
	types.LevelManager: {MaxResponseTime: 15 * time.Minute, MaxResolutionTime: 1 * time.Hour, AutoEscalate: false},
}

// technicalKeywords trigger the complexity rule for level1 tickets.
var technicalKeywords = []string{"error", "bug", "crash", "broken", "not working"}

// NextLevel returns the next step in the fixed progression
// level1 -> level2 -> level3 -> manager. The urgent tier sits outside
// the progression and resolves upward to manager. Manager is terminal.
func NextLevel(level types.EscalationLevel) types.EscalationLevel {
	switch level {
	case types.Level1:
		return types.Level2
	case types.Level2:
		return types.Level3
	case types.Level3:
		return types.LevelManager
	case types.LevelUrgent:
		return types.LevelManager
	default:
		return types.LevelManager
	}
}

// Decision says where a ticket should escalate and why.
type Decision struct {
	ToLevel types.EscalationLevel `json:"to_level"`
	Reason  types.EscalationReason `json:"reason"`
	Details string                `json:"details,omitempty"`
}

// Store is the slice of the conversation store the engine mutates.
type Store interface {
	SetEscalationLevel(ticketID string, level types.EscalationLevel) error
	AppendEscalation(ev *types.EscalationEvent) error
	HasEscalation(ticketID string, toLevel types.EscalationLevel) bool
}

// Notifier delivers escalation notifications. Best effort: errors are
// logged and swallowed.
type Notifier interface {
	Notify(ev *types.EscalationEvent) error
}

// Engine evaluates and applies escalations.
type Engine struct {
	store    Store
	notifier Notifier
	rules    map[types.EscalationLevel]Rule
	log      *zap.Logger
	now      func() time.Time
}

// New returns an engine with the default rule table.
func New(store Store, notifier Notifier, log *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		rules:    DefaultRules,
		log:      log,
		now:      time.Now,
	}
}

// Check evaluates the escalation rules against a ticket in strict
// priority order. First match wins; rules never combine. A nil decision
// means no escalation is needed.
func (e *Engine) Check(t *types.Ticket) (*Decision, error) {
	rule, ok := e.rules[t.EscalationLevel]
	if !ok {
		return nil, fmt.Errorf("no rule for level %q", t.EscalationLevel)
	}

	// 1. Response-time breach.
	if rule.AutoEscalate {
		lastUpdate, err := types.ParseTime(t.LastUpdate)
		if err != nil {
			return nil, fmt.Errorf("ticket %s last_update: %w", t.TicketID, err)
		}
		if e.now().Sub(lastUpdate) > rule.MaxResponseTime {
			return &Decision{
				ToLevel: NextLevel(t.EscalationLevel),
				Reason:  types.ReasonResponseTime,
				Details: fmt.Sprintf("no response within %s at %s", rule.MaxResponseTime, t.EscalationLevel),
			}, nil
		}
	}

	// 2. Customer urgency: jumps straight to the urgent tier.
	switch t.Priority {
	case types.PriorityHigh, types.PriorityUrgent, types.PriorityCritical:
		if t.EscalationLevel != types.LevelUrgent {
			return &Decision{
				ToLevel: types.LevelUrgent,
				Reason:  types.ReasonCustomerUrgency,
				Details: fmt.Sprintf("priority %s", t.Priority),
			}, nil
		}
	}

	// 3. Complexity, only out of level1.
	if t.EscalationLevel == types.Level1 {
		if t.EntryCount > 5 {
			return &Decision{
				ToLevel: NextLevel(t.EscalationLevel),
				Reason:  types.ReasonComplexity,
				Details: fmt.Sprintf("%d interactions at level1", t.EntryCount),
			}, nil
		}
		desc := strings.ToLower(t.Description)
		for _, kw := range technicalKeywords {
			if strings.Contains(desc, kw) {
				return &Decision{
					ToLevel: NextLevel(t.EscalationLevel),
					Reason:  types.ReasonComplexity,
					Details: fmt.Sprintf("technical keyword %q", kw),
				}, nil
			}
		}
	}

	return nil, nil
}

// Escalate applies a decision to a ticket. Idempotent per
// (ticket, target level): a repeat application neither moves the level
// nor duplicates the audit entry. The notification is fire-and-forget.
func (e *Engine) Escalate(t *types.Ticket, dec *Decision) error {
	if dec == nil {
		return nil
	}
	if t.EscalationLevel == dec.ToLevel || e.store.HasEscalation(t.TicketID, dec.ToLevel) {
		e.log.Debug("escalation already applied",
			zap.String("ticket", t.TicketID),
			zap.String("to_level", string(dec.ToLevel)))
		return nil
	}

	ev := &types.EscalationEvent{
		TicketID:  t.TicketID,
		FromLevel: t.EscalationLevel,
		ToLevel:   dec.ToLevel,
		Reason:    dec.Reason,
		Details:   dec.Details,
	}
	if err := e.store.AppendEscalation(ev); err != nil {
		return fmt.Errorf("record escalation: %w", err)
	}
	if err := e.store.SetEscalationLevel(t.TicketID, dec.ToLevel); err != nil {
		return fmt.Errorf("update ticket level: %w", err)
	}
	t.EscalationLevel = dec.ToLevel

	e.log.Info("ticket escalated",
		zap.String("ticket", t.TicketID),
		zap.String("from", string(ev.FromLevel)),
		zap.String("to", string(ev.ToLevel)),
		zap.String("reason", string(ev.Reason)))

	if e.notifier != nil {
		if err := e.notifier.Notify(ev); err != nil {
			e.log.Warn("escalation notification failed",
				zap.String("ticket", t.TicketID), zap.Error(err))
		}
	}
	return nil
}

// EscalateForReason is the direct escalation path used by the
// orchestrator for human-requested, unknown-intent, and handler-error
// cases: one step up the progression with an explicit reason.
func (e *Engine) EscalateForReason(t *types.Ticket, reason types.EscalationReason, details string) error {
	to := NextLevel(t.EscalationLevel)
	if reason == types.ReasonHumanRequested && t.Priority == types.PriorityUrgent {
		to = types.LevelUrgent
	}
	if t.EscalationLevel == types.LevelManager {
		// Terminal level: record nothing, manager never auto-escalates.
		return nil
	}
	return e.Escalate(t, &Decision{ToLevel: to, Reason: reason, Details: details})
}
