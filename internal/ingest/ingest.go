// Package ingest runs the per-message ingestion pipeline: dedup check,
// classification, ticket routing, intent handling, draft creation, and
// the processed-message mark. Messages are processed in parallel but
// all work touching one ticket (or, before a ticket is assigned, one
// thread/sender scope) is serialized.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openhelpdesk/deskd/internal/classify"
	"github.com/openhelpdesk/deskd/internal/draft"
	"github.com/openhelpdesk/deskd/internal/escalate"
	"github.com/openhelpdesk/deskd/internal/handler"
	"github.com/openhelpdesk/deskd/internal/router"
	"github.com/openhelpdesk/deskd/internal/store"
	"github.com/openhelpdesk/deskd/internal/types"
)

// Pipeline states. Every message ends in processed or skipped, or is
// left for a future retry pass with the failure surfaced.
const (
	StateReceived     = "received"
	StateDedupChecked = "dedup_checked"
	StateParsed       = "parsed"
	StateClassified   = "classified"
	StateRouted       = "routed"
	StateHandled      = "handled"
	StateDrafted      = "drafted"
	StateProcessed    = "processed"
	StateSkipped      = "skipped"
)

// Result describes the terminal state of one message.
type Result struct {
	MessageID     string       `json:"message_id"`
	State         string       `json:"state"`
	Intent        types.Intent `json:"intent,omitempty"`
	TicketID      string       `json:"ticket_id,omitempty"`
	DraftID       string       `json:"draft_id,omitempty"`
	HandlerFailed bool         `json:"handler_failed,omitempty"`
}

// Stats summarizes one batch run.
type Stats struct {
	Checked   int `json:"checked"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Drafted   int `json:"drafted"`
	Failed    int `json:"failed"`
}

// Source is the mail transport slice the poll path needs.
type Source interface {
	PollNew(ctx context.Context) ([]*types.Message, error)
	MarkRead(ctx context.Context, messageID string) error
}

// Config tunes the orchestrator.
type Config struct {
	Workers          int
	ClassifyTimeout  time.Duration
	Retry            RetryPolicy
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Orchestrator ties the pipeline together.
type Orchestrator struct {
	store      *store.DB
	router     *router.Router
	classifier classify.Classifier
	handlers   handler.Registry
	escalator  *escalate.Engine
	drafts     *draft.Queue

	breaker *Breaker
	retry   RetryPolicy
	locks   *keyedMutex
	log     *zap.Logger

	workers         int
	classifyTimeout time.Duration
}

// New wires an orchestrator.
func New(db *store.DB, rt *router.Router, cl classify.Classifier, handlers handler.Registry,
	esc *escalate.Engine, drafts *draft.Queue, cfg Config, log *zap.Logger) *Orchestrator {

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	classifyTimeout := cfg.ClassifyTimeout
	if classifyTimeout <= 0 {
		classifyTimeout = 30 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetry
	}

	return &Orchestrator{
		store:           db,
		router:          rt,
		classifier:      cl,
		handlers:        handlers,
		escalator:       esc,
		drafts:          drafts,
		breaker:         NewBreaker("classifier", cfg.BreakerThreshold, cfg.BreakerCooldown),
		retry:           retry,
		locks:           newKeyedMutex(),
		log:             log,
		workers:         workers,
		classifyTimeout: classifyTimeout,
	}
}

// Process runs one message through the pipeline to a terminal state.
// A returned error means the message stays unprocessed and eligible
// for a future retry pass.
func (o *Orchestrator) Process(ctx context.Context, msg *types.Message) (*Result, error) {
	log := o.log.With(zap.String("message", msg.ID))
	res := &Result{MessageID: msg.ID, State: StateReceived}

	if msg.ID == "" {
		return nil, fmt.Errorf("message has no id")
	}

	unlock := o.locks.Lock(router.LockScope(msg))
	defer unlock()

	// Dedup: already-ingested messages skip all downstream work.
	if o.store.IsProcessed(msg.ID) {
		res.State = StateSkipped
		log.Info("message already processed, skipping")
		return res, nil
	}
	res.State = StateDedupChecked

	if msg.Sender == "" {
		return nil, fmt.Errorf("message %s has no sender", msg.ID)
	}
	res.State = StateParsed

	// Conversation history feeds the classifier when the message
	// carries a usable ticket hint.
	var history []*types.ConversationEntry
	if hint := router.ExtractHint(msg.Subject, msg.Body); hint != "" {
		history, _ = o.store.RecentEntries(hint, 5)
	}

	result, err := o.classifyMessage(ctx, msg, history)
	if err != nil {
		log.Error("classification failed after retries", zap.Error(err))
		return nil, err
	}
	res.State = StateClassified
	res.Intent = result.Intent
	log.Info("message classified",
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence))

	decision, err := o.router.Route(msg, result)
	if err != nil {
		return nil, err
	}
	ticket, err := o.applyRoute(msg, result, decision)
	if err != nil {
		return nil, err
	}
	res.State = StateRouted
	res.TicketID = ticket.TicketID
	log.Info("message routed",
		zap.String("action", string(decision.Action)),
		zap.String("ticket", ticket.TicketID),
		zap.String("reason", decision.Reason))

	resp, handlerErr := o.handle(ctx, msg, result, ticket)
	res.State = StateHandled
	if handlerErr != nil {
		res.HandlerFailed = true
	}

	if resp != nil {
		draftID, err := o.drafts.Create(msg.Sender, replySubject(msg.Subject), resp.Body, ticket.TicketID, resp.Attachments)
		if err != nil {
			return nil, fmt.Errorf("queue draft: %w", err)
		}
		res.DraftID = draftID
		res.State = StateDrafted
	}

	// Policy sweep on the touched ticket picks up urgency and
	// complexity escalations immediately.
	if fresh, err := o.store.GetTicket(ticket.TicketID); err == nil && fresh != nil {
		if dec, err := o.escalator.Check(fresh); err == nil && dec != nil {
			if err := o.escalator.Escalate(fresh, dec); err != nil {
				log.Warn("post-route escalation failed", zap.Error(err))
			}
		}
	}

	// Mark processed even when the handler failed: the failure is
	// surfaced as an escalation, not a reprocessing loop.
	if err := o.store.MarkProcessed(msg.ID); err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	res.State = StateProcessed
	return res, nil
}

// classifyMessage calls the classifier through the circuit breaker and
// retry policy. Unusable output degrades to fallback_human so every
// message still reaches a terminal state; only infrastructure failures
// propagate as errors.
func (o *Orchestrator) classifyMessage(ctx context.Context, msg *types.Message, history []*types.ConversationEntry) (*types.IntentResult, error) {
	var result *types.IntentResult
	var badOutput error

	err := o.retry.Do(ctx, func() error {
		return o.breaker.Call(func() error {
			cctx, cancel := context.WithTimeout(ctx, o.classifyTimeout)
			defer cancel()
			r, err := o.classifier.Classify(cctx, msg.Body, msg.Sender, history)
			if err != nil {
				if errors.Is(err, classify.ErrBadOutput) {
					// Not an infrastructure failure: no retry, and it
					// must not trip the breaker.
					badOutput = err
					return nil
				}
				return Transient(err)
			}
			badOutput = nil
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if badOutput != nil {
		o.log.Warn("classifier output unusable, degrading to fallback_human",
			zap.String("message", msg.ID), zap.Error(badOutput))
		return &types.IntentResult{
			Intent:     types.IntentFallbackHuman,
			Confidence: 0,
			Reasoning:  "classification degraded: " + badOutput.Error(),
		}, nil
	}
	return result, nil
}

// applyRoute creates or extends the target ticket and appends the
// incoming conversation entry.
func (o *Orchestrator) applyRoute(msg *types.Message, result *types.IntentResult, dec *router.Decision) (*types.Ticket, error) {
	var ticket *types.Ticket

	switch dec.Action {
	case router.ActionAppend:
		t, err := o.store.GetTicket(dec.TicketID)
		if err != nil {
			return nil, err
		}
		if t == nil {
			// Ticket vanished between routing and apply; fall through
			// to creation rather than failing the message.
			break
		}
		ticket = t
	case router.ActionCreate:
	default:
		return nil, fmt.Errorf("unrecognized routing action %q", dec.Action)
	}

	if ticket == nil {
		ticket = &types.Ticket{
			Subject:       msg.Subject,
			Requester:     msg.Sender,
			ThreadID:      msg.ThreadID,
			Description:   msg.Body,
			CurrentIntent: result.Intent,
			Priority:      types.PriorityForIntent(result.Intent),
		}
		if _, err := o.store.CreateTicket(ticket); err != nil {
			return nil, err
		}
	}

	entry := &types.ConversationEntry{
		TicketID:  ticket.TicketID,
		Direction: types.DirectionIncoming,
		Timestamp: msg.ReceivedAt,
		Sender:    msg.Sender,
		Body:      msg.Body,
		Intent:    result.Intent,
		Entities:  result.Entities,
		MessageID: msg.ID,
	}
	if err := o.store.AppendEntry(entry); err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}
	ticket.CurrentIntent = result.Intent
	return ticket, nil
}

// handle dispatches by intent. The escalation intents go straight to
// the policy engine with a canned acknowledgment; handler failures
// become escalations rather than aborting the message.
func (o *Orchestrator) handle(ctx context.Context, msg *types.Message, result *types.IntentResult, ticket *types.Ticket) (*types.HandlerResponse, error) {
	switch result.Intent {
	case types.IntentUrgentHuman, types.IntentFallbackHuman:
		if err := o.escalator.EscalateForReason(ticket, types.ReasonHumanRequested, "intent "+string(result.Intent)); err != nil {
			o.log.Warn("escalation failed", zap.String("ticket", ticket.TicketID), zap.Error(err))
		}
		return &types.HandlerResponse{Body: handler.EscalationAck}, nil
	case types.IntentUnknown:
		if err := o.escalator.EscalateForReason(ticket, types.ReasonUnknownIntent, result.Reasoning); err != nil {
			o.log.Warn("escalation failed", zap.String("ticket", ticket.TicketID), zap.Error(err))
		}
		return &types.HandlerResponse{Body: handler.UnknownAck}, nil
	}

	h, ok := o.handlers[result.Intent]
	if !ok {
		// No handler registered for a routable intent; treat like an
		// unknown intent rather than dropping the message.
		if err := o.escalator.EscalateForReason(ticket, types.ReasonUnknownIntent, "no handler for "+string(result.Intent)); err != nil {
			o.log.Warn("escalation failed", zap.String("ticket", ticket.TicketID), zap.Error(err))
		}
		return &types.HandlerResponse{Body: handler.UnknownAck}, nil
	}

	resp, err := h.Handle(ctx, msg, result, ticket.TicketID)
	if err != nil {
		o.log.Error("intent handler failed",
			zap.String("intent", string(result.Intent)),
			zap.String("ticket", ticket.TicketID),
			zap.Error(err))
		if escErr := o.escalator.EscalateForReason(ticket, types.ProcessingErrorReason(result.Intent), err.Error()); escErr != nil {
			o.log.Warn("escalation failed", zap.String("ticket", ticket.TicketID), zap.Error(escErr))
		}
		return nil, err
	}
	return resp, nil
}

// ProcessBatch runs messages through the pipeline with bounded
// parallelism. Per-message failures are logged and counted, never
// fatal for the batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, msgs []*types.Message) (*Stats, error) {
	stats := &Stats{Checked: len(msgs)}
	results := make([]*Result, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, msg := range msgs {
		g.Go(func() error {
			res, err := o.Process(gctx, msg)
			if err != nil {
				o.log.Error("message processing failed",
					zap.String("message", msg.ID), zap.Error(err))
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	for _, res := range results {
		switch {
		case res == nil:
			stats.Failed++
		case res.State == StateSkipped:
			stats.Skipped++
		default:
			stats.Processed++
			if res.DraftID != "" {
				stats.Drafted++
			}
		}
	}
	return stats, nil
}

// ProcessFromSource polls the mail transport and processes everything
// new. Successfully handled messages are marked read, best effort.
func (o *Orchestrator) ProcessFromSource(ctx context.Context, src Source) (*Stats, error) {
	msgs, err := src.PollNew(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll mail: %w", err)
	}
	stats, err := o.ProcessBatch(ctx, msgs)
	if err != nil {
		return stats, err
	}
	for _, msg := range msgs {
		if o.store.IsProcessed(msg.ID) {
			if err := src.MarkRead(ctx, msg.ID); err != nil {
				o.log.Warn("mark read failed", zap.String("message", msg.ID), zap.Error(err))
			}
		}
	}
	return stats, nil
}

// SweepEscalations runs the policy engine over every ticket, applying
// response-time and other rule breaches. Returns how many tickets
// escalated.
func (o *Orchestrator) SweepEscalations(ctx context.Context) (int, error) {
	tickets, err := o.store.ListTickets(0)
	if err != nil {
		return 0, err
	}
	escalated := 0
	for _, t := range tickets {
		if ctx.Err() != nil {
			return escalated, ctx.Err()
		}
		dec, err := o.escalator.Check(t)
		if err != nil {
			o.log.Warn("escalation check failed", zap.String("ticket", t.TicketID), zap.Error(err))
			continue
		}
		if dec == nil {
			continue
		}
		before := t.EscalationLevel
		if err := o.escalator.Escalate(t, dec); err != nil {
			o.log.Warn("escalation failed", zap.String("ticket", t.TicketID), zap.Error(err))
			continue
		}
		if t.EscalationLevel != before {
			escalated++
		}
	}
	return escalated, nil
}

// replySubject prefixes Re: unless the thread already carries one.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
