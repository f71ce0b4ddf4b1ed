// Package draft implements the review queue for generated replies.
// Every draft starts pending_review and nothing is sent automatically;
// sending is a separate action gated on an approved status.
package draft

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openhelpdesk/deskd/internal/types"
)

// ErrNotFound means the draft ID is unknown.
var ErrNotFound = errors.New("draft not found")

// ErrInvalidTransition means the requested status change violates the
// draft lifecycle (no-op transitions, anything out of sent, reopening).
var ErrInvalidTransition = errors.New("invalid draft transition")

// Store is the slice of the database the queue uses.
type Store interface {
	InsertDraft(d *types.Draft) error
	GetDraft(draftID string) (*types.Draft, error)
	SetDraftStatus(draftID, status, notes string) error
	ListDrafts(status, ticketID string) ([]*types.Draft, error)
	DeleteStaleDrafts(cutoff time.Time) (int, error)
}

// Queue manages drafts pending human review.
type Queue struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// NewQueue returns a draft queue over the given store.
func NewQueue(store Store, log *zap.Logger) *Queue {
	return &Queue{store: store, log: log, now: time.Now}
}

// Create stores a new draft in pending_review and returns its ID.
func (q *Queue) Create(toAddress, subject, body, ticketID string, attachments []string) (string, error) {
	d := &types.Draft{
		DraftID:     uuid.NewString(),
		TicketID:    ticketID,
		ToAddress:   toAddress,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
		Status:      types.DraftPendingReview,
		CreatedAt:   q.now().UTC().Format(time.RFC3339),
	}
	if err := q.store.InsertDraft(d); err != nil {
		return "", err
	}
	q.log.Info("draft created",
		zap.String("draft", d.DraftID),
		zap.String("ticket", ticketID),
		zap.String("to", toAddress))
	return d.DraftID, nil
}

// Get returns a draft by ID or ErrNotFound.
func (q *Queue) Get(draftID string) (*types.Draft, error) {
	d, err := q.store.GetDraft(draftID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, draftID)
	}
	return d, nil
}

// List returns drafts, optionally filtered by status and ticket.
func (q *Queue) List(status, ticketID string) ([]*types.Draft, error) {
	if status != "" && !types.IsValidDraftStatus(status) {
		return nil, fmt.Errorf("invalid draft status %q", status)
	}
	return q.store.ListDrafts(status, ticketID)
}

// UpdateStatus transitions a draft through its lifecycle. Unknown IDs
// return ErrNotFound; forbidden transitions return ErrInvalidTransition
// and leave the draft untouched.
func (q *Queue) UpdateStatus(draftID, status, notes string) error {
	if !types.IsValidDraftStatus(status) {
		return fmt.Errorf("invalid draft status %q", status)
	}
	d, err := q.store.GetDraft(draftID)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, draftID)
	}
	if err := checkTransition(d.Status, status); err != nil {
		return err
	}
	if err := q.store.SetDraftStatus(draftID, status, notes); err != nil {
		return err
	}
	q.log.Info("draft status changed",
		zap.String("draft", draftID),
		zap.String("from", d.Status),
		zap.String("to", status))
	return nil
}

// checkTransition enforces the draft lifecycle. Sent is terminal,
// no-op transitions are forbidden, and a draft never returns to
// pending_review. Sending is only reachable from approved.
func checkTransition(from, to string) error {
	switch {
	case from == to:
		return fmt.Errorf("%w: already %s", ErrInvalidTransition, from)
	case from == types.DraftSent:
		return fmt.Errorf("%w: draft already sent", ErrInvalidTransition)
	case to == types.DraftPendingReview:
		return fmt.Errorf("%w: cannot reopen review", ErrInvalidTransition)
	case to == types.DraftSent && from != types.DraftApproved:
		return fmt.Errorf("%w: only approved drafts can be sent", ErrInvalidTransition)
	}
	return nil
}

// CleanupOlderThan removes pending_review drafts older than maxAge.
// Approved, rejected, and sent drafts are retained for audit and never
// touched. Returns the number of drafts removed.
func (q *Queue) CleanupOlderThan(maxAge time.Duration) (int, error) {
	cutoff := q.now().Add(-maxAge)
	n, err := q.store.DeleteStaleDrafts(cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.log.Info("stale drafts removed", zap.Int("count", n))
	}
	return n, nil
}
