package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/openhelpdesk/deskd/internal/types"
)

// InsertDraft stores a new draft row. Status and timestamps must
// already be set by the draft queue.
func (d *DB) InsertDraft(dr *types.Draft) error {
	_, err := d.conn.Exec(`
		INSERT INTO drafts
			(draft_id, ticket_id, to_address, subject, body, attachments,
			 status, created_at, reviewed_at, reviewer_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dr.DraftID, nullStr(dr.TicketID), dr.ToAddress, dr.Subject, dr.Body,
		nullStr(strings.Join(dr.Attachments, ",")), dr.Status, dr.CreatedAt,
		nullStr(dr.ReviewedAt), nullStr(dr.ReviewerNotes),
	)
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

// GetDraft returns a draft by ID, or nil if it does not exist.
func (d *DB) GetDraft(draftID string) (*types.Draft, error) {
	dr := &types.Draft{}
	var ticketID, attachments, reviewedAt, notes sql.NullString
	err := d.conn.QueryRow(`
		SELECT draft_id, ticket_id, to_address, subject, body, attachments,
		       status, created_at, reviewed_at, reviewer_notes
		FROM drafts
		WHERE draft_id = ?`, draftID).Scan(
		&dr.DraftID, &ticketID, &dr.ToAddress, &dr.Subject, &dr.Body, &attachments,
		&dr.Status, &dr.CreatedAt, &reviewedAt, &notes,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dr.TicketID = ticketID.String
	dr.ReviewedAt = reviewedAt.String
	dr.ReviewerNotes = notes.String
	if attachments.Valid && attachments.String != "" {
		dr.Attachments = strings.Split(attachments.String, ",")
	}
	return dr, nil
}

// SetDraftStatus updates a draft's status and review metadata.
// Transition legality is the draft queue's concern, not the store's.
func (d *DB) SetDraftStatus(draftID, status, notes string) error {
	res, err := d.conn.Exec(`
		UPDATE drafts SET status = ?, reviewed_at = ?, reviewer_notes = ?
		WHERE draft_id = ?`,
		status, Now(), nullStr(notes), draftID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("draft %q not found", draftID)
	}
	return nil
}

// ListDrafts returns drafts, optionally filtered by status and ticket.
func (d *DB) ListDrafts(status, ticketID string) ([]*types.Draft, error) {
	query := `
		SELECT draft_id, ticket_id, to_address, subject, body, attachments,
		       status, created_at, reviewed_at, reviewer_notes
		FROM drafts`

	var conditions []string
	var args []any
	if status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}
	if ticketID != "" {
		conditions = append(conditions, "ticket_id = ?")
		args = append(args, ticketID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*types.Draft
	for rows.Next() {
		dr := &types.Draft{}
		var tID, attachments, reviewedAt, notes sql.NullString
		if err := rows.Scan(
			&dr.DraftID, &tID, &dr.ToAddress, &dr.Subject, &dr.Body, &attachments,
			&dr.Status, &dr.CreatedAt, &reviewedAt, &notes,
		); err != nil {
			return nil, err
		}
		dr.TicketID = tID.String
		dr.ReviewedAt = reviewedAt.String
		dr.ReviewerNotes = notes.String
		if attachments.Valid && attachments.String != "" {
			dr.Attachments = strings.Split(attachments.String, ",")
		}
		result = append(result, dr)
	}
	return result, rows.Err()
}

// DeleteStaleDrafts removes pending_review drafts created before the
// cutoff. Reviewed drafts are retained for audit regardless of age.
func (d *DB) DeleteStaleDrafts(cutoff time.Time) (int, error) {
	res, err := d.conn.Exec(
		"DELETE FROM drafts WHERE status = ? AND created_at < ?",
		types.DraftPendingReview, cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DraftCountByStatus returns draft counts grouped by status.
func (d *DB) DraftCountByStatus() (map[string]int, error) {
	rows, err := d.conn.Query("SELECT status, COUNT(*) FROM drafts GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{
		types.DraftPendingReview: 0,
		types.DraftApproved:      0,
		types.DraftRejected:      0,
		types.DraftSent:          0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
