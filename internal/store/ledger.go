package store

import (
	"database/sql"
	"fmt"

	"github.com/openhelpdesk/deskd/internal/types"
)

// --- Dedup ledger ---

// IsProcessed reports whether a message ID has been fully ingested.
func (d *DB) IsProcessed(messageID string) bool {
	var n int
	d.conn.QueryRow(
		"SELECT 1 FROM processed_messages WHERE message_id = ?", messageID).Scan(&n)
	return n == 1
}

// MarkProcessed records a message ID as ingested. Idempotent and
// monotonic: re-marking is a no-op and entries are never removed.
func (d *DB) MarkProcessed(messageID string) error {
	_, err := d.conn.Exec(
		"INSERT OR IGNORE INTO processed_messages (message_id, processed_at) VALUES (?, ?)",
		messageID, Now(),
	)
	return err
}

// ProcessedCount returns the ledger size.
func (d *DB) ProcessedCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM processed_messages").Scan(&n)
	return n
}

// --- Escalation audit log ---

// AppendEscalation adds one audit log row. Rows are never updated or
// deleted.
func (d *DB) AppendEscalation(ev *types.EscalationEvent) error {
	if ev.ID == "" {
		ev.ID = GenID()
	}
	if ev.Timestamp == "" {
		ev.Timestamp = Now()
	}
	_, err := d.conn.Exec(`
		INSERT INTO escalation_events
			(id, ticket_id, from_level, to_level, reason, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TicketID, string(ev.FromLevel), string(ev.ToLevel),
		string(ev.Reason), nullStr(ev.Details), ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert escalation event: %w", err)
	}
	return nil
}

// Escalations returns the audit log for one ticket in append order,
// or for all tickets when ticketID is empty.
func (d *DB) Escalations(ticketID string) ([]*types.EscalationEvent, error) {
	query := `
		SELECT id, ticket_id, from_level, to_level, reason, details, timestamp
		FROM escalation_events`
	var args []any
	if ticketID != "" {
		query += " WHERE ticket_id = ?"
		args = append(args, ticketID)
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*types.EscalationEvent
	for rows.Next() {
		ev := &types.EscalationEvent{}
		var from, to, reason string
		var details sql.NullString
		if err := rows.Scan(&ev.ID, &ev.TicketID, &from, &to, &reason, &details, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Details = details.String
		if ev.FromLevel, err = types.ParseLevel(from); err != nil {
			return nil, err
		}
		if ev.ToLevel, err = types.ParseLevel(to); err != nil {
			return nil, err
		}
		ev.Reason = types.EscalationReason(reason)
		result = append(result, ev)
	}
	return result, rows.Err()
}

// HasEscalation reports whether an audit row already exists for the
// (ticket, target level) pair. Used to keep escalation idempotent.
func (d *DB) HasEscalation(ticketID string, toLevel types.EscalationLevel) bool {
	var n int
	d.conn.QueryRow(
		"SELECT 1 FROM escalation_events WHERE ticket_id = ? AND to_level = ? LIMIT 1",
		ticketID, string(toLevel)).Scan(&n)
	return n == 1
}
