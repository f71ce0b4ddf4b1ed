package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openhelpdesk/deskd/internal/types"
)

// CreateTicket inserts a new ticket. If TicketID is empty a fresh ID is
// generated. Returns the ticket ID.
func (d *DB) CreateTicket(t *types.Ticket) (string, error) {
	if t.TicketID == "" {
		t.TicketID = GenID()
	}
	now := Now()
	if t.CreatedAt == "" {
		t.CreatedAt = now
	}
	if t.LastUpdate == "" {
		t.LastUpdate = now
	}
	if t.EscalationLevel == "" {
		t.EscalationLevel = types.Level1
	}
	if t.Priority == "" {
		t.Priority = types.PriorityNormal
	}

	_, err := d.conn.Exec(`
		INSERT INTO tickets
			(ticket_id, subject, requester, thread_id, description,
			 current_intent, priority, escalation_level, created_at, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TicketID, t.Subject, t.Requester, nullStr(t.ThreadID), nullStr(t.Description),
		string(t.CurrentIntent), t.Priority, string(t.EscalationLevel), t.CreatedAt, t.LastUpdate,
	)
	if err != nil {
		return "", fmt.Errorf("insert ticket: %w", err)
	}
	return t.TicketID, nil
}

// GetTicket returns a ticket by ID, or nil if it does not exist.
func (d *DB) GetTicket(ticketID string) (*types.Ticket, error) {
	t := &types.Ticket{}
	var threadID, description sql.NullString
	var intent, level string
	err := d.conn.QueryRow(`
		SELECT t.ticket_id, t.subject, t.requester, t.thread_id, t.description,
		       t.current_intent, t.priority, t.escalation_level, t.created_at, t.last_update,
		       (SELECT COUNT(*) FROM conversation_entries e WHERE e.ticket_id = t.ticket_id)
		FROM tickets t
		WHERE t.ticket_id = ?`, ticketID).Scan(
		&t.TicketID, &t.Subject, &t.Requester, &threadID, &description,
		&intent, &t.Priority, &level, &t.CreatedAt, &t.LastUpdate, &t.EntryCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.ThreadID = threadID.String
	t.Description = description.String
	if t.CurrentIntent, err = types.ParseIntent(intent); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, err)
	}
	if t.EscalationLevel, err = types.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, err)
	}
	return t, nil
}

// TicketByThread returns the most recently updated ticket for a mail
// thread, or nil if the thread has no ticket yet.
func (d *DB) TicketByThread(threadID string) (*types.Ticket, error) {
	if threadID == "" {
		return nil, nil
	}
	var ticketID string
	err := d.conn.QueryRow(`
		SELECT ticket_id FROM tickets
		WHERE thread_id = ?
		ORDER BY last_update DESC
		LIMIT 1`, threadID).Scan(&ticketID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.GetTicket(ticketID)
}

// LastIntent returns the current intent of a ticket, or "" if the
// ticket does not exist.
func (d *DB) LastIntent(ticketID string) (types.Intent, error) {
	var intent string
	err := d.conn.QueryRow(
		"SELECT current_intent FROM tickets WHERE ticket_id = ?", ticketID).Scan(&intent)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return types.ParseIntent(intent)
}

// AppendEntry appends one conversation turn. Incoming entries carry an
// intent and move the ticket's current_intent with them; outgoing
// entries only bump last_update. Entry and ticket update commit in one
// transaction so the current-intent invariant holds.
func (d *DB) AppendEntry(e *types.ConversationEntry) error {
	var entities any
	if len(e.Entities) > 0 {
		raw, err := json.Marshal(e.Entities)
		if err != nil {
			return fmt.Errorf("encode entities: %w", err)
		}
		entities = string(raw)
	}
	if e.Timestamp == "" {
		e.Timestamp = Now()
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO conversation_entries
			(ticket_id, direction, timestamp, sender, body, intent, entities, message_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TicketID, e.Direction, e.Timestamp, nullStr(e.Sender), e.Body,
		nullStr(string(e.Intent)), entities, nullStr(e.MessageID),
	); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	if e.Direction == types.DirectionIncoming && e.Intent != "" {
		if _, err := tx.Exec(
			"UPDATE tickets SET current_intent = ?, last_update = ? WHERE ticket_id = ?",
			string(e.Intent), Now(), e.TicketID,
		); err != nil {
			return fmt.Errorf("update ticket intent: %w", err)
		}
	} else {
		if _, err := tx.Exec(
			"UPDATE tickets SET last_update = ? WHERE ticket_id = ?",
			Now(), e.TicketID,
		); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
	}

	return tx.Commit()
}

// Entries returns a ticket's full conversation history in append order.
func (d *DB) Entries(ticketID string) ([]*types.ConversationEntry, error) {
	rows, err := d.conn.Query(`
		SELECT ticket_id, direction, timestamp, sender, body, intent, entities, message_id
		FROM conversation_entries
		WHERE ticket_id = ?
		ORDER BY seq ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// RecentEntries returns the last n entries for a ticket, oldest first.
func (d *DB) RecentEntries(ticketID string, n int) ([]*types.ConversationEntry, error) {
	rows, err := d.conn.Query(`
		SELECT ticket_id, direction, timestamp, sender, body, intent, entities, message_id
		FROM (
			SELECT seq, ticket_id, direction, timestamp, sender, body, intent, entities, message_id
			FROM conversation_entries
			WHERE ticket_id = ?
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC`, ticketID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// MessageEntryCount returns how many conversation entries reference a
// provider message ID.
func (d *DB) MessageEntryCount(messageID string) int {
	var n int
	d.conn.QueryRow(
		"SELECT COUNT(*) FROM conversation_entries WHERE message_id = ?", messageID).Scan(&n)
	return n
}

func scanEntries(rows *sql.Rows) ([]*types.ConversationEntry, error) {
	var result []*types.ConversationEntry
	for rows.Next() {
		e := &types.ConversationEntry{}
		var sender, intent, entities, messageID sql.NullString
		if err := rows.Scan(
			&e.TicketID, &e.Direction, &e.Timestamp, &sender, &e.Body,
			&intent, &entities, &messageID,
		); err != nil {
			return nil, err
		}
		e.Sender = sender.String
		e.MessageID = messageID.String
		if intent.Valid {
			parsed, err := types.ParseIntent(intent.String)
			if err != nil {
				return nil, err
			}
			e.Intent = parsed
		}
		if entities.Valid && entities.String != "" {
			if err := json.Unmarshal([]byte(entities.String), &e.Entities); err != nil {
				return nil, fmt.Errorf("decode entities: %w", err)
			}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// SetEscalationLevel updates a ticket's escalation level.
func (d *DB) SetEscalationLevel(ticketID string, level types.EscalationLevel) error {
	res, err := d.conn.Exec(
		"UPDATE tickets SET escalation_level = ?, last_update = ? WHERE ticket_id = ?",
		string(level), Now(), ticketID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("ticket %q not found", ticketID)
	}
	return nil
}

// SetPriority updates a ticket's priority.
func (d *DB) SetPriority(ticketID, priority string) error {
	if !types.IsValidPriority(priority) {
		return fmt.Errorf("invalid priority %q", priority)
	}
	res, err := d.conn.Exec(
		"UPDATE tickets SET priority = ?, last_update = ? WHERE ticket_id = ?",
		priority, Now(), ticketID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("ticket %q not found", ticketID)
	}
	return nil
}

// ListTickets returns tickets ordered by last update, newest first.
func (d *DB) ListTickets(limit int) ([]*types.Ticket, error) {
	query := `
		SELECT t.ticket_id, t.subject, t.requester, t.thread_id, t.description,
		       t.current_intent, t.priority, t.escalation_level, t.created_at, t.last_update,
		       (SELECT COUNT(*) FROM conversation_entries e WHERE e.ticket_id = t.ticket_id)
		FROM tickets t
		ORDER BY t.last_update DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := d.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*types.Ticket
	for rows.Next() {
		t := &types.Ticket{}
		var threadID, description sql.NullString
		var intent, level string
		if err := rows.Scan(
			&t.TicketID, &t.Subject, &t.Requester, &threadID, &description,
			&intent, &t.Priority, &level, &t.CreatedAt, &t.LastUpdate, &t.EntryCount,
		); err != nil {
			return nil, err
		}
		t.ThreadID = threadID.String
		t.Description = description.String
		if t.CurrentIntent, err = types.ParseIntent(intent); err != nil {
			return nil, err
		}
		if t.EscalationLevel, err = types.ParseLevel(level); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// TicketCount returns the total number of tickets.
func (d *DB) TicketCount() int {
	var n int
	d.conn.QueryRow("SELECT COUNT(*) FROM tickets").Scan(&n)
	return n
}
