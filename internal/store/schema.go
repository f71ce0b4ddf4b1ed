package store

// Schema is the DDL for the deskd database.
const Schema = `
CREATE TABLE IF NOT EXISTS tickets (
    ticket_id        TEXT PRIMARY KEY,
    subject          TEXT NOT NULL,
    requester        TEXT NOT NULL,
    thread_id        TEXT,
    description      TEXT,
    current_intent   TEXT NOT NULL,
    priority         TEXT NOT NULL DEFAULT 'normal',
    escalation_level TEXT NOT NULL DEFAULT 'level1',
    created_at       TEXT NOT NULL,
    last_update      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_entries (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id  TEXT NOT NULL,
    direction  TEXT NOT NULL,
    timestamp  TEXT NOT NULL,
    sender     TEXT,
    body       TEXT NOT NULL,
    intent     TEXT,
    entities   TEXT,
    message_id TEXT,
    FOREIGN KEY (ticket_id) REFERENCES tickets(ticket_id)
);

CREATE TABLE IF NOT EXISTS escalation_events (
    id         TEXT PRIMARY KEY,
    ticket_id  TEXT NOT NULL,
    from_level TEXT NOT NULL,
    to_level   TEXT NOT NULL,
    reason     TEXT NOT NULL,
    details    TEXT,
    timestamp  TEXT NOT NULL,
    FOREIGN KEY (ticket_id) REFERENCES tickets(ticket_id)
);

CREATE TABLE IF NOT EXISTS drafts (
    draft_id       TEXT PRIMARY KEY,
    ticket_id      TEXT,
    to_address     TEXT NOT NULL,
    subject        TEXT NOT NULL,
    body           TEXT NOT NULL,
    attachments    TEXT,
    status         TEXT NOT NULL DEFAULT 'pending_review',
    created_at     TEXT NOT NULL,
    reviewed_at    TEXT,
    reviewer_notes TEXT
);

CREATE TABLE IF NOT EXISTS processed_messages (
    message_id   TEXT PRIMARY KEY,
    processed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS kb_documents (
    id          TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    content     TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS kb_search USING fts5(
    doc_id UNINDEXED,
    source UNINDEXED,
    content
);

CREATE INDEX IF NOT EXISTS idx_tickets_thread ON tickets(thread_id);
CREATE INDEX IF NOT EXISTS idx_tickets_requester ON tickets(requester);
CREATE INDEX IF NOT EXISTS idx_entries_ticket ON conversation_entries(ticket_id);
CREATE INDEX IF NOT EXISTS idx_events_ticket ON escalation_events(ticket_id);
CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
CREATE INDEX IF NOT EXISTS idx_drafts_ticket ON drafts(ticket_id);
`
