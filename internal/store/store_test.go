package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhelpdesk/deskd/internal/types"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetTicket(t *testing.T) {
	db := testDB(t)

	id, err := db.CreateTicket(&types.Ticket{
		Subject:       "Cannot log in",
		Requester:     "alice@example.com",
		ThreadID:      "thread-1",
		Description:   "I cannot log in to my account",
		CurrentIntent: types.IntentGeneralQuery,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := db.GetTicket(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Cannot log in", got.Subject)
	assert.Equal(t, "alice@example.com", got.Requester)
	assert.Equal(t, types.IntentGeneralQuery, got.CurrentIntent)
	assert.Equal(t, types.Level1, got.EscalationLevel)
	assert.Equal(t, types.PriorityNormal, got.Priority)
	assert.NotEmpty(t, got.CreatedAt)
	assert.Equal(t, 0, got.EntryCount)
}

func TestGetTicketMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetTicket("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTicketByThread(t *testing.T) {
	db := testDB(t)

	_, err := db.CreateTicket(&types.Ticket{
		TicketID:      "t1",
		Subject:       "first",
		Requester:     "a@example.com",
		ThreadID:      "thr",
		CurrentIntent: types.IntentGeneralQuery,
		LastUpdate:    "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	_, err = db.CreateTicket(&types.Ticket{
		TicketID:      "t2",
		Subject:       "second",
		Requester:     "a@example.com",
		ThreadID:      "thr",
		CurrentIntent: types.IntentBankStatement,
		LastUpdate:    "2026-02-01T00:00:00Z",
	})
	require.NoError(t, err)

	got, err := db.TicketByThread("thr")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "t2", got.TicketID, "most recently updated ticket wins")

	none, err := db.TicketByThread("elsewhere")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAppendEntryMovesCurrentIntent(t *testing.T) {
	db := testDB(t)

	id, err := db.CreateTicket(&types.Ticket{
		Subject:       "statements",
		Requester:     "a@example.com",
		CurrentIntent: types.IntentBankStatement,
	})
	require.NoError(t, err)

	require.NoError(t, db.AppendEntry(&types.ConversationEntry{
		TicketID:  id,
		Direction: types.DirectionIncoming,
		Sender:    "a@example.com",
		Body:      "please send my statements",
		Intent:    types.IntentBankStatement,
		Entities:  map[string]string{"months": "6"},
		MessageID: "m1",
	}))

	// Incoming entry with a different intent moves current_intent.
	require.NoError(t, db.AppendEntry(&types.ConversationEntry{
		TicketID:  id,
		Direction: types.DirectionIncoming,
		Sender:    "a@example.com",
		Body:      "actually I need to reset my password",
		Intent:    types.IntentPasswordUpdate,
		MessageID: "m2",
	}))

	got, err := db.GetTicket(id)
	require.NoError(t, err)
	assert.Equal(t, types.IntentPasswordUpdate, got.CurrentIntent)
	assert.Equal(t, 2, got.EntryCount)

	// Outgoing entries never move the intent.
	require.NoError(t, db.AppendEntry(&types.ConversationEntry{
		TicketID:  id,
		Direction: types.DirectionOutgoing,
		Body:      "here is your reset link",
	}))

	got, err = db.GetTicket(id)
	require.NoError(t, err)
	assert.Equal(t, types.IntentPasswordUpdate, got.CurrentIntent)

	entries, err := db.Entries(id)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "6", entries[0].Entities["months"])
	assert.Equal(t, "m2", entries[1].MessageID)
	assert.Equal(t, types.DirectionOutgoing, entries[2].Direction)
}

func TestRecentEntries(t *testing.T) {
	db := testDB(t)

	id, err := db.CreateTicket(&types.Ticket{
		Subject:       "chatty",
		Requester:     "a@example.com",
		CurrentIntent: types.IntentGeneralQuery,
	})
	require.NoError(t, err)

	for _, body := range []string{"one", "two", "three", "four"} {
		require.NoError(t, db.AppendEntry(&types.ConversationEntry{
			TicketID:  id,
			Direction: types.DirectionIncoming,
			Body:      body,
			Intent:    types.IntentGeneralQuery,
		}))
	}

	recent, err := db.RecentEntries(id, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Body, "oldest of the window first")
	assert.Equal(t, "four", recent[1].Body)
}

func TestProcessedLedger(t *testing.T) {
	db := testDB(t)

	assert.False(t, db.IsProcessed("m1"))
	require.NoError(t, db.MarkProcessed("m1"))
	assert.True(t, db.IsProcessed("m1"))

	// Re-marking is a no-op, not an error.
	require.NoError(t, db.MarkProcessed("m1"))
	assert.Equal(t, 1, db.ProcessedCount())
}

func TestEscalationLog(t *testing.T) {
	db := testDB(t)

	id, err := db.CreateTicket(&types.Ticket{
		Subject:       "urgent",
		Requester:     "a@example.com",
		CurrentIntent: types.IntentUrgentHuman,
	})
	require.NoError(t, err)

	assert.False(t, db.HasEscalation(id, types.Level2))

	require.NoError(t, db.AppendEscalation(&types.EscalationEvent{
		TicketID:  id,
		FromLevel: types.Level1,
		ToLevel:   types.Level2,
		Reason:    types.ReasonComplexity,
		Details:   "6 interactions at level1",
	}))

	assert.True(t, db.HasEscalation(id, types.Level2))
	assert.False(t, db.HasEscalation(id, types.Level3))

	events, err := db.Escalations(id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.ReasonComplexity, events[0].Reason)
	assert.NotEmpty(t, events[0].Timestamp)
}

func TestDraftStore(t *testing.T) {
	db := testDB(t)

	d := &types.Draft{
		DraftID:     "d1",
		TicketID:    "t1",
		ToAddress:   "a@example.com",
		Subject:     "Re: statements",
		Body:        "attached",
		Attachments: []string{"one.pdf", "two.pdf"},
		Status:      types.DraftPendingReview,
		CreatedAt:   "2026-08-01T00:00:00Z",
	}
	require.NoError(t, db.InsertDraft(d))

	got, err := db.GetDraft("d1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"one.pdf", "two.pdf"}, got.Attachments)
	assert.Equal(t, types.DraftPendingReview, got.Status)

	require.NoError(t, db.SetDraftStatus("d1", types.DraftApproved, "looks good"))
	got, err = db.GetDraft("d1")
	require.NoError(t, err)
	assert.Equal(t, types.DraftApproved, got.Status)
	assert.Equal(t, "looks good", got.ReviewerNotes)
	assert.NotEmpty(t, got.ReviewedAt)
}

func TestDeleteStaleDraftsOnlyPending(t *testing.T) {
	db := testDB(t)

	old := "2026-01-01T00:00:00Z"
	require.NoError(t, db.InsertDraft(&types.Draft{
		DraftID: "stale", ToAddress: "a@x.com", Subject: "s", Body: "b",
		Status: types.DraftPendingReview, CreatedAt: old,
	}))
	require.NoError(t, db.InsertDraft(&types.Draft{
		DraftID: "kept-approved", ToAddress: "a@x.com", Subject: "s", Body: "b",
		Status: types.DraftApproved, CreatedAt: old,
	}))
	require.NoError(t, db.InsertDraft(&types.Draft{
		DraftID: "kept-fresh", ToAddress: "a@x.com", Subject: "s", Body: "b",
		Status: types.DraftPendingReview, CreatedAt: Now(),
	}))

	cutoff, err := time.Parse(time.RFC3339, "2026-06-01T00:00:00Z")
	require.NoError(t, err)
	n, err := db.DeleteStaleDrafts(cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gone, err := db.GetDraft("stale")
	require.NoError(t, err)
	assert.Nil(t, gone)
	for _, id := range []string{"kept-approved", "kept-fresh"} {
		kept, err := db.GetDraft(id)
		require.NoError(t, err)
		assert.NotNil(t, kept, "%s should survive cleanup", id)
	}
}

func TestKnowledgeSearch(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.InsertKBChunk(&KBChunk{
		Source: "faq.md", ChunkIndex: 0,
		Content: "Statements can be downloaded from the account portal under Documents.",
	}))
	require.NoError(t, db.InsertKBChunk(&KBChunk{
		Source: "faq.md", ChunkIndex: 1,
		Content: "Password resets expire after thirty minutes.",
	}))

	chunks, err := db.SearchKB(`"password" OR "reset"`, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "faq.md", chunks[0].Source)
	assert.Contains(t, chunks[0].Content, "Password resets")

	assert.Equal(t, 2, db.KBDocumentCount())
}
