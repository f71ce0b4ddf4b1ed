package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhelpdesk/deskd/internal/types"
)

type fakeLookup struct {
	byID     map[string]*types.Ticket
	byThread map[string]*types.Ticket
}

func (f *fakeLookup) GetTicket(ticketID string) (*types.Ticket, error) {
	return f.byID[ticketID], nil
}

func (f *fakeLookup) TicketByThread(threadID string) (*types.Ticket, error) {
	return f.byThread[threadID], nil
}

func TestExtractHint(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{"bracket tag", "Re: [TICKET-42] login broken", "", "42"},
		{"bracket tag lowercase", "re: [ticket-ab12] hello", "", "ab12"},
		{"hash reference", "about my case", "See #1234 please", "1234"},
		{"ticket colon", "", "Ticket: 77", "77"},
		{"id colon", "", "my ID: beef99", "beef99"},
		{"subject wins over body", "[TICKET-1]", "also mentions #2", "1"},
		{"no hint", "hello", "just a question", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractHint(tc.subject, tc.body))
		})
	}
}

func TestRoute(t *testing.T) {
	existing := &types.Ticket{
		TicketID:      "42",
		CurrentIntent: types.IntentBankStatement,
	}
	threaded := &types.Ticket{
		TicketID:      "t-thread",
		CurrentIntent: types.IntentGeneralQuery,
	}
	r := New(&fakeLookup{
		byID:     map[string]*types.Ticket{"42": existing},
		byThread: map[string]*types.Ticket{"thr-9": threaded},
	})

	result := func(intent types.Intent) *types.IntentResult {
		return &types.IntentResult{Intent: intent, Confidence: 0.9}
	}

	t.Run("no hint creates", func(t *testing.T) {
		dec, err := r.Route(&types.Message{ID: "m1", Sender: "a@x.com", Subject: "hello", Body: "hi"}, result(types.IntentGeneralQuery))
		require.NoError(t, err)
		assert.Equal(t, ActionCreate, dec.Action)
		assert.Empty(t, dec.TicketID)
	})

	t.Run("hint with matching intent appends", func(t *testing.T) {
		dec, err := r.Route(&types.Message{ID: "m2", Sender: "a@x.com", Subject: "[TICKET-42] statements"}, result(types.IntentBankStatement))
		require.NoError(t, err)
		assert.Equal(t, ActionAppend, dec.Action)
		assert.Equal(t, "42", dec.TicketID)
	})

	t.Run("intent drift creates", func(t *testing.T) {
		dec, err := r.Route(&types.Message{ID: "m3", Sender: "a@x.com", Subject: "[TICKET-42] new problem"}, result(types.IntentPasswordUpdate))
		require.NoError(t, err)
		assert.Equal(t, ActionCreate, dec.Action)
	})

	t.Run("hint to a missing ticket creates", func(t *testing.T) {
		dec, err := r.Route(&types.Message{ID: "m4", Sender: "a@x.com", Subject: "[TICKET-99] hello"}, result(types.IntentBankStatement))
		require.NoError(t, err)
		assert.Equal(t, ActionCreate, dec.Action)
	})

	t.Run("thread correlation appends without a tag", func(t *testing.T) {
		dec, err := r.Route(&types.Message{ID: "m5", Sender: "a@x.com", ThreadID: "thr-9", Subject: "following up"}, result(types.IntentGeneralQuery))
		require.NoError(t, err)
		assert.Equal(t, ActionAppend, dec.Action)
		assert.Equal(t, "t-thread", dec.TicketID)
	})

	t.Run("explicit tag beats thread", func(t *testing.T) {
		dec, err := r.Route(&types.Message{ID: "m6", Sender: "a@x.com", ThreadID: "thr-9", Subject: "[TICKET-42] more"}, result(types.IntentBankStatement))
		require.NoError(t, err)
		assert.Equal(t, ActionAppend, dec.Action)
		assert.Equal(t, "42", dec.TicketID)
	})
}

func TestLockScope(t *testing.T) {
	assert.Equal(t, "ticket:42", LockScope(&types.Message{Subject: "[TICKET-42] hi", Sender: "a@x.com", ThreadID: "thr"}))
	assert.Equal(t, "thread:thr", LockScope(&types.Message{Subject: "hello", Sender: "a@x.com", ThreadID: "thr"}))
	assert.Equal(t, "sender:a@x.com", LockScope(&types.Message{Subject: "hello", Sender: "a@x.com"}))
}
