package draft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhelpdesk/deskd/internal/store"
	"github.com/openhelpdesk/deskd/internal/types"
)

func testQueue(t *testing.T) (*Queue, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewQueue(db, zap.NewNop()), db
}

func TestCreateStartsPending(t *testing.T) {
	q, _ := testQueue(t)

	id, err := q.Create("a@example.com", "Re: statements", "attached", "t1", []string{"jan.pdf"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	d, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.DraftPendingReview, d.Status)
	assert.Equal(t, "a@example.com", d.ToAddress)
	assert.Equal(t, "t1", d.TicketID)
	assert.Equal(t, []string{"jan.pdf"}, d.Attachments)
	assert.NotEmpty(t, d.CreatedAt)
}

func TestGetUnknown(t *testing.T) {
	q, _ := testQueue(t)

	_, err := q.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	q, _ := testQueue(t)

	id, err := q.Create("a@example.com", "Re: hello", "body", "", nil)
	require.NoError(t, err)

	t.Run("no-op transition is forbidden", func(t *testing.T) {
		err := q.UpdateStatus(id, types.DraftPendingReview, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("cannot send before approval", func(t *testing.T) {
		err := q.UpdateStatus(id, types.DraftSent, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("approve then send", func(t *testing.T) {
		require.NoError(t, q.UpdateStatus(id, types.DraftApproved, "ship it"))
		d, err := q.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "ship it", d.ReviewerNotes)

		require.NoError(t, q.UpdateStatus(id, types.DraftSent, ""))
	})

	t.Run("sent is terminal", func(t *testing.T) {
		err := q.UpdateStatus(id, types.DraftRejected, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := q.UpdateStatus("missing", types.DraftApproved, "")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid status string", func(t *testing.T) {
		err := q.UpdateStatus(id, "shipped", "")
		assert.Error(t, err)
	})
}

func TestNoReturnToPendingReview(t *testing.T) {
	q, _ := testQueue(t)

	id, err := q.Create("a@example.com", "Re: hi", "body", "", nil)
	require.NoError(t, err)
	require.NoError(t, q.UpdateStatus(id, types.DraftRejected, "tone"))

	err = q.UpdateStatus(id, types.DraftPendingReview, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCleanupOlderThan(t *testing.T) {
	q, db := testQueue(t)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	old := now.Add(-10 * 24 * time.Hour).Format(time.RFC3339)
	require.NoError(t, db.InsertDraft(&types.Draft{
		DraftID: "stale", ToAddress: "a@x.com", Subject: "s", Body: "b",
		Status: types.DraftPendingReview, CreatedAt: old,
	}))
	require.NoError(t, db.InsertDraft(&types.Draft{
		DraftID: "reviewed", ToAddress: "a@x.com", Subject: "s", Body: "b",
		Status: types.DraftApproved, CreatedAt: old,
	}))

	n, err := q.CleanupOlderThan(7 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = q.Get("stale")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = q.Get("reviewed")
	assert.NoError(t, err)
}
