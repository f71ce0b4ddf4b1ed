package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhelpdesk/deskd/internal/types"
)

func TestNotifyPostsEscalation(t *testing.T) {
	var got slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, time.Second, 1)
	err := s.Notify(&types.EscalationEvent{
		TicketID:  "t1",
		FromLevel: types.Level1,
		ToLevel:   types.Level2,
		Reason:    types.ReasonComplexity,
		Details:   "6 interactions at level1",
	})
	require.NoError(t, err)
	assert.Contains(t, got.Text, "t1")
	assert.Contains(t, got.Text, "level1")
	assert.Contains(t, got.Text, "level2")
	assert.Contains(t, got.Text, "complexity")
	assert.Contains(t, got.Text, "6 interactions")
}

func TestNotifyRetriesOnFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, time.Second, 3)
	err := s.Notify(&types.EscalationEvent{
		TicketID: "t1", FromLevel: types.Level1, ToLevel: types.Level2, Reason: types.ReasonResponseTime,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestNotifyGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, time.Second, 2)
	err := s.Notify(&types.EscalationEvent{
		TicketID: "t1", FromLevel: types.Level1, ToLevel: types.Level2, Reason: types.ReasonResponseTime,
	})
	assert.Error(t, err)
}
