package server

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openhelpdesk/deskd/internal/store"
)

func testServer(t *testing.T) (*Server, *int) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	triggered := 0
	s := New(":0", db, func() { triggered++ }, zap.NewNop())
	return s, &triggered
}

func TestGmailPush(t *testing.T) {
	s, triggered := testServer(t)

	data := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"support@example.com","historyId":42}`))
	body := `{"message":{"data":"` + data + `","messageId":"pm-1"},"subscription":"projects/x/subscriptions/y"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, *triggered)
}

func TestGmailPushBadBody(t *testing.T) {
	s, triggered := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, *triggered)
}

func TestGmailPushUndecodableDataStillTriggers(t *testing.T) {
	s, triggered := testServer(t)

	body := `{"message":{"data":"%%%not-base64%%%","messageId":"pm-2"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/gmail", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, *triggered)
}

func TestManualTrigger(t *testing.T) {
	s, triggered := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/manual-trigger", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, *triggered)
	assert.Contains(t, rec.Body.String(), "triggered")
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	s, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")
}

func TestMethodNotAllowed(t *testing.T) {
	s, triggered := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/gmail", nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 0, *triggered)
}
