// Package server exposes the inbound HTTP surface: the Gmail Pub/Sub
// push webhook, a manual trigger, and health endpoints. Webhooks only
// nudge the poller; Pub/Sub notifications carry a history marker, not
// message content, so every nudge resolves to a mailbox poll.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openhelpdesk/deskd/internal/store"
)

// pushEnvelope is the Pub/Sub push wrapper Gmail watch notifications
// arrive in.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// gmailNotification is the payload inside the envelope's data field.
type gmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Server handles webhook and health traffic. trigger is invoked for
// every accepted notification; it must not block.
type Server struct {
	db      *store.DB
	trigger func()
	log     *zap.Logger
	http    *http.Server
}

// New builds the server. trigger is called on each Gmail push or
// manual trigger to request a poll cycle.
func New(addr string, db *store.DB, trigger func(), log *zap.Logger) *Server {
	s := &Server{db: db, trigger: trigger, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/gmail", s.handleGmailPush)
	mux.HandleFunc("POST /webhooks/manual-trigger", s.handleManualTrigger)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("webhook server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleGmailPush(w http.ResponseWriter, r *http.Request) {
	var env pushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.log.Warn("bad push envelope", zap.Error(err))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// The notification body is informational only; a poll always
	// follows regardless of what it decodes to.
	var note gmailNotification
	if raw, err := base64.StdEncoding.DecodeString(env.Message.Data); err == nil {
		_ = json.Unmarshal(raw, &note)
	}
	s.log.Info("gmail push received",
		zap.String("pubsub_message", env.Message.MessageID),
		zap.String("mailbox", note.EmailAddress),
		zap.Uint64("history_id", note.HistoryID))

	s.trigger()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleManualTrigger(w http.ResponseWriter, r *http.Request) {
	s.log.Info("manual trigger received", zap.String("remote", r.RemoteAddr))
	s.trigger()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "triggered"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Underlying().PingContext(r.Context()); err != nil {
		s.log.Warn("readiness check failed", zap.Error(err))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}
