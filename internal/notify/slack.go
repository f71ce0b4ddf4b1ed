// Package notify posts escalation alerts to a Slack incoming webhook.
// Notifications are best effort: the escalation record is the source
// of truth, the alert is a convenience for the on-call agent.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/openhelpdesk/deskd/internal/types"
)

// Slack posts messages to an incoming webhook URL.
type Slack struct {
	webhookURL    string
	httpClient    *http.Client
	retryAttempts int
}

type slackMessage struct {
	Text string `json:"text"`
}

// NewSlack builds a webhook client. Zero values get sane defaults.
func NewSlack(webhookURL string, timeout time.Duration, retryAttempts int) *Slack {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	return &Slack{
		webhookURL:    webhookURL,
		httpClient:    &http.Client{Timeout: timeout},
		retryAttempts: retryAttempts,
	}
}

// Notify formats and posts an escalation event.
func (s *Slack) Notify(ev *types.EscalationEvent) error {
	text := fmt.Sprintf(":rotating_light: Ticket %s escalated %s → %s (%s)",
		ev.TicketID, ev.FromLevel, ev.ToLevel, ev.Reason)
	if ev.Details != "" {
		text += "\n> " + ev.Details
	}
	return s.send(text)
}

// Test posts a throwaway message so setup problems surface early.
func (s *Slack) Test() error {
	return s.send("deskd escalation notifications are configured")
}

func (s *Slack) send(text string) error {
	payload, err := json.Marshal(slackMessage{Text: text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	return fmt.Errorf("failed after %d attempts: %w", s.retryAttempts, lastErr)
}
