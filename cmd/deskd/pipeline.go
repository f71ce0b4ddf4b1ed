package main

import (
	"context"
	"fmt"

	"github.com/openhelpdesk/deskd/internal/auth"
	"github.com/openhelpdesk/deskd/internal/classify"
	"github.com/openhelpdesk/deskd/internal/draft"
	"github.com/openhelpdesk/deskd/internal/escalate"
	"github.com/openhelpdesk/deskd/internal/handler"
	"github.com/openhelpdesk/deskd/internal/ingest"
	"github.com/openhelpdesk/deskd/internal/kb"
	"github.com/openhelpdesk/deskd/internal/mail"
	"github.com/openhelpdesk/deskd/internal/notify"
	"github.com/openhelpdesk/deskd/internal/router"
)

// buildOrchestrator wires the full ingestion pipeline from the loaded
// config and open database.
func buildOrchestrator(ctx context.Context) (*ingest.Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gemini, err := classify.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}

	var notifier escalate.Notifier
	if cfg.Slack.WebhookURL != "" {
		notifier = notify.NewSlack(cfg.Slack.WebhookURL, cfg.Slack.Timeout.Std(), cfg.Slack.RetryAttempts)
	}

	retriever := kb.New(db)
	handlers := handler.NewRegistry(retriever, gemini, db)
	escalator := escalate.New(db, notifier, logger)
	drafts := draft.NewQueue(db, logger)
	rt := router.New(db)

	return ingest.New(db, rt, gemini, handlers, escalator, drafts, ingest.Config{
		Workers:          cfg.Pipeline.Workers,
		ClassifyTimeout:  cfg.Gemini.Timeout.Std(),
		Retry:            ingest.RetryPolicy{MaxAttempts: cfg.Pipeline.RetryAttempts, BaseDelay: cfg.Pipeline.RetryBaseDelay.Std()},
		BreakerThreshold: cfg.Pipeline.BreakerThreshold,
		BreakerCooldown:  cfg.Pipeline.BreakerCooldown.Std(),
	}, logger), nil
}

// buildMailClient authenticates against Gmail using the configured
// credentials directory.
func buildMailClient(ctx context.Context) (*mail.Client, error) {
	if cfg.Gmail.CredentialsPath == "" {
		return nil, fmt.Errorf("gmail credentials path is not configured (gmail.credentials_path or DESKD_GMAIL_CREDENTIALS)")
	}
	svc, err := auth.GmailService(ctx, cfg.Gmail.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("authenticate gmail: %w", err)
	}
	return mail.NewClient(svc, cfg.Gmail.Query, cfg.Gmail.MaxResults), nil
}
