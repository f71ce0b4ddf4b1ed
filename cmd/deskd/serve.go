package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openhelpdesk/deskd/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server and mailbox poller",
	Long: `Runs the long-lived service: polls the mailbox on an interval,
accepts Gmail push webhooks and manual triggers, and sweeps escalation
rules periodically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch, err := buildOrchestrator(ctx)
		if err != nil {
			return err
		}
		src, err := buildMailClient(ctx)
		if err != nil {
			return err
		}

		// Webhooks coalesce into the same channel the interval poller
		// drains; a full buffer means a poll is already pending.
		triggers := make(chan struct{}, 1)
		trigger := func() {
			select {
			case triggers <- struct{}{}:
			default:
			}
		}

		srv := server.New(cfg.Server.Addr, db, trigger, logger)
		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()

		pollTicker := time.NewTicker(cfg.Gmail.PollInterval.Std())
		defer pollTicker.Stop()
		sweepTicker := time.NewTicker(cfg.Pipeline.EscalationSweep.Std())
		defer sweepTicker.Stop()

		runPoll := func() {
			stats, err := orch.ProcessFromSource(ctx, src)
			if err != nil {
				logger.Error("poll cycle failed", zap.Error(err))
				return
			}
			if stats.Checked > 0 {
				logger.Info("poll cycle complete",
					zap.Int("checked", stats.Checked),
					zap.Int("processed", stats.Processed),
					zap.Int("skipped", stats.Skipped),
					zap.Int("drafted", stats.Drafted),
					zap.Int("failed", stats.Failed))
			}
		}

		logger.Info("deskd serving",
			zap.String("addr", cfg.Server.Addr),
			zap.Duration("poll_interval", cfg.Gmail.PollInterval.Std()))
		runPoll()

		for {
			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutCtx)
			case err := <-errc:
				return err
			case <-triggers:
				runPoll()
			case <-pollTicker.C:
				runPoll()
			case <-sweepTicker.C:
				n, err := orch.SweepEscalations(ctx)
				if err != nil {
					logger.Error("escalation sweep failed", zap.Error(err))
				} else if n > 0 {
					logger.Info("escalation sweep complete", zap.Int("escalated", n))
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
