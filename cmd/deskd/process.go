package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openhelpdesk/deskd/internal/display"
	"github.com/openhelpdesk/deskd/internal/ingest"
	"github.com/openhelpdesk/deskd/internal/types"
)

var processFile string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one ingestion pass over the mailbox",
	Long: `Polls the mailbox once and runs every new message through the
pipeline. With --file, reads a JSON array of messages from disk instead
of Gmail, which is useful for replaying captured traffic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		orch, err := buildOrchestrator(ctx)
		if err != nil {
			return err
		}

		var stats *ingest.Stats
		if processFile != "" {
			data, err := os.ReadFile(processFile)
			if err != nil {
				return fmt.Errorf("read messages file: %w", err)
			}
			var msgs []*types.Message
			if err := json.Unmarshal(data, &msgs); err != nil {
				return fmt.Errorf("parse messages file: %w", err)
			}
			stats, err = orch.ProcessBatch(ctx, msgs)
			if err != nil {
				return err
			}
		} else {
			src, err := buildMailClient(ctx)
			if err != nil {
				return err
			}
			stats, err = orch.ProcessFromSource(ctx, src)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}
		if !quietFlag {
			display.SuccessMsg("%d checked: %d processed, %d skipped, %d drafted, %d failed",
				stats.Checked, stats.Processed, stats.Skipped, stats.Drafted, stats.Failed)
		}
		if stats.Failed > 0 {
			return fmt.Errorf("%d message(s) failed and remain unprocessed", stats.Failed)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processFile, "file", "", "Process messages from a JSON file instead of Gmail")
	rootCmd.AddCommand(processCmd)
}
