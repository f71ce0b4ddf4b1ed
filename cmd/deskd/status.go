package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openhelpdesk/deskd/internal/display"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and queue statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		draftCounts, err := db.DraftCountByStatus()
		if err != nil {
			return err
		}

		stats := map[string]any{
			"db_path":            db.Path(),
			"tickets":            db.TicketCount(),
			"processed_messages": db.ProcessedCount(),
			"kb_documents":       db.KBDocumentCount(),
			"drafts":             draftCounts,
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}

		display.Header("deskd status")
		fmt.Printf("  database:           %s\n", db.Path())
		fmt.Printf("  tickets:            %d\n", db.TicketCount())
		fmt.Printf("  processed messages: %d\n", db.ProcessedCount())
		fmt.Printf("  kb documents:       %d\n", db.KBDocumentCount())
		if len(draftCounts) > 0 {
			display.SubHeader("  drafts")
			for _, status := range []string{"pending_review", "approved", "rejected", "sent"} {
				if n, ok := draftCounts[status]; ok {
					fmt.Printf("    %s %d\n", display.StatusLabel(status), n)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
