package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openhelpdesk/deskd/internal/display"
)

var escalationsTicket string

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "Show the escalation audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := db.Escalations(escalationsTicket)
		if err != nil {
			return err
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(events)
		}

		if len(events) == 0 {
			fmt.Println("No escalations.")
			return nil
		}

		display.Header(fmt.Sprintf("Escalations (%d)", len(events)))
		for _, ev := range events {
			line := fmt.Sprintf("%-10s %s → %s  %-18s %s",
				ev.TicketID,
				display.LevelLabel(ev.FromLevel),
				display.LevelLabel(ev.ToLevel),
				string(ev.Reason),
				display.Dim.Render(display.TimeAgo(ev.Timestamp)))
			fmt.Println(line)
			if ev.Details != "" {
				fmt.Printf("           %s\n", display.Dim.Render(display.Truncate(ev.Details, 70)))
			}
		}
		return nil
	},
}

func init() {
	escalationsCmd.Flags().StringVar(&escalationsTicket, "ticket", "", "Only show events for one ticket")
	rootCmd.AddCommand(escalationsCmd)
}
