package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openhelpdesk/deskd/internal/display"
)

var ticketsLimit int

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List tickets",
	RunE: func(cmd *cobra.Command, args []string) error {
		tickets, err := db.ListTickets(ticketsLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(tickets)
		}

		if len(tickets) == 0 {
			fmt.Println("No tickets.")
			return nil
		}

		display.Header(fmt.Sprintf("Tickets (%d)", len(tickets)))
		for _, t := range tickets {
			fmt.Printf("%s %s %-10s %-9s %s  %s\n",
				display.PriorityDot(t.Priority),
				display.PriorityLabel(t.Priority),
				t.TicketID,
				display.LevelLabel(t.EscalationLevel),
				display.Truncate(t.Subject, 48),
				display.Dim.Render(display.TimeAgo(t.LastUpdate)))
		}
		return nil
	},
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <ticket-id>",
	Short: "Show a ticket with its conversation and escalation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := db.GetTicket(args[0])
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("ticket %s not found", args[0])
		}

		entries, err := db.Entries(t.TicketID)
		if err != nil {
			return err
		}
		events, err := db.Escalations(t.TicketID)
		if err != nil {
			return err
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"ticket":       t,
				"conversation": entries,
				"escalations":  events,
			})
		}

		display.Header(fmt.Sprintf("%s  %s", t.TicketID, t.Subject))
		fmt.Printf("  %s %s  level %s  intent %s\n",
			display.PriorityDot(t.Priority),
			display.PriorityLabel(t.Priority),
			display.LevelLabel(t.EscalationLevel),
			string(t.CurrentIntent))
		fmt.Printf("  %s  opened %s, updated %s\n\n",
			display.Dim.Render(t.Requester),
			display.TimeAgo(t.CreatedAt),
			display.TimeAgo(t.LastUpdate))

		if len(entries) > 0 {
			display.SubHeader("Conversation")
			for i, e := range entries {
				connector := "├─"
				if i == 0 {
					connector = "┌─"
				}
				if i == len(entries)-1 {
					connector = "└─"
				}
				who := e.Sender
				if e.Direction != "incoming" {
					who = "support"
				}
				display.ConversationTree(connector, who, e.Timestamp, e.Body)
			}
			fmt.Println()
		}

		if len(events) > 0 {
			display.SubHeader("Escalations")
			for _, ev := range events {
				fmt.Printf("  %s → %s  %s  %s\n",
					display.LevelLabel(ev.FromLevel),
					display.LevelLabel(ev.ToLevel),
					string(ev.Reason),
					display.Dim.Render(display.TimeAgo(ev.Timestamp)))
			}
		}
		return nil
	},
}

func init() {
	ticketsCmd.Flags().IntVar(&ticketsLimit, "limit", 50, "Maximum tickets to list (0 for all)")
	ticketsCmd.AddCommand(ticketsShowCmd)
	rootCmd.AddCommand(ticketsCmd)
}
