package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openhelpdesk/deskd/internal/display"
	"github.com/openhelpdesk/deskd/internal/draft"
	"github.com/openhelpdesk/deskd/internal/store"
	"github.com/openhelpdesk/deskd/internal/types"
)

var (
	draftsStatus  string
	draftsTicket  string
	draftsNotes   string
	cleanupMaxAge time.Duration
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "List and review queued reply drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := draft.NewQueue(db, logger)
		drafts, err := q.List(draftsStatus, draftsTicket)
		if err != nil {
			return err
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(drafts)
		}

		if len(drafts) == 0 {
			fmt.Println("No drafts.")
			return nil
		}

		display.Header(fmt.Sprintf("Drafts (%d)", len(drafts)))
		for _, d := range drafts {
			fmt.Printf("%s %-36s %-10s %s  %s\n",
				display.StatusLabel(d.Status),
				d.DraftID,
				d.TicketID,
				display.Truncate(d.Subject, 40),
				display.Dim.Render(display.TimeAgo(d.CreatedAt)))
		}
		return nil
	},
}

var draftsApproveCmd = &cobra.Command{
	Use:   "approve <draft-id>",
	Short: "Approve a pending draft for sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := draft.NewQueue(db, logger)
		if err := q.UpdateStatus(args[0], types.DraftApproved, draftsNotes); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Draft %s approved", args[0])
		}
		return nil
	},
}

var draftsRejectCmd = &cobra.Command{
	Use:   "reject <draft-id>",
	Short: "Reject a pending draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := draft.NewQueue(db, logger)
		if err := q.UpdateStatus(args[0], types.DraftRejected, draftsNotes); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Draft %s rejected", args[0])
		}
		return nil
	},
}

var draftsSendCmd = &cobra.Command{
	Use:   "send <draft-id>",
	Short: "Send an approved draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendDraft(cmd, args[0])
	},
}

var draftsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stale unreviewed drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := draft.NewQueue(db, logger)
		maxAge := cleanupMaxAge
		if maxAge == 0 {
			maxAge = cfg.Drafts.MaxAge.Std()
		}
		n, err := q.CleanupOlderThan(maxAge)
		if err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Removed %d stale draft(s) older than %s", n, maxAge)
		}
		return nil
	},
}

func sendDraft(cmd *cobra.Command, draftID string) error {
	ctx := cmd.Context()
	q := draft.NewQueue(db, logger)

	d, err := q.Get(draftID)
	if err != nil {
		return err
	}
	if d.Status != types.DraftApproved {
		return fmt.Errorf("draft %s is %s, only approved drafts can be sent", draftID, d.Status)
	}

	client, err := buildMailClient(ctx)
	if err != nil {
		return err
	}
	if err := client.Send(ctx, d); err != nil {
		return err
	}
	if err := q.UpdateStatus(draftID, types.DraftSent, ""); err != nil {
		return fmt.Errorf("draft delivered but status update failed: %w", err)
	}

	// Record the outgoing reply on the ticket's conversation.
	if d.TicketID != "" {
		entry := &types.ConversationEntry{
			TicketID:  d.TicketID,
			Direction: types.DirectionOutgoing,
			Timestamp: store.Now(),
			Body:      d.Body,
		}
		if err := db.AppendEntry(entry); err != nil {
			display.ErrorMsg("sent, but could not record conversation entry: %v", err)
		}
	}

	if !quietFlag {
		display.SuccessMsg("Draft %s sent to %s", draftID, d.ToAddress)
	}
	return nil
}

func init() {
	draftsCmd.Flags().StringVar(&draftsStatus, "status", "", "Filter by status (pending_review, approved, rejected, sent)")
	draftsCmd.Flags().StringVar(&draftsTicket, "ticket", "", "Filter by ticket ID")
	draftsApproveCmd.Flags().StringVar(&draftsNotes, "notes", "", "Reviewer notes")
	draftsRejectCmd.Flags().StringVar(&draftsNotes, "notes", "", "Reviewer notes")
	draftsCleanupCmd.Flags().DurationVar(&cleanupMaxAge, "older-than", 0, "Age cutoff (default: configured drafts.max_age)")

	draftsCmd.AddCommand(draftsApproveCmd)
	draftsCmd.AddCommand(draftsRejectCmd)
	draftsCmd.AddCommand(draftsSendCmd)
	draftsCmd.AddCommand(draftsCleanupCmd)
	rootCmd.AddCommand(draftsCmd)
}
