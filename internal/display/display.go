// Package display provides terminal formatting for deskd output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/openhelpdesk/deskd/internal/types"
)

var (
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626")).Bold(true)
	urgentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	lowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))

	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	approvedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	sentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// PriorityDot returns a colored dot for a ticket priority.
func PriorityDot(priority string) string {
	switch priority {
	case types.PriorityCritical:
		return criticalStyle.Render("●")
	case types.PriorityUrgent:
		return urgentStyle.Render("●")
	case types.PriorityHigh:
		return highStyle.Render("●")
	case types.PriorityNormal:
		return normalStyle.Render("○")
	case types.PriorityLow:
		return lowStyle.Render("○")
	default:
		return Dim.Render("·")
	}
}

// PriorityLabel returns a styled, padded priority label.
func PriorityLabel(priority string) string {
	label := fmt.Sprintf("%-8s", strings.ToUpper(priority))
	switch priority {
	case types.PriorityCritical:
		return criticalStyle.Render(label)
	case types.PriorityUrgent:
		return urgentStyle.Render(label)
	case types.PriorityHigh:
		return highStyle.Render(label)
	case types.PriorityNormal:
		return normalStyle.Render(label)
	case types.PriorityLow:
		return lowStyle.Render(label)
	default:
		return label
	}
}

// StatusLabel returns a styled draft status.
func StatusLabel(status string) string {
	label := fmt.Sprintf("%-14s", status)
	switch status {
	case types.DraftPendingReview:
		return pendingStyle.Render(label)
	case types.DraftApproved:
		return approvedStyle.Render(label)
	case types.DraftRejected:
		return rejectedStyle.Render(label)
	case types.DraftSent:
		return sentStyle.Render(label)
	default:
		return label
	}
}

// LevelLabel styles an escalation level; manager and urgent stand out.
func LevelLabel(level types.EscalationLevel) string {
	label := string(level)
	switch level {
	case types.LevelUrgent:
		return urgentStyle.Render(label)
	case types.LevelManager:
		return criticalStyle.Render(label)
	default:
		return normalStyle.Render(label)
	}
}

// TimeAgo formats an RFC 3339 timestamp as a relative time.
func TimeAgo(isoDate string) string {
	if isoDate == "" {
		return ""
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z", "2006-01-02 15:04:05", time.RFC3339Nano} {
		t, err = time.Parse(layout, isoDate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return isoDate[:min(10, len(isoDate))]
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Truncate shortens a string to maxLen, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	fmt.Println(Success.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+fmt.Sprintf(format, args...))
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(title string) {
	fmt.Println(Muted.Render(title))
}

// ConversationTree prints one conversation entry in a tree-style
// format. connector is one of "┌─", "├─", "└─".
func ConversationTree(connector, who, date, body string) {
	fmt.Printf("  %s %s  ·  %s\n", Muted.Render(connector), Bold.Render(who), Dim.Render(TimeAgo(date)))
	if body == "" {
		return
	}
	prefix := "  │  "
	if connector == "└─" {
		prefix = "     "
	}
	lines := strings.Split(strings.TrimSpace(body), "\n")
	maxLines := 4
	for i, line := range lines {
		if i >= maxLines {
			fmt.Printf("%s%s\n", Muted.Render(prefix), Dim.Render(fmt.Sprintf("... (%d more lines)", len(lines)-maxLines)))
			break
		}
		fmt.Printf("%s%s\n", Muted.Render(prefix), Truncate(strings.TrimSpace(line), 80))
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
