// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/convo-recap/internal/db"
	"github.com/jonathan/convo-recap/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintTranscript outputs a short preview of the fetched transcript.
func (p *Printer) PrintTranscript(transcript *types.Transcript) {
	if transcript == nil || transcript.Empty() {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Conversation: %s\n", transcript.ConversationID))
	sb.WriteString(fmt.Sprintf("Turns: %d\n\n", len(transcript.Turns)))

	count := min(len(transcript.Turns), maxItemsToShow)
	for i := 0; i < count; i++ {
		turn := transcript.Turns[i]
		text := turn.Text
		if len(text) > 40 {
			text = text[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("  %s: %s\n", turn.Speaker, text))
	}
	if len(transcript.Turns) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more turns\n", len(transcript.Turns)-maxItemsToShow))
	}

	p.printBox("TRANSCRIPT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSummary outputs the structured summary.
func (p *Printer) PrintSummary(summary *types.Summary) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Topic:     %s\n", summary.Topic))
	sb.WriteString(fmt.Sprintf("Sentiment: %s\n", summary.Sentiment))

	if len(summary.KeyPoints) > 0 {
		sb.WriteString("\nKey Points:\n")
		count := min(len(summary.KeyPoints), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", summary.KeyPoints[i]))
		}
		if len(summary.KeyPoints) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(summary.KeyPoints)-maxItemsToShow))
		}
	}

	if len(summary.ActionItems) > 0 {
		sb.WriteString("\nAction Items:\n")
		for _, item := range summary.ActionItems {
			sb.WriteString(fmt.Sprintf("  • %s\n", item))
		}
	}

	p.printBox("SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRun outputs the current state of a processing run.
func (p *Printer) PrintRun(run *db.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Processing ID: %s\n", run.ProcessingID))
	sb.WriteString(fmt.Sprintf("Conversation:  %s\n", run.ConversationID))
	sb.WriteString(fmt.Sprintf("Status:        %s (%d%%)\n", run.Status, run.Progress))
	if run.CurrentStep != "" {
		sb.WriteString(fmt.Sprintf("Current step:  %s\n", run.CurrentStep))
	}
	if run.ErrorMessage != nil {
		sb.WriteString(fmt.Sprintf("Error:         %s\n", *run.ErrorMessage))
	}
	if run.TranscriptURL != nil {
		sb.WriteString(fmt.Sprintf("Transcript:    %s\n", *run.TranscriptURL))
	}
	if run.AudioURL != nil {
		sb.WriteString(fmt.Sprintf("Audio:         %s\n", *run.AudioURL))
	}
	if run.ReportURL != nil {
		sb.WriteString(fmt.Sprintf("Report:        %s\n", *run.ReportURL))
	}

	p.printBox("PROCESSING RUN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRuns outputs a compact table of runs, one line each.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRuns(runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "No runs found.")
		return
	}

	fmt.Fprintf(p.out, "%-38s %-24s %-18s %s\n", "PROCESSING ID", "CONVERSATION", "STATUS", "CREATED")
	for _, run := range runs {
		fmt.Fprintf(p.out, "%-38s %-24s %-18s %s\n",
			run.ProcessingID, run.ConversationID, run.Status,
			run.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

// PrintAuditTrail outputs the audit events of a run in order.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintAuditTrail(events []db.AuditEvent) {
	if len(events) == 0 {
		fmt.Fprintln(p.out, "No audit events recorded.")
		return
	}

	for _, ev := range events {
		line := fmt.Sprintf("%s  %-20s %-18s %s",
			ev.CreatedAt.Format("15:04:05"), ev.EventType, ev.EventStatus, ev.StepName)
		if ev.RetryCount > 0 {
			line += fmt.Sprintf(" (retry %d)", ev.RetryCount)
		}
		fmt.Fprintln(p.out, line)
		if ev.Detail != "" {
			fmt.Fprintf(p.out, "          %s\n", ev.Detail)
		}
	}
}
