package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/camuig/stock-watch/internal/monitor"
	"github.com/camuig/stock-watch/internal/rules"
	"github.com/camuig/stock-watch/internal/storage"
)

const timeLayout = "2006-01-02 15:04"

func printNote(w io.Writer, n *rules.Note) {
	fmt.Fprintf(w, "ID:          %s\n", n.ID)
	fmt.Fprintf(w, "Symbol:      %s\n", orDash(n.Symbol))
	if n.ActionType != nil {
		fmt.Fprintf(w, "Action:      %s\n", *n.ActionType)
	}
	if n.BuyPrice.Valid {
		fmt.Fprintf(w, "Buy price:   $%s\n", n.BuyPrice.Decimal.StringFixed(2))
	}
	fmt.Fprintf(w, "Conditions:  %s\n", conditionsText(n.Conditions))
	if n.UserOpinion != "" {
		fmt.Fprintf(w, "Opinion:     %s\n", n.UserOpinion)
	}
	fmt.Fprintf(w, "Created:     %s\n", n.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(w, "State:       %s\n", state(n))
	fmt.Fprintf(w, "Text:        %s\n", n.RawText)
}

func printNoteTable(w io.Writer, notes []rules.Note) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSYMBOL\tSTATE\tCONDITIONS\tTEXT")
	for i := range notes {
		n := &notes[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			n.ID, n.CreatedAt.Local().Format(timeLayout), orDash(n.Symbol), state(n),
			conditionsText(n.Conditions), truncate(n.RawText, 48))
	}
	tw.Flush()
}

func printReport(w io.Writer, r *monitor.CycleReport) {
	fmt.Fprintf(w, "Checked %d notes: %d alerts, %d skipped, %d failures\n",
		r.Checked, len(r.Alerts), len(r.Skipped), len(r.Failures))

	for _, a := range r.Alerts {
		fmt.Fprintln(w)
		fmt.Fprint(w, formatAlert(a))
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, s := range r.Skipped {
			fmt.Fprintf(w, "  %s %s: %s\n", s.NoteID, orDash(s.Symbol), s.Cause)
		}
	}
	if len(r.Failures) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  %s %s: %s\n", f.NoteID, orDash(f.Symbol), f.Error)
		}
	}
}

func formatAlert(a monitor.Alert) string {
	var sb strings.Builder
	title := a.Symbol
	if title == "" {
		title = "REMINDER"
	}
	sb.WriteString(fmt.Sprintf("STOCK ALERT: %s\n", title))
	if a.ObservedPrice.Valid {
		sb.WriteString(fmt.Sprintf("  Current price: $%s\n", a.ObservedPrice.Decimal.StringFixed(2)))
	}
	if delta := a.FormatDelta(); delta != "" {
		sb.WriteString(fmt.Sprintf("  Buy price:     $%s\n", a.BuyPrice.Decimal.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("  Change:        %s\n", delta))
	}
	sb.WriteString(fmt.Sprintf("  Reason:        %s\n", a.Reason))
	if a.UserOpinion != "" {
		sb.WriteString(fmt.Sprintf("  Opinion:       %s\n", a.UserOpinion))
	}
	sb.WriteString(fmt.Sprintf("  Note:          %s\n", a.RawText))
	return sb.String()
}

func printHistory(w io.Writer, logs []storage.CheckLog) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No checks recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tCHECKED\tALERTS\tSKIPPED\tFAILURES")
	for _, l := range logs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			l.StartedAt.Local().Format(timeLayout), l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond),
			l.NotesChecked, l.AlertsCount, l.SkippedCount, l.FailuresCount)
	}
	tw.Flush()
}

func conditionsText(conditions map[string]any) string {
	if len(conditions) == 0 {
		return "-"
	}
	b, err := json.Marshal(conditions)
	if err != nil {
		return fmt.Sprint(conditions)
	}
	return string(b)
}

func state(n *rules.Note) string {
	switch {
	case !n.Active:
		return "fired"
	case n.AwaitingReset:
		return "re-arming"
	default:
		return "active"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
