package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/jira-field-add/internal/fieldupdate"
	"github.com/nhle/jira-field-add/internal/theme"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(theme.ColorGray)
	keyStyle   = lipgloss.NewStyle().Bold(true).Width(14)
)

// renderSummary formats the end-of-run report: one line per issue followed
// by the totals.
func renderSummary(r *fieldupdate.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s += %q\n",
		theme.HeaderStyle.Render("jira-field-add"),
		r.FieldID, r.Value,
	)

	for _, t := range r.Tickets {
		outcome := theme.OutcomeStyle(string(t.Outcome)).Width(8).Render(string(t.Outcome))
		detail := strings.Join(t.Values, ", ")
		if t.Reason != "" {
			detail = t.Reason
			if t.StatusCode != 0 {
				detail = fmt.Sprintf("%s (%d)", t.Reason, t.StatusCode)
			}
		}
		fmt.Fprintf(&b, "  %s %s %s\n", keyStyle.Render(t.Key), outcome, labelStyle.Render(detail))
	}

	fmt.Fprintf(&b, "%s updated %d, skipped %d, failed %d",
		theme.ResultStyle(string(r.Result)).Render(strings.ToUpper(string(r.Result))),
		r.Count(fieldupdate.OutcomeUpdated),
		r.Count(fieldupdate.OutcomeSkipped),
		r.Count(fieldupdate.OutcomeFailed),
	)
	if r.Err != nil {
		fmt.Fprintf(&b, "\n%s", theme.ResultStyle("failure").Render(r.Err.Error()))
	}

	return b.String()
}

// renderCheck formats one line of field id validation.
func renderCheck(sev fieldupdate.Severity, msg, fieldID string) string {
	var style lipgloss.Style
	switch sev {
	case fieldupdate.SeverityOK:
		style = theme.ResultStyle("success")
	case fieldupdate.SeverityWarning:
		style = theme.ResultStyle("unstable")
	default:
		style = theme.ResultStyle("failure")
	}

	line := style.Render(strings.ToUpper(sev.String())) + " " + fieldID
	if msg != "" {
		line += " " + labelStyle.Render(msg)
	}
	return line
}
