// Package report renders engine state for humans and machines: fixed-width
// tables for the terminal, JSONL for piping into jq, and the note body
// written back to linked tickets.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/collie/internal/match"
	"github.com/dyluth/collie/internal/registry"
	"github.com/dyluth/collie/internal/ticket"
)

// FormatIncidentTable writes active incidents as a formatted table.
// Returns the number of incidents written.
func FormatIncidentTable(w io.Writer, incidents []registry.Incident) int {
	if len(incidents) == 0 {
		fmt.Fprintf(w, "No active incidents\n")
		return 0
	}

	fmt.Fprintf(w, "Active incidents:\n\n")
	fmt.Fprintf(w, "%-12s %-18s %-12s %-7s %s\n",
		"ID", "PATTERN", "SYSTEM", "LINKED", "SUBJECT")
	fmt.Fprintf(w, "%-12s %-18s %-12s %-7s %s\n",
		"------------", "------------------", "------------", "-------", "----------------------------------------")

	for _, incident := range incidents {
		fmt.Fprintf(w, "%-12s %-18s %-12s %-7d %s\n",
			truncate(incident.ID, 12),
			truncate(patternLabel(incident.Profile.Name), 18),
			truncate(dash(incident.Profile.SystemTag), 12),
			incident.LinkedCount,
			truncate(incident.Subject, 60),
		)
	}

	label := "incident"
	if len(incidents) != 1 {
		label = "incidents"
	}
	fmt.Fprintf(w, "\n%d active %s\n", len(incidents), label)

	return len(incidents)
}

// incidentRecord is the JSONL projection of an incident.
type incidentRecord struct {
	ID            string             `json:"id"`
	Subject       string             `json:"subject"`
	Pattern       string             `json:"pattern,omitempty"`
	SystemTag     string             `json:"system_tag,omitempty"`
	Keywords      []string           `json:"keywords"`
	LinkedCount   int                `json:"linked_count"`
	ExternalLinks []ticket.IssueLink `json:"external_links,omitempty"`
}

// FormatJSONL writes incidents as line-delimited JSON, one object per line.
func FormatJSONL(w io.Writer, incidents []registry.Incident) error {
	for _, incident := range incidents {
		record := incidentRecord{
			ID:            incident.ID,
			Subject:       incident.Subject,
			Pattern:       incident.Profile.Name,
			SystemTag:     incident.Profile.SystemTag,
			Keywords:      incident.Profile.Keywords,
			LinkedCount:   incident.LinkedCount,
			ExternalLinks: incident.ExternalLinks,
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal incident: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// AnnotationBody builds the internal note appended to a ticket after it is
// linked to an incident: what was linked, why, and where the engineering
// work is tracked.
func AnnotationBody(incident *registry.Incident, linked ticket.Ticket, ev match.Evaluation) string {
	var b strings.Builder

	b.WriteString("Linked by collie incident correlation.\n\n")
	fmt.Fprintf(&b, "Ticket:   %s (%s)\n", linked.ID, linked.Subject)
	fmt.Fprintf(&b, "Incident: %s (%s)\n", incident.ID, incident.Subject)
	fmt.Fprintf(&b, "Score:    %.2f\n", ev.Score)
	fmt.Fprintf(&b, "Matched:  %s\n", strings.Join(ev.Reasons, "; "))

	if len(incident.ExternalLinks) > 0 {
		keys := make([]string, 0, len(incident.ExternalLinks))
		for _, link := range incident.ExternalLinks {
			keys = append(keys, fmt.Sprintf("%s (%s)", link.IssueKey, link.URL))
		}
		fmt.Fprintf(&b, "Issues:   %s\n", strings.Join(keys, ", "))
	}

	return b.String()
}

// truncate shortens s to at most n bytes for compact table display.
func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// patternLabel names the signature source in table output.
func patternLabel(name string) string {
	if name == "" {
		return "(ad-hoc)"
	}
	return name
}

// dash substitutes "-" for empty values in table output.
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
