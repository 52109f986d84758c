package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/collie/internal/engine"
	"github.com/dyluth/collie/internal/printer"
	"github.com/dyluth/collie/internal/registry"
)

const summaryDurationUnit = time.Millisecond

// consoleReporter renders engine events as human-readable terminal output.
// The structured JSON audit trail is emitted by the engine itself; this is
// the view for an operator watching the daemon.
type consoleReporter struct{}

func (consoleReporter) IncidentDiscovered(incident registry.Incident) {
	printer.Step("New incident %s: %s\n", incident.ID, incident.Subject)
	if incident.Profile.Name != "" {
		printer.Detail("pattern", incident.Profile.Name)
	}
	if incident.Profile.SystemTag != "" {
		printer.Detail("system", incident.Profile.SystemTag)
	}
	printer.Detail("keywords", strings.Join(incident.Profile.Keywords, ", "))
	for _, link := range incident.ExternalLinks {
		printer.Detail("issue", fmt.Sprintf("%s (%s)", link.IssueKey, link.URL))
	}
}

func (consoleReporter) IncidentRetired(incident registry.Incident) {
	printer.Step("Incident %s closed (%d ticket(s) linked)\n", incident.ID, incident.LinkedCount)
}

func (consoleReporter) TicketLinked(event engine.LinkEvent) {
	printer.Success("Linked %s to %s (score %.2f: %s)\n",
		event.TicketID, event.IncidentID, event.Score, strings.Join(event.Reasons, "; "))
}

func (consoleReporter) Heartbeat(cycleID string) {
	printer.Info("No active incidents (cycle %s)\n", cycleID)
}

func (consoleReporter) CycleSummary(summary engine.Summary) {
	printer.Info("Cycle %s: %d active, %d scanned, %d linked (%s)\n",
		summary.CycleID, len(summary.Incidents), summary.CandidatesScanned,
		summary.Linked, summary.Duration.Round(summaryDurationUnit))
}
