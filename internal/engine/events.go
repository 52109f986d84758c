package engine

import (
	"time"

	"github.com/dyluth/collie/internal/registry"
)

// LinkEvent describes one candidate ticket linked to an incident.
type LinkEvent struct {
	CycleID         string
	IncidentID      string
	IncidentSubject string
	TicketID        string
	TicketSubject   string
	Score           float64
	Reasons         []string
}

// Summary describes one completed correlation cycle.
type Summary struct {
	CycleID           string
	Discovered        int
	Retired           int
	CandidatesScanned int
	Linked            int
	Idle              bool // true when the cycle stopped at the idle heartbeat
	Incidents         []registry.Incident
	Duration          time.Duration
}

// Reporter receives the engine's observable events. Implementations must
// not block: the engine calls them synchronously inside the cycle.
type Reporter interface {
	IncidentDiscovered(incident registry.Incident)
	IncidentRetired(incident registry.Incident)
	TicketLinked(event LinkEvent)
	Heartbeat(cycleID string)
	CycleSummary(summary Summary)
}

// NopReporter discards all events.
type NopReporter struct{}

// IncidentDiscovered implements Reporter.
func (NopReporter) IncidentDiscovered(registry.Incident) {}

// IncidentRetired implements Reporter.
func (NopReporter) IncidentRetired(registry.Incident) {}

// TicketLinked implements Reporter.
func (NopReporter) TicketLinked(LinkEvent) {}

// Heartbeat implements Reporter.
func (NopReporter) Heartbeat(string) {}

// CycleSummary implements Reporter.
func (NopReporter) CycleSummary(Summary) {}
