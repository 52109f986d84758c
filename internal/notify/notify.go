// Package notify delivers engine events to an external chat channel.
// Notifications are advisory: a delivery failure is reported to the caller
// for logging but must never abort a correlation cycle.
package notify

import (
	"context"

	"github.com/dyluth/collie/internal/match"
	"github.com/dyluth/collie/internal/registry"
	"github.com/dyluth/collie/internal/ticket"
)

// Notifier receives the engine's outward-facing events.
type Notifier interface {
	// IncidentDiscovered fires once when a new open problem ticket enters
	// the registry.
	IncidentDiscovered(ctx context.Context, incident *registry.Incident) error

	// IncidentRetired fires once when an incident leaves the registry.
	IncidentRetired(ctx context.Context, incident *registry.Incident) error

	// TicketLinked fires after a candidate ticket is linked to an incident.
	TicketLinked(ctx context.Context, incident *registry.Incident, linked ticket.Ticket, ev match.Evaluation) error
}

// Noop is the Notifier used when no chat webhook is configured.
type Noop struct{}

// IncidentDiscovered implements Notifier.
func (Noop) IncidentDiscovered(context.Context, *registry.Incident) error { return nil }

// IncidentRetired implements Notifier.
func (Noop) IncidentRetired(context.Context, *registry.Incident) error { return nil }

// TicketLinked implements Notifier.
func (Noop) TicketLinked(context.Context, *registry.Incident, ticket.Ticket, match.Evaluation) error {
	return nil
}
