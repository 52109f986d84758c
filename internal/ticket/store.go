package ticket

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the store has no ticket for the requested ID.
// Use IsNotFound to check for it through wrapped errors.
var ErrNotFound = errors.New("ticket not found")

// IsNotFound reports whether err indicates a missing ticket.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the ticket-store collaborator consumed by the correlation engine.
// Implementations own transport, auth, pagination and retry policy; the
// engine treats every method as a single fallible operation and aborts the
// current cycle on failure.
type Store interface {
	// ListOpenProblems returns every currently open problem ticket.
	// The result set is authoritative: an incident absent from it is
	// considered closed.
	ListOpenProblems(ctx context.Context) ([]Ticket, error)

	// ListRecentTickets returns tickets created within the trailing window.
	ListRecentTickets(ctx context.Context, window time.Duration) ([]Ticket, error)

	// LinkChildToIncident marks ticketID as a child of the incident's
	// problem ticket. Idempotent on the store side.
	LinkChildToIncident(ctx context.Context, ticketID, incidentID string) error

	// AnnotateTicket appends a note to the ticket with the given visibility.
	AnnotateTicket(ctx context.Context, ticketID, text string, visibility Visibility) error

	// GetExternalIssueLinks returns issue-tracker links attached to the
	// problem ticket. Best-effort: a ticket with no links yields an empty
	// slice, not an error.
	GetExternalIssueLinks(ctx context.Context, incidentID string) ([]IssueLink, error)
}
