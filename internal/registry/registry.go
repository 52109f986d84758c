// Package registry owns the engine's in-memory view of active incidents:
// the incident map, the discovery order, and the processed-pair set. It is
// rebuilt from the ticket store on every process start - the store is the
// source of truth and nothing here survives a restart.
//
// The registry holds no locks. It is mutated exclusively by the single
// correlation loop; if candidate scoring is ever parallelized, the Active
// snapshot must be taken before fan-out and all writes serialized after.
package registry

import (
	"context"
	"time"

	"github.com/dyluth/collie/internal/pattern"
	"github.com/dyluth/collie/internal/ticket"
)

// Incident is one currently open problem ticket under correlation.
// Subject, CreatedAt, Profile and ExternalLinks are immutable after
// discovery; only LinkedCount changes, and only upward.
type Incident struct {
	ID            string             // problem ticket ID, the stable key
	Subject       string             // problem ticket subject
	CreatedAt     time.Time          // problem ticket creation time in the store
	DiscoveredAt  time.Time          // when this process first observed it
	Profile       pattern.Profile    // signature used to score candidates
	LinkedCount   int                // tickets linked by this process, monotonic
	ExternalLinks []ticket.IssueLink // issue-tracker links, fetched once at discovery
}

// pairKey identifies one (incident, ticket) evaluation.
type pairKey struct {
	incidentID string
	ticketID   string
}

// LinkFetcher retrieves external issue links for a newly discovered
// incident. Best-effort on the store side: no links is an empty slice.
type LinkFetcher func(ctx context.Context, incidentID string) ([]ticket.IssueLink, error)

// Registry holds the active incident set and the processed-pair dedup set.
type Registry struct {
	incidents map[string]*Incident
	order     []string // discovery order; the deterministic iteration order tie-breaks depend on
	processed map[pairKey]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		incidents: make(map[string]*Incident),
		processed: make(map[pairKey]struct{}),
	}
}

// Discover inserts every open problem ticket not yet tracked, running
// profile extraction and fetching its external issue links once. Returns
// the newly added incidents in input order so the caller can emit
// discovery events. A fetcher failure aborts discovery with the registry
// reflecting only the incidents added before the failing call.
func (r *Registry) Discover(ctx context.Context, openProblems []ticket.Ticket, fetchLinks LinkFetcher) ([]*Incident, error) {
	var added []*Incident

	for _, problem := range openProblems {
		if _, exists := r.incidents[problem.ID]; exists {
			continue
		}

		incident := &Incident{
			ID:           problem.ID,
			Subject:      problem.Subject,
			CreatedAt:    problem.CreatedAt,
			DiscoveredAt: time.Now().UTC(),
			Profile:      pattern.Extract(problem.Subject, problem.Description, problem.Tags),
		}

		if fetchLinks != nil {
			links, err := fetchLinks(ctx, problem.ID)
			if err != nil {
				return added, err
			}
			incident.ExternalLinks = links
		}

		r.incidents[problem.ID] = incident
		r.order = append(r.order, problem.ID)
		added = append(added, incident)
	}

	return added, nil
}

// Retire removes every tracked incident absent from the latest open-problem
// result set and returns the removed records for retirement events. A
// single absence suffices: the store's search already filters to still-open
// problems, so absence is the store's authoritative word that the incident
// closed. Processed pairs for retired incidents are dropped with them.
func (r *Registry) Retire(openProblems []ticket.Ticket) []*Incident {
	open := make(map[string]struct{}, len(openProblems))
	for _, problem := range openProblems {
		open[problem.ID] = struct{}{}
	}

	var retired []*Incident
	remaining := r.order[:0]
	for _, id := range r.order {
		if _, stillOpen := open[id]; stillOpen {
			remaining = append(remaining, id)
			continue
		}
		retired = append(retired, r.incidents[id])
		delete(r.incidents, id)
	}
	r.order = remaining

	for _, incident := range retired {
		for key := range r.processed {
			if key.incidentID == incident.ID {
				delete(r.processed, key)
			}
		}
	}

	return retired
}

// Record marks a (incident, ticket) pair as evaluated. Idempotent.
func (r *Registry) Record(incidentID, ticketID string) {
	r.processed[pairKey{incidentID: incidentID, ticketID: ticketID}] = struct{}{}
}

// AlreadyProcessed reports whether the pair was evaluated before. A
// recorded pair is never re-evaluated while the incident remains active.
func (r *Registry) AlreadyProcessed(incidentID, ticketID string) bool {
	_, seen := r.processed[pairKey{incidentID: incidentID, ticketID: ticketID}]
	return seen
}

// RecordLink increments the incident's linked-ticket count.
func (r *Registry) RecordLink(incidentID string) {
	if incident, exists := r.incidents[incidentID]; exists {
		incident.LinkedCount++
	}
}

// Active returns the active incidents in discovery order. The slice is a
// fresh snapshot; the pointed-to incidents are the live records.
func (r *Registry) Active() []*Incident {
	active := make([]*Incident, 0, len(r.order))
	for _, id := range r.order {
		active = append(active, r.incidents[id])
	}
	return active
}

// Get returns the incident with the given ID, or nil.
func (r *Registry) Get(incidentID string) *Incident {
	return r.incidents[incidentID]
}

// Len returns the number of active incidents.
func (r *Registry) Len() int {
	return len(r.incidents)
}
