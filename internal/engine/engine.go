// Package engine drives the correlation loop: every cycle it discovers new
// incidents from the store's open problem tickets, retires closed ones,
// scores recent candidate tickets against every active incident, and links
// each candidate to its single best match.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/collie/internal/match"
	"github.com/dyluth/collie/internal/notify"
	"github.com/dyluth/collie/internal/registry"
	"github.com/dyluth/collie/internal/report"
	"github.com/dyluth/collie/internal/ticket"
)

const (
	defaultInterval = 60 * time.Second
	defaultLookback = 30 * time.Minute
)

// Config controls engine timing.
type Config struct {
	Instance string        // name carried in audit log events, default "collie"
	Interval time.Duration // cycle tick period, default 60s
	Lookback time.Duration // candidate ticket window, default 30m
}

// Engine owns the incident registry and runs correlation cycles against the
// ticket store. It is the single writer of the registry; cycles never
// overlap - a tick that fires mid-cycle is deferred until the running cycle
// finishes.
type Engine struct {
	store    ticket.Store
	registry *registry.Registry
	notifier notify.Notifier
	reporter Reporter
	instance string
	interval time.Duration
	lookback time.Duration
}

// New creates an Engine with a fresh, empty registry. The registry is
// rebuilt from the store on the first cycle; nothing survives a restart.
func New(store ticket.Store, notifier notify.Notifier, reporter Reporter, cfg Config) *Engine {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if reporter == nil {
		reporter = NopReporter{}
	}

	instance := cfg.Instance
	if instance == "" {
		instance = "collie"
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = defaultLookback
	}

	return &Engine{
		store:    store,
		registry: registry.New(),
		notifier: notifier,
		reporter: reporter,
		instance: instance,
		interval: interval,
		lookback: lookback,
	}
}

// Run executes cycles on a fixed interval until the context is cancelled.
// The first cycle runs immediately. A failed cycle is logged and abandoned;
// the next tick starts fresh from the store (full discover/retire/scan) -
// registry state from before the failing call is preserved unchanged.
func (e *Engine) Run(ctx context.Context) error {
	log.Printf("[Engine] Starting for instance '%s' (interval %s, lookback %s)",
		e.instance, e.interval, e.lookback)

	e.runAndLog(ctx)

	// The ticker channel buffers a single tick, so ticks that fire while a
	// cycle is still running collapse into one deferred cycle.
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Engine] Shutting down...")
			return nil
		case <-ticker.C:
			e.runAndLog(ctx)
			if ctx.Err() != nil {
				log.Printf("[Engine] Shutting down...")
				return nil
			}
		}
	}
}

// runAndLog runs one cycle and logs a failure instead of propagating it.
func (e *Engine) runAndLog(ctx context.Context) {
	if _, err := e.RunCycle(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logEvent("cycle_failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// RunCycle executes one full discover -> retire -> scan -> link pass and
// returns its summary. On a collaborator failure the cycle aborts
// immediately; the caller decides whether to retry on the next tick.
func (e *Engine) RunCycle(ctx context.Context) (Summary, error) {
	cycleID := uuid.New().String()[:8]
	started := time.Now()

	openProblems, err := e.store.ListOpenProblems(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list open problems: %w", err)
	}

	discovered, err := e.registry.Discover(ctx, openProblems, e.store.GetExternalIssueLinks)
	for _, incident := range discovered {
		e.emitDiscovered(ctx, cycleID, incident)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("failed to discover incidents: %w", err)
	}

	retired := e.registry.Retire(openProblems)
	for _, incident := range retired {
		e.emitRetired(ctx, cycleID, incident)
	}

	summary := Summary{
		CycleID:    cycleID,
		Discovered: len(discovered),
		Retired:    len(retired),
	}

	if e.registry.Len() == 0 {
		// Nothing to correlate against: skip the candidate fetch entirely
		// to avoid unnecessary store load.
		summary.Idle = true
		summary.Duration = time.Since(started)
		e.logEvent("idle_heartbeat", map[string]any{
			"cycle_id": cycleID,
		})
		e.reporter.Heartbeat(cycleID)
		return summary, nil
	}

	candidates, err := e.store.ListRecentTickets(ctx, e.lookback)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list recent tickets: %w", err)
	}

	for _, candidate := range candidates {
		if candidate.ProblemLinkID != "" {
			// Already a child of some incident.
			continue
		}
		if e.registry.Get(candidate.ID) != nil {
			// The incident's own problem ticket can show up in the recent
			// window; it is never a candidate.
			continue
		}
		summary.CandidatesScanned++

		winner, evaluation := e.bestMatch(candidate)

		// Mark the candidate processed against every currently active
		// incident, not just the winner: it is only ever reconsidered for
		// incidents that did not exist at evaluation time.
		for _, incident := range e.registry.Active() {
			e.registry.Record(incident.ID, candidate.ID)
		}

		if winner == nil {
			continue
		}
		if err := e.linkCandidate(ctx, cycleID, winner, candidate, evaluation); err != nil {
			return Summary{}, err
		}
		summary.Linked++
	}

	summary.Incidents = e.snapshotIncidents()
	summary.Duration = time.Since(started)

	e.logEvent("cycle_summary", map[string]any{
		"cycle_id":           cycleID,
		"active_incidents":   e.registry.Len(),
		"candidates_scanned": summary.CandidatesScanned,
		"linked":             summary.Linked,
		"discovered":         summary.Discovered,
		"retired":            summary.Retired,
	})
	e.reporter.CycleSummary(summary)

	return summary, nil
}

// bestMatch scores the candidate against every active incident it has not
// been paired with before and returns the single best match, or nil.
//
// The comparison is a strict greater-than, so the first-discovered incident
// wins exact ties. That mirrors the engine's long-standing behavior; whether
// ties should instead favor the more specific signature is an open question,
// deliberately left alone.
func (e *Engine) bestMatch(candidate ticket.Ticket) (*registry.Incident, match.Evaluation) {
	var winner *registry.Incident
	var best match.Evaluation

	for _, incident := range e.registry.Active() {
		if e.registry.AlreadyProcessed(incident.ID, candidate.ID) {
			continue
		}
		matcher := match.New(incident.Profile, incident.ID, incident.CreatedAt)
		evaluation := matcher.Evaluate(candidate)
		if evaluation.Matched && evaluation.Score > best.Score {
			winner = incident
			best = evaluation
		}
	}

	return winner, best
}

// linkCandidate performs the store-side link, bumps the incident's linked
// count, and annotates the ticket when the incident carries external issue
// links. Store failures abort the cycle.
func (e *Engine) linkCandidate(ctx context.Context, cycleID string, incident *registry.Incident, candidate ticket.Ticket, evaluation match.Evaluation) error {
	if err := e.store.LinkChildToIncident(ctx, candidate.ID, incident.ID); err != nil {
		return fmt.Errorf("failed to link ticket %s to incident %s: %w", candidate.ID, incident.ID, err)
	}
	e.registry.RecordLink(incident.ID)

	if len(incident.ExternalLinks) > 0 {
		body := report.AnnotationBody(incident, candidate, evaluation)
		if err := e.store.AnnotateTicket(ctx, candidate.ID, body, ticket.VisibilityInternal); err != nil {
			return fmt.Errorf("failed to annotate ticket %s: %w", candidate.ID, err)
		}
	}

	event := LinkEvent{
		CycleID:         cycleID,
		IncidentID:      incident.ID,
		IncidentSubject: incident.Subject,
		TicketID:        candidate.ID,
		TicketSubject:   candidate.Subject,
		Score:           evaluation.Score,
		Reasons:         evaluation.Reasons,
	}
	e.logEvent("ticket_linked", map[string]any{
		"cycle_id":    cycleID,
		"ticket_id":   candidate.ID,
		"incident_id": incident.ID,
		"score":       evaluation.Score,
		"reasons":     evaluation.Reasons,
	})
	e.reporter.TicketLinked(event)

	if err := e.notifier.TicketLinked(ctx, incident, candidate, evaluation); err != nil {
		log.Printf("[Engine] Failed to send link notification for %s: %v", candidate.ID, err)
	}
	return nil
}

// emitDiscovered publishes a discovery event on all channels.
func (e *Engine) emitDiscovered(ctx context.Context, cycleID string, incident *registry.Incident) {
	data := map[string]any{
		"cycle_id":    cycleID,
		"incident_id": incident.ID,
		"subject":     incident.Subject,
		"keywords":    incident.Profile.Keywords,
	}
	if incident.Profile.Name != "" {
		data["pattern"] = incident.Profile.Name
	}
	if incident.Profile.SystemTag != "" {
		data["system_tag"] = incident.Profile.SystemTag
	}
	if len(incident.ExternalLinks) > 0 {
		data["external_links"] = incident.ExternalLinks
	}
	e.logEvent("incident_discovered", data)
	e.reporter.IncidentDiscovered(*incident)

	if err := e.notifier.IncidentDiscovered(ctx, incident); err != nil {
		log.Printf("[Engine] Failed to send discovery notification for %s: %v", incident.ID, err)
	}
}

// emitRetired publishes a retirement event on all channels.
func (e *Engine) emitRetired(ctx context.Context, cycleID string, incident *registry.Incident) {
	e.logEvent("incident_retired", map[string]any{
		"cycle_id":     cycleID,
		"incident_id":  incident.ID,
		"subject":      incident.Subject,
		"linked_count": incident.LinkedCount,
	})
	e.reporter.IncidentRetired(*incident)

	if err := e.notifier.IncidentRetired(ctx, incident); err != nil {
		log.Printf("[Engine] Failed to send retirement notification for %s: %v", incident.ID, err)
	}
}

// snapshotIncidents copies the active incidents in discovery order.
func (e *Engine) snapshotIncidents() []registry.Incident {
	active := e.registry.Active()
	snapshot := make([]registry.Incident, 0, len(active))
	for _, incident := range active {
		snapshot = append(snapshot, *incident)
	}
	return snapshot
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]any) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "engine"
	data["event_type"] = eventType
	data["instance"] = e.instance

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
