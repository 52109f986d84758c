// Package match scores a candidate ticket against one incident's profile.
// Evaluation is pure and deterministic: the same profile and candidate
// always produce the same score and reasons, which keeps re-evaluation
// idempotent and the audit trail trustworthy.
package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/collie/internal/pattern"
	"github.com/dyluth/collie/internal/ticket"
)

// Condition weights. Keywords and system tags are content evidence; the
// temporal bonus is a plausibility nudge added only on top of content
// evidence, never on its own - otherwise every ticket newer than an
// incident would score nonzero.
const (
	keywordWeight   = 1.0
	systemTagWeight = 1.0
	temporalWeight  = 0.25
)

// Evaluation is the outcome of scoring one candidate against one incident.
type Evaluation struct {
	Matched bool     // score > 0
	Score   float64  // sum of satisfied condition weights
	Reasons []string // one human-readable reason per satisfied condition
}

// Matcher scores candidates against a single incident. Construct one per
// incident; it is stateless after construction and safe to reuse.
type Matcher struct {
	keywords        []string
	systemTag       string
	excludeTicketID string
	incidentCreated time.Time
}

// New builds a Matcher for an incident. excludeTicketID is the incident's
// own problem ticket, which never matches itself.
func New(profile pattern.Profile, excludeTicketID string, incidentCreated time.Time) *Matcher {
	return &Matcher{
		keywords:        profile.Keywords,
		systemTag:       profile.SystemTag,
		excludeTicketID: excludeTicketID,
		incidentCreated: incidentCreated,
	}
}

// Evaluate scores a candidate ticket. Total over degenerate input: missing
// subject, description or tags behave as empty values.
func (m *Matcher) Evaluate(candidate ticket.Ticket) Evaluation {
	if candidate.ID == m.excludeTicketID {
		return Evaluation{}
	}

	text := strings.ToLower(candidate.Subject + " " + candidate.Description)

	var ev Evaluation
	for _, keyword := range m.keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(keyword)) {
			ev.Score += keywordWeight
			ev.Reasons = append(ev.Reasons, fmt.Sprintf("keyword %q", keyword))
		}
	}

	if m.systemTag != "" {
		if pattern.DetectSystem(candidate.Subject, candidate.Description, candidate.Tags) == m.systemTag {
			ev.Score += systemTagWeight
			ev.Reasons = append(ev.Reasons, "same system tag")
		}
	}

	if ev.Score > 0 && !m.incidentCreated.IsZero() && candidate.CreatedAt.After(m.incidentCreated) {
		ev.Score += temporalWeight
		ev.Reasons = append(ev.Reasons, "created after incident")
	}

	ev.Matched = ev.Score > 0
	return ev
}
