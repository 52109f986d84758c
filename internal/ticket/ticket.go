// Package ticket defines the support-desk domain types and the store
// collaborator the correlation engine consumes. The store is the single
// source of truth: collie never persists ticket state of its own, it only
// reads tickets and writes links and notes back.
package ticket

import "time"

// Status is the lifecycle state of a ticket in the store.
type Status string

const (
	// StatusOpen indicates a ticket awaiting work.
	StatusOpen Status = "open"

	// StatusPending indicates a ticket waiting on the requester.
	StatusPending Status = "pending"

	// StatusResolved indicates a ticket resolved but not yet closed.
	StatusResolved Status = "resolved"

	// StatusClosed indicates a closed ticket.
	StatusClosed Status = "closed"
)

// Visibility controls who can see a ticket note.
type Visibility string

const (
	// VisibilityInternal notes are visible to agents only.
	VisibilityInternal Visibility = "internal"

	// VisibilityPublic notes are visible to the requester.
	VisibilityPublic Visibility = "public"
)

// Ticket is a support ticket as returned by the store. Problem tickets
// (incidents) and ordinary candidate tickets share this shape; the engine
// tells them apart by which store query produced them.
//
// Fields may be empty for degenerate store data - consumers must treat
// missing subject/description/tags as empty values, never as an error.
type Ticket struct {
	ID            string    `json:"id"`                        // opaque store identifier, stable key
	Subject       string    `json:"subject"`                   // one-line summary
	Description   string    `json:"description"`               // free-form body text
	Tags          []string  `json:"tags"`                      // store labels, lower-case by convention
	CreatedAt     time.Time `json:"created_at"`                // creation time in the store
	Status        Status    `json:"status"`                    // lifecycle state
	ProblemLinkID string    `json:"problem_link_id,omitempty"` // parent problem ticket ID, empty when unlinked
}

// IssueLink is an external issue-tracker reference attached to a problem
// ticket (for example an engineering ticket tracking the same outage).
type IssueLink struct {
	IssueKey string `json:"issue_key"` // tracker key, e.g. "OPS-413"
	URL      string `json:"url"`       // browsable link
}
