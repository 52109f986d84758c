package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/collie/internal/ticket"
)

func problem(id, subject string) ticket.Ticket {
	return ticket.Ticket{
		ID:        id,
		Subject:   subject,
		CreatedAt: time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC),
		Status:    ticket.StatusOpen,
	}
}

func noLinks(context.Context, string) ([]ticket.IssueLink, error) {
	return nil, nil
}

func TestDiscover_AddsNewIncidentsOnly(t *testing.T) {
	reg := New()
	problems := []ticket.Ticket{
		problem("PRB-1", "PT - TVP Down for all users"),
		problem("PRB-2", "PT - Widgets stuck syncing for ACME Corp"),
	}

	added, err := reg.Discover(context.Background(), problems, noLinks)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "PRB-1", added[0].ID)
	assert.Equal(t, "PRB-2", added[1].ID)
	assert.Equal(t, 2, reg.Len())

	// Second discovery with the same problems adds nothing.
	added, err = reg.Discover(context.Background(), problems, noLinks)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 2, reg.Len())
}

func TestDiscover_RunsExtractionAndFetchesLinks(t *testing.T) {
	reg := New()
	links := []ticket.IssueLink{{IssueKey: "OPS-413", URL: "https://issues.example.com/OPS-413"}}

	added, err := reg.Discover(context.Background(),
		[]ticket.Ticket{problem("PRB-1", "PT - TVP Down for all users")},
		func(ctx context.Context, incidentID string) ([]ticket.IssueLink, error) {
			assert.Equal(t, "PRB-1", incidentID)
			return links, nil
		})
	require.NoError(t, err)
	require.Len(t, added, 1)

	assert.Equal(t, "Platform Down", added[0].Profile.Name)
	assert.Equal(t, links, added[0].ExternalLinks)
	assert.False(t, added[0].DiscoveredAt.IsZero())
}

func TestDiscover_FetcherFailurePreservesEarlierAdds(t *testing.T) {
	reg := New()
	problems := []ticket.Ticket{
		problem("PRB-1", "PT - TVP Down for all users"),
		problem("PRB-2", "PT - Widgets stuck syncing for ACME Corp"),
	}

	added, err := reg.Discover(context.Background(), problems,
		func(ctx context.Context, incidentID string) ([]ticket.IssueLink, error) {
			if incidentID == "PRB-2" {
				return nil, fmt.Errorf("issue tracker unreachable")
			}
			return nil, nil
		})

	require.Error(t, err)
	assert.Len(t, added, 1)
	assert.Equal(t, 1, reg.Len())
	assert.NotNil(t, reg.Get("PRB-1"))
	assert.Nil(t, reg.Get("PRB-2"))
}

func TestRetire_RemovesAbsentIncidents(t *testing.T) {
	reg := New()
	problems := []ticket.Ticket{
		problem("PRB-1", "PT - TVP Down for all users"),
		problem("PRB-2", "PT - Widgets stuck syncing for ACME Corp"),
		problem("PRB-3", "PT - Reports blank in head office"),
	}
	_, err := reg.Discover(context.Background(), problems, noLinks)
	require.NoError(t, err)

	// PRB-2 closed: it disappears from the open-problem result set.
	retired := reg.Retire([]ticket.Ticket{problems[0], problems[2]})

	require.Len(t, retired, 1)
	assert.Equal(t, "PRB-2", retired[0].ID)
	assert.Equal(t, 2, reg.Len())
	assert.Nil(t, reg.Get("PRB-2"))

	// Discovery order of the survivors is preserved.
	active := reg.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "PRB-1", active[0].ID)
	assert.Equal(t, "PRB-3", active[1].ID)
}

func TestRetire_SingleAbsenceSuffices(t *testing.T) {
	reg := New()
	_, err := reg.Discover(context.Background(),
		[]ticket.Ticket{problem("PRB-1", "PT - TVP Down for all users")}, noLinks)
	require.NoError(t, err)

	retired := reg.Retire(nil)

	require.Len(t, retired, 1)
	assert.Zero(t, reg.Len())
}

func TestRetire_DropsProcessedPairs(t *testing.T) {
	reg := New()
	_, err := reg.Discover(context.Background(),
		[]ticket.Ticket{problem("PRB-1", "PT - TVP Down for all users")}, noLinks)
	require.NoError(t, err)

	reg.Record("PRB-1", "TCK-7")
	require.True(t, reg.AlreadyProcessed("PRB-1", "TCK-7"))

	reg.Retire(nil)

	assert.False(t, reg.AlreadyProcessed("PRB-1", "TCK-7"),
		"pairs for retired incidents must not leak")
}

func TestProcessedPairs(t *testing.T) {
	reg := New()

	assert.False(t, reg.AlreadyProcessed("PRB-1", "TCK-7"))

	reg.Record("PRB-1", "TCK-7")
	assert.True(t, reg.AlreadyProcessed("PRB-1", "TCK-7"))
	assert.False(t, reg.AlreadyProcessed("PRB-1", "TCK-8"))
	assert.False(t, reg.AlreadyProcessed("PRB-2", "TCK-7"))

	// Recording twice is idempotent.
	reg.Record("PRB-1", "TCK-7")
	assert.True(t, reg.AlreadyProcessed("PRB-1", "TCK-7"))
}

func TestRecordLink_IncrementsMonotonically(t *testing.T) {
	reg := New()
	_, err := reg.Discover(context.Background(),
		[]ticket.Ticket{problem("PRB-1", "PT - TVP Down for all users")}, noLinks)
	require.NoError(t, err)

	reg.RecordLink("PRB-1")
	reg.RecordLink("PRB-1")
	assert.Equal(t, 2, reg.Get("PRB-1").LinkedCount)

	// Unknown incidents are ignored.
	reg.RecordLink("PRB-404")
}

func TestActive_ReturnsDiscoveryOrder(t *testing.T) {
	reg := New()

	_, err := reg.Discover(context.Background(),
		[]ticket.Ticket{problem("PRB-9", "PT - Card machines offline")}, noLinks)
	require.NoError(t, err)
	_, err = reg.Discover(context.Background(), []ticket.Ticket{
		problem("PRB-9", "PT - Card machines offline"),
		problem("PRB-4", "PT - Emails not sending"),
	}, noLinks)
	require.NoError(t, err)

	active := reg.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "PRB-9", active[0].ID, "discovery order, not lexical order")
	assert.Equal(t, "PRB-4", active[1].ID)
}
