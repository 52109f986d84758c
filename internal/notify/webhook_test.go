package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/collie/internal/match"
	"github.com/dyluth/collie/internal/pattern"
	"github.com/dyluth/collie/internal/registry"
	"github.com/dyluth/collie/internal/ticket"
)

func sampleIncident() *registry.Incident {
	return &registry.Incident{
		ID:        "PRB-1",
		Subject:   "PT - TVP Down for all users",
		CreatedAt: time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC),
		Profile: pattern.Profile{
			Name:      "Platform Down",
			SystemTag: "Vend",
			Keywords:  []string{"tvp down", "platform down"},
		},
		LinkedCount: 3,
	}
}

func TestNewWebhook_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     WebhookConfig
		wantErr string
	}{
		{"missing URL", WebhookConfig{}, "URL is required"},
		{"bad scheme", WebhookConfig{URL: "ftp://chat.example.com/hook"}, "http or https"},
		{"no host", WebhookConfig{URL: "https://"}, "must include a host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWebhook(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWebhook_IncidentDiscovered(t *testing.T) {
	var got envelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer hook-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	hook, err := NewWebhook(WebhookConfig{URL: server.URL, Token: "hook-token"})
	require.NoError(t, err)

	err = hook.IncidentDiscovered(context.Background(), sampleIncident())
	require.NoError(t, err)

	assert.Equal(t, "incident_discovered", got.Type)
	assert.NotEmpty(t, got.Timestamp)
	assert.Contains(t, got.Text, "PT - TVP Down for all users")
	assert.Contains(t, got.Text, "[Vend]")
	assert.Equal(t, "PRB-1", got.Data["incident_id"])
	assert.Equal(t, "Platform Down", got.Data["pattern"])
}

func TestWebhook_TicketLinked(t *testing.T) {
	var got envelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	hook, err := NewWebhook(WebhookConfig{URL: server.URL})
	require.NoError(t, err)

	linked := ticket.Ticket{ID: "TCK-7", Subject: "Page not loading at all"}
	ev := match.Evaluation{Matched: true, Score: 1, Reasons: []string{`keyword "page not loading"`}}

	err = hook.TicketLinked(context.Background(), sampleIncident(), linked, ev)
	require.NoError(t, err)

	assert.Equal(t, "ticket_linked", got.Type)
	assert.Contains(t, got.Text, "TCK-7")
	assert.Contains(t, got.Text, `keyword "page not loading"`)
	assert.Equal(t, "TCK-7", got.Data["ticket_id"])
}

func TestWebhook_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel archived", http.StatusGone)
	}))
	defer server.Close()

	hook, err := NewWebhook(WebhookConfig{URL: server.URL})
	require.NoError(t, err)

	err = hook.IncidentRetired(context.Background(), sampleIncident())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "410")
}

func TestNoop_AllEventsSucceed(t *testing.T) {
	var n Noop
	ctx := context.Background()

	assert.NoError(t, n.IncidentDiscovered(ctx, sampleIncident()))
	assert.NoError(t, n.IncidentRetired(ctx, sampleIncident()))
	assert.NoError(t, n.TicketLinked(ctx, sampleIncident(), ticket.Ticket{}, match.Evaluation{}))
}
