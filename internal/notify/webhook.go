package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dyluth/collie/internal/match"
	"github.com/dyluth/collie/internal/registry"
	"github.com/dyluth/collie/internal/ticket"
)

const defaultWebhookTimeout = 10 * time.Second

// envelope is the JSON payload POSTed to the chat webhook. Text carries the
// rendered message; Data carries the structured fields for bots that want
// more than a string.
type envelope struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Text      string         `json:"text"`
	Data      map[string]any `json:"data,omitempty"`
}

// WebhookConfig holds the settings for a Webhook notifier.
type WebhookConfig struct {
	URL     string        // webhook endpoint, http or https
	Token   string        // optional bearer token
	Timeout time.Duration // per-request timeout, default 10s
}

// Webhook posts engine events to a generic chat webhook endpoint.
type Webhook struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewWebhook validates the configuration and returns a Webhook notifier.
func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}

	return &Webhook{
		url:        cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// IncidentDiscovered implements Notifier.
func (w *Webhook) IncidentDiscovered(ctx context.Context, incident *registry.Incident) error {
	text := fmt.Sprintf("New incident: %s (%s)", incident.Subject, incident.ID)
	if incident.Profile.SystemTag != "" {
		text += fmt.Sprintf(" [%s]", incident.Profile.SystemTag)
	}

	data := map[string]any{
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

	return w.send(ctx, "incident_discovered", text, data)
}

// IncidentRetired implements Notifier.
func (w *Webhook) IncidentRetired(ctx context.Context, incident *registry.Incident) error {
	text := fmt.Sprintf("Incident closed: %s (%s), %d ticket(s) linked",
		incident.Subject, incident.ID, incident.LinkedCount)

	return w.send(ctx, "incident_retired", text, map[string]any{
		"incident_id":  incident.ID,
		"subject":      incident.Subject,
		"linked_count": incident.LinkedCount,
	})
}

// TicketLinked implements Notifier.
func (w *Webhook) TicketLinked(ctx context.Context, incident *registry.Incident, linked ticket.Ticket, ev match.Evaluation) error {
	text := fmt.Sprintf("Linked %s (%s) to incident %s, score %.2f: %s",
		linked.ID, linked.Subject, incident.ID, ev.Score, strings.Join(ev.Reasons, "; "))

	return w.send(ctx, "ticket_linked", text, map[string]any{
		"incident_id": incident.ID,
		"ticket_id":   linked.ID,
		"score":       ev.Score,
		"reasons":     ev.Reasons,
	})
}

// send POSTs one envelope to the webhook endpoint.
func (w *Webhook) send(ctx context.Context, eventType, text string, data map[string]any) error {
	payload, err := json.Marshal(envelope{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Text:      text,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
