package ticket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultPageSize       = 100
	defaultRequestRate    = 5 // requests per second
	defaultRequestTimeout = 15 * time.Second
	maxRetryElapsed       = 45 * time.Second
	maxRetryAfterHint     = 30 * time.Second
	userAgent             = "collie/1"
)

// ClientConfig holds the settings needed to construct a Client.
type ClientConfig struct {
	BaseURL           string  // store API root, e.g. https://desk.example.com/api/v2
	APIKey            string  // bearer token
	RequestsPerSecond float64 // client-side rate limit, default 5
	PageSize          int     // tickets per page, default 100
	Timeout           time.Duration
}

// Client is an HTTP implementation of Store for a JSON ticket-store API.
// All requests pass through a client-side rate limiter, and transient
// failures (429 and 5xx) are retried with exponential backoff before the
// error is surfaced to the engine.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
}

// NewClient validates the configuration and returns a ready Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("store base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid store base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("store base URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("store base URL must include a host")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("store API key is required")
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestRate
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL:    u,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		pageSize:   pageSize,
	}, nil
}

// apiError is a non-success response from the store.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("store returned %d: %s", e.status, e.body)
}

// retryable reports whether the response status warrants a retry.
func (e *apiError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// ListOpenProblems implements Store.
func (c *Client) ListOpenProblems(ctx context.Context) ([]Ticket, error) {
	query := url.Values{}
	query.Set("type", "problem")
	query.Set("status", "open")

	tickets, err := c.listTickets(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open problems: %w", err)
	}
	return tickets, nil
}

// ListRecentTickets implements Store.
func (c *Client) ListRecentTickets(ctx context.Context, window time.Duration) ([]Ticket, error) {
	query := url.Values{}
	query.Set("since", time.Now().UTC().Add(-window).Format(time.RFC3339))

	tickets, err := c.listTickets(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tickets: %w", err)
	}
	return tickets, nil
}

// LinkChildToIncident implements Store.
func (c *Client) LinkChildToIncident(ctx context.Context, ticketID, incidentID string) error {
	body := map[string]string{"incident_id": incidentID}
	path := fmt.Sprintf("/tickets/%s/link", url.PathEscape(ticketID))

	if err := c.do(ctx, http.MethodPut, path, nil, body, nil); err != nil {
		return fmt.Errorf("failed to link ticket %s to incident %s: %w", ticketID, incidentID, err)
	}
	return nil
}

// AnnotateTicket implements Store.
func (c *Client) AnnotateTicket(ctx context.Context, ticketID, text string, visibility Visibility) error {
	body := map[string]string{
		"body":       text,
		"visibility": string(visibility),
	}
	path := fmt.Sprintf("/tickets/%s/notes", url.PathEscape(ticketID))

	if err := c.do(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return fmt.Errorf("failed to annotate ticket %s: %w", ticketID, err)
	}
	return nil
}

// GetExternalIssueLinks implements Store. A ticket with no links (404 from
// the store) yields an empty slice, not an error.
func (c *Client) GetExternalIssueLinks(ctx context.Context, incidentID string) ([]IssueLink, error) {
	path := fmt.Sprintf("/tickets/%s/issue-links", url.PathEscape(incidentID))

	var out struct {
		Links []IssueLink `json:"links"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch issue links for %s: %w", incidentID, err)
	}
	return out.Links, nil
}

// listTickets pages through /tickets with the given filters until the store
// returns a short page.
func (c *Client) listTickets(ctx context.Context, query url.Values) ([]Ticket, error) {
	var all []Ticket

	for page := 1; ; page++ {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.pageSize))

		var out struct {
			Tickets []Ticket `json:"tickets"`
		}
		if err := c.do(ctx, http.MethodGet, "/tickets", q, nil, &out); err != nil {
			return nil, err
		}

		all = append(all, out.Tickets...)
		if len(out.Tickets) < c.pageSize {
			return all, nil
		}
	}
}

// do performs a single API call: rate limit, request, retry on transient
// failure, decode. A 404 maps to ErrNotFound; other non-2xx statuses become
// an apiError carrying the status and a body snippet.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		u := *c.baseURL
		u.Path = u.Path + path
		if query != nil {
			u.RawQuery = query.Encode()
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("User-Agent", userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network errors are retryable unless the context is gone.
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%s %s: %w", method, path, ErrNotFound))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &apiError{status: resp.StatusCode, body: readSnippet(resp.Body)}
			if !apiErr.retryable() {
				return backoff.Permanent(apiErr)
			}
			// Honor the store's Retry-After hint before the next attempt.
			if wait := retryAfter(resp); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return apiErr
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = maxRetryElapsed

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// retryAfter parses a Retry-After header expressed in seconds, capped so a
// misbehaving store cannot stall the cycle indefinitely.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	wait := time.Duration(seconds) * time.Second
	if wait > maxRetryAfterHint {
		wait = maxRetryAfterHint
	}
	return wait
}

// readSnippet returns up to 256 bytes of the response body for error context.
func readSnippet(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 256))
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(data))
}
