// Package luma provides a client for the Luma event platform API.
package luma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Luma operations the sync step needs.
type Client interface {
	// ListEvents returns every event on the calendar starting after the
	// given time, following pagination to the end.
	ListEvents(ctx context.Context, calendarID string, after time.Time) ([]Event, error)
	// DownloadExport streams the guest-list CSV export for one event.
	DownloadExport(ctx context.Context, eventAPIID string, w io.Writer) error
}

// Event is one calendar entry as the API reports it.
type Event struct {
	APIID       string     `json:"api_id"`
	Name        string     `json:"name"`
	StartAt     *time.Time `json:"start_at"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	GeoAddress  *Address   `json:"geo_address_json"`
}

// Address carries the venue location.
type Address struct {
	FullAddress string `json:"full_address"`
	CityState   string `json:"city_state"`
}

// Location returns the best available venue string.
func (e Event) Location() string {
	if e.GeoAddress == nil {
		return ""
	}
	if e.GeoAddress.FullAddress != "" {
		return e.GeoAddress.FullAddress
	}
	return e.GeoAddress.CityState
}

type listEventsResponse struct {
	Entries []struct {
		Event Event `json:"event"`
	} `json:"entries"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Option configures the Luma client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Luma API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.lu.ma/v1",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes a request with exponential backoff on transient failures
// (429, 500, 502, 503), honoring the client-side rate limit per attempt.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		resp, err := c.http.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "luma: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("luma: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) get(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "luma: create request")
	}
	req.Header.Set("x-luma-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *httpClient) ListEvents(ctx context.Context, calendarID string, after time.Time) ([]Event, error) {
	var events []Event
	cursor := ""
	for {
		q := url.Values{}
		q.Set("calendar_api_id", calendarID)
		if !after.IsZero() {
			q.Set("after", after.UTC().Format(time.RFC3339))
		}
		if cursor != "" {
			q.Set("pagination_cursor", cursor)
		}

		req, err := c.get(ctx, "/calendar/list-events?"+q.Encode())
		if err != nil {
			return nil, err
		}

		body, statusCode, err := c.retryDo(ctx, req)
		if err != nil {
			return nil, eris.Wrap(err, "luma: list events")
		}
		if statusCode != http.StatusOK {
			return nil, eris.Errorf("luma: list events unexpected status %d: %s", statusCode, string(body))
		}

		var page listEventsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, eris.Wrap(err, "luma: unmarshal list events")
		}
		for _, entry := range page.Entries {
			events = append(events, entry.Event)
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return events, nil
}

func (c *httpClient) DownloadExport(ctx context.Context, eventAPIID string, w io.Writer) error {
	path := fmt.Sprintf("/event/export-guests?event_api_id=%s", url.QueryEscape(eventAPIID))
	req, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/csv")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return eris.Wrap(err, "luma: download export")
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("luma: export unexpected status %d: %s", statusCode, string(body))
	}

	if _, err := w.Write(body); err != nil {
		return eris.Wrap(err, "luma: write export")
	}
	return nil
}
