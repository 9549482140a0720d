package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/onthisday/internal/httpretry"
)

type Client struct {
	http    *httpretry.Client
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

func NewClient(httpClient *httpretry.Client, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// FetchSelected downloads the curated events for one calendar day.
func (c *Client) FetchSelected(ctx context.Context, r Request) (*Response, error) {
	if strings.TrimSpace(r.UserAgent) == "" {
		return nil, fmt.Errorf("user agent is required for feed requests")
	}
	if r.Month < 1 || r.Month > 12 || r.Day < 1 || r.Day > 31 {
		return nil, fmt.Errorf("invalid feed date %02d/%02d", r.Month, r.Day)
	}

	url := fmt.Sprintf("%s/%02d/%02d", c.baseURL, r.Month, r.Day)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.UserAgent)
	req.Header.Set("Accept", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := c.http.Do(ctx, req, httpretry.Options{Label: fmt.Sprintf("feed:%02d-%02d", r.Month, r.Day), Upstream: "feed"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("feed request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	selected, err := c.decodeSelected(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Feed fetched", "month", r.Month, "day", r.Day, "events", len(selected))

	return &Response{
		Payload:    json.RawMessage(body),
		Selected:   selected,
		CapturedAt: c.now().UTC(),
	}, nil
}

func (c *Client) decodeSelected(body []byte) ([]RawEvent, error) {
	var envelope struct {
		Selected []json.RawMessage `json:"selected"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	events := make([]RawEvent, 0, len(envelope.Selected))
	for i, raw := range envelope.Selected {
		var ev RawEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.logger.Warn("Skipping malformed feed event", "index", i, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
