package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/lysyi3m/onthisday/internal/httpretry"
	"github.com/lysyi3m/onthisday/internal/metrics"
	"github.com/lysyi3m/onthisday/internal/model"
)

const (
	DefaultBaseURL     = "https://www.wikidata.org/wiki/Special:EntityData"
	DefaultLanguage    = "en"
	DefaultConcurrency = 4
)

type Options struct {
	BaseURL     string
	Language    string
	UserAgent   string
	Concurrency int
	Retry       httpretry.Options
}

type Client struct {
	http    *httpretry.Client
	cache   *Cache
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewClient(httpClient *httpretry.Client, cache *Cache, opts Options, logger *slog.Logger, m *metrics.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, cache: cache, opts: opts, logger: logger, metrics: m}
}

// FetchEntities resolves ids with at most Concurrency requests in flight.
// The result is keyed by the id found in the payload, which differs from
// the requested id when the upstream followed a redirect. Unresolvable ids
// are absent from the map.
func (c *Client) FetchEntities(ctx context.Context, ids []string) map[string]*model.WikidataEntitySummary {
	unique := dedupe(ids)
	results := make(map[string]*model.WikidataEntitySummary, len(unique))
	if len(unique) == 0 {
		return results
	}

	workers := min(c.opts.Concurrency, len(unique))
	queue := make(chan string, len(unique))
	for _, id := range unique {
		queue <- id
	}
	close(queue)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range queue {
				if ctx.Err() != nil {
					return
				}
				entity := c.FetchEntity(ctx, id)
				if entity == nil {
					continue
				}
				mu.Lock()
				results[entity.ID] = entity
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	c.logger.Debug("Entities resolved", "requested", len(unique), "resolved", len(results))
	return results
}

// FetchEntity returns nil when the entity cannot be resolved. Non-2xx
// responses and payloads without the entity are remembered as misses;
// exhausted retries are not.
func (c *Client) FetchEntity(ctx context.Context, id string) *model.WikidataEntitySummary {
	key := cacheKey{id: id, language: c.opts.Language, baseURL: c.opts.BaseURL}
	if entity, ok := c.cache.lookup(key); ok {
		if entity != nil {
			c.metrics.CacheLookup("wikidata", "hit")
		} else {
			c.metrics.CacheLookup("wikidata", "miss_cached")
		}
		return entity
	}
	c.metrics.CacheLookup("wikidata", "miss")

	entity, permanent, err := c.fetch(ctx, id)
	if err != nil {
		c.logger.Warn("Entity not resolved", "entity", id, "error", err)
		if permanent {
			c.cache.storeMiss(key)
		}
		return nil
	}

	c.cache.storeHit(key, entity)
	return entity
}

// Cached returns a previously resolved entity without any network call.
func (c *Client) Cached(id string) *model.WikidataEntitySummary {
	entity, _ := c.cache.lookup(cacheKey{id: id, language: c.opts.Language, baseURL: c.opts.BaseURL})
	return entity
}

func (c *Client) fetch(ctx context.Context, id string) (*model.WikidataEntitySummary, bool, error) {
	url := fmt.Sprintf("%s/%s.json", c.opts.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, true, fmt.Errorf("failed to create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	opts := c.opts.Retry
	opts.Label = "wikidata:" + id
	opts.Upstream = "wikidata"

	resp, err := c.http.Do(ctx, req, opts)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("entity request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Entities map[string]rawEntity `json:"entities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, true, fmt.Errorf("failed to decode entity payload: %w", err)
	}

	raw, ok := payload.Entities[id]
	if !ok && len(payload.Entities) == 1 {
		for _, only := range payload.Entities {
			raw, ok = only, true
		}
	}
	if !ok {
		return nil, true, fmt.Errorf("entity missing from payload")
	}
	if raw.ID == "" {
		raw.ID = id
	}

	return summarize(&raw, c.opts.Language), false, nil
}

func summarize(raw *rawEntity, lang string) *model.WikidataEntitySummary {
	summary := &model.WikidataEntitySummary{
		ID:             raw.ID,
		Label:          pickText(raw.Labels, lang),
		InstanceOfIDs:  raw.entityIDs(PropInstanceOf),
		SubclassOfIDs:  raw.entityIDs(PropSubclassOf),
		GenreIDs:       raw.entityIDs(PropGenre),
		ParticipantIDs: raw.entityIDs(PropParticipant),
		PointInTime:    raw.pointInTime(),
	}
	if summary.Label == "" {
		summary.Label = raw.ID
	}
	if d := pickText(raw.Descriptions, lang); d != "" {
		summary.Description = &d
	}
	return summary
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
