package media

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/onthisday/internal/httpretry"
	"github.com/lysyi3m/onthisday/internal/metrics"
	"github.com/lysyi3m/onthisday/internal/model"
)

const (
	DefaultSearchURL = "https://api.wikimedia.org/core/v1/commons/search/title"
	DefaultMemoTTL   = 10 * time.Minute
)

type SearchPage struct {
	Title     string          `json:"title"`
	Thumbnail *SearchImage    `json:"thumbnail"`
	Original  *SearchImage    `json:"original"`
	License   json.RawMessage `json:"license"`
	Terms     *SearchTerms    `json:"terms"`
}

type SearchImage struct {
	URL    string `json:"url"`
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type SearchTerms struct {
	Description []string `json:"description"`
	Label       []string `json:"label"`
}

type memoEntry struct {
	pages     []SearchPage
	expiresAt time.Time
}

// SearchClient queries the commons title search. Results are memoized in
// memory per (query, limit) for memoTTL.
type SearchClient struct {
	http      *httpretry.Client
	baseURL   string
	userAgent string
	token     string
	memoTTL   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu   sync.Mutex
	memo map[string]memoEntry
}

func NewSearchClient(httpClient *httpretry.Client, baseURL, userAgent, token string, logger *slog.Logger, m *metrics.Metrics) *SearchClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchClient{
		http:      httpClient,
		baseURL:   cmp.Or(baseURL, DefaultSearchURL),
		userAgent: userAgent,
		token:     token,
		memoTTL:   DefaultMemoTTL,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
		memo:      make(map[string]memoEntry),
	}
}

func (s *SearchClient) Search(ctx context.Context, query string, limit int) ([]SearchPage, error) {
	memoKey := query + "|" + strconv.Itoa(limit)

	s.mu.Lock()
	if entry, ok := s.memo[memoKey]; ok && s.now().Before(entry.expiresAt) {
		s.mu.Unlock()
		s.metrics.CacheLookup("commons_memo", "hit")
		return entry.pages, nil
	}
	s.mu.Unlock()
	s.metrics.CacheLookup("commons_memo", "miss")

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(ctx, req, httpretry.Options{Label: "commons:" + query, Upstream: "commons"})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("commons search failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Pages []SearchPage `json:"pages"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	s.mu.Lock()
	s.memo[memoKey] = memoEntry{pages: payload.Pages, expiresAt: s.now().Add(s.memoTTL)}
	s.mu.Unlock()

	return payload.Pages, nil
}

// SelectAsset walks pages in result order and returns the first qualifying
// image, preferring a page's original over its thumbnail.
func SelectAsset(pages []SearchPage, minWidth, minHeight int) *model.MediaAssetSummary {
	for _, page := range pages {
		if asset := page.asset(page.Original, model.AssetTypeOriginal); asset != nil && asset.Qualifies(minWidth, minHeight) {
			return asset
		}
		if asset := page.asset(page.Thumbnail, model.AssetTypeThumbnail); asset != nil && asset.Qualifies(minWidth, minHeight) {
			return asset
		}
	}
	return nil
}

func (p SearchPage) asset(img *SearchImage, assetType string) *model.MediaAssetSummary {
	if img == nil {
		return nil
	}
	src := cmp.Or(img.URL, img.Source)
	if src == "" {
		return nil
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	if !model.IsHTTPURL(src) {
		return nil
	}

	asset := &model.MediaAssetSummary{
		ID:        model.AssetIDFromURL(model.ProviderWikimedia, src),
		SourceURL: src,
		Width:     img.Width,
		Height:    img.Height,
		Provider:  model.ProviderWikimedia,
		AssetType: assetType,
		License:   p.license(),
	}
	if alt := p.altText(); alt != "" {
		asset.AltText = &alt
	}
	return asset
}

// license accepts either a plain string or an object with code/title/url.
func (p SearchPage) license() *string {
	if len(p.License) == 0 || string(p.License) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(p.License, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return &s
		}
		return nil
	}

	var obj struct {
		Code  string `json:"code"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(p.License, &obj); err != nil {
		return nil
	}
	if v := cmp.Or(obj.Title, obj.Code, obj.URL); v != "" {
		return &v
	}
	return nil
}

func (p SearchPage) altText() string {
	if p.Terms != nil {
		if len(p.Terms.Description) > 0 && p.Terms.Description[0] != "" {
			return p.Terms.Description[0]
		}
		if len(p.Terms.Label) > 0 && p.Terms.Label[0] != "" {
			return p.Terms.Label[0]
		}
	}
	title := strings.TrimPrefix(p.Title, "File:")
	if dot := strings.LastIndex(title, "."); dot > 0 {
		title = title[:dot]
	}
	return strings.ReplaceAll(title, "_", " ")
}
