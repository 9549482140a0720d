package media

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/onthisday/internal/metrics"
	"github.com/lysyi3m/onthisday/internal/model"
)

const (
	DefaultMinWidth    = 640
	DefaultMinHeight   = 480
	DefaultSearchLimit = 5
)

// Searcher is the commons title search used as a fallback.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchPage, error)
}

type Options struct {
	MinWidth        int
	MinHeight       int
	SearchLimit     int
	CommonsFallback bool
}

// Result names the chosen asset and the related page it belongs to.
type Result struct {
	Asset     *model.MediaAssetSummary
	PageIndex int
	Origin    string
}

const (
	OriginEmbedded = "embedded"
	OriginCache    = "cache"
	OriginCommons  = "commons"
)

type Resolver struct {
	search  Searcher
	cache   *Cache
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewResolver builds a resolver. cache may be nil to disable the
// persistent cache; search may be nil to disable the commons fallback.
func NewResolver(search Searcher, cache *Cache, opts Options, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if opts.MinWidth <= 0 {
		opts.MinWidth = DefaultMinWidth
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = DefaultMinHeight
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{search: search, cache: cache, opts: opts, logger: logger, metrics: m}
}

// Ensure finds an image meeting the minimum size for an event's pages. It
// returns nil when nothing qualifies; lookup failures are logged, not returned.
func (r *Resolver) Ensure(ctx context.Context, pages []model.RelatedPageSummary) *Result {
	if res := r.embedded(pages); res != nil {
		return res
	}
	if !r.opts.CommonsFallback || r.search == nil || len(pages) == 0 {
		return nil
	}

	r.loadCache()

	for _, query := range QueryCandidates(pages[0]) {
		key := CacheKey(query, r.opts.MinWidth, r.opts.MinHeight, r.opts.SearchLimit)

		if r.cache != nil {
			if asset, ok := r.cache.Get(key); ok {
				if asset != nil && asset.Qualifies(r.opts.MinWidth, r.opts.MinHeight) {
					r.metrics.CacheLookup("media", "hit")
					return &Result{Asset: asset, PageIndex: 0, Origin: OriginCache}
				}
				r.metrics.CacheLookup("media", "hit_none")
				r.logger.Debug("Media cache records no match", "query", query)
				continue
			}
			r.metrics.CacheLookup("media", "miss")
		}

		results, err := r.search.Search(ctx, query, r.opts.SearchLimit)
		if err != nil {
			r.logger.Warn("Commons search failed", "query", query, "error", err)
			continue
		}

		asset := SelectAsset(results, r.opts.MinWidth, r.opts.MinHeight)
		if r.cache != nil {
			r.cache.Set(key, asset)
		}
		if asset != nil {
			r.logger.Debug("Commons media selected", "query", query, "asset", asset.ID, "width", asset.Width, "height", asset.Height)
			return &Result{Asset: asset, PageIndex: 0, Origin: OriginCommons}
		}
	}

	return nil
}

// Flush persists the cache if it changed.
func (r *Resolver) Flush() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Flush()
}

func (r *Resolver) loadCache() {
	if r.cache == nil {
		return
	}
	if err := r.cache.Load(); err != nil {
		r.logger.Warn("Media cache could not be loaded", "error", err)
	}
}

// embedded returns the first qualifying image already attached to a page,
// checking each page's originals before its thumbnails.
func (r *Resolver) embedded(pages []model.RelatedPageSummary) *Result {
	for i, page := range pages {
		for _, wantType := range []string{model.AssetTypeOriginal, model.AssetTypeThumbnail} {
			for _, asset := range page.Thumbnails {
				if asset.AssetType != wantType || !asset.Qualifies(r.opts.MinWidth, r.opts.MinHeight) {
					continue
				}
				found := asset
				return &Result{Asset: &found, PageIndex: i, Origin: OriginEmbedded}
			}
		}
	}
	return nil
}

// QueryCandidates lists the titles to search for, in order, without
// equivalent duplicates.
func QueryCandidates(page model.RelatedPageSummary) []string {
	seen := make(map[string]struct{}, 3)
	candidates := make([]string, 0, 3)
	for _, title := range []string{page.NormalizedTitle, page.CanonicalTitle, page.DisplayTitle} {
		key := FoldQuery(title)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, title)
	}
	return candidates
}

// RichestKnown returns the largest embedded image across pages by area.
func RichestKnown(pages []model.RelatedPageSummary) (*model.MediaAssetSummary, int) {
	var (
		best      *model.MediaAssetSummary
		bestIndex = -1
		bestArea  int
	)
	for i, page := range pages {
		for j := range page.Thumbnails {
			asset := page.Thumbnails[j]
			if asset.Width <= 0 || asset.Height <= 0 {
				continue
			}
			if area := asset.Width * asset.Height; area > bestArea {
				found := asset
				best, bestIndex, bestArea = &found, i, area
			}
		}
	}
	return best, bestIndex
}
