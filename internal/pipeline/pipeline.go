package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/onthisday/internal/cfg"
	"github.com/lysyi3m/onthisday/internal/enrich"
	"github.com/lysyi3m/onthisday/internal/feed"
	"github.com/lysyi3m/onthisday/internal/httpretry"
	"github.com/lysyi3m/onthisday/internal/media"
	"github.com/lysyi3m/onthisday/internal/metrics"
	"github.com/lysyi3m/onthisday/internal/model"
	"github.com/lysyi3m/onthisday/internal/overrides"
	"github.com/lysyi3m/onthisday/internal/store"
	"github.com/lysyi3m/onthisday/internal/validate"
	"github.com/lysyi3m/onthisday/internal/wikidata"
)

// Opener opens the document store. It is only called when a write happens.
type Opener func(ctx context.Context) (store.Store, error)

type Deps struct {
	HTTP    *http.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error
}

type Pipeline struct {
	cfg       *cfg.Cfg
	feed      *feed.Client
	enricher  *enrich.Orchestrator
	media     *media.Resolver
	overrides *overrides.Loader
	validator *validate.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func New(c *cfg.Cfg, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	httpClient := deps.HTTP
	if httpClient == nil {
		httpClient = httpretry.NewHTTPClient(c.HTTPTimeout)
	}

	retry := httpretry.New(httpClient, logger, deps.Metrics)
	if deps.Sleep != nil {
		retry.Sleep = deps.Sleep
	}

	entities := wikidata.NewClient(retry, wikidata.NewCache(), wikidata.Options{
		BaseURL:     c.WikidataBaseURL,
		Language:    c.WikidataLanguage,
		UserAgent:   c.UserAgent,
		Concurrency: c.WikidataConcurrency,
		Retry:       c.WikidataRetry(),
	}, logger, deps.Metrics)

	var mediaCache *media.Cache
	if !c.MediaCacheDisabled {
		mediaCache = media.NewCache(c.MediaCachePath, c.MediaCacheTTL(), logger)
	}
	var search media.Searcher
	if c.CommonsFallback {
		search = media.NewSearchClient(retry, c.CommonsSearchURL, c.UserAgent, c.Token, logger, deps.Metrics)
	}
	resolver := media.NewResolver(search, mediaCache, media.Options{
		MinWidth:        c.MediaMinWidth,
		MinHeight:       c.MediaMinHeight,
		SearchLimit:     c.MediaSearchLimit,
		CommonsFallback: c.CommonsFallback,
	}, logger, deps.Metrics)

	return &Pipeline{
		cfg:       c,
		feed:      feed.NewClient(retry, c.FeedBaseURL, logger),
		enricher:  enrich.NewOrchestrator(entities, resolver, nil, logger),
		media:     resolver,
		overrides: overrides.NewLoader(logger),
		validator: validate.NewValidator(),
		metrics:   deps.Metrics,
		logger:    logger,
		now:       now,
	}
}

// Run builds the validated batch for the configured day and either logs the
// write plan (dry run) or commits it in one transaction.
func (p *Pipeline) Run(ctx context.Context, open Opener) (*Plan, error) {
	started := p.now()
	defer func() { p.metrics.RunDuration(p.now().Sub(started).Seconds()) }()

	plan, err := p.Build(ctx)
	if err != nil {
		return nil, err
	}

	if p.cfg.DryRun {
		plan.Log(p.logger)
		return plan, nil
	}

	st, err := open(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if err := st.Commit(ctx, plan.Batch); err != nil {
		return nil, fmt.Errorf("failed to write batch: %w", err)
	}
	p.metrics.EventsWritten(len(plan.Batch.Events))

	p.logger.Info("Batch written",
		"payload_key", plan.Batch.PayloadKey,
		"events", len(plan.Batch.Events),
		"digest", plan.DigestID(),
		"duration", p.now().Sub(started))
	return plan, nil
}

// Build runs fetch, normalize, enrich, override merge and validation. Nothing
// is written.
func (p *Pipeline) Build(ctx context.Context) (*Plan, error) {
	c := p.cfg

	overrideCfg, err := p.overrides.Load(c.OverridesPath)
	if err != nil {
		return nil, err
	}

	resp, err := p.feed.FetchSelected(ctx, feed.Request{
		Month:     c.Month,
		Day:       c.Day,
		UserAgent: c.UserAgent,
		Token:     c.Token,
	})
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	plan := &Plan{}
	events := p.normalize(resp, now, plan)

	if len(events) > 0 {
		events = p.enricher.Run(ctx, events)
	}
	if err := p.media.Flush(); err != nil {
		p.logger.Warn("Failed to persist media cache", "error", err)
	}

	events, suppressed, err := overrides.Merge(events, overrideCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to apply overrides: %w", err)
	}
	plan.Suppressed = suppressed
	if len(suppressed) > 0 {
		p.logger.Info("Events suppressed by overrides", "count", len(suppressed), "event_ids", suppressed)
	}

	if err := p.validator.Events(events); err != nil {
		return nil, err
	}

	key := model.PayloadCacheKey(c.Month, c.Day)
	plan.Batch = store.Batch{
		PayloadKey: key,
		Payload: model.CachedPayload{
			CacheKey:   key,
			Month:      c.Month,
			Day:        c.Day,
			Provider:   feed.Provider,
			Feed:       feed.FeedName,
			CapturedAt: resp.CapturedAt,
			Payload:    resp.Payload,
		},
		Events: events,
	}

	if len(events) == 0 {
		p.logger.Warn("No events for day, digest will not be written", "month", c.Month, "day", c.Day)
		return plan, nil
	}

	digest := model.DailyDigestRecord{
		DigestID:  model.DigestID(key),
		Date:      model.SourceDate(c.Year, c.Month, c.Day),
		EventIDs:  make([]string, 0, len(events)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, ev := range events {
		digest.EventIDs = append(digest.EventIDs, ev.EventID)
	}
	if err := p.validator.Digest(digest, events); err != nil {
		return nil, err
	}
	plan.Batch.Digest = &digest

	return plan, nil
}

// normalize maps raw events, skipping unusable ones and later duplicates.
func (p *Pipeline) normalize(resp *feed.Response, now time.Time, plan *Plan) []model.HistoricalEventRecord {
	nc := feed.NormalizeContext{
		Month:      p.cfg.Month,
		Day:        p.cfg.Day,
		Year:       p.cfg.Year,
		CapturedAt: resp.CapturedAt,
		Now:        now,
		Logger:     p.logger,
	}

	events := make([]model.HistoricalEventRecord, 0, len(resp.Selected))
	seen := make(map[string]struct{}, len(resp.Selected))
	for i, raw := range resp.Selected {
		ev, err := feed.Normalize(raw, nc)
		if err != nil {
			plan.Skipped++
			p.logger.Warn("Skipping feed event", "index", i, "error", err)
			continue
		}
		if _, dup := seen[ev.EventID]; dup {
			plan.Duplicates++
			p.logger.Warn("Duplicate event in feed, keeping first", "index", i, "event", ev.EventID)
			continue
		}
		seen[ev.EventID] = struct{}{}
		events = append(events, ev)
	}

	p.logger.Info("Events normalized", "count", len(events), "skipped", plan.Skipped, "duplicates", plan.Duplicates)
	return events
}
