package feed

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/lysyi3m/onthisday/internal/model"
	"golang.org/x/net/html"
)

const eventIDLength = 32

// EventID hashes text, year, month, day and each related title, in that
// order. Re-ingesting the same upstream content yields the same id.
func EventID(text string, year *int, month, day int, titles []string) string {
	parts := make([]string, 0, 4+len(titles))
	parts = append(parts, text)
	if year != nil {
		parts = append(parts, strconv.Itoa(*year))
	} else {
		parts = append(parts, "")
	}
	parts = append(parts, strconv.Itoa(month), strconv.Itoa(day))
	parts = append(parts, titles...)

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])[:eventIDLength]
}

// Normalize maps one raw feed event into a record without enrichment.
// Malformed optional fields are dropped with a warning; pages without a
// title are skipped. It fails only when the event has no text or no usable
// related pages.
func Normalize(raw RawEvent, nc NormalizeContext) (model.HistoricalEventRecord, error) {
	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return model.HistoricalEventRecord{}, fmt.Errorf("event has no text")
	}
	if len(raw.Pages) == 0 {
		return model.HistoricalEventRecord{}, fmt.Errorf("event has no related pages")
	}

	logger := nc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pages := make([]model.RelatedPageSummary, 0, len(raw.Pages))
	titles := make([]string, 0, len(raw.Pages))
	for i, p := range raw.Pages {
		page, ok := normalizePage(p, logger)
		if !ok {
			logger.Warn("Skipping related page without title", "page_index", i, "page_id", p.PageID)
			continue
		}
		pages = append(pages, page)
		titles = append(titles, page.CanonicalTitle)
	}
	if len(pages) == 0 {
		return model.HistoricalEventRecord{}, fmt.Errorf("event has no usable related pages")
	}

	cacheKey := model.PayloadCacheKey(nc.Month, nc.Day)
	now := nc.Now.UTC()

	return model.HistoricalEventRecord{
		EventID:      EventID(text, raw.Year, nc.Month, nc.Day, titles),
		Year:         raw.Year,
		Text:         text,
		Summary:      summaryFrom(pages),
		Categories:   []string{},
		Tags:         []string{},
		Date:         model.EventDate{Month: nc.Month, Day: nc.Day},
		RelatedPages: pages,
		Source: model.EventSource{
			Provider:        Provider,
			Feed:            FeedName,
			RawType:         cmp.Or(raw.Type, RawType),
			CapturedAt:      nc.CapturedAt.UTC(),
			SourceDate:      model.SourceDate(nc.Year, nc.Month, nc.Day),
			PayloadCacheKey: cacheKey,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func normalizePage(p RawPage, logger *slog.Logger) (model.RelatedPageSummary, bool) {
	canonical := strings.TrimSpace(cmp.Or(p.Titles.Canonical, strings.ReplaceAll(p.Title, " ", "_")))
	if canonical == "" {
		return model.RelatedPageSummary{}, false
	}
	normalized := cmp.Or(strings.TrimSpace(p.Titles.Normalized), strings.ReplaceAll(canonical, "_", " "))
	display := cmp.Or(StripHTML(p.Titles.Display), StripHTML(p.DisplayTitle), normalized)

	page := model.RelatedPageSummary{
		PageID:          max(p.PageID, 0),
		CanonicalTitle:  canonical,
		DisplayTitle:    display,
		NormalizedTitle: normalized,
		Description:     nonEmpty(p.Description),
		Extract:         nonEmpty(p.Extract),
		WikidataID:      nonEmpty(p.WikibaseItem),
		DesktopURL:      pageURL(p.ContentURLs.Desktop.Page, "https://en.wikipedia.org/wiki/", canonical),
		MobileURL:       pageURL(p.ContentURLs.Mobile.Page, "https://en.m.wikipedia.org/wiki/", canonical),
		Thumbnails:      []model.MediaAssetSummary{},
	}
	if page.WikidataID != nil && !model.IsEntityID(*page.WikidataID) {
		logger.Warn("Dropping malformed wikibase_item", "page", canonical, "wikibase_item", *page.WikidataID)
		page.WikidataID = nil
	}

	alt := display
	for _, img := range []struct {
		raw       *RawImage
		assetType string
	}{
		{p.Thumbnail, model.AssetTypeThumbnail},
		{p.Original, model.AssetTypeOriginal},
	} {
		if img.raw != nil && img.raw.Source != "" && !model.IsHTTPURL(img.raw.Source) {
			logger.Warn("Dropping image with invalid source", "page", canonical, "type", img.assetType, "source", img.raw.Source)
			continue
		}
		if asset, ok := imageAsset(img.raw, img.assetType, alt); ok {
			page.Thumbnails = append(page.Thumbnails, asset)
		}
	}

	return page, true
}

// pageURL keeps the upstream article URL when it is absolute http(s) and
// otherwise builds one from the canonical title.
func pageURL(upstream, base, title string) string {
	if model.IsHTTPURL(upstream) {
		return upstream
	}
	return articleURL(base, title)
}

func imageAsset(img *RawImage, assetType, alt string) (model.MediaAssetSummary, bool) {
	if img == nil || !model.IsHTTPURL(img.Source) || img.Width <= 0 || img.Height <= 0 {
		return model.MediaAssetSummary{}, false
	}
	asset := model.MediaAssetSummary{
		ID:        model.AssetIDFromURL(model.ProviderWikimedia, img.Source),
		SourceURL: img.Source,
		Width:     img.Width,
		Height:    img.Height,
		Provider:  model.ProviderWikimedia,
		AssetType: assetType,
	}
	if alt != "" {
		asset.AltText = &alt
	}
	return asset, true
}

// summaryFrom takes the extract of the first page with an entity id, falling
// back to the first page with any extract.
func summaryFrom(pages []model.RelatedPageSummary) *string {
	for _, p := range pages {
		if p.WikidataID != nil && p.Extract != nil {
			return p.Extract
		}
	}
	for _, p := range pages {
		if p.Extract != nil {
			return p.Extract
		}
	}
	return nil
}

// StripHTML reduces markup such as `<span class="mw-page-title-main">Apollo 11</span>`
// to its text content.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

func articleURL(base, title string) string {
	if title == "" {
		return ""
	}
	return base + url.PathEscape(title)
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
