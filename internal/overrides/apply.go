package overrides

import (
	"fmt"
	"slices"

	"github.com/lysyi3m/onthisday/internal/model"
)

const defaultMediaDimension = 1024

// ApplyMediaOverride converts an override media descriptor to an asset.
// Missing dimensions default to 1024. The id comes from the override, then
// from the source URL, then from fallbackID, so reruns produce the same id.
func ApplyMediaOverride(o MediaOverride, fallbackID string) (model.MediaAssetSummary, error) {
	width, height := defaultMediaDimension, defaultMediaDimension
	if o.Width != nil {
		width = *o.Width
	}
	if o.Height != nil {
		height = *o.Height
	}
	if width <= 0 || height <= 0 {
		return model.MediaAssetSummary{}, fmt.Errorf("media override dimensions must be positive, got %dx%d", width, height)
	}

	provider := model.ProviderCustom
	if o.Provider != nil {
		provider = *o.Provider
	}
	assetType := model.AssetTypeOriginal
	if o.AssetType != nil {
		assetType = *o.AssetType
	}

	id := fallbackID
	switch {
	case o.ID != nil && *o.ID != "":
		id = *o.ID
	case o.SourceURL != "":
		id = model.AssetIDFromURL(provider, o.SourceURL)
	}

	return model.MediaAssetSummary{
		ID:          id,
		SourceURL:   o.SourceURL,
		Width:       width,
		Height:      height,
		Provider:    provider,
		AssetType:   assetType,
		License:     o.License,
		Attribution: o.Attribution,
		AltText:     o.AltText,
	}, nil
}

// Merge applies overrides to enriched events. Suppressed events are dropped
// and their ids returned; everything else keeps its position.
func Merge(events []model.HistoricalEventRecord, cfg *Config) ([]model.HistoricalEventRecord, []string, error) {
	if cfg == nil || len(cfg.Events) == 0 {
		return events, nil, nil
	}

	merged := make([]model.HistoricalEventRecord, 0, len(events))
	var suppressed []string

	for _, ev := range events {
		o, ok := cfg.Events[ev.EventID]
		if !ok {
			merged = append(merged, ev)
			continue
		}
		if o.Suppress {
			suppressed = append(suppressed, ev.EventID)
			continue
		}

		if o.Categories != nil {
			ev.Categories = slices.Clone(o.Categories)
		}
		if o.Era != nil {
			era := *o.Era
			ev.Era = &era
		}
		if o.Tags != nil {
			ev.Tags = slices.Clone(o.Tags)
		}
		if o.SelectedMedia != nil && len(ev.RelatedPages) > 0 {
			asset, err := ApplyMediaOverride(*o.SelectedMedia, ev.EventID+"-override")
			if err != nil {
				return nil, nil, fmt.Errorf("event %s: %w", ev.EventID, err)
			}
			// The override replaces the automatic selection wherever it landed.
			ev.RelatedPages = slices.Clone(ev.RelatedPages)
			for i := range ev.RelatedPages {
				ev.RelatedPages[i].SelectedMedia = nil
			}
			ev.RelatedPages[0].SelectedMedia = &asset
		}

		merged = append(merged, ev)
	}

	return merged, suppressed, nil
}
