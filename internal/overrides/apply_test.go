package overrides

import (
	"testing"

	"github.com/lysyi3m/onthisday/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

func TestApplyMediaOverride_Defaults(t *testing.T) {
	asset, err := ApplyMediaOverride(MediaOverride{SourceURL: "https://example.org/a.jpg"}, "fallback")
	require.NoError(t, err)

	assert.Equal(t, 1024, asset.Width)
	assert.Equal(t, 1024, asset.Height)
	assert.Equal(t, model.ProviderCustom, asset.Provider)
	assert.Equal(t, model.AssetTypeOriginal, asset.AssetType)
	assert.Equal(t, model.AssetIDFromURL(model.ProviderCustom, "https://example.org/a.jpg"), asset.ID)

	again, err := ApplyMediaOverride(MediaOverride{SourceURL: "https://example.org/a.jpg"}, "other-fallback")
	require.NoError(t, err)
	assert.Equal(t, asset.ID, again.ID)
}

func TestApplyMediaOverride_ExplicitValues(t *testing.T) {
	asset, err := ApplyMediaOverride(MediaOverride{
		ID:        strPtr("poster"),
		SourceURL: "https://example.org/p.jpg",
		Width:     intPtr(800),
		Height:    intPtr(600),
		Provider:  strPtr(model.ProviderWikimedia),
		AltText:   strPtr("Poster"),
	}, "fallback")
	require.NoError(t, err)

	assert.Equal(t, "poster", asset.ID)
	assert.Equal(t, 800, asset.Width)
	assert.Equal(t, 600, asset.Height)
	assert.Equal(t, model.ProviderWikimedia, asset.Provider)
	assert.Equal(t, "Poster", *asset.AltText)
}

func TestApplyMediaOverride_FallbackID(t *testing.T) {
	asset, err := ApplyMediaOverride(MediaOverride{}, "evt-override")
	require.NoError(t, err)
	assert.Equal(t, "evt-override", asset.ID)
}

func TestApplyMediaOverride_RejectsNonPositive(t *testing.T) {
	_, err := ApplyMediaOverride(MediaOverride{SourceURL: "https://e.org/x.jpg", Width: intPtr(0)}, "f")
	assert.Error(t, err)

	_, err = ApplyMediaOverride(MediaOverride{SourceURL: "https://e.org/x.jpg", Height: intPtr(-5)}, "f")
	assert.Error(t, err)
}

func event(id string) model.HistoricalEventRecord {
	return model.HistoricalEventRecord{
		EventID:    id,
		Text:       "text",
		Categories: []string{"surprise"},
		Tags:       []string{},
		RelatedPages: []model.RelatedPageSummary{
			{CanonicalTitle: "A"},
			{CanonicalTitle: "B"},
		},
	}
}

func TestMerge(t *testing.T) {
	const idC = "cccccccccccccccccccccccccccccccc"
	cfg := &Config{Events: map[string]EventOverride{
		idA: {
			Categories:    []string{"inventions", "science"},
			Era:           strPtr(model.EraNineteenth),
			Tags:          []string{"curated"},
			SelectedMedia: &MediaOverride{SourceURL: "https://example.org/m.jpg"},
		},
		idB: {Suppress: true},
	}}

	original := []model.HistoricalEventRecord{event(idA), event(idB), event(idC)}
	merged, suppressed, err := Merge(original, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{idB}, suppressed)
	require.Len(t, merged, 2)
	assert.Equal(t, idA, merged[0].EventID)
	assert.Equal(t, idC, merged[1].EventID)

	a := merged[0]
	assert.Equal(t, []string{"inventions", "science"}, a.Categories)
	assert.Equal(t, model.EraNineteenth, *a.Era)
	assert.Equal(t, []string{"curated"}, a.Tags)
	require.NotNil(t, a.RelatedPages[0].SelectedMedia)
	assert.Equal(t, "https://example.org/m.jpg", a.RelatedPages[0].SelectedMedia.SourceURL)
	assert.Nil(t, a.RelatedPages[1].SelectedMedia)

	assert.Nil(t, original[0].RelatedPages[0].SelectedMedia, "input is not mutated")
	assert.Equal(t, []string{"surprise"}, merged[1].Categories)
}

func TestMerge_MediaOverrideReplacesAutomaticSelection(t *testing.T) {
	ev := event(idA)
	ev.RelatedPages[1].SelectedMedia = &model.MediaAssetSummary{
		ID:        "auto",
		SourceURL: "https://upload.example.org/auto.jpg",
		Width:     1200,
		Height:    900,
		Provider:  model.ProviderWikimedia,
		AssetType: model.AssetTypeThumbnail,
	}
	cfg := &Config{Events: map[string]EventOverride{
		idA: {SelectedMedia: &MediaOverride{SourceURL: "https://example.org/curated.jpg"}},
	}}

	merged, _, err := Merge([]model.HistoricalEventRecord{ev}, cfg)
	require.NoError(t, err)
	require.Len(t, merged, 1)

	var selected []string
	for _, page := range merged[0].RelatedPages {
		if page.SelectedMedia != nil {
			selected = append(selected, page.SelectedMedia.SourceURL)
		}
	}
	assert.Equal(t, []string{"https://example.org/curated.jpg"}, selected)
	assert.NotNil(t, ev.RelatedPages[1].SelectedMedia, "input is not mutated")
}

func TestMerge_EmptyConfig(t *testing.T) {
	events := []model.HistoricalEventRecord{event(idA)}
	merged, suppressed, err := Merge(events, &Config{Events: map[string]EventOverride{}})
	require.NoError(t, err)
	assert.Equal(t, events, merged)
	assert.Empty(t, suppressed)
}
