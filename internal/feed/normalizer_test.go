package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lysyi3m/onthisday/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents(t *testing.T) []RawEvent {
	t.Helper()
	var envelope struct {
		Selected []json.RawMessage `json:"selected"`
	}
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &envelope))

	var first, third RawEvent
	require.NoError(t, json.Unmarshal(envelope.Selected[0], &first))
	require.NoError(t, json.Unmarshal(envelope.Selected[2], &third))
	return []RawEvent{first, third}
}

func strPtr(s string) *string { return &s }

func testContext() NormalizeContext {
	captured := time.Date(2024, 7, 20, 6, 0, 0, 0, time.UTC)
	return NormalizeContext{Month: 7, Day: 20, Year: 2024, CapturedAt: captured, Now: captured}
}

func TestNormalize(t *testing.T) {
	raw := sampleEvents(t)[0]

	ev, err := Normalize(raw, testContext())
	require.NoError(t, err)

	assert.Len(t, ev.EventID, 32)
	assert.Equal(t, "Apollo 11 lands on the Moon.", ev.Text)
	require.NotNil(t, ev.Year)
	assert.Equal(t, 1969, *ev.Year)
	assert.Equal(t, model.EventDate{Month: 7, Day: 20}, ev.Date)
	assert.Empty(t, ev.Categories)
	require.NotNil(t, ev.Summary)
	assert.Equal(t, "Apollo 11 was the first crewed Moon landing.", *ev.Summary)

	assert.Equal(t, "wikimedia", ev.Source.Provider)
	assert.Equal(t, "onthisday/selected", ev.Source.Feed)
	assert.Equal(t, "selected", ev.Source.RawType)
	assert.Equal(t, "2024-07-20", ev.Source.SourceDate)
	assert.Equal(t, "selected-07-20", ev.Source.PayloadCacheKey)

	require.Len(t, ev.RelatedPages, 1)
	page := ev.RelatedPages[0]
	assert.Equal(t, 662, page.PageID)
	assert.Equal(t, "Apollo_11", page.CanonicalTitle)
	assert.Equal(t, "Apollo 11", page.NormalizedTitle)
	assert.Equal(t, "Apollo 11", page.DisplayTitle)
	require.NotNil(t, page.WikidataID)
	assert.Equal(t, "Q43653", *page.WikidataID)

	require.Len(t, page.Thumbnails, 1)
	thumb := page.Thumbnails[0]
	assert.Equal(t, 1000, thumb.Width)
	assert.Equal(t, 800, thumb.Height)
	assert.Equal(t, model.ProviderWikimedia, thumb.Provider)
	assert.Equal(t, model.AssetTypeThumbnail, thumb.AssetType)
	assert.Nil(t, page.SelectedMedia)
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := sampleEvents(t)[0]

	a, err := Normalize(raw, testContext())
	require.NoError(t, err)

	later := testContext()
	later.CapturedAt = later.CapturedAt.Add(48 * time.Hour)
	later.Now = later.CapturedAt
	later.Year = 2025
	b, err := Normalize(raw, later)
	require.NoError(t, err)

	assert.Equal(t, a.EventID, b.EventID)
}

func TestNormalize_IDDependsOnContent(t *testing.T) {
	raw := sampleEvents(t)[0]
	a, _ := Normalize(raw, testContext())

	raw.Text = "Apollo 11 lands on the Moon!"
	b, _ := Normalize(raw, testContext())
	assert.NotEqual(t, a.EventID, b.EventID)

	other := testContext()
	other.Day = 21
	c, _ := Normalize(sampleEvents(t)[0], other)
	assert.NotEqual(t, a.EventID, c.EventID)
}

func TestNormalize_MissingOptionalFields(t *testing.T) {
	raw := sampleEvents(t)[1]

	ev, err := Normalize(raw, testContext())
	require.NoError(t, err)

	assert.Nil(t, ev.Year)
	assert.Nil(t, ev.Summary)
	page := ev.RelatedPages[0]
	assert.Equal(t, "Second_page", page.CanonicalTitle)
	assert.Equal(t, "Second page", page.NormalizedTitle)
	assert.Equal(t, "Second page", page.DisplayTitle)
	assert.Nil(t, page.Extract)
	assert.Nil(t, page.WikidataID)
	assert.Empty(t, page.Thumbnails)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Second_page", page.DesktopURL)
	assert.Equal(t, "https://en.m.wikipedia.org/wiki/Second_page", page.MobileURL)
}

func TestNormalize_RejectsEventWithoutPages(t *testing.T) {
	_, err := Normalize(RawEvent{Text: "Something happened."}, testContext())
	assert.Error(t, err)

	_, err = Normalize(RawEvent{Text: " ", Pages: []RawPage{{Title: "X"}}}, testContext())
	assert.Error(t, err)
}

func TestNormalize_OriginalImage(t *testing.T) {
	raw := RawEvent{
		Text: "Event",
		Pages: []RawPage{{
			Title:     "Page",
			Thumbnail: &RawImage{Source: "https://upload.wikimedia.org/t.jpg", Width: 320, Height: 200},
			Original:  &RawImage{Source: "https://upload.wikimedia.org/o.jpg", Width: 3200, Height: 2000},
		}},
	}
	ev, err := Normalize(raw, testContext())
	require.NoError(t, err)

	thumbs := ev.RelatedPages[0].Thumbnails
	require.Len(t, thumbs, 2)
	assert.Equal(t, model.AssetTypeThumbnail, thumbs[0].AssetType)
	assert.Equal(t, model.AssetTypeOriginal, thumbs[1].AssetType)
	assert.NotEqual(t, thumbs[0].ID, thumbs[1].ID)
}

func TestNormalize_DropsMalformedUpstreamFields(t *testing.T) {
	raw := RawEvent{
		Text: "Event",
		Pages: []RawPage{
			{
				Title:        "Page",
				PageID:       -3,
				WikibaseItem: strPtr("Q-none"),
				Thumbnail:    &RawImage{Source: "//upload.wikimedia.org/t.jpg", Width: 320, Height: 200},
				Original:     &RawImage{Source: "https://upload.wikimedia.org/o.jpg", Width: 3200, Height: 2000},
			},
			{Title: "  "},
		},
	}
	raw.Pages[0].ContentURLs.Desktop.Page = "not a url"

	ev, err := Normalize(raw, testContext())
	require.NoError(t, err)

	require.Len(t, ev.RelatedPages, 1, "page without title is skipped")
	page := ev.RelatedPages[0]
	assert.Nil(t, page.WikidataID)
	assert.Equal(t, 0, page.PageID)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Page", page.DesktopURL)
	require.Len(t, page.Thumbnails, 1)
	assert.Equal(t, "https://upload.wikimedia.org/o.jpg", page.Thumbnails[0].SourceURL)

	_, err = Normalize(RawEvent{Text: "Event", Pages: []RawPage{{Title: ""}}}, testContext())
	assert.Error(t, err)
}

func TestEventID_Format(t *testing.T) {
	year := 1969
	id := EventID("text", &year, 7, 20, []string{"Apollo_11"})
	assert.Regexp(t, `^[0-9a-f]{32}$`, id)
	assert.NotEqual(t, id, EventID("text", nil, 7, 20, []string{"Apollo_11"}))
	assert.NotEqual(t, id, EventID("text", &year, 7, 20, []string{"Apollo_11", "Moon"}))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Apollo 11", StripHTML(`<span class="mw-page-title-main">Apollo 11</span>`))
	assert.Equal(t, "Tom & Jerry", StripHTML(`<i>Tom</i> &amp; Jerry`))
	assert.Equal(t, "plain", StripHTML("  plain "))
}
