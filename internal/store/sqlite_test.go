package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/onthisday/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore creates a migrated SQLite store in a temp directory.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const eventID = "0123456789abcdef0123456789abcdef"

func sampleBatch(created time.Time, categories []string) Batch {
	year := 1969
	ev := model.HistoricalEventRecord{
		EventID:    eventID,
		Year:       &year,
		Text:       "Apollo 11 lands on the Moon.",
		Categories: categories,
		Tags:       []string{},
		Date:       model.EventDate{Month: 7, Day: 20},
		RelatedPages: []model.RelatedPageSummary{{
			CanonicalTitle: "Apollo_11", NormalizedTitle: "Apollo 11", DisplayTitle: "Apollo 11",
			DesktopURL: "https://en.wikipedia.org/wiki/Apollo_11", MobileURL: "https://en.m.wikipedia.org/wiki/Apollo_11",
			Thumbnails: []model.MediaAssetSummary{},
		}},
		CreatedAt: created,
		UpdatedAt: created,
	}
	key := model.PayloadCacheKey(7, 20)
	return Batch{
		PayloadKey: key,
		Payload:    model.CachedPayload{CacheKey: key, Month: 7, Day: 20, Provider: "wikimedia", Feed: "onthisday/selected", CapturedAt: created, Payload: json.RawMessage(`{"selected":[]}`)},
		Events:     []model.HistoricalEventRecord{ev},
		Digest: &model.DailyDigestRecord{
			DigestID: model.DigestID(key), Date: "1969-07-20", EventIDs: []string{eventID},
			CreatedAt: created, UpdatedAt: created,
		},
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := RunMigrations(s.db)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestCommit_WritesAllCollections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 7, 20, 6, 0, 0, 0, time.UTC)

	require.NoError(t, s.Commit(ctx, sampleBatch(created, []string{"space-exploration"})))

	for _, c := range []string{model.CollectionPayloadCache, model.CollectionEvents, model.CollectionDigests} {
		n, err := s.Count(ctx, c)
		require.NoError(t, err)
		assert.Equal(t, 1, n, c)
	}

	raw, err := s.Get(ctx, model.CollectionEvents, eventID)
	require.NoError(t, err)
	var got model.HistoricalEventRecord
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Apollo 11 lands on the Moon.", got.Text)
	assert.Equal(t, []string{"space-exploration"}, got.Categories)

	raw, err = s.Get(ctx, model.CollectionDigests, "digest-selected-07-20")
	require.NoError(t, err)
	var digest model.DailyDigestRecord
	require.NoError(t, json.Unmarshal(raw, &digest))
	assert.Equal(t, []string{eventID}, digest.EventIDs)
}

func TestCommit_MergeUpsertKeepsCreatedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	first := time.Date(2026, 7, 20, 6, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	require.NoError(t, s.Commit(ctx, sampleBatch(first, []string{"surprise"})))
	require.NoError(t, s.Commit(ctx, sampleBatch(second, []string{"space-exploration", "science"})))

	n, err := s.Count(ctx, model.CollectionEvents)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	raw, err := s.Get(ctx, model.CollectionEvents, eventID)
	require.NoError(t, err)
	var got model.HistoricalEventRecord
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.True(t, first.Equal(got.CreatedAt), "createdAt preserved, got %s", got.CreatedAt)
	assert.True(t, second.Equal(got.UpdatedAt))
	assert.Equal(t, []string{"space-exploration", "science"}, got.Categories)
}

func TestCommit_WithoutDigest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch := sampleBatch(time.Now().UTC(), []string{"surprise"})
	batch.Events = nil
	batch.Digest = nil
	assert.Equal(t, 1, batch.Size())
	require.NoError(t, s.Commit(ctx, batch))

	n, err := s.Count(ctx, model.CollectionDigests)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Get(ctx, model.CollectionPayloadCache, "selected-07-20")
	assert.NoError(t, err)
}

func TestCommit_CancelledContextWritesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Commit(ctx, sampleBatch(time.Now().UTC(), []string{"surprise"})))

	n, err := s.Count(context.Background(), model.CollectionEvents)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGet_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), model.CollectionEvents, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOptions_UsesFirestore(t *testing.T) {
	assert.False(t, Options{DBPath: "x.db"}.UsesFirestore())
	assert.True(t, Options{ProjectID: "p"}.UsesFirestore())
	assert.True(t, Options{ServiceAccountJSON: "{}"}.UsesFirestore())
}

func TestProjectFromKey(t *testing.T) {
	id, err := projectFromKey([]byte(`{"type":"service_account","project_id":"on-this-day"}`))
	require.NoError(t, err)
	assert.Equal(t, "on-this-day", id)

	_, err = projectFromKey([]byte(`not json`))
	assert.Error(t, err)
}

func TestToFields_UsesJSONNames(t *testing.T) {
	batch := sampleBatch(time.Now().UTC(), []string{"surprise"})
	m, err := toFields(batch.Events[0])
	require.NoError(t, err)
	assert.Equal(t, eventID, m["eventId"])
	assert.Contains(t, m, "relatedPages")
	assert.NotContains(t, m, "enrichment")
}
