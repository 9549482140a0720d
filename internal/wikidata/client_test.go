package wikidata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/onthisday/internal/httpretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apolloEntity = `{
  "entities": {
    "Q43653": {
      "id": "Q43653",
      "labels": {"en": {"language": "en", "value": "Apollo 11"}},
      "descriptions": {"en": {"language": "en", "value": "first crewed Moon landing"}},
      "claims": {
        "P31": [
          {"rank": "normal", "mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"entity-type": "item", "numeric-id": 495307, "id": "Q495307"}}}},
          {"rank": "deprecated", "mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q1"}}}}
        ],
        "P279": [
          {"rank": "normal", "mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"entity-type": "item", "numeric-id": 1371819}}}}
        ],
        "P710": [
          {"rank": "normal", "mainsnak": {"snaktype": "value", "datavalue": {"type": "wikibase-entityid", "value": {"id": "Q1615"}}}},
          {"rank": "normal", "mainsnak": {"snaktype": "somevalue"}}
        ],
        "P585": [
          {"rank": "normal", "mainsnak": {"snaktype": "value", "datavalue": {"type": "time", "value": {"time": "+0000-00-00T00:00:00Z"}}}},
          {"rank": "normal", "mainsnak": {"snaktype": "value", "datavalue": {"type": "time", "value": {"time": "+1969-07-20T00:00:00Z", "precision": 11}}}}
        ]
      }
    }
  }
}`

func newTestClient(baseURL string, opts Options) *Client {
	rc := httpretry.New(nil, nil, nil)
	rc.Sleep = func(context.Context, time.Duration) error { return nil }
	opts.BaseURL = baseURL
	return NewClient(rc, NewCache(), opts, nil, nil)
}

func TestFetchEntity_ParsesClaims(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Q43653.json", r.URL.Path)
		_, _ = w.Write([]byte(apolloEntity))
	}))
	defer server.Close()

	e := newTestClient(server.URL, Options{}).FetchEntity(context.Background(), "Q43653")
	require.NotNil(t, e)

	assert.Equal(t, "Q43653", e.ID)
	assert.Equal(t, "Apollo 11", e.Label)
	require.NotNil(t, e.Description)
	assert.Equal(t, "first crewed Moon landing", *e.Description)
	assert.Equal(t, []string{"Q495307"}, e.InstanceOfIDs)
	assert.Equal(t, []string{"Q1371819"}, e.SubclassOfIDs)
	assert.Empty(t, e.GenreIDs)
	assert.Equal(t, []string{"Q1615"}, e.ParticipantIDs)
	require.NotNil(t, e.PointInTime)
	assert.Equal(t, "1969-07-20", *e.PointInTime)
}

func TestFetchEntity_CachesHitsAndMisses(t *testing.T) {
	var calls sync.Map
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := calls.LoadOrStore(r.URL.Path, new(int32))
		atomic.AddInt32(n.(*int32), 1)
		if r.URL.Path == "/Q43653.json" {
			_, _ = w.Write([]byte(apolloEntity))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.NotNil(t, c.FetchEntity(ctx, "Q43653"))
		assert.Nil(t, c.FetchEntity(ctx, "Q404"))
	}

	hit, _ := calls.Load("/Q43653.json")
	miss, _ := calls.Load("/Q404.json")
	assert.Equal(t, int32(1), atomic.LoadInt32(hit.(*int32)))
	assert.Equal(t, int32(1), atomic.LoadInt32(miss.(*int32)))

	hits, misses := c.cache.Len()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestFetchEntity_ExhaustedRetriesNotCached(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{Retry: httpretry.Options{Attempts: 2}})
	assert.Nil(t, c.FetchEntity(context.Background(), "Q1"))
	assert.Nil(t, c.FetchEntity(context.Background(), "Q1"))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestFetchEntity_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(apolloEntity))
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{Retry: httpretry.Options{Attempts: 4}})
	e := c.FetchEntity(context.Background(), "Q43653")
	require.NotNil(t, e)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestFetchEntity_FollowsRedirectedID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(apolloEntity))
	}))
	defer server.Close()

	// The payload is keyed by Q43653 while Q100 was requested.
	e := newTestClient(server.URL, Options{}).FetchEntity(context.Background(), "Q100")
	require.NotNil(t, e)
	assert.Equal(t, "Q43653", e.ID)
}

func TestFetchEntity_MissingEntity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities": {}}`))
	}))
	defer server.Close()

	assert.Nil(t, newTestClient(server.URL, Options{}).FetchEntity(context.Background(), "Q5"))
}

func TestFetchEntities_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)

		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
		if id == "Q7" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"entities": {%q: {"id": %q, "labels": {"en": {"value": "Label %s"}}}}}`, id, id, id)
	}))
	defer server.Close()

	ids := []string{"Q1", "Q2", "Q3", "Q4", "Q5", "Q6", "Q7", "Q8", "Q1", "Q2", ""}
	c := newTestClient(server.URL, Options{Concurrency: 2})

	results := c.FetchEntities(context.Background(), ids)
	assert.Len(t, results, 7)
	assert.NotContains(t, results, "Q7")
	assert.Equal(t, "Label Q3", results["Q3"].Label)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestISODate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+1969-07-20T00:00:00Z", "1969-07-20", true},
		{"-0044-03-15T00:00:00Z", "-0044-03-15", true},
		{"+1800-00-00T00:00:00Z", "1800-00-00", true},
		{"+0000-00-00T00:00:00Z", "", false},
		{"garbage", "", false},
	}
	for _, tc := range cases {
		got, ok := ISODate(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseValue_NumericIDVariants(t *testing.T) {
	v := parseValue(&rawDataValue{Type: "wikibase-entityid", Value: []byte(`{"entity-type": "property", "numeric-id": 31}`)})
	assert.Equal(t, ClaimValue{Kind: KindEntityID, EntityID: "P31"}, v)

	v = parseValue(&rawDataValue{Type: "string", Value: []byte(`"hello"`)})
	assert.Equal(t, KindUnknown, v.Kind)

	assert.Equal(t, KindUnknown, parseValue(nil).Kind)
}

func TestParseValue_MalformedEntityID(t *testing.T) {
	v := parseValue(&rawDataValue{Type: "wikibase-entityid", Value: []byte(`{"id": "Q-none"}`)})
	assert.Equal(t, KindUnknown, v.Kind)

	v = parseValue(&rawDataValue{Type: "wikibase-entityid", Value: []byte(`{"id": "bogus", "numeric-id": 42}`)})
	assert.Equal(t, ClaimValue{Kind: KindEntityID, EntityID: "Q42"}, v)
}

func TestCached_ServesRedirectedLookups(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(apolloEntity))
	}))
	defer server.Close()

	c := newTestClient(server.URL, Options{})
	assert.Nil(t, c.Cached("Q100"))

	results := c.FetchEntities(context.Background(), []string{"Q100"})
	assert.Contains(t, results, "Q43653")
	assert.NotContains(t, results, "Q100")

	e := c.Cached("Q100")
	require.NotNil(t, e)
	assert.Equal(t, "Q43653", e.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
