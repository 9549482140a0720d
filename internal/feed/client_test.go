package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lysyi3m/onthisday/internal/httpretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "selected": [
    {
      "text": "Apollo 11 lands on the Moon.",
      "year": 1969,
      "pages": [
        {
          "pageid": 662,
          "title": "Apollo_11",
          "titles": {"canonical": "Apollo_11", "normalized": "Apollo 11", "display": "<i>Apollo 11</i>"},
          "wikibase_item": "Q43653",
          "extract": "Apollo 11 was the first crewed Moon landing.",
          "thumbnail": {"source": "https://upload.wikimedia.org/thumb/apollo.jpg", "width": 1000, "height": 800},
          "content_urls": {
            "desktop": {"page": "https://en.wikipedia.org/wiki/Apollo_11"},
            "mobile": {"page": "https://en.m.wikipedia.org/wiki/Apollo_11"}
          }
        }
      ]
    },
    "not an event",
    {"text": "A second event.", "pages": [{"title": "Second page"}]}
  ]
}`

func newTestClient(baseURL string) *Client {
	rc := httpretry.New(nil, nil, nil)
	rc.Sleep = func(context.Context, time.Duration) error { return nil }
	return NewClient(rc, baseURL, nil)
}

func TestFetchSelected(t *testing.T) {
	var gotPath, gotUA, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer server.Close()

	c := newTestClient(server.URL + "/feed")
	resp, err := c.FetchSelected(context.Background(), Request{Month: 7, Day: 4, UserAgent: "onthisday-test/1.0", Token: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "/feed/07/04", gotPath)
	assert.Equal(t, "onthisday-test/1.0", gotUA)
	assert.Equal(t, "Bearer secret", gotAuth)

	require.Len(t, resp.Selected, 2, "malformed element is skipped")
	assert.Equal(t, "Apollo 11 lands on the Moon.", resp.Selected[0].Text)
	require.NotNil(t, resp.Selected[0].Year)
	assert.Equal(t, 1969, *resp.Selected[0].Year)
	assert.Nil(t, resp.Selected[1].Year)
	assert.JSONEq(t, samplePayload, string(resp.Payload))
	assert.False(t, resp.CapturedAt.IsZero())
}

func TestFetchSelected_RequiresUserAgent(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	_, err := c.FetchSelected(context.Background(), Request{Month: 1, Day: 1, UserAgent: "  "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user agent is required")
}

func TestFetchSelected_NoTokenNoAuthHeader(t *testing.T) {
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{"selected": []}`))
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).FetchSelected(context.Background(), Request{Month: 12, Day: 31, UserAgent: "ua"})
	require.NoError(t, err)
	assert.False(t, hadAuth)
	assert.Empty(t, resp.Selected)
}

func TestFetchSelected_ErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"missing user agent policy"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchSelected(context.Background(), Request{Month: 2, Day: 29, UserAgent: "ua"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "missing user agent policy")
}
