package feed

import (
	"encoding/json"
	"log/slog"
	"time"
)

const (
	DefaultBaseURL = "https://api.wikimedia.org/feed/v1/wikipedia/en/onthisday/selected"

	Provider = "wikimedia"
	FeedName = "onthisday/selected"
	RawType  = "selected"
)

type Request struct {
	Month     int
	Day       int
	UserAgent string
	Token     string
}

type Response struct {
	Payload    json.RawMessage
	Selected   []RawEvent
	CapturedAt time.Time
}

// RawEvent is one element of the upstream "selected" array.
type RawEvent struct {
	Text  string    `json:"text"`
	Year  *int      `json:"year"`
	Type  string    `json:"type"`
	Pages []RawPage `json:"pages"`
}

type RawPage struct {
	PageID       int         `json:"pageid"`
	Title        string      `json:"title"`
	DisplayTitle string      `json:"displaytitle"`
	Titles       RawTitles   `json:"titles"`
	Description  *string     `json:"description"`
	Extract      *string     `json:"extract"`
	WikibaseItem *string     `json:"wikibase_item"`
	Thumbnail    *RawImage   `json:"thumbnail"`
	Original     *RawImage   `json:"originalimage"`
	ContentURLs  ContentURLs `json:"content_urls"`
}

type RawTitles struct {
	Canonical  string `json:"canonical"`
	Normalized string `json:"normalized"`
	Display    string `json:"display"`
}

type RawImage struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ContentURLs struct {
	Desktop struct {
		Page string `json:"page"`
	} `json:"desktop"`
	Mobile struct {
		Page string `json:"page"`
	} `json:"mobile"`
}

// NormalizeContext carries the run-level facts stamped onto every record.
type NormalizeContext struct {
	Month      int
	Day        int
	Year       int
	CapturedAt time.Time
	Now        time.Time
	// Logger receives warnings about dropped upstream fields; nil uses slog.Default.
	Logger *slog.Logger
}
