package model

import (
	"encoding/json"
	"time"
)

// Media providers and asset types
const (
	ProviderWikimedia = "wikimedia"
	ProviderCustom    = "custom"

	AssetTypeThumbnail = "thumbnail"
	AssetTypeOriginal  = "original"
)

// Era buckets assigned by the classifier, oldest first.
const (
	EraPrehistory   = "prehistory"
	EraAncient      = "ancient"
	EraMedieval     = "medieval"
	EraEarlyModern  = "early-modern"
	EraNineteenth   = "nineteenth-century"
	EraTwentieth    = "twentieth-century"
	EraContemporary = "contemporary"
)

// Eras lists every valid era value.
var Eras = []string{EraPrehistory, EraAncient, EraMedieval, EraEarlyModern, EraNineteenth, EraTwentieth, EraContemporary}

// Document store collections
const (
	CollectionPayloadCache = "payloadCache"
	CollectionEvents       = "events"
	CollectionDigests      = "digests"
)

type EventDate struct {
	Month int `json:"month" validate:"min=1,max=12"`
	Day   int `json:"day" validate:"min=1,max=31"`
}

type MediaAssetSummary struct {
	ID          string  `json:"id" validate:"required"`
	SourceURL   string  `json:"sourceUrl" validate:"required,url"`
	Width       int     `json:"width" validate:"gt=0"`
	Height      int     `json:"height" validate:"gt=0"`
	Provider    string  `json:"provider" validate:"oneof=wikimedia custom"`
	AssetType   string  `json:"assetType" validate:"oneof=thumbnail original"`
	License     *string `json:"license,omitempty"`
	Attribution *string `json:"attribution,omitempty"`
	AltText     *string `json:"altText,omitempty"`
}

// Qualifies reports whether the asset meets the minimum dimensions.
func (m MediaAssetSummary) Qualifies(minWidth, minHeight int) bool {
	return m.Width > 0 && m.Height > 0 && m.Width >= minWidth && m.Height >= minHeight
}

type RelatedPageSummary struct {
	PageID          int                 `json:"pageId,omitempty" validate:"gte=0"`
	CanonicalTitle  string              `json:"canonicalTitle" validate:"required"`
	DisplayTitle    string              `json:"displayTitle" validate:"required"`
	NormalizedTitle string              `json:"normalizedTitle" validate:"required"`
	Description     *string             `json:"description,omitempty"`
	Extract         *string             `json:"extract,omitempty"`
	WikidataID      *string             `json:"wikidataId,omitempty" validate:"omitempty,entityid"`
	DesktopURL      string              `json:"desktopUrl" validate:"required,url"`
	MobileURL       string              `json:"mobileUrl" validate:"required,url"`
	Thumbnails      []MediaAssetSummary `json:"thumbnails" validate:"dive"`
	SelectedMedia   *MediaAssetSummary  `json:"selectedMedia,omitempty"`
}

type EventSource struct {
	Provider        string    `json:"provider" validate:"required"`
	Feed            string    `json:"feed" validate:"required"`
	RawType         string    `json:"rawType" validate:"required"`
	CapturedAt      time.Time `json:"capturedAt" validate:"required"`
	SourceDate      string    `json:"sourceDate" validate:"required,isodate"`
	PayloadCacheKey string    `json:"payloadCacheKey" validate:"required"`
}

type ParticipantSummary struct {
	ID          string  `json:"id" validate:"required,entityid"`
	Label       string  `json:"label" validate:"required"`
	Description *string `json:"description,omitempty"`
}

type EventEnrichment struct {
	PrimaryEntityID     string               `json:"primaryEntityId" validate:"required,entityid"`
	ExactDate           *string              `json:"exactDate,omitempty" validate:"omitempty,isodate"`
	ParticipantIDs      []string             `json:"participantIds" validate:"dive,entityid"`
	Participants        []ParticipantSummary `json:"participants" validate:"dive"`
	SupportingEntityIDs []string             `json:"supportingEntityIds" validate:"dive,entityid"`
}

type HistoricalEventRecord struct {
	EventID      string               `json:"eventId" validate:"required,len=32,hexadecimal"`
	Year         *int                 `json:"year,omitempty"`
	Text         string               `json:"text" validate:"required"`
	Summary      *string              `json:"summary,omitempty"`
	Categories   []string             `json:"categories" validate:"required,min=1,dive,required"`
	Era          *string              `json:"era,omitempty" validate:"omitempty,era"`
	Tags         []string             `json:"tags" validate:"dive,required"`
	Date         EventDate            `json:"date"`
	RelatedPages []RelatedPageSummary `json:"relatedPages" validate:"required,min=1,dive"`
	Source       EventSource          `json:"source"`
	CreatedAt    time.Time            `json:"createdAt" validate:"required"`
	UpdatedAt    time.Time            `json:"updatedAt" validate:"required"`
	Enrichment   *EventEnrichment     `json:"enrichment,omitempty"`
}

type DailyDigestRecord struct {
	DigestID  string    `json:"digestId" validate:"required"`
	Date      string    `json:"date" validate:"required,isodate"`
	EventIDs  []string  `json:"eventIds" validate:"required,min=1,dive,len=32,hexadecimal"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
	UpdatedAt time.Time `json:"updatedAt" validate:"required"`
}

// CachedPayload is the raw upstream response kept for replay and debugging.
type CachedPayload struct {
	CacheKey   string          `json:"cacheKey"`
	Month      int             `json:"month"`
	Day        int             `json:"day"`
	Provider   string          `json:"provider"`
	Feed       string          `json:"feed"`
	CapturedAt time.Time       `json:"capturedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// WikidataEntitySummary is the parsed subset of a knowledge-graph entity.
type WikidataEntitySummary struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Description    *string  `json:"description,omitempty"`
	InstanceOfIDs  []string `json:"instanceOfIds"`
	SubclassOfIDs  []string `json:"subclassOfIds"`
	GenreIDs       []string `json:"genreIds"`
	ParticipantIDs []string `json:"participantIds"`
	PointInTime    *string  `json:"pointInTime,omitempty"`
}

// TypeIDs returns instance-of, subclass-of and genre ids in that order.
func (e *WikidataEntitySummary) TypeIDs() []string {
	ids := make([]string, 0, len(e.InstanceOfIDs)+len(e.SubclassOfIDs)+len(e.GenreIDs))
	ids = append(ids, e.InstanceOfIDs...)
	ids = append(ids, e.SubclassOfIDs...)
	ids = append(ids, e.GenreIDs...)
	return ids
}

type ClassificationResult struct {
	Categories []string
	Era        *string
	Tags       []string
}
