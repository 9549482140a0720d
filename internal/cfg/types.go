package cfg

import (
	"time"

	"github.com/lysyi3m/onthisday/internal/httpretry"
	"github.com/lysyi3m/onthisday/internal/store"
)

type Cfg struct {
	// Target date, already resolved against the current UTC date
	Month int
	Day   int
	Year  int

	// Upstream access
	UserAgent        string
	Token            string
	FeedBaseURL      string
	WikidataBaseURL  string
	WikidataLanguage string
	CommonsSearchURL string
	HTTPTimeout      time.Duration

	// Entity resolution
	WikidataConcurrency   int
	WikidataRetryAttempts int
	WikidataRetryBaseMs   int
	WikidataRetryMaxMs    int

	// Media
	CommonsFallback    bool
	MediaMinWidth      int
	MediaMinHeight     int
	MediaSearchLimit   int
	MediaCacheTTLHours int
	MediaCachePath     string
	MediaCacheDisabled bool

	// Persistence
	DBPath             string
	ServiceAccount     string
	ServiceAccountJSON string
	ProjectID          string

	OverridesPath  string
	PushgatewayURL string
	ListenAddr     string
	DryRun         bool
	Debug          bool
	Version        string
}

// WikidataRetry returns the retry policy for entity requests.
func (c *Cfg) WikidataRetry() httpretry.Options {
	return httpretry.Options{
		Attempts:  c.WikidataRetryAttempts,
		BaseDelay: time.Duration(c.WikidataRetryBaseMs) * time.Millisecond,
		MaxDelay:  time.Duration(c.WikidataRetryMaxMs) * time.Millisecond,
	}
}

func (c *Cfg) MediaCacheTTL() time.Duration {
	return time.Duration(c.MediaCacheTTLHours) * time.Hour
}

func (c *Cfg) StoreOptions() store.Options {
	return store.Options{
		DBPath:             c.DBPath,
		ServiceAccountPath: c.ServiceAccount,
		ServiceAccountJSON: c.ServiceAccountJSON,
		ProjectID:          c.ProjectID,
	}
}
