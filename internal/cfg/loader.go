package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/onthisday/internal/feed"
	"github.com/lysyi3m/onthisday/internal/media"
	"github.com/lysyi3m/onthisday/internal/wikidata"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Target date; zero means "today in UTC"
	Month int `long:"month" description:"Month to ingest (1-12), defaults to the current UTC month"`
	Day   int `long:"day" description:"Day of month to ingest, defaults to the current UTC day"`
	Year  int `long:"year" description:"Year stamped on source dates, defaults to the current UTC year"`

	// Upstream access
	UserAgent        string `long:"userAgent" env:"ONTHISDAY_USER_AGENT" description:"User-Agent sent to every upstream API (required)"`
	Token            string `long:"token" env:"WIKIMEDIA_API_TOKEN" description:"Optional bearer token for the Wikimedia APIs"`
	FeedBaseURL      string `long:"feedBaseUrl" env:"FEED_BASE_URL" description:"Base URL of the selected-events feed"`
	WikidataBaseURL  string `long:"wikidataBaseUrl" env:"WIKIDATA_BASE_URL" description:"Base URL of the entity data endpoint"`
	WikidataLanguage string `long:"wikidataLanguage" env:"WIKIDATA_LANGUAGE" default:"en" description:"Preferred label language"`
	CommonsSearchURL string `long:"commonsSearchUrl" env:"COMMONS_SEARCH_URL" description:"Base URL of the media title search"`
	HTTPTimeout      int    `long:"httpTimeout" env:"HTTP_TIMEOUT_SECONDS" default:"30" description:"Per-request HTTP timeout in seconds"`

	// Entity resolution
	WikidataConcurrency   int `long:"wikidataConcurrency" env:"WIKIDATA_CONCURRENCY" default:"4" description:"Maximum concurrent entity requests"`
	WikidataRetryAttempts int `long:"wikidataRetryAttempts" env:"WIKIDATA_RETRY_ATTEMPTS" default:"3" description:"Attempts per entity request"`
	WikidataRetryBaseMs   int `long:"wikidataRetryBaseMs" env:"WIKIDATA_RETRY_BASE_MS" default:"400" description:"Base retry delay in milliseconds"`
	WikidataRetryMaxMs    int `long:"wikidataRetryMaxMs" env:"WIKIDATA_RETRY_MAX_MS" default:"2000" description:"Maximum retry delay in milliseconds"`

	// Media
	CommonsFallback    string `long:"commonsFallback" env:"COMMONS_FALLBACK" default:"true" description:"Search media commons when no embedded image qualifies (true/false)"`
	MediaMinWidth      int    `long:"mediaMinWidth" env:"MEDIA_MIN_WIDTH" default:"640" description:"Minimum selected image width"`
	MediaMinHeight     int    `long:"mediaMinHeight" env:"MEDIA_MIN_HEIGHT" default:"480" description:"Minimum selected image height"`
	MediaSearchLimit   int    `long:"mediaSearchLimit" env:"MEDIA_SEARCH_LIMIT" default:"5" description:"Results requested per media search"`
	MediaCacheTTLHours int    `long:"mediaCacheTtlHours" env:"MEDIA_CACHE_TTL_HOURS" default:"168" description:"Lifetime of persistent media cache entries in hours"`
	MediaCachePath     string `long:"mediaCachePath" env:"MEDIA_CACHE_PATH" default:"cache/media-cache.json" description:"Persistent media cache file"`
	MediaCacheDisabled bool   `long:"mediaCacheDisabled" env:"MEDIA_CACHE_DISABLED" description:"Disable the persistent media cache"`

	// Persistence
	DBPath             string `long:"dbPath" env:"ONTHISDAY_DB_PATH" default:"data/onthisday.db" description:"Local SQLite document store"`
	ServiceAccount     string `long:"serviceAccount" env:"GOOGLE_APPLICATION_CREDENTIALS" description:"Path to a Firebase service account key"`
	ServiceAccountJSON string `long:"serviceAccountJson" env:"FIREBASE_SERVICE_ACCOUNT_JSON" description:"Inline Firebase service account key JSON"`
	ProjectID          string `long:"projectId" env:"FIREBASE_PROJECT_ID" description:"Firebase project id"`

	OverridesPath  string `long:"overrides" env:"OVERRIDES_PATH" default:"overrides/events.json" description:"Manual override file (.json, .yml or .yaml)"`
	PushgatewayURL string `long:"pushgateway" env:"PUSHGATEWAY_URL" description:"Prometheus Pushgateway URL (optional)"`
	ListenAddr     string `long:"listen" env:"ONTHISDAY_LISTEN" default:":8080" description:"Read API listen address"`
	DryRun         bool   `long:"dry-run" description:"Log the write plan without touching storage"`
	Debug          bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses args and the environment. It returns a nil Cfg and nil error
// when help was requested.
func Load(args []string, now time.Time) (*Cfg, error) {
	var raw rawCfg

	// Parse errors are returned, not printed; the caller reports them once.
	parser := flags.NewParser(&raw, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return build(raw, now)
}

func build(raw rawCfg, now time.Time) (*Cfg, error) {
	month, day, year, err := ResolveDate(raw.Month, raw.Day, raw.Year, now)
	if err != nil {
		return nil, err
	}

	fallback, err := strconv.ParseBool(raw.CommonsFallback)
	if err != nil {
		return nil, fmt.Errorf("invalid COMMONS_FALLBACK value %q: %w", raw.CommonsFallback, err)
	}

	var problems []string
	if raw.WikidataConcurrency < 1 {
		problems = append(problems, "wikidataConcurrency must be >= 1")
	}
	if raw.WikidataRetryAttempts < 1 {
		problems = append(problems, "wikidataRetryAttempts must be >= 1")
	}
	if raw.WikidataRetryBaseMs < 0 || raw.WikidataRetryMaxMs < 0 {
		problems = append(problems, "retry delays must not be negative")
	}
	if raw.MediaMinWidth < 1 || raw.MediaMinHeight < 1 {
		problems = append(problems, "media minimum dimensions must be >= 1")
	}
	if raw.MediaSearchLimit < 1 {
		problems = append(problems, "mediaSearchLimit must be >= 1")
	}
	if raw.MediaCacheTTLHours < 1 {
		problems = append(problems, "mediaCacheTtlHours must be >= 1")
	}
	if raw.HTTPTimeout < 1 {
		problems = append(problems, "httpTimeout must be >= 1")
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return &Cfg{
		Month:                 month,
		Day:                   day,
		Year:                  year,
		UserAgent:             strings.TrimSpace(raw.UserAgent),
		Token:                 raw.Token,
		FeedBaseURL:           cmp.Or(raw.FeedBaseURL, feed.DefaultBaseURL),
		WikidataBaseURL:       cmp.Or(raw.WikidataBaseURL, wikidata.DefaultBaseURL),
		WikidataLanguage:      raw.WikidataLanguage,
		CommonsSearchURL:      cmp.Or(raw.CommonsSearchURL, media.DefaultSearchURL),
		HTTPTimeout:           time.Duration(raw.HTTPTimeout) * time.Second,
		WikidataConcurrency:   raw.WikidataConcurrency,
		WikidataRetryAttempts: raw.WikidataRetryAttempts,
		WikidataRetryBaseMs:   raw.WikidataRetryBaseMs,
		WikidataRetryMaxMs:    raw.WikidataRetryMaxMs,
		CommonsFallback:       fallback,
		MediaMinWidth:         raw.MediaMinWidth,
		MediaMinHeight:        raw.MediaMinHeight,
		MediaSearchLimit:      raw.MediaSearchLimit,
		MediaCacheTTLHours:    raw.MediaCacheTTLHours,
		MediaCachePath:        raw.MediaCachePath,
		MediaCacheDisabled:    raw.MediaCacheDisabled,
		DBPath:                raw.DBPath,
		ServiceAccount:        raw.ServiceAccount,
		ServiceAccountJSON:    raw.ServiceAccountJSON,
		ProjectID:             raw.ProjectID,
		OverridesPath:         raw.OverridesPath,
		PushgatewayURL:        raw.PushgatewayURL,
		ListenAddr:            raw.ListenAddr,
		DryRun:                raw.DryRun,
		Debug:                 raw.Debug,
		Version:               GetVersion(),
	}, nil
}

var daysInMonth = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// ResolveDate fills unset (zero) fields from now in UTC and checks the
// month/day pair. February 29 is always accepted.
func ResolveDate(month, day, year int, now time.Time) (int, int, int, error) {
	now = now.UTC()
	if month == 0 {
		month = int(now.Month())
	}
	if day == 0 {
		day = now.Day()
	}
	if year == 0 {
		year = now.Year()
	}

	if month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("invalid month %d: must be between 1 and 12", month)
	}
	if day < 1 || day > daysInMonth[month] {
		return 0, 0, 0, fmt.Errorf("invalid day %d for month %d: must be between 1 and %d", day, month, daysInMonth[month])
	}
	if year < 1 {
		return 0, 0, 0, fmt.Errorf("invalid year %d: must be positive", year)
	}
	return month, day, year, nil
}
