package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/onthisday/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	CacheVersion     = 1
	DefaultCachePath = "cache/media-cache.json"
	DefaultCacheTTL  = 7 * 24 * time.Hour
)

// CacheEntry stores a search outcome. A nil Asset records a confirmed
// absence of a qualifying image and expires like any other entry.
type CacheEntry struct {
	Asset     *model.MediaAssetSummary `json:"asset"`
	TTLMs     int64                    `json:"ttlMs"`
	StoredAt  int64                    `json:"storedAt"`
	ExpiresAt int64                    `json:"expiresAt"`
}

type cacheFile struct {
	Version   int                   `json:"version"`
	UpdatedAt int64                 `json:"updatedAt"`
	Entries   map[string]CacheEntry `json:"entries"`
}

// Cache is the on-disk search cache. It is read once, mutated in memory and
// written back by Flush only when something changed.
type Cache struct {
	path   string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	loaded  bool
	dirty   bool
	entries map[string]CacheEntry
}

func NewCache(path string, ttl time.Duration, logger *slog.Logger) *Cache {
	if path == "" {
		path = DefaultCachePath
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		path:    path,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]CacheEntry),
	}
}

// CacheKey builds the normalized key for one search.
func CacheKey(query string, minWidth, minHeight, limit int) string {
	return strings.Join([]string{
		FoldQuery(query),
		strconv.Itoa(minWidth),
		strconv.Itoa(minHeight),
		strconv.Itoa(limit),
	}, "|")
}

// FoldQuery applies NFKC, case folding, underscore-to-space and whitespace
// collapsing so equivalent titles share a key.
func FoldQuery(query string) string {
	q := norm.NFKC.String(query)
	q = cases.Fold().String(q)
	q = strings.ReplaceAll(q, "_", " ")
	return strings.Join(strings.Fields(q), " ")
}

// Load reads the cache file once. A missing file is an empty cache; a
// version mismatch or unreadable file resets the cache. Expired entries are
// dropped.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read media cache: %w", err)
	}

	var state cacheFile
	if err := json.Unmarshal(data, &state); err != nil {
		c.logger.Warn("Media cache unreadable, starting empty", "path", c.path, "error", err)
		c.dirty = true
		return nil
	}
	if state.Version != CacheVersion {
		c.logger.Warn("Media cache version mismatch, starting empty", "path", c.path, "version", state.Version, "expected", CacheVersion)
		c.dirty = true
		return nil
	}

	nowMs := c.now().UnixMilli()
	dropped := 0
	for key, entry := range state.Entries {
		if entry.ExpiresAt <= nowMs {
			dropped++
			continue
		}
		c.entries[key] = entry
	}
	if dropped > 0 {
		c.dirty = true
	}

	c.logger.Debug("Media cache loaded", "path", c.path, "entries", len(c.entries), "expired", dropped)
	return nil
}

// Get returns (asset, true) for a live entry; asset is nil for a cached
// "no match". Expired entries report false.
func (c *Cache) Get(key string) (*model.MediaAssetSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if entry.ExpiresAt <= c.now().UnixMilli() {
		delete(c.entries, key)
		c.dirty = true
		return nil, false
	}
	return entry.Asset, true
}

func (c *Cache) Set(key string, asset *model.MediaAssetSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = CacheEntry{
		Asset:     asset,
		TTLMs:     c.ttl.Milliseconds(),
		StoredAt:  now.UnixMilli(),
		ExpiresAt: now.Add(c.ttl).UnixMilli(),
	}
	c.dirty = true
}

func (c *Cache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Flush writes the cache when it was modified since the last load or flush.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	state := cacheFile{
		Version:   CacheVersion,
		UpdatedAt: c.now().UnixMilli(),
		Entries:   c.entries,
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode media cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create media cache directory: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write media cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace media cache: %w", err)
	}

	c.dirty = false
	c.logger.Debug("Media cache flushed", "path", c.path, "entries", len(c.entries))
	return nil
}
