package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/onthisday/internal/model"
	"github.com/lysyi3m/onthisday/internal/store"
)

// Counter is implemented by stores that can report collection sizes.
type Counter interface {
	Count(ctx context.Context, collection string) (int, error)
}

type Handler struct {
	reader store.Reader
	now    func() time.Time
}

func NewHandler(reader store.Reader) *Handler {
	return &Handler{reader: reader, now: time.Now}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}

	if counter, ok := h.reader.(Counter); ok {
		for _, collection := range []string{model.CollectionEvents, model.CollectionDigests} {
			n, err := counter.Count(c.Request.Context(), collection)
			if err != nil {
				slog.Error("Database error", "operation", "count", "collection", collection, "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
			health[collection] = n
		}
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetEvent(c *gin.Context) {
	h.writeDocument(c, model.CollectionEvents, c.Param("id"))
}

// GetDigest returns the digest with its events in digest order.
func (h *Handler) GetDigest(c *gin.Context) {
	h.writeDigest(c, c.Param("id"))
}

// GetDay resolves /days/:month/:day to that day's digest.
func (h *Handler) GetDay(c *gin.Context) {
	month, errM := strconv.Atoi(c.Param("month"))
	day, errD := strconv.Atoi(c.Param("day"))
	if errM != nil || errD != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be 1-12 and day 1-31"})
		return
	}
	h.writeDigest(c, model.DigestID(model.PayloadCacheKey(month, day)))
}

func (h *Handler) writeDocument(c *gin.Context, collection, id string) {
	raw, ok := h.lookup(c, collection, id)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (h *Handler) writeDigest(c *gin.Context, id string) {
	raw, ok := h.lookup(c, model.CollectionDigests, id)
	if !ok {
		return
	}

	var digest model.DailyDigestRecord
	if err := json.Unmarshal(raw, &digest); err != nil {
		slog.Error("Corrupt digest document", "digest", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Corrupt digest document"})
		return
	}

	events := make([]json.RawMessage, 0, len(digest.EventIDs))
	for _, eventID := range digest.EventIDs {
		ev, err := h.reader.Get(c.Request.Context(), model.CollectionEvents, eventID)
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("Digest references missing event", "digest", id, "event", eventID)
			continue
		}
		if err != nil {
			slog.Error("Database error", "operation", "get_event", "event", eventID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		events = append(events, ev)
	}

	c.Header("X-Digest-Events", strconv.Itoa(len(events)))
	c.JSON(http.StatusOK, gin.H{
		"digest": json.RawMessage(raw),
		"events": events,
	})
}

func (h *Handler) lookup(c *gin.Context, collection, id string) (json.RawMessage, bool) {
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id parameter"})
		return nil, false
	}

	raw, err := h.reader.Get(c.Request.Context(), collection, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "collection": collection, "id": id})
		return nil, false
	}
	if err != nil {
		slog.Error("Database error", "operation", "get", "collection", collection, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return nil, false
	}
	return raw, true
}
