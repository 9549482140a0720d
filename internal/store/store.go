package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/onthisday/internal/model"
)

var ErrNotFound = errors.New("document not found")

// Batch is everything one run writes. Digest is nil for a day without events.
type Batch struct {
	PayloadKey string
	Payload    model.CachedPayload
	Events     []model.HistoricalEventRecord
	Digest     *model.DailyDigestRecord
}

// Size is the number of documents the batch writes.
func (b Batch) Size() int {
	n := 1 + len(b.Events)
	if b.Digest != nil {
		n++
	}
	return n
}

// Store commits a batch atomically with merge upserts.
type Store interface {
	Commit(ctx context.Context, batch Batch) error
	Close() error
}

type Reader interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
}

type document struct {
	collection string
	id         string
	data       any
}

func (b Batch) documents() []document {
	docs := make([]document, 0, b.Size())
	docs = append(docs, document{collection: model.CollectionPayloadCache, id: b.PayloadKey, data: b.Payload})
	for _, ev := range b.Events {
		docs = append(docs, document{collection: model.CollectionEvents, id: ev.EventID, data: ev})
	}
	if b.Digest != nil {
		docs = append(docs, document{collection: model.CollectionDigests, id: b.Digest.DigestID, data: b.Digest})
	}
	return docs
}

type Options struct {
	DBPath             string
	ServiceAccountPath string
	ServiceAccountJSON string
	ProjectID          string
}

// UsesFirestore reports whether any remote credential or project was configured.
func (o Options) UsesFirestore() bool {
	return o.ServiceAccountPath != "" || o.ServiceAccountJSON != "" || o.ProjectID != ""
}

// Open returns the Firestore store when credentials are configured and the
// local SQLite store otherwise.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.UsesFirestore() {
		fs, err := OpenFirestore(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open firestore: %w", err)
		}
		logger.Info("Using Firestore document store", "project", fs.ProjectID())
		return fs, nil
	}

	s, err := OpenSQLite(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	logger.Info("Using SQLite document store", "path", opts.DBPath)
	return s, nil
}
