package enrich

import (
	"context"

	"github.com/lysyi3m/onthisday/internal/media"
	"github.com/lysyi3m/onthisday/internal/model"
)

type EntityResolver interface {
	FetchEntities(ctx context.Context, ids []string) map[string]*model.WikidataEntitySummary
	Cached(id string) *model.WikidataEntitySummary
}

type MediaResolver interface {
	Ensure(ctx context.Context, pages []model.RelatedPageSummary) *media.Result
}
