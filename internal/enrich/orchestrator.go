package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/lysyi3m/onthisday/internal/classify"
	"github.com/lysyi3m/onthisday/internal/media"
	"github.com/lysyi3m/onthisday/internal/model"
)

type Orchestrator struct {
	entities   EntityResolver
	media      MediaResolver
	classifier *classify.Classifier
	logger     *slog.Logger
}

func NewOrchestrator(entities EntityResolver, mediaResolver MediaResolver, classifier *classify.Classifier, logger *slog.Logger) *Orchestrator {
	if classifier == nil {
		classifier = classify.NewClassifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{entities: entities, media: mediaResolver, classifier: classifier, logger: logger}
}

// Run enriches a batch. Entities referenced by pages are resolved once,
// then the participants of those entities once more; resolution stops there.
// A failure while enriching one event leaves that event with its base data;
// a media failure only costs the event its media.
func (o *Orchestrator) Run(ctx context.Context, events []model.HistoricalEventRecord) []model.HistoricalEventRecord {
	known := o.resolve(ctx, events)

	enriched := make([]model.HistoricalEventRecord, 0, len(events))
	for _, ev := range events {
		result, err := o.enrichOne(ctx, ev, known)
		if err != nil {
			o.logger.Warn("Event enrichment failed, keeping base record", "event", ev.EventID, "error", err)
			result = ev
			if len(result.Categories) == 0 {
				result.Categories = []string{classify.SentinelCategory}
			}
		}
		enriched = append(enriched, result)
	}
	return enriched
}

type entityIndex struct {
	byID     map[string]*model.WikidataEntitySummary
	resolver EntityResolver
}

func (idx *entityIndex) get(id string) *model.WikidataEntitySummary {
	if e, ok := idx.byID[id]; ok {
		return e
	}
	if idx.resolver == nil {
		return nil
	}
	return idx.resolver.Cached(id)
}

func (o *Orchestrator) resolve(ctx context.Context, events []model.HistoricalEventRecord) *entityIndex {
	idx := &entityIndex{byID: map[string]*model.WikidataEntitySummary{}, resolver: o.entities}
	if o.entities == nil {
		return idx
	}

	var pageIDs []string
	for _, ev := range events {
		for _, page := range ev.RelatedPages {
			if page.WikidataID != nil {
				pageIDs = append(pageIDs, *page.WikidataID)
			}
		}
	}
	first := o.entities.FetchEntities(ctx, pageIDs)
	for id, e := range first {
		idx.byID[id] = e
	}

	var participantIDs []string
	for _, e := range first {
		for _, pid := range e.ParticipantIDs {
			if _, ok := idx.byID[pid]; !ok {
				participantIDs = append(participantIDs, pid)
			}
		}
	}
	slices.Sort(participantIDs)
	second := o.entities.FetchEntities(ctx, slices.Compact(participantIDs))
	for id, e := range second {
		idx.byID[id] = e
	}

	o.logger.Info("Entities resolved", "page_entities", len(first), "participants", len(second))
	return idx
}

func (o *Orchestrator) enrichOne(ctx context.Context, ev model.HistoricalEventRecord, idx *entityIndex) (out model.HistoricalEventRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during enrichment: %v", r)
		}
	}()

	ev.RelatedPages = slices.Clone(ev.RelatedPages)

	var (
		primary     *model.WikidataEntitySummary
		primaryID   string
		related     []*model.WikidataEntitySummary
		seenRelated = map[string]struct{}{}
	)
	for _, page := range ev.RelatedPages {
		if page.WikidataID == nil {
			continue
		}
		e := idx.get(*page.WikidataID)
		if primaryID == "" {
			primaryID = *page.WikidataID
			primary = e
		}
		if e == nil {
			continue
		}
		if _, dup := seenRelated[e.ID]; !dup {
			seenRelated[e.ID] = struct{}{}
			related = append(related, e)
		}
	}

	if primaryID != "" {
		ev.Enrichment = buildEnrichment(primaryID, primary, idx)
	}

	result := o.classifier.Run(classify.Input{Event: &ev, Primary: primary, Related: related})
	ev.Categories = result.Categories
	ev.Era = result.Era
	ev.Tags = result.Tags

	o.selectMedia(ctx, &ev)

	return ev, nil
}

func buildEnrichment(primaryID string, primary *model.WikidataEntitySummary, idx *entityIndex) *model.EventEnrichment {
	enrichment := &model.EventEnrichment{
		PrimaryEntityID:     primaryID,
		ParticipantIDs:      []string{},
		Participants:        []model.ParticipantSummary{},
		SupportingEntityIDs: []string{},
	}
	if primary == nil {
		return enrichment
	}

	enrichment.PrimaryEntityID = primary.ID
	enrichment.ExactDate = primary.PointInTime
	enrichment.ParticipantIDs = slices.Clone(primary.ParticipantIDs)

	for _, pid := range primary.ParticipantIDs {
		p := idx.get(pid)
		if p == nil {
			continue
		}
		enrichment.Participants = append(enrichment.Participants, model.ParticipantSummary{
			ID:          p.ID,
			Label:       p.Label,
			Description: p.Description,
		})
	}

	seen := map[string]struct{}{}
	for _, id := range primary.TypeIDs() {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		enrichment.SupportingEntityIDs = append(enrichment.SupportingEntityIDs, id)
	}

	return enrichment
}

// selectMedia sets selectedMedia from the resolver, or from the largest
// image already attached when the resolver finds nothing.
// A resolver failure is logged and treated as no result, so categories and
// enrichment already computed are kept.
func (o *Orchestrator) selectMedia(ctx context.Context, ev *model.HistoricalEventRecord) {
	if o.media != nil {
		res, err := o.ensureMedia(ctx, ev.RelatedPages)
		if err != nil {
			o.logger.Warn("Media resolution failed", "event", ev.EventID, "error", err)
		}
		if res != nil && res.Asset != nil {
			if res.PageIndex >= 0 && res.PageIndex < len(ev.RelatedPages) {
				ev.RelatedPages[res.PageIndex].SelectedMedia = res.Asset
				return
			}
		}
	}

	if best, i := media.RichestKnown(ev.RelatedPages); best != nil {
		ev.RelatedPages[i].SelectedMedia = best
		o.logger.Debug("No qualifying media, using richest known image", "event", ev.EventID, "width", best.Width, "height", best.Height)
	}
}

func (o *Orchestrator) ensureMedia(ctx context.Context, pages []model.RelatedPageSummary) (res *media.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic during media resolution: %v", r)
		}
	}()
	return o.media.Ensure(ctx, pages), nil
}
