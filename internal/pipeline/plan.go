package pipeline

import (
	"log/slog"

	"github.com/lysyi3m/onthisday/internal/store"
)

// Plan is the validated result of one run, ready to commit.
type Plan struct {
	Batch      store.Batch
	Suppressed []string
	Skipped    int
	Duplicates int
}

func (p *Plan) EventIDs() []string {
	ids := make([]string, 0, len(p.Batch.Events))
	for _, ev := range p.Batch.Events {
		ids = append(ids, ev.EventID)
	}
	return ids
}

// DigestID is empty when the day has no events.
func (p *Plan) DigestID() string {
	if p.Batch.Digest == nil {
		return ""
	}
	return p.Batch.Digest.DigestID
}

func (p *Plan) Log(logger *slog.Logger) {
	logger.Info("Dry run, nothing written",
		"payload_key", p.Batch.PayloadKey,
		"events", len(p.Batch.Events),
		"event_ids", p.EventIDs(),
		"digest", p.DigestID(),
		"writes", p.Batch.Size())
}
