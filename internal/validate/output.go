package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lysyi3m/onthisday/internal/model"
)

// RecordIssues lists every violation found on one record.
type RecordIssues struct {
	ID     string
	Issues []string
}

// Error aggregates violations across a whole batch.
type Error struct {
	Kind    string
	Records []RecordIssues
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s validation failed for %d record(s)", e.Kind, len(e.Records))
	for _, r := range e.Records {
		fmt.Fprintf(&b, "\n  %s:", r.ID)
		for _, issue := range r.Issues {
			fmt.Fprintf(&b, "\n    - %s", issue)
		}
	}
	return b.String()
}

// Validator checks enriched output before anything is written.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: New()}
}

// Events checks every event and reports all failures at once.
func (val *Validator) Events(events []model.HistoricalEventRecord) error {
	var records []RecordIssues
	seen := make(map[string]int, len(events))

	for i := range events {
		ev := &events[i]
		id := ev.EventID
		if id == "" {
			id = fmt.Sprintf("events[%d]", i)
		}

		var issues []string
		if err := val.v.Struct(ev); err != nil {
			issues = append(issues, Issues(err)...)
		}
		if prev, dup := seen[ev.EventID]; dup && ev.EventID != "" {
			issues = append(issues, fmt.Sprintf("eventId: duplicates events[%d]", prev))
		} else {
			seen[ev.EventID] = i
		}

		if len(issues) > 0 {
			records = append(records, RecordIssues{ID: id, Issues: issues})
		}
	}

	if len(records) > 0 {
		return &Error{Kind: "event", Records: records}
	}
	return nil
}

// Digest checks the digest shape and that each referenced event is present
// in the same batch.
func (val *Validator) Digest(digest model.DailyDigestRecord, events []model.HistoricalEventRecord) error {
	var issues []string
	if err := val.v.Struct(&digest); err != nil {
		issues = append(issues, Issues(err)...)
	}

	known := make(map[string]struct{}, len(events))
	for _, ev := range events {
		known[ev.EventID] = struct{}{}
	}
	for i, id := range digest.EventIDs {
		if _, ok := known[id]; !ok {
			issues = append(issues, fmt.Sprintf("eventIds[%d]: references missing event %s", i, id))
		}
	}

	if len(issues) > 0 {
		id := digest.DigestID
		if id == "" {
			id = "digest"
		}
		return &Error{Kind: "digest", Records: []RecordIssues{{ID: id, Issues: issues}}}
	}
	return nil
}
