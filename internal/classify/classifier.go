package classify

import (
	"strconv"
	"strings"

	"github.com/lysyi3m/onthisday/internal/model"
)

type Input struct {
	Event   *model.HistoricalEventRecord
	Primary *model.WikidataEntitySummary
	Related []*model.WikidataEntitySummary
}

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Run derives categories, era and tags. It never returns empty categories.
func (c *Classifier) Run(in Input) model.ClassificationResult {
	categories := newOrderedSet()
	tags := newOrderedSet()

	corpus := c.corpus(in)
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(corpus) {
			categories.add(rule.category)
		}
	}

	for _, entity := range c.entities(in) {
		for _, id := range entity.TypeIDs() {
			if category, ok := entityCategories[id]; ok {
				categories.add(category)
			}
			if tag, ok := entityTags[id]; ok {
				tags.add(tag)
			}
		}
	}

	if categories.len() == 0 {
		categories.add(SentinelCategory)
	}

	return model.ClassificationResult{
		Categories: categories.items,
		Era:        c.era(in),
		Tags:       tags.items,
	}
}

func (c *Classifier) corpus(in Input) string {
	var parts []string
	if in.Event != nil {
		parts = append(parts, in.Event.Text)
		if in.Event.Summary != nil {
			parts = append(parts, *in.Event.Summary)
		}
	}
	if in.Primary != nil {
		parts = append(parts, in.Primary.Label)
		if in.Primary.Description != nil {
			parts = append(parts, *in.Primary.Description)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func (c *Classifier) entities(in Input) []*model.WikidataEntitySummary {
	entities := make([]*model.WikidataEntitySummary, 0, len(in.Related)+1)
	if in.Primary != nil {
		entities = append(entities, in.Primary)
	}
	for _, e := range in.Related {
		if e != nil && e != in.Primary {
			entities = append(entities, e)
		}
	}
	return entities
}

func (c *Classifier) era(in Input) *string {
	if in.Event != nil && in.Event.Year != nil {
		era := EraForYear(*in.Event.Year)
		return &era
	}
	for _, e := range c.entities(in) {
		if e.PointInTime == nil {
			continue
		}
		if year, ok := YearOf(*e.PointInTime); ok {
			era := EraForYear(year)
			return &era
		}
	}
	return nil
}

func EraForYear(year int) string {
	switch {
	case year < -3000:
		return model.EraPrehistory
	case year < 500:
		return model.EraAncient
	case year < 1500:
		return model.EraMedieval
	case year < 1800:
		return model.EraEarlyModern
	case year < 1900:
		return model.EraNineteenth
	case year < 2000:
		return model.EraTwentieth
	default:
		return model.EraContemporary
	}
}

// YearOf reads the year of an ISO date such as "1969-07-20" or "-0044-03-15".
func YearOf(date string) (int, bool) {
	sign := 1
	if strings.HasPrefix(date, "-") {
		sign = -1
		date = date[1:]
	}
	yearPart, _, _ := strings.Cut(date, "-")
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return 0, false
	}
	return sign * year, true
}

type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: []string{}, seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) len() int {
	return len(s.items)
}
