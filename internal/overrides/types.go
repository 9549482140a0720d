package overrides

import (
	"fmt"
	"strings"
)

const DefaultPath = "overrides/events.json"

// Config maps event ids to manual corrections.
type Config struct {
	Events map[string]EventOverride `json:"events"`
}

type EventOverride struct {
	Categories    []string       `json:"categories,omitempty" validate:"omitempty,min=1,dive,required"`
	Era           *string        `json:"era,omitempty" validate:"omitempty,era"`
	Tags          []string       `json:"tags,omitempty" validate:"omitempty,dive,required"`
	SelectedMedia *MediaOverride `json:"selectedMedia,omitempty"`
	Suppress      bool           `json:"suppress,omitempty"`
}

type MediaOverride struct {
	ID          *string `json:"id,omitempty" validate:"omitnil,min=1"`
	SourceURL   string  `json:"sourceUrl" validate:"required,url"`
	Width       *int    `json:"width,omitempty" validate:"omitnil,gt=0"`
	Height      *int    `json:"height,omitempty" validate:"omitnil,gt=0"`
	Provider    *string `json:"provider,omitempty" validate:"omitnil,oneof=wikimedia custom"`
	AssetType   *string `json:"assetType,omitempty" validate:"omitnil,oneof=thumbnail original"`
	License     *string `json:"license,omitempty"`
	Attribution *string `json:"attribution,omitempty"`
	AltText     *string `json:"altText,omitempty"`
}

// LoadError lists every problem found in an override file.
type LoadError struct {
	Path   string
	Issues []string
}

func (e *LoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid overrides file %s (%d issue(s))", e.Path, len(e.Issues))
	for _, issue := range e.Issues {
		b.WriteString("\n  - ")
		b.WriteString(issue)
	}
	return b.String()
}
