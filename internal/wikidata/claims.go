package wikidata

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/lysyi3m/onthisday/internal/model"
)

// Property ids read from entity claims.
const (
	PropInstanceOf  = "P31"
	PropSubclassOf  = "P279"
	PropGenre       = "P136"
	PropParticipant = "P710"
	PropPointInTime = "P585"
)

type ValueKind int

const (
	KindUnknown ValueKind = iota
	KindEntityID
	KindTime
)

// ClaimValue is a parsed statement value. Exactly one of EntityID or Time is
// set, according to Kind.
type ClaimValue struct {
	Kind     ValueKind
	EntityID string
	Time     string
}

type rawEntity struct {
	ID           string                    `json:"id"`
	Labels       map[string]rawText        `json:"labels"`
	Descriptions map[string]rawText        `json:"descriptions"`
	Claims       map[string][]rawStatement `json:"claims"`
}

type rawText struct {
	Value string `json:"value"`
}

type rawStatement struct {
	Rank     string `json:"rank"`
	MainSnak struct {
		SnakType  string        `json:"snaktype"`
		DataValue *rawDataValue `json:"datavalue"`
	} `json:"mainsnak"`
}

type rawDataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type rawEntityIDValue struct {
	ID         string `json:"id"`
	NumericID  *int64 `json:"numeric-id"`
	EntityType string `json:"entity-type"`
}

type rawTimeValue struct {
	Time string `json:"time"`
}

// parseValue narrows a datavalue into a ClaimValue. Entity references are
// normalized from either "id" or "numeric-id".
func parseValue(dv *rawDataValue) ClaimValue {
	if dv == nil {
		return ClaimValue{}
	}

	switch dv.Type {
	case "wikibase-entityid":
		var v rawEntityIDValue
		if err := json.Unmarshal(dv.Value, &v); err != nil {
			return ClaimValue{}
		}
		if model.IsEntityID(v.ID) {
			return ClaimValue{Kind: KindEntityID, EntityID: v.ID}
		}
		if v.NumericID != nil && *v.NumericID > 0 {
			prefix := "Q"
			switch v.EntityType {
			case "property":
				prefix = "P"
			case "lexeme":
				prefix = "L"
			}
			return ClaimValue{Kind: KindEntityID, EntityID: prefix + strconv.FormatInt(*v.NumericID, 10)}
		}
	case "time":
		var v rawTimeValue
		if err := json.Unmarshal(dv.Value, &v); err != nil || v.Time == "" {
			return ClaimValue{}
		}
		return ClaimValue{Kind: KindTime, Time: v.Time}
	}

	return ClaimValue{}
}

func (e *rawEntity) values(prop string) []ClaimValue {
	statements := e.Claims[prop]
	values := make([]ClaimValue, 0, len(statements))
	for _, st := range statements {
		if st.Rank == "deprecated" || st.MainSnak.SnakType != "value" {
			continue
		}
		if v := parseValue(st.MainSnak.DataValue); v.Kind != KindUnknown {
			values = append(values, v)
		}
	}
	return values
}

func (e *rawEntity) entityIDs(prop string) []string {
	ids := []string{}
	seen := make(map[string]struct{})
	for _, v := range e.values(prop) {
		if v.Kind != KindEntityID {
			continue
		}
		if _, dup := seen[v.EntityID]; dup {
			continue
		}
		seen[v.EntityID] = struct{}{}
		ids = append(ids, v.EntityID)
	}
	return ids
}

// pointInTime returns the first usable P585 value as YYYY-MM-DD.
func (e *rawEntity) pointInTime() *string {
	for _, v := range e.values(PropPointInTime) {
		if v.Kind != KindTime {
			continue
		}
		if date, ok := ISODate(v.Time); ok {
			return &date
		}
	}
	return nil
}

// ISODate converts "+1969-07-20T00:00:00Z" into "1969-07-20". Negative years
// keep their sign. Zero years are rejected.
func ISODate(t string) (string, bool) {
	t = strings.TrimPrefix(t, "+")
	date, _, _ := strings.Cut(t, "T")

	negative := strings.HasPrefix(date, "-")
	parts := strings.Split(strings.TrimPrefix(date, "-"), "-")
	if len(parts) != 3 {
		return "", false
	}
	if strings.Trim(parts[0], "0") == "" {
		return "", false
	}
	if negative {
		return "-" + strings.Join(parts, "-"), true
	}
	return strings.Join(parts, "-"), true
}

func pickText(texts map[string]rawText, lang string) string {
	for _, l := range []string{lang, "en", "mul"} {
		if t, ok := texts[l]; ok && t.Value != "" {
			return t.Value
		}
	}
	return ""
}
