package overrides

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lysyi3m/onthisday/internal/validate"
	"gopkg.in/yaml.v3"
)

var eventIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

type Loader struct {
	validator *validator.Validate
	logger    *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{validator: validate.New(), logger: logger}
}

// Load reads an override file. A missing file yields an empty config; any
// syntax, type or schema problem yields a *LoadError listing all issues.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.logger.Debug("No overrides file", "path", path)
			return &Config{Events: map[string]EventOverride{}}, nil
		}
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yml" || ext == ".yaml" {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, &LoadError{Path: path, Issues: []string{fmt.Sprintf("failed to parse YAML: %v", err)}}
		}
	}

	cfg, issues := l.parse(data)
	if len(issues) > 0 {
		return nil, &LoadError{Path: path, Issues: issues}
	}

	l.logger.Info("Overrides loaded", "path", path, "events", len(cfg.Events))
	return cfg, nil
}

func (l *Loader) parse(data []byte) (*Config, []string) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, []string{fmt.Sprintf("failed to parse JSON: %v", err)}
	}

	var issues []string
	for key := range root {
		if key != "events" {
			issues = append(issues, fmt.Sprintf("%s: unknown field", key))
		}
	}

	cfg := &Config{Events: map[string]EventOverride{}}
	rawEvents, ok := root["events"]
	if !ok || isNull(rawEvents) {
		slices.Sort(issues)
		return cfg, issues
	}

	var events map[string]json.RawMessage
	if err := json.Unmarshal(rawEvents, &events); err != nil {
		return nil, append(issues, "events: must be an object keyed by event id")
	}

	ids := make([]string, 0, len(events))
	for id := range events {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		prefix := "events." + id
		if !eventIDPattern.MatchString(id) {
			issues = append(issues, prefix+": key must be a 32-character lowercase hex event id")
		}

		override, fieldIssues := decodeOverride(prefix, events[id])
		issues = append(issues, fieldIssues...)
		if len(fieldIssues) > 0 {
			continue
		}

		if err := l.validator.Struct(&override); err != nil {
			for _, issue := range validate.Issues(err) {
				issues = append(issues, prefix+"."+issue)
			}
			continue
		}
		cfg.Events[id] = override
	}

	return cfg, issues
}

// decodeOverride decodes field by field so type errors carry their path.
func decodeOverride(prefix string, raw json.RawMessage) (EventOverride, []string) {
	var override EventOverride

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return override, []string{prefix + ": must be an object"}
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	var issues []string
	for _, name := range names {
		value := fields[name]
		if isNull(value) {
			continue
		}

		var target any
		var want string
		switch name {
		case "categories":
			target, want = &override.Categories, "an array of strings"
		case "era":
			target, want = &override.Era, "a string"
		case "tags":
			target, want = &override.Tags, "an array of strings"
		case "selectedMedia":
			target, want = &override.SelectedMedia, "an object"
		case "suppress":
			target, want = &override.Suppress, "a boolean"
		default:
			issues = append(issues, fmt.Sprintf("%s.%s: unknown field", prefix, name))
			continue
		}

		if err := strictUnmarshal(value, target); err != nil {
			issues = append(issues, typeIssue(prefix+"."+name, want, err))
		}
	}

	return override, issues
}

func strictUnmarshal(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func typeIssue(path, want string, err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s.%s: expected %s, got %s", path, typeErr.Field, typeErr.Type.String(), typeErr.Value)
	}
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s: expected %s, got %s", path, want, typeErr.Value)
	}
	if strings.HasPrefix(err.Error(), "json: unknown field ") {
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return fmt.Sprintf("%s.%s: unknown field", path, field)
	}
	return fmt.Sprintf("%s: %v", path, err)
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// yamlToJSON re-encodes a YAML document so both formats share one decoder.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(doc)
}
