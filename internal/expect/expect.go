package expect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Requirement demands one captured event of EventType whose fields satisfy
// every entry of RequiredFields (dotted path to expected value).
type Requirement struct {
	EventType      string         `json:"event_type" yaml:"event_type"`
	RequiredFields map[string]any `json:"required_fields" yaml:"required_fields"`
}

// Document is a declarative statement of what a capture must contain.
// Read-only input; ParseFile folds the legacy alias keys into the primary
// ones, so downstream code reads MinimumEvents and Events only.
type Document struct {
	MinimumEvents *int `json:"minimum_events" yaml:"minimum_events"`
	MinCount      *int `json:"min_count" yaml:"min_count"`

	Events         []Requirement `json:"events" yaml:"events"`
	RequiredEvents []Requirement `json:"required_events" yaml:"required_events"`
}

// ParseFile reads an expectation document. JSON is the canonical format;
// .yaml/.yml parse into the same schema. Any parse or lint failure here is an
// input error, never a validation outcome.
func ParseFile(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	var doc Document
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return Document{}, fmt.Errorf("invalid expectation yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Document{}, fmt.Errorf("invalid expectation json: %w", err)
		}
	}

	// Fold aliases; the primary spelling wins when both are present.
	if doc.MinimumEvents == nil {
		doc.MinimumEvents = doc.MinCount
	}
	doc.MinCount = nil
	if len(doc.Events) == 0 {
		doc.Events = doc.RequiredEvents
	}
	doc.RequiredEvents = nil

	if doc.MinimumEvents != nil && *doc.MinimumEvents < 0 {
		return Document{}, fmt.Errorf("minimum_events must be >= 0")
	}
	for i := range doc.Events {
		doc.Events[i].EventType = strings.TrimSpace(doc.Events[i].EventType)
	}
	return doc, nil
}
