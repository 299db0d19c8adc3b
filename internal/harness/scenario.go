package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/timeline"
)

// Scenario defines a journey simulation test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists journey and trigger spec files (.yaml, .yml, .json, .cue).
	// LoadScenario resolves them relative to the scenario file.
	Specs []string `yaml:"specs"`

	// Seed is the master seed.
	Seed int64 `yaml:"seed"`

	// StartDate is the journey start date (YYYY-MM-DD).
	// Default: testutil.Start.
	StartDate string `yaml:"start_date,omitempty"`

	// HorizonDays bounds execution to StartDate + HorizonDays.
	// Default: DefaultHorizonDays.
	HorizonDays int `yaml:"horizon_days,omitempty"`

	// DefaultTriggers registers the built-in triggers. Default: true.
	DefaultTriggers *bool `yaml:"default_triggers,omitempty"`

	// SkippedPlaceholders records excluded events as skipped.
	SkippedPlaceholders bool `yaml:"skipped_placeholders,omitempty"`

	// MaxSteps is the per-entity trigger quota. Zero means the runner
	// default.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Entities are simulated in order.
	Entities []EntityFixture `yaml:"entities"`

	// Handlers override the default echo handler per (product, event_type).
	Handlers []HandlerStub `yaml:"handlers,omitempty"`

	// Assertions validate the final timelines.
	Assertions []Assertion `yaml:"assertions"`
}

// EntityFixture declares one simulated entity.
type EntityFixture struct {
	ID string `yaml:"id"`

	// Type defaults to "patient".
	Type string `yaml:"type,omitempty"`

	Attributes ir.IRObject `yaml:"attributes,omitempty"`

	// Journeys lists journey ids to schedule. Empty means every loaded
	// journey.
	Journeys []string `yaml:"journeys,omitempty"`
}

// HandlerStub sets a canned result or failure for one event kind.
type HandlerStub struct {
	Product   string      `yaml:"product"`
	EventType string      `yaml:"event_type"`
	Result    ir.IRObject `yaml:"result,omitempty"`
	Fail      string      `yaml:"fail,omitempty"`
}

// Assertion validates the final timelines.
//
// Entity, Product, EventType, Event, Journey, Trigger, Date and Status
// filter events; empty filters match everything.
type Assertion struct {
	Type string `yaml:"type"`

	Entity    string `yaml:"entity,omitempty"`
	Product   string `yaml:"product,omitempty"`
	EventType string `yaml:"event_type,omitempty"`

	// Event is the event definition id within a journey.
	Event   string `yaml:"event,omitempty"`
	Journey string `yaml:"journey,omitempty"`
	Trigger string `yaml:"trigger,omitempty"`
	Date    string `yaml:"date,omitempty"`
	Status  string `yaml:"status,omitempty"`

	// Count is the expected number of matches (event_count,
	// instruction_count).
	Count *int `yaml:"count,omitempty"`

	// EventTypes is the expected order (event_order).
	EventTypes []string `yaml:"event_types,omitempty"`

	// ProductID is the expected linked id (entity_linked). Empty only
	// checks that a link exists.
	ProductID string `yaml:"product_id,omitempty"`
}

// Assertion type constants.
const (
	AssertEventScheduled   = "event_scheduled"
	AssertEventStatus      = "event_status"
	AssertEventAbsent      = "event_absent"
	AssertEventCount       = "event_count"
	AssertEventOrder       = "event_order"
	AssertInstructionCount = "instruction_count"
	AssertEntityLinked     = "entity_linked"
)

// LoadScenario reads and parses a scenario YAML file. Spec paths are
// resolved relative to the file's directory. Unknown fields and missing
// required fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return DecodeScenario(data, filepath.Dir(path))
}

// DecodeScenario parses scenario YAML, resolving relative spec paths
// against baseDir.
func DecodeScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && baseDir != "" {
			scenario.Specs[i] = filepath.Join(baseDir, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Entities) == 0 {
		return fmt.Errorf("entities list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	if s.StartDate != "" {
		if _, err := timeline.ParseDate(s.StartDate); err != nil {
			return fmt.Errorf("start_date: %w", err)
		}
	}
	if s.HorizonDays < 0 {
		return fmt.Errorf("horizon_days must be non-negative")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	seen := make(map[string]bool)
	for i, e := range s.Entities {
		if e.ID == "" {
			return fmt.Errorf("entities[%d]: id is required", i)
		}
		if seen[e.ID] {
			return fmt.Errorf("entities[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
	}

	for i, h := range s.Handlers {
		if h.Product == "" || h.EventType == "" {
			return fmt.Errorf("handlers[%d]: product and event_type are required", i)
		}
		if h.Fail != "" && h.Result != nil {
			return fmt.Errorf("handlers[%d]: result and fail are mutually exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Date != "" {
		if _, err := timeline.ParseDate(a.Date); err != nil {
			return fmt.Errorf("assertions[%d]: date: %w", index, err)
		}
	}

	switch a.Type {
	case AssertEventScheduled, AssertEventAbsent:
	case AssertEventStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for event_status", index)
		}
	case AssertEventCount, AssertInstructionCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertEventOrder:
		if len(a.EventTypes) < 2 {
			return fmt.Errorf("assertions[%d]: event_types needs at least two entries for event_order", index)
		}
	case AssertEntityLinked:
		if a.Entity == "" || a.Product == "" {
			return fmt.Errorf("assertions[%d]: entity and product are required for entity_linked", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
