// Package scenario loads the scripted discussions the dev meeting
// server replays. Scenarios are YAML files validated against a JSON
// schema before use.
package scenario

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"
)

// Agent is one scripted participant. Lines are played one per round;
// an agent with fewer lines than rounds stays silent in later rounds.
type Agent struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Role  string   `json:"role,omitempty"`
	Lines []string `json:"lines"`
}

// Scenario is a full scripted meeting.
type Scenario struct {
	Name        string  `json:"name"`
	Topic       string  `json:"topic"`
	Locale      string  `json:"locale,omitempty"`
	MaxRounds   int     `json:"maxRounds"`
	StepDelayMs int     `json:"stepDelayMs,omitempty"`
	Agents      []Agent `json:"agents"`
}

// StepDelay returns the pause between scripted utterances.
func (s *Scenario) StepDelay() time.Duration {
	return time.Duration(s.StepDelayMs) * time.Millisecond
}

const schemaJSON = `{
	"type": "object",
	"required": ["name", "topic", "maxRounds", "agents"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"topic": {"type": "string", "minLength": 1},
		"locale": {"type": "string", "enum": ["zh", "en"]},
		"maxRounds": {"type": "integer", "minimum": 1},
		"stepDelayMs": {"type": "integer", "minimum": 0},
		"agents": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "name", "lines"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"role": {"type": "string"},
					"lines": {
						"type": "array",
						"items": {"type": "string"}
					}
				}
			}
		}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes scenario YAML (or JSON).
func Parse(data []byte) (*Scenario, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("scenario is not valid YAML: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("scenario schema validation: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("invalid scenario: %s", strings.Join(problems, "; "))
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}

	seen := make(map[string]bool, len(sc.Agents))
	for _, agent := range sc.Agents {
		if seen[agent.ID] {
			return nil, fmt.Errorf("invalid scenario: duplicate agent id %q", agent.ID)
		}
		seen[agent.ID] = true
	}
	return &sc, nil
}
