package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
name: vaccine-panel
topic: vaccine rollout strategy
locale: en
maxRounds: 2
stepDelayMs: 10
agents:
  - id: chen
    name: Dr. Chen
    role: epidemiologist
    lines:
      - Coverage should target high-risk groups first.
      - Cold-chain capacity remains the bottleneck.
  - id: okafor
    name: Prof. Okafor
    role: economist
    lines:
      - Subsidies outperform mandates on uptake.
`

func TestParseValidScenario(t *testing.T) {
	t.Parallel()

	sc, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sc.Name != "vaccine-panel" || sc.MaxRounds != 2 || len(sc.Agents) != 2 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}
	if sc.Agents[0].Name != "Dr. Chen" || len(sc.Agents[0].Lines) != 2 {
		t.Fatalf("unexpected agent: %+v", sc.Agents[0])
	}
	if sc.StepDelay().Milliseconds() != 10 {
		t.Fatalf("unexpected step delay: %v", sc.StepDelay())
	}
}

func TestParseRejectsMissingAgents(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("name: empty\ntopic: t\nmaxRounds: 1\nagents: []\n"))
	if err == nil {
		t.Fatal("expected schema rejection for empty agents")
	}
	if !strings.Contains(err.Error(), "invalid scenario") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseRejectsBadLocale(t *testing.T) {
	t.Parallel()

	bad := strings.Replace(validYAML, "locale: en", "locale: fr", 1)
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected schema rejection for unrecognized locale")
	}
}

func TestParseRejectsZeroRounds(t *testing.T) {
	t.Parallel()

	bad := strings.Replace(validYAML, "maxRounds: 2", "maxRounds: 0", 1)
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected schema rejection for zero rounds")
	}
}

func TestParseRejectsDuplicateAgentIDs(t *testing.T) {
	t.Parallel()

	bad := strings.Replace(validYAML, "id: okafor", "id: chen", 1)
	_, err := Parse([]byte(bad))
	if err == nil || !strings.Contains(err.Error(), "duplicate agent id") {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.Topic != "vaccine rollout strategy" {
		t.Fatalf("unexpected topic: %q", sc.Topic)
	}
}
