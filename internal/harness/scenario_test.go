package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content next to a blueprints directory and returns
// the scenario path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "blueprints"), 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
blueprints: blueprints
plan: add_one
owner: alice
peers: [alice, bob]
values:
  - { name: s, peer: alice, data: 0 }
  - { name: x, peer: bob, data: [1, 2] }
trace_with: [s]
send_to: bob
get_after: 0
calls:
  - args: [x]
    as: r
    expect:
      result: [2, 3]
assertions:
  - type: trace_contains
    event: transmit bob
  - type: final_state
    value: r
    expect: [2, 3]
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, validScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "blueprints"), scenario.Blueprints)
	assert.Equal(t, []string{"alice", "bob"}, scenario.Peers)
	assert.Len(t, scenario.Values, 2)
	assert.Equal(t, []any{1, 2}, scenario.Values[1].Data)
	require.NotNil(t, scenario.GetAfter)
	assert.Equal(t, 0, *scenario.GetAfter)
	require.Len(t, scenario.Calls, 1)
	assert.Equal(t, "r", scenario.Calls[0].As)
	assert.Len(t, scenario.Assertions, 2)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, validScenario+"assertion: []\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_WithBasePath(t *testing.T) {
	path := writeScenario(t, validScenario)

	_, err := LoadScenarioWithBasePath(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blueprints directory not found")
}

func TestValidateScenario(t *testing.T) {
	base := func(t *testing.T) *Scenario {
		path := writeScenario(t, validScenario)
		s, err := LoadScenario(path)
		require.NoError(t, err)
		return s
	}
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing plan", func(s *Scenario) { s.Plan = "" }, "plan is required"},
		{"no calls", func(s *Scenario) { s.Calls = nil }, "calls list is required"},
		{"owner not a peer", func(s *Scenario) { s.Owner = "carol" }, `owner "carol" is not in peers`},
		{"duplicate value", func(s *Scenario) { s.Values[1].Name = "s" }, `duplicate name "s"`},
		{"value at unknown peer", func(s *Scenario) { s.Values[0].Peer = "carol" }, `unknown peer "carol"`},
		{"trace input not at owner", func(s *Scenario) { s.TraceWith = []string{"x"} }, "not the owner"},
		{"send without trace", func(s *Scenario) { s.TraceWith = nil }, "send_to requires trace_with"},
		{"get_after out of range", func(s *Scenario) { s.GetAfter = intPtr(1) }, "no call with index 1"},
		{"get_after without send", func(s *Scenario) { s.SendTo = "" }, "get_after requires send_to"},
		{"unknown argument", func(s *Scenario) { s.Calls[0].Args = []string{"nope"} }, `unknown value "nope"`},
		{"empty expect", func(s *Scenario) { s.Calls[0].Expect = &ExpectClause{} }, "result or error is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions[0].Type = "state" }, `unknown assertion type "state"`},
		{"final_state of unbound name", func(s *Scenario) { s.Assertions[1].Value = "q" }, `unknown value "q"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base(t)
			tt.mutate(s)
			err := validateScenario(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAssertion(t *testing.T) {
	names := map[string]string{"r": "alice"}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"contains needs event", Assertion{Type: AssertTraceContains}, "event is required"},
		{"order needs events", Assertion{Type: AssertTraceOrder}, "events list is required"},
		{"count non-negative", Assertion{Type: AssertTraceCount, Event: "call", Count: -1}, "non-negative"},
		{"final_state needs expect", Assertion{Type: AssertFinalState, Value: "r"}, "expect is required"},
		{"journal needs peer", Assertion{Type: AssertJournalCount}, "peer is required"},
		{"missing type", Assertion{}, "type is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(0, &tt.assertion, names)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, validateAssertion(0, &Assertion{Type: AssertJournalCount, Peer: "bob"}, names))
}
