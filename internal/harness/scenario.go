package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario drives one plan through a sequence of calls on an in-process
// network and checks the results and the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Blueprints is the directory of CUE blueprints to load.
	// Relative paths are resolved against the scenario file's directory.
	Blueprints string `yaml:"blueprints"`

	// Plan names the blueprint to trace.
	Plan string `yaml:"plan"`

	// Owner is the peer that owns the plan.
	Owner string `yaml:"owner"`

	// Peers lists every peer on the network, owner included.
	Peers []string `yaml:"peers"`

	// Values are registered at their peers before any call.
	Values []ValueDef `yaml:"values,omitempty"`

	// TraceWith names owner-side values used to trace the plan before the
	// first call. Required with SendTo.
	TraceWith []string `yaml:"trace_with,omitempty"`

	// SendTo places the plan at a peer before the first call.
	SendTo string `yaml:"send_to,omitempty"`

	// GetAfter reclaims the plan after the call with this index.
	GetAfter *int `yaml:"get_after,omitempty"`

	// Calls invoke the plan in order.
	Calls []CallStep `yaml:"calls"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, journal_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ValueDef is a named value held by a peer.
type ValueDef struct {
	Name string `yaml:"name"`
	Peer string `yaml:"peer"`
	Data any    `yaml:"data"`
}

// CallStep is one invocation of the plan.
type CallStep struct {
	// Args name the values passed positionally.
	Args []string `yaml:"args"`

	// Named arguments map parameter names to values. Plans reject them;
	// scenarios use this to check the rejection.
	Named map[string]string `yaml:"named,omitempty"`

	// As binds the call's result to a name usable by later calls and
	// final_state assertions.
	As string `yaml:"as,omitempty"`

	// Expect checks the outcome. If nil, the call must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected call outcome.
type ExpectClause struct {
	// Result is the expected value of the call's result.
	Result any `yaml:"result,omitempty"`

	// Error is an expected error code (e.g. UNSUPPORTED_INVOCATION) or a
	// substring of the error message.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an event label appears in the trace
	// - "trace_order": Check event labels appear in order
	// - "trace_count": Check an event label appears exactly N times
	// - "final_state": Check the value bound to a name
	// - "journal_count": Check how many messages a peer journaled
	Type string `yaml:"type"`

	// Event is an event label (used by trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected label order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count,
	// journal_count).
	Count int `yaml:"count,omitempty"`

	// Value is a value or result name (used by final_state).
	Value string `yaml:"value,omitempty"`

	// Expect is the expected value (used by final_state).
	Expect any `yaml:"expect,omitempty"`

	// Peer and Kind select journaled messages (used by journal_count).
	// An empty Kind counts every kind.
	Peer string `yaml:"peer,omitempty"`
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertJournalCount  = "journal_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// blueprint directory against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the blueprint directory relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Blueprints != "" && !filepath.IsAbs(scenario.Blueprints) && basePath != "" {
		scenario.Blueprints = filepath.Join(basePath, scenario.Blueprints)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and consistent.
func validateScenario(s *Scenario) error {
	switch {
	case s.Name == "":
		return fmt.Errorf("name is required")
	case s.Description == "":
		return fmt.Errorf("description is required")
	case s.Blueprints == "":
		return fmt.Errorf("blueprints directory is required")
	case s.Plan == "":
		return fmt.Errorf("plan is required")
	case s.Owner == "":
		return fmt.Errorf("owner is required")
	case len(s.Calls) == 0:
		return fmt.Errorf("calls list is required and must be non-empty")
	}

	if info, err := os.Stat(s.Blueprints); err != nil || !info.IsDir() {
		return fmt.Errorf("blueprints directory not found: %s", s.Blueprints)
	}

	if !slices.Contains(s.Peers, s.Owner) {
		return fmt.Errorf("owner %q is not in peers", s.Owner)
	}

	// Names usable as arguments, in declaration order.
	names := make(map[string]string)
	for i, v := range s.Values {
		if v.Name == "" {
			return fmt.Errorf("values[%d]: name is required", i)
		}
		if _, dup := names[v.Name]; dup {
			return fmt.Errorf("values[%d]: duplicate name %q", i, v.Name)
		}
		if !slices.Contains(s.Peers, v.Peer) {
			return fmt.Errorf("values[%d]: unknown peer %q", i, v.Peer)
		}
		names[v.Name] = v.Peer
	}

	for i, name := range s.TraceWith {
		peer, ok := names[name]
		if !ok {
			return fmt.Errorf("trace_with[%d]: unknown value %q", i, name)
		}
		if peer != s.Owner {
			return fmt.Errorf("trace_with[%d]: value %q is held by %s, not the owner", i, name, peer)
		}
	}

	if s.SendTo != "" {
		if !slices.Contains(s.Peers, s.SendTo) {
			return fmt.Errorf("send_to: unknown peer %q", s.SendTo)
		}
		if len(s.TraceWith) == 0 {
			return fmt.Errorf("send_to requires trace_with")
		}
	}
	if s.GetAfter != nil {
		if s.SendTo == "" {
			return fmt.Errorf("get_after requires send_to")
		}
		if *s.GetAfter < 0 || *s.GetAfter >= len(s.Calls) {
			return fmt.Errorf("get_after: no call with index %d", *s.GetAfter)
		}
	}

	for i, call := range s.Calls {
		for j, arg := range call.Args {
			if _, ok := names[arg]; !ok {
				return fmt.Errorf("calls[%d].args[%d]: unknown value %q", i, j, arg)
			}
		}
		for k, arg := range call.Named {
			if _, ok := names[arg]; !ok {
				return fmt.Errorf("calls[%d].named[%s]: unknown value %q", i, k, arg)
			}
		}
		if call.Expect != nil && call.Expect.Result == nil && call.Expect.Error == "" {
			return fmt.Errorf("calls[%d].expect: result or error is required", i)
		}
		if call.As != "" {
			if _, dup := names[call.As]; dup {
				return fmt.Errorf("calls[%d].as: duplicate name %q", i, call.As)
			}
			names[call.As] = ""
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, names); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, names map[string]string) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if _, ok := names[a.Value]; !ok {
			return fmt.Errorf("assertions[%d]: unknown value %q for final_state", index, a.Value)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertJournalCount:
		if a.Peer == "" {
			return fmt.Errorf("assertions[%d]: peer is required for journal_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
