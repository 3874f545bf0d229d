package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/deferplan/internal/ir"
)

// GoldenDir is where golden trace files live, relative to the test's
// package directory.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Digest       string         `json:"digest,omitempty"`
	Trace        []TraceEvent   `json:"trace"`
	Calls        []CallSnapshot `json:"calls"`
}

// NewTraceSnapshot builds the snapshot of a scenario result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Digest:       result.Digest,
		Trace:        result.Trace,
		Calls:        result.Calls,
	}
}

// Canonical returns the snapshot as canonical JSON.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	calls := make([]any, len(s.Calls))
	for i, c := range s.Calls {
		call := map[string]any{
			"index":      c.Index,
			"plan":       c.Plan,
			"placement":  c.Placement,
			"readable":   c.Readable,
			"dispatches": eventList(c.Dispatches),
		}
		if c.Result != nil {
			call["result"] = c.Result
		}
		if c.Error != "" {
			call["error"] = c.Error
		}
		calls[i] = call
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         eventList(s.Trace),
		"calls":         calls,
	}
	if s.Digest != "" {
		result["digest"] = s.Digest
	}
	return result
}

func eventList(events []TraceEvent) []any {
	list := make([]any, len(events))
	for i, event := range events {
		m := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		for k, v := range map[string]string{
			"peer":  event.Peer,
			"kind":  event.Kind,
			"op":    event.Op,
			"error": event.Error,
		} {
			if v != "" {
				m[k] = v
			}
		}
		if event.Message != nil {
			m["message"] = event.Message
		}
		if event.Result != nil {
			m["result"] = event.Result
		}
		list[i] = m
	}
	return list
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden unless
// opts override the fixture directory.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	traceJSON, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
