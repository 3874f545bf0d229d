package compiler

import (
	"fmt"

	"github.com/roach88/deferplan/internal/ir"
)

// Warning flags a blueprint that compiles but records work nobody reads.
//
// Dead steps are warnings, not errors: a plan still traces and replays
// correctly, it just dispatches more than it returns.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Level   string `json:"level"`
}

// AnalyzeDeadSteps reports steps whose results never reach an output and
// inputs that nothing reads.
//
// The algorithm:
//  1. Build a value → operands dependency graph from the steps
//  2. Walk it backwards from the outputs and from every query step
//  3. Report each unvisited step output and each unvisited input
//
// Query steps are always live because they force eager execution.
// The blueprint must already have passed Validate.
func AnalyzeDeadSteps(spec *ir.BlueprintSpec) []Warning {
	graph := buildValueGraph(spec)

	live := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if live[name] {
			return
		}
		live[name] = true
		for _, dep := range graph[name] {
			visit(dep)
		}
	}

	for _, out := range spec.Outputs {
		visit(out)
	}
	for _, step := range spec.Steps {
		if _, isQuery := ir.QueryKind(step.Op); isQuery {
			visit(step.Self)
		}
	}

	warnings := []Warning{}
	for i, step := range spec.Steps {
		if step.Out == "" || live[step.Out] {
			continue
		}
		warnings = append(warnings, Warning{
			Field:   fmt.Sprintf("steps[%d]", i),
			Message: fmt.Sprintf("result %q of %s is never used", step.Out, step.Op),
			Level:   "warning",
		})
	}
	for i, in := range spec.Inputs {
		if live[in] {
			continue
		}
		warnings = append(warnings, Warning{
			Field:   fmt.Sprintf("inputs[%d]", i),
			Message: fmt.Sprintf("input %q is never used", in),
			Level:   "info",
		})
	}
	return warnings
}

// valueGraph maps a value name → names it is computed from.
type valueGraph map[string][]string

func buildValueGraph(spec *ir.BlueprintSpec) valueGraph {
	graph := make(valueGraph)
	for _, step := range spec.Steps {
		if step.Out == "" {
			continue
		}
		deps := []string{step.Self}
		for _, arg := range step.Args {
			if arg.Ref != "" {
				deps = append(deps, arg.Ref)
			}
		}
		graph[step.Out] = deps
	}
	return graph
}
