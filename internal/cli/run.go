package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/deferplan/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Trace bool // print the full event trace
}

// RunResult is the JSON form of one scenario run.
type RunResult struct {
	Scenario string                 `json:"scenario"`
	Pass     bool                   `json:"pass"`
	Digest   string                 `json:"digest,omitempty"`
	Calls    []harness.CallSnapshot `json:"calls"`
	Trace    []string               `json:"trace,omitempty"`
	Errors   []string               `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and show every call",
		Long: `Run a scenario file on an in-process network of peers.

The scenario names a blueprint directory and a plan, the peers and the
values they hold, and the calls to make. Each call is reported with its
placement, result and the messages the peers dispatched for it.

Example:
  deferplan run ./scenarios/affine_remote.yaml
  deferplan run ./scenarios/affine_remote.yaml --trace`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print the full event trace")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()})
	}

	logger.Debug("running scenario", "scenario", scenario.Name, "plan", scenario.Plan)
	result, err := harness.Run(scenario)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeExecute, Message: err.Error()})
	}
	logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "calls", len(result.Calls))

	out := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Digest:   result.Digest,
		Calls:    result.Calls,
		Errors:   result.Errors,
	}
	if opts.Trace {
		for _, e := range result.Trace {
			out.Trace = append(out.Trace, e.Label())
		}
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: out}
		if !out.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeExecute, Message: fmt.Sprintf("scenario %s failed", out.Scenario)}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		printRun(formatter, out)
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
	}
	return nil
}

func printRun(formatter *OutputFormatter, out RunResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Scenario %s\n\n", out.Scenario)

	for _, c := range out.Calls {
		fmt.Fprintf(w, "call %d [%s] %s\n", c.Index, c.Placement, c.Plan)
		if c.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", c.Error)
		} else {
			fmt.Fprintf(w, "  result: %v\n", c.Result)
		}
		labels := make([]string, len(c.Dispatches))
		for i, d := range c.Dispatches {
			labels[i] = strings.TrimPrefix(d.Label(), harness.EventDispatch+" ")
		}
		if len(labels) > 0 {
			fmt.Fprintf(w, "  dispatched: %s\n", strings.Join(labels, ", "))
		}
	}

	if len(out.Trace) > 0 {
		fmt.Fprintln(w, "\nTrace:")
		for i, label := range out.Trace {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, label)
		}
	}

	fmt.Fprintln(w)
	if out.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
