package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
	"github.com/roach88/deferplan/internal/plan"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Args     []string // JSON values, one per blueprint input
	Database string   // optional - persist the plan and the journal
	Owner    string
	Call     bool // replay once after tracing
}

// TraceResult holds the traced plan.
type TraceResult struct {
	Plan      string        `json:"plan"`
	Name      string        `json:"name"`
	Digest    string        `json:"digest"`
	ArgIDs    []ir.ID       `json:"arg_ids"`
	ResultIDs []ir.ID       `json:"result_ids"`
	Messages  []MessageView `json:"messages"`
	Result    any           `json:"result,omitempty"`
	Stored    bool          `json:"stored"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <blueprints-dir> <plan>",
		Short: "Trace a blueprint into a plan",
		Long: `Trace a blueprint once with sample arguments and print the recorded plan.

Each --arg is a JSON value registered at the owner and bound to the next
blueprint input. Query steps run eagerly while tracing, so the samples must
be real values.

With --db the plan and every message the owner dispatched are stored for
show and replay.

Examples:
  deferplan trace ./blueprints affine --arg '[1,2,3]' --arg 1
  deferplan trace ./blueprints affine --arg '[1,2,3]' --arg 1 --call
  deferplan trace ./blueprints affine --arg 5 --arg 3 --db ./plans.db --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "JSON value for the next input (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Owner, "owner", DefaultOwner, "name of the owning peer")
	cmd.Flags().BoolVar(&opts.Call, "call", false, "replay the plan once with the same arguments")

	return cmd
}

func runTrace(opts *TraceOptions, dir, name string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	loadResult, loadErrors := LoadBlueprints(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return failWith(formatter, ExitCommandError, loadErrors[0])
	}
	spec, ok := loadResult.Lookup(name)
	if !ok {
		return failWith(formatter, ExitCommandError, &LoadError{
			Code:    ErrCodeUnknownPlan,
			Message: fmt.Sprintf("blueprint %q not found in %s", name, dir),
		})
	}
	bp, err := plan.FromSpec(spec)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}

	st, journal, clock, err := openJournal(ctx, opts.Database)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}
	if st != nil {
		defer st.Close()
	}

	owner := newOwner(opts.Owner, logger, journal, clock)
	argIDs, err := registerArgs(owner, opts.Args)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeBadArgument, Message: err.Error()})
	}

	p := plan.New(owner, bp,
		plan.WithName(spec.Name),
		plan.WithIDSource(peer.NewSequentialIDs(1)),
		plan.WithLogger(logger),
	)
	if err := p.Build(ctx, argIDs); err != nil {
		return failWith(formatter, ExitFailure, &LoadError{Code: ErrCodeTrace, Message: err.Error()})
	}

	rec := p.Record()
	result := TraceResult{
		Plan:      p.String(),
		Name:      p.Name(),
		ArgIDs:    rec.ArgIDs,
		ResultIDs: rec.ResultIDs,
		Messages:  describeMessages(rec.Messages),
	}
	if result.Digest, err = ir.PlanDigest(rec); err != nil {
		return failWith(formatter, ExitFailure, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}

	if st != nil {
		if _, err := st.SavePlan(ctx, rec); err != nil {
			return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeStore, Message: err.Error()})
		}
		result.Stored = true
	}

	if opts.Call {
		inv, err := p.Call(ctx, plan.Args{Positional: argIDs})
		if err != nil {
			return failWith(formatter, ExitFailure, &LoadError{Code: ErrCodeExecute, Message: err.Error()})
		}
		value, err := owner.Value(inv.ResultID)
		if err != nil {
			return failWith(formatter, ExitFailure, &LoadError{Code: ErrCodeExecute, Message: err.Error()})
		}
		result.Result = ir.ToGo(value)
	}

	logger.Info("plan traced", "plan", result.Name, "messages", len(result.Messages), "digest", result.Digest)
	return outputTrace(formatter, result)
}

func outputTrace(formatter *OutputFormatter, result TraceResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Traced %s\n", result.Plan)
	fmt.Fprintf(w, "  args: %v  results: %v\n", result.ArgIDs, result.ResultIDs)
	fmt.Fprintf(w, "  digest: %s\n\n", result.Digest)
	printMessages(formatter, result.Messages)
	if result.Result != nil {
		fmt.Fprintf(w, "\nResult: %v\n", result.Result)
	}
	if result.Stored {
		fmt.Fprintln(w, "\nStored plan in database")
	}
	return nil
}

// printMessages writes a recording, one message per line.
func printMessages(formatter *OutputFormatter, msgs []MessageView) {
	w := formatter.Writer
	fmt.Fprintf(w, "Recording (%d message(s)):\n", len(msgs))
	for _, m := range msgs {
		body, err := ir.MarshalCanonical(m.Body)
		if err != nil {
			body = []byte(fmt.Sprint(m.Body))
		}
		fmt.Fprintf(w, "  [%d] %s %s\n", m.Index, m.label(), body)
	}
}

// failWith reports err through the formatter and returns it as an exit
// error with the given code.
func failWith(formatter *OutputFormatter, code int, err error) error {
	c, message := parseLoadError(err)
	_ = formatter.Error(c, message, nil)
	return WrapExitError(code, c, err)
}
