package cli

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/peer"
	"github.com/roach88/deferplan/internal/plan"
	"github.com/roach88/deferplan/internal/store"
)

// replayResultBase is where replayed plans draw result identifiers from,
// well clear of the owner's own range.
const replayResultBase = 1_000_000

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Digest   string
	Args     []string
	Owner    string
}

// ReplayRun is the outcome of one replay.
type ReplayRun struct {
	Result     any      `json:"result"`
	Dispatches []string `json:"dispatches"` // message digests in journal order
}

// ReplayResult holds the replay outcome and the determinism check.
type ReplayResult struct {
	Plan          string `json:"plan"`
	Digest        string `json:"digest"`
	Result        any    `json:"result"`
	Dispatches    int    `json:"dispatches"`
	Deterministic bool   `json:"deterministic"`
	Diff          string `json:"diff,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <plan>",
		Short: "Replay a stored plan and verify determinism",
		Long: `Replay a plan stored by trace --db against new arguments.

The plan is rebuilt twice on fresh peers and executed with the same
arguments. Both runs must return the same result and dispatch the same
messages.

Exit codes:
  0 - Replay succeeded and was deterministic
  1 - Replay failed or the two runs differ
  2 - Command error (database not found, unknown plan, etc.)

Examples:
  deferplan replay --db ./plans.db affine --arg '[4,5]' --arg 2
  deferplan replay --db ./plans.db --digest 3f2a... --arg 7 --arg 1`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runReplay(opts, name, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "select the plan by digest")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "JSON value for the next argument (repeatable)")
	cmd.Flags().StringVar(&opts.Owner, "owner", DefaultOwner, "name of the replaying peer")

	return cmd
}

func runReplay(opts *ReplayOptions, name string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	if name == "" && opts.Digest == "" {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeUnknownPlan, Message: "a plan name or --digest is required"})
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}
	defer st.Close()

	stored, err := loadStoredPlan(ctx, st, name, opts.Digest)
	if err != nil {
		return failWith(formatter, ExitCommandError, err)
	}

	first, err := replayOnce(ctx, opts, stored.Record)
	if err != nil {
		return failWith(formatter, ExitFailure, err)
	}
	second, err := replayOnce(ctx, opts, stored.Record)
	if err != nil {
		return failWith(formatter, ExitFailure, err)
	}

	result := ReplayResult{
		Plan:       stored.Record.Name,
		Digest:     stored.Digest,
		Result:     first.Result,
		Dispatches: len(first.Dispatches),
	}
	result.Diff = cmp.Diff(first, second)
	result.Deterministic = result.Diff == ""
	logger.Info("plan replayed", "plan", result.Plan, "dispatches", result.Dispatches, "deterministic", result.Deterministic)

	return outputReplay(formatter, result)
}

// replayOnce rebuilds rec on a fresh owner and calls it with the command's
// arguments.
func replayOnce(ctx context.Context, opts *ReplayOptions, rec ir.PlanRecord) (ReplayRun, error) {
	journal := &peer.MemoryJournal{}
	owner := newOwner(opts.Owner, opts.logger(), journal, peer.NewClock())

	argIDs, err := registerArgs(owner, opts.Args)
	if err != nil {
		return ReplayRun{}, &LoadError{Code: ErrCodeBadArgument, Message: err.Error()}
	}

	p, err := plan.FromRecord(rec, owner,
		plan.WithIDSource(peer.NewSequentialIDs(replayResultBase)),
		plan.WithLogger(opts.logger()),
	)
	if err != nil {
		return ReplayRun{}, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	inv, err := p.Call(ctx, plan.Args{Positional: argIDs})
	if err != nil {
		return ReplayRun{}, &LoadError{Code: ErrCodeExecute, Message: err.Error()}
	}
	value, err := owner.Value(inv.ResultID)
	if err != nil {
		return ReplayRun{}, &LoadError{Code: ErrCodeExecute, Message: err.Error()}
	}

	run := ReplayRun{Result: ir.ToGo(value)}
	for _, d := range journal.Records() {
		run.Dispatches = append(run.Dispatches, d.Digest)
	}
	return run, nil
}

func outputReplay(formatter *OutputFormatter, result ReplayResult) error {
	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Deterministic {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeExecute, Message: "determinism verification failed"}
		}
		if err := formatter.Encode(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		status := "✓"
		if !result.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Replayed %s (%d dispatch(es))\n", status, result.Plan, result.Dispatches)
		fmt.Fprintf(w, "  Result: %v\n", result.Result)
		if !result.Deterministic {
			fmt.Fprintln(w, "  Warning: the two replays differ (-first +second):")
			fmt.Fprintln(w, result.Diff)
		}
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

