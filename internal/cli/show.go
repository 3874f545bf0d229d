package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/deferplan/internal/ir"
	"github.com/roach88/deferplan/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Digest   string // look the plan up by digest instead of name
	Journal  bool   // list journaled dispatches instead of plans
	Peer     string // restrict --journal to one peer
}

// PlanSummary is one stored plan in a listing.
type PlanSummary struct {
	Seq      int64  `json:"seq"`
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	Digest   string `json:"digest"`
	Messages int    `json:"messages"`
}

// PlanDetail is a stored plan with its recording.
type PlanDetail struct {
	PlanSummary
	ArgIDs    []ir.ID       `json:"arg_ids"`
	ResultIDs []ir.ID       `json:"result_ids"`
	Recording []MessageView `json:"recording"`
}

// DispatchView is one journaled dispatch.
type DispatchView struct {
	Seq    int64  `json:"seq"`
	Peer   string `json:"peer"`
	Digest string `json:"digest"`
	MessageView
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [plan]",
		Short: "Inspect stored plans and journals",
		Long: `Inspect a database written by trace --db.

Without arguments, lists the stored plans. With a plan name (or --digest),
prints the latest recording saved under it. With --journal, lists the
messages the peers dispatched, in clock order.

Examples:
  deferplan show --db ./plans.db
  deferplan show --db ./plans.db affine
  deferplan show --db ./plans.db --journal --peer local`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runShow(opts, name, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "select the plan by digest")
	cmd.Flags().BoolVar(&opts.Journal, "journal", false, "list journaled dispatches")
	cmd.Flags().StringVar(&opts.Peer, "peer", "", "with --journal, only this peer")

	return cmd
}

func runShow(opts *ShowOptions, name string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}
	defer st.Close()

	switch {
	case opts.Journal:
		return showJournal(ctx, st, ir.PeerID(opts.Peer), formatter)
	case name != "" || opts.Digest != "":
		return showPlan(ctx, st, name, opts.Digest, formatter)
	default:
		return listPlans(ctx, st, formatter)
	}
}

func listPlans(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	stored, err := st.ListPlans(ctx)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}
	summaries := make([]PlanSummary, len(stored))
	for i, p := range stored {
		summaries[i] = summarize(p)
	}

	if formatter.JSON() {
		return formatter.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No plans stored.")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%d plan(s):\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(formatter.Writer, "  #%d %s (owner %s, %d message(s)) %s\n",
			s.Seq, s.Name, s.Owner, s.Messages, shortDigest(s.Digest))
	}
	return nil
}

func showPlan(ctx context.Context, st *store.Store, name, digest string, formatter *OutputFormatter) error {
	stored, err := loadStoredPlan(ctx, st, name, digest)
	if err != nil {
		return failWith(formatter, ExitCommandError, err)
	}

	detail := PlanDetail{
		PlanSummary: summarize(stored),
		ArgIDs:      stored.Record.ArgIDs,
		ResultIDs:   stored.Record.ResultIDs,
		Recording:   describeMessages(stored.Record.Messages),
	}
	if formatter.JSON() {
		return formatter.Success(detail)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Plan %s #%d (owner %s)\n", detail.Name, detail.Seq, detail.Owner)
	fmt.Fprintf(w, "  digest: %s\n", detail.Digest)
	fmt.Fprintf(w, "  args: %v  results: %v\n\n", detail.ArgIDs, detail.ResultIDs)
	printMessages(formatter, detail.Recording)
	return nil
}

func showJournal(ctx context.Context, st *store.Store, peerID ir.PeerID, formatter *OutputFormatter) error {
	records, err := st.ReadDispatches(ctx, peerID)
	if err != nil {
		return failWith(formatter, ExitCommandError, &LoadError{Code: ErrCodeStore, Message: err.Error()})
	}

	views := make([]DispatchView, len(records))
	for i, rec := range records {
		msg := describeMessages([]ir.Message{rec.Message})[0]
		views[i] = DispatchView{
			Seq:         rec.Seq,
			Peer:        string(rec.Peer),
			Digest:      rec.Digest,
			MessageView: msg,
		}
	}

	if formatter.JSON() {
		return formatter.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "No dispatches journaled.")
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(formatter.Writer, "  %4d %s %s %s\n", v.Seq, v.Peer, v.label(), shortDigest(v.Digest))
	}
	return nil
}

// loadStoredPlan looks a plan up by digest when given, else by name.
func loadStoredPlan(ctx context.Context, st *store.Store, name, digest string) (ir.StoredPlan, error) {
	var (
		stored ir.StoredPlan
		err    error
	)
	key := name
	if digest != "" {
		key = digest
		stored, err = st.LoadPlanByDigest(ctx, digest)
	} else {
		stored, err = st.LoadPlan(ctx, name)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ir.StoredPlan{}, &LoadError{Code: ErrCodeUnknownPlan, Message: fmt.Sprintf("no stored plan %q", key)}
	}
	if err != nil {
		return ir.StoredPlan{}, &LoadError{Code: ErrCodeStore, Message: err.Error()}
	}
	return stored, nil
}

func summarize(p ir.StoredPlan) PlanSummary {
	return PlanSummary{
		Seq:      p.Seq,
		Name:     p.Record.Name,
		Owner:    string(p.Record.Owner),
		Digest:   p.Digest,
		Messages: len(p.Record.Messages),
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
