package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/workshopdl/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	ItemID uint64
	Limit  int
	RunID  string
}

// runDetail is the JSON payload of `history --run`.
type runDetail struct {
	Run         store.RunSummary   `json:"run"`
	Transitions []store.Transition `json:"transitions"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs recorded in the journal",
		Long: `List acquisition runs recorded in the SQLite journal, newest first.

With --run, show one run and its state transitions in order.

Example:
  workshop-dl history --journal ./runs.db
  workshop-dl history --journal ./runs.db --item 123456789 --limit 5
  workshop-dl history --journal ./runs.db --run 01920c5e-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts)
		},
	}

	cmd.Flags().Uint64Var(&opts.ItemID, "item", 0, "only runs for this item id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run with its transitions")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.Output

	if opts.Config.Journal == "" {
		return historyError(out, NewExitError(ExitCommandError, "no journal configured (use --journal or journal: in config)"))
	}

	st, err := store.Open(opts.Config.Journal)
	if err != nil {
		return historyError(out, WrapExitError(ExitCommandError, "failed to open journal", err))
	}
	defer st.Close()

	if opts.RunID != "" {
		return showRun(ctx, out, st, opts.RunID)
	}

	runs, err := st.ListRuns(ctx, store.ListFilter{ItemID: opts.ItemID, Limit: opts.Limit})
	if err != nil {
		return historyError(out, WrapExitError(ExitCommandError, "failed to read journal", err))
	}

	if out.JSON() {
		return out.Success("", runs, "")
	}
	if len(runs) == 0 {
		fmt.Fprintln(out.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		writeRunLine(out.Writer, r)
	}
	return nil
}

func showRun(ctx context.Context, out *OutputFormatter, st *store.Store, runID string) error {
	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return historyError(out, NewExitError(ExitFailure, fmt.Sprintf("run not found: %s", runID)))
	}
	if err != nil {
		return historyError(out, WrapExitError(ExitCommandError, "failed to read journal", err))
	}
	transitions, err := st.ReadTransitions(ctx, runID)
	if err != nil {
		return historyError(out, WrapExitError(ExitCommandError, "failed to read journal", err))
	}

	if out.JSON() {
		return out.Success(runID, runDetail{Run: run, Transitions: transitions}, "")
	}

	w := out.Writer
	writeRunLine(w, run)
	for _, tr := range transitions {
		fmt.Fprintf(w, "  [%d] %s", tr.Seq, tr.Phase)
		switch {
		case tr.Error != "":
			fmt.Fprintf(w, " error=%q", tr.Error)
		case tr.Path != "":
			fmt.Fprintf(w, " path=%s", tr.Path)
		case tr.TotalBytes > 0:
			fmt.Fprintf(w, " %d/%d bytes", tr.BytesDownloaded, tr.TotalBytes)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func writeRunLine(w io.Writer, r store.RunSummary) {
	phase := r.Phase
	if phase == "" {
		phase = "incomplete"
	}
	fmt.Fprintf(w, "%s  item=%d  app=%d  %-10s", r.ID, r.ItemID, r.AppID, phase)
	if r.Via != "" {
		fmt.Fprintf(w, "  via=%s", r.Via)
	}
	switch {
	case r.ErrorCode != "":
		fmt.Fprintf(w, "  %s", r.ErrorCode)
	case r.Path != "":
		fmt.Fprintf(w, "  %s", r.Path)
	}
	fmt.Fprintf(w, "  %q\n", r.Title)
}

func historyError(out *OutputFormatter, exitErr *ExitError) error {
	_ = out.Error("", "HISTORY_ERROR", exitErr.Error(), nil)
	exitErr.Reported = true
	return exitErr
}
