package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/clickbait-cli/internal/model"
	"github.com/sells-group/clickbait-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect training run history",
	Long:  "List past training runs, compare them by held-out ROC AUC or accuracy, and view the phases of a single run.",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List training runs",
	Example: `  clickbait-cli runs list --status complete --sort roc_auc
  clickbait-cli runs list --min-roc-auc 0.8 --limit 10`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := runFilterFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its parameters, metrics and phases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		phases, err := st.ListPhases(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runDetail{Run: run, Phases: phases})
		}
		formatRunDetail(os.Stdout, run, phases)
		return nil
	},
}

type runDetail struct {
	*model.Run
	Phases []model.RunPhase `json:"phases"`
}

func init() {
	runsListCmd.Flags().String("status", "", "only runs in this status (queued, fitting, complete, failed, ...)")
	runsListCmd.Flags().String("sort", "newest", "order by newest, roc_auc or accuracy")
	runsListCmd.Flags().Float64("min-roc-auc", 0, "only runs whose held-out ROC AUC is at least this value")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsShowCmd.Flags().Bool("json", false, "print the run and its phases as JSON")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runFilterFromFlags(cmd *cobra.Command) (store.RunFilter, error) {
	var f store.RunFilter
	if s, _ := cmd.Flags().GetString("status"); s != "" {
		status, err := model.ParseRunStatus(s)
		if err != nil {
			return f, eris.Wrap(err, "runs list: --status")
		}
		f.Status = status
	}
	s, _ := cmd.Flags().GetString("sort")
	order, err := store.ParseRunOrder(s)
	if err != nil {
		return f, eris.Wrap(err, "runs list: --sort")
	}
	f.OrderBy = order
	f.MinROCAUC, _ = cmd.Flags().GetFloat64("min-roc-auc")
	f.Limit, _ = cmd.Flags().GetInt("limit")
	return f, nil
}

// elapsed is the wall time a run has taken so far. Runs still in flight
// get a trailing "+".
func elapsed(r model.Run) string {
	d := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
	if !r.Status.Terminal() {
		d += "+"
	}
	return d
}

func metricCell(r model.Run, pick func(*model.RunResult) float64) string {
	if r.Result == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", pick(r.Result))
}

func rocAUC(res *model.RunResult) float64   { return res.ROCAUC }
func accuracy(res *model.RunResult) float64 { return res.Accuracy }

func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tTREES\tROC_AUC\tACCURACY\tCREATED\tELAPSED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID), r.Status, r.Params.Trees,
			metricCell(r, rocAUC), metricCell(r, accuracy),
			r.CreatedAt.Format("2006-01-02 15:04"), elapsed(r),
		)
	}
	_ = w.Flush()
}

// formatRunDetail prints a run as aligned key/value lines followed by
// its phase table.
func formatRunDetail(out io.Writer, r *model.Run, phases []model.RunPhase) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	kv := func(k string, v any) { _, _ = fmt.Fprintf(w, "%s:\t%v\n", k, v) }

	kv("Run", r.ID)
	kv("Status", r.Status)
	kv("Created", r.CreatedAt.Format(time.RFC3339))
	kv("Elapsed", elapsed(*r))
	kv("Params", fmt.Sprintf("trees=%d folds=%d seed=%d split_offset=%d",
		r.Params.Trees, r.Params.Folds, r.Params.Seed, r.Params.SplitOffset))
	if r.Error != "" {
		kv("Error", r.Error)
	}
	if res := r.Result; res != nil {
		kv("Matrix", fmt.Sprintf("%d x %d (train %d, test %d)", res.Rows, res.Columns, res.TrainRows, res.TestRows))
		kv("Vocabularies", vocabSummary(res.VocabSizes))
		kv("Cross-val", fmt.Sprintf("%.4f", res.CrossVal))
		kv("ROC AUC", fmt.Sprintf("%.4f", res.ROCAUC))
		kv("Accuracy", fmt.Sprintf("%.4f", res.Accuracy))
		kv("False positives", res.FalsePositives)
	}
	_ = w.Flush()

	if len(phases) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PHASE\tSTATUS\tDURATION\tERROR")
	for _, p := range phases {
		dur, perr := "-", ""
		if p.Result != nil {
			dur = (time.Duration(p.Result.Duration) * time.Millisecond).String()
			perr = p.Result.Error
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Status, dur, perr)
	}
	_ = w.Flush()
}

func vocabSummary(sizes map[string]int) string {
	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, sizes[name])
	}
	return strings.Join(parts, " ")
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
