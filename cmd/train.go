package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/clickbait-cli/internal/dataset"
	"github.com/sells-group/clickbait-cli/internal/evaluate"
	"github.com/sells-group/clickbait-cli/internal/trainer"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and evaluate the clickbait classifier",
	Long:  "Loads instances and truth, balances and shuffles them, builds the feature matrix, fits a random forest on the training prefix and reports cross-validation, ROC AUC and false positives on the test suffix.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		applyDataFlags(cmd)
		applyTrainFlags(cmd)

		if err := cfg.Validate("train"); err != nil {
			return err
		}

		records, labels, err := dataset.Load(dataFiles())
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := trainer.New(cfg, st).Run(ctx, records, labels)
		if err != nil {
			return eris.Wrap(err, "train")
		}
		return evaluate.WriteReport(os.Stdout, res.Report)
	},
}

func init() {
	addDataFlags(trainCmd)
	trainCmd.Flags().Int("split-offset", 0, "rows before this offset are training data (overrides train.split_offset)")
	trainCmd.Flags().Int("trees", 0, "number of trees (overrides train.trees)")
	trainCmd.Flags().Int("folds", 0, "cross-validation folds (overrides train.folds)")
	trainCmd.Flags().Uint64("seed", 0, "random seed (overrides train.seed)")
	trainCmd.Flags().Int("workers", 0, "concurrent tree builders (overrides train.workers)")
	trainCmd.Flags().String("model", "", "write the fitted model to this path (overrides output.model_file)")
	trainCmd.Flags().String("report", "", "write a YAML report to this path (overrides output.report_file)")
	trainCmd.Flags().String("metrics", "", "write Prometheus textfile metrics to this path (overrides output.metrics_file)")
	rootCmd.AddCommand(trainCmd)
}

func applyTrainFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("split-offset") {
		cfg.Train.SplitOffset, _ = f.GetInt("split-offset")
	}
	if f.Changed("trees") {
		cfg.Train.Trees, _ = f.GetInt("trees")
	}
	if f.Changed("folds") {
		cfg.Train.Folds, _ = f.GetInt("folds")
	}
	if f.Changed("seed") {
		cfg.Train.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("workers") {
		cfg.Train.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("model") {
		cfg.Output.ModelFile, _ = f.GetString("model")
	}
	if f.Changed("report") {
		cfg.Output.ReportFile, _ = f.GetString("report")
	}
	if f.Changed("metrics") {
		cfg.Output.MetricsFile, _ = f.GetString("metrics")
	}
}

// addDataFlags registers the input location flags shared by every command
// that reads posts.
func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("data-dir", "", "directory holding the JSONL files (overrides data.dir)")
	cmd.Flags().String("prefix", "", "file name prefix, e.g. a held-out split (overrides data.file_prefix)")
	cmd.Flags().String("vocab", "", "vocabulary JSON path (overrides output.vocab_file)")
}

func applyDataFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("data-dir") {
		cfg.Data.Dir, _ = f.GetString("data-dir")
	}
	if f.Changed("prefix") {
		cfg.Data.FilePrefix, _ = f.GetString("prefix")
	}
	if f.Changed("vocab") {
		cfg.Output.VocabFile, _ = f.GetString("vocab")
	}
}

func dataFiles() dataset.Files {
	return dataset.Files{
		Dir:       cfg.Data.Dir,
		Prefix:    cfg.Data.FilePrefix,
		Instances: cfg.Data.InstancesFile,
		Truth:     cfg.Data.TruthFile,
	}
}
