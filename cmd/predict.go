package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/clickbait-cli/internal/dataset"
	"github.com/sells-group/clickbait-cli/internal/trainer"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score new posts with a saved model",
	Long:  "Vectorizes an instances file with the saved vocabularies and writes one JSON prediction per line: id, clickbait probability and label.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyDataFlags(cmd)
		if cmd.Flags().Changed("model") {
			cfg.Output.ModelFile, _ = cmd.Flags().GetString("model")
		}
		if err := cfg.Validate("predict"); err != nil {
			return err
		}

		records, err := dataset.LoadInstances(dataFiles())
		if err != nil {
			return err
		}
		preds, err := trainer.Predict(records, cfg.Output.VocabFile, cfg.Output.ModelFile)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrapf(err, "predict: create %s", path)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writePredictions(out, preds)
	},
}

func init() {
	addDataFlags(predictCmd)
	predictCmd.Flags().String("model", "", "model JSON path (overrides output.model_file)")
	predictCmd.Flags().String("out", "", "write predictions to this path instead of stdout")
	rootCmd.AddCommand(predictCmd)
}

func writePredictions(out io.Writer, preds []trainer.Prediction) error {
	enc := json.NewEncoder(out)
	for _, p := range preds {
		if err := enc.Encode(p); err != nil {
			return eris.Wrap(err, "predict: encode")
		}
	}
	return nil
}
