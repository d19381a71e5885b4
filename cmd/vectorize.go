package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/clickbait-cli/internal/dataset"
	"github.com/sells-group/clickbait-cli/internal/features"
	"github.com/sells-group/clickbait-cli/internal/trainer"
)

var vectorizeCmd = &cobra.Command{
	Use:   "vectorize",
	Short: "Build the feature matrix for new posts with saved vocabularies",
	Long:  "Reads an instances file and assembles its feature matrix against the vocabularies written by train, so the columns match the trained model. Prints the column layout and optionally writes the matrix in Matrix Market format.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyDataFlags(cmd)
		if err := cfg.Validate("vectorize"); err != nil {
			return err
		}

		records, err := dataset.LoadInstances(dataFiles())
		if err != nil {
			return err
		}

		X, vocabs, err := trainer.Vectorize(records, cfg.Output.VocabFile)
		if err != nil {
			return err
		}
		rows, cols := X.Dims()
		fmt.Fprintf(os.Stdout, "%d rows x %d columns, %d non-zero\n\n", rows, cols, X.NNZ())
		formatLayout(os.Stdout, features.Layout(vocabs))

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return nil
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "vectorize: create %s", out)
		}
		defer f.Close() //nolint:errcheck
		return features.WriteMatrixMarket(f, X)
	},
}

func init() {
	addDataFlags(vectorizeCmd)
	vectorizeCmd.Flags().String("out", "", "write the matrix to this path in Matrix Market format")
	rootCmd.AddCommand(vectorizeCmd)
}

// formatLayout writes the named column ranges of the feature matrix.
func formatLayout(out io.Writer, layout []features.Block) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BLOCK\tSTART\tEND\tWIDTH")
	_, _ = fmt.Fprintln(w, "-----\t-----\t---\t-----")
	for _, b := range layout {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", b.Name, b.Start, b.End, b.End-b.Start)
	}
	_ = w.Flush()
}
