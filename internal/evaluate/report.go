package evaluate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/clickbait-cli/internal/model"
)

// FalsePositive is a test record predicted clickbait that is not.
type FalsePositive struct {
	ID    model.ID `yaml:"id"`
	Title string   `yaml:"title"`
}

// Report collects everything a training run prints and persists.
type Report struct {
	RunID          string          `yaml:"run_id,omitempty"`
	Rows           int             `yaml:"rows"`
	Columns        int             `yaml:"columns"`
	VocabSizes     map[string]int  `yaml:"vocab_sizes"`
	TrainRows      int             `yaml:"train_rows"`
	TestRows       int             `yaml:"test_rows"`
	CrossVal       []float64       `yaml:"cross_val"`
	ROCAUC         float64         `yaml:"roc_auc"`
	Confusion      Confusion       `yaml:"confusion"`
	Classification Classification  `yaml:"classification"`
	FalsePositives []FalsePositive `yaml:"false_positives"`
}

// CrossValMean returns the mean cross-validation accuracy.
func (r *Report) CrossValMean() float64 {
	if len(r.CrossVal) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range r.CrossVal {
		sum += s
	}
	return sum / float64(len(r.CrossVal))
}

// WriteReport prints r as aligned console tables.
func WriteReport(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Matrix:\t%d rows x %d columns\n", r.Rows, r.Columns)
	fmt.Fprintf(tw, "Split:\t%d train / %d test\n", r.TrainRows, r.TestRows)
	fmt.Fprintf(tw, "Cross-validation:\t%s (mean %.4f)\n", formatScores(r.CrossVal), r.CrossValMean())
	fmt.Fprintf(tw, "ROC AUC:\t%.4f\n", r.ROCAUC)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Confusion matrix (rows truth, columns predicted):")
	fmt.Fprintf(tw, "\t%s\t%s\n", ClassNegative, ClassPositive)
	fmt.Fprintf(tw, "%s\t%d\t%d\n", ClassNegative, r.Confusion.TN(), r.Confusion.FP())
	fmt.Fprintf(tw, "%s\t%d\t%d\n", ClassPositive, r.Confusion.FN(), r.Confusion.TP())
	fmt.Fprintln(tw)

	c := r.Classification
	fmt.Fprintln(tw, "\tprecision\trecall\tf1-score\tsupport")
	for _, row := range []struct {
		name string
		s    ClassScores
	}{
		{ClassNegative, c.Negative},
		{ClassPositive, c.Positive},
	} {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\n", row.name, row.s.Precision, row.s.Recall, row.s.F1, row.s.Support)
	}
	fmt.Fprintf(tw, "accuracy\t\t\t%.2f\t%d\n", c.Accuracy, c.MacroAvg.Support)
	fmt.Fprintf(tw, "macro avg\t%.2f\t%.2f\t%.2f\t%d\n", c.MacroAvg.Precision, c.MacroAvg.Recall, c.MacroAvg.F1, c.MacroAvg.Support)
	fmt.Fprintf(tw, "weighted avg\t%.2f\t%.2f\t%.2f\t%d\n", c.WeightedAvg.Precision, c.WeightedAvg.Recall, c.WeightedAvg.F1, c.WeightedAvg.Support)
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "evaluate: write report")
	}

	fmt.Fprintf(w, "\nFalse positives (%d):\n", len(r.FalsePositives))
	for _, fp := range r.FalsePositives {
		fmt.Fprintf(w, "  %s\t%s\n", fp.ID, fp.Title)
	}
	return nil
}

// SaveReport writes r as YAML.
func SaveReport(path string, r *Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "evaluate: marshal report")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "evaluate: create dir for %s", path)
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "evaluate: write %s", path)
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "evaluate: read %s", path)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrapf(err, "evaluate: parse %s", path)
	}
	return &r, nil
}

func formatScores(s []float64) string {
	out := "["
	for i, v := range s {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%.4f", v)
	}
	return out + "]"
}
