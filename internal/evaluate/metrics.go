package evaluate

import (
	"slices"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Class names used in reports.
const (
	ClassNegative = "no-clickbait"
	ClassPositive = "clickbait"
)

// ROCAUC returns the area under the ROC curve of scores against truth.
// Both classes must be present.
func ROCAUC(scores []float64, truth []bool) (float64, error) {
	if len(scores) != len(truth) {
		return 0, eris.Errorf("evaluate: %d scores but %d labels", len(scores), len(truth))
	}
	pos := 0
	for _, t := range truth {
		if t {
			pos++
		}
	}
	if pos == 0 || pos == len(truth) {
		return 0, eris.New("evaluate: roc auc needs both classes")
	}

	y := slices.Clone(scores)
	classes := slices.Clone(truth)
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// Confusion holds the 2x2 counts. Rows are truth, columns are predictions;
// index 0 is the negative class.
type Confusion [2][2]int

// NewConfusion counts pred against truth.
func NewConfusion(pred, truth []bool) Confusion {
	var c Confusion
	for i := range min(len(pred), len(truth)) {
		c[b2i(truth[i])][b2i(pred[i])]++
	}
	return c
}

func (c Confusion) TN() int { return c[0][0] }
func (c Confusion) FP() int { return c[0][1] }
func (c Confusion) FN() int { return c[1][0] }
func (c Confusion) TP() int { return c[1][1] }

// Total returns the number of counted rows.
func (c Confusion) Total() int { return c.TN() + c.FP() + c.FN() + c.TP() }

// Accuracy returns the fraction of rows where pred matches truth.
func Accuracy(pred, truth []bool) float64 {
	c := NewConfusion(pred, truth)
	if c.Total() == 0 {
		return 0
	}
	return float64(c.TN()+c.TP()) / float64(c.Total())
}

// ClassScores are the per-class metrics of a classification report.
type ClassScores struct {
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	Support   int     `json:"support" yaml:"support"`
}

// Classification is a per-class precision/recall/F1 table with accuracy and
// macro and support-weighted averages.
type Classification struct {
	Negative    ClassScores `json:"no_clickbait" yaml:"no-clickbait"`
	Positive    ClassScores `json:"clickbait" yaml:"clickbait"`
	Accuracy    float64     `json:"accuracy" yaml:"accuracy"`
	MacroAvg    ClassScores `json:"macro_avg" yaml:"macro avg"`
	WeightedAvg ClassScores `json:"weighted_avg" yaml:"weighted avg"`
}

// Classify builds the classification report for pred against truth.
// Undefined ratios (zero denominators) are reported as 0.
func Classify(pred, truth []bool) Classification {
	c := NewConfusion(pred, truth)
	neg := scores(c.TN(), c.FN(), c.FP(), c.TN()+c.FP())
	pos := scores(c.TP(), c.FP(), c.FN(), c.TP()+c.FN())

	total := c.Total()
	out := Classification{Negative: neg, Positive: pos}
	if total == 0 {
		return out
	}
	out.Accuracy = float64(c.TN()+c.TP()) / float64(total)
	out.MacroAvg = ClassScores{
		Precision: (neg.Precision + pos.Precision) / 2,
		Recall:    (neg.Recall + pos.Recall) / 2,
		F1:        (neg.F1 + pos.F1) / 2,
		Support:   total,
	}
	wn := float64(neg.Support) / float64(total)
	wp := float64(pos.Support) / float64(total)
	out.WeightedAvg = ClassScores{
		Precision: wn*neg.Precision + wp*pos.Precision,
		Recall:    wn*neg.Recall + wp*pos.Recall,
		F1:        wn*neg.F1 + wp*pos.F1,
		Support:   total,
	}
	return out
}

// scores computes one class's metrics from its true positives, false
// positives, false negatives and support.
func scores(tp, fp, fn, support int) ClassScores {
	s := ClassScores{Support: support}
	if tp+fp > 0 {
		s.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		s.Recall = float64(tp) / float64(tp+fn)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// FalsePositives returns the row indices predicted positive whose truth is
// negative.
func FalsePositives(pred, truth []bool) []int {
	var out []int
	for i := range min(len(pred), len(truth)) {
		if pred[i] && !truth[i] {
			out = append(out, i)
		}
	}
	return out
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
