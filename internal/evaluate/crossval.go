package evaluate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/clickbait-cli/internal/features"
	"github.com/sells-group/clickbait-cli/internal/forest"
)

// StratifiedFolds assigns every row to one of k test folds so each fold
// holds roughly the same share of each class. Rows of a class are taken in
// order and cut into contiguous chunks; the first count%k chunks get one
// extra row.
func StratifiedFolds(y []bool, k int) ([][]int, error) {
	if k < 2 {
		return nil, eris.Errorf("evaluate: need at least 2 folds, got %d", k)
	}
	if k > len(y) {
		return nil, eris.Errorf("evaluate: %d folds for %d rows", k, len(y))
	}

	folds := make([][]int, k)
	for _, class := range []bool{false, true} {
		var idx []int
		for i, v := range y {
			if v == class {
				idx = append(idx, i)
			}
		}
		start := 0
		for f := range k {
			size := len(idx) / k
			if f < len(idx)%k {
				size++
			}
			folds[f] = append(folds[f], idx[start:start+size]...)
			start += size
		}
	}
	for f, fold := range folds {
		if len(fold) == 0 {
			return nil, eris.Errorf("evaluate: fold %d is empty", f)
		}
	}
	return folds, nil
}

// CrossValidate fits one forest per fold on the remaining rows and returns
// the accuracy of each on its held-out fold.
func CrossValidate(ctx context.Context, X *features.Matrix, y []bool, k int, p forest.Params) ([]float64, error) {
	rows, _ := X.Dims()
	if rows != len(y) {
		return nil, eris.Errorf("evaluate: %d rows but %d labels", rows, len(y))
	}
	folds, err := StratifiedFolds(y, k)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, k)
	for f, test := range folds {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "evaluate: cross-validate")
		}

		inTest := make([]bool, rows)
		for _, i := range test {
			inTest[i] = true
		}
		train := make([]int, 0, rows-len(test))
		for i := range rows {
			if !inTest[i] {
				train = append(train, i)
			}
		}

		model, err := forest.Fit(ctx, X.SelectRows(train), pick(y, train), p)
		if err != nil {
			return nil, eris.Wrapf(err, "evaluate: fold %d", f)
		}
		pred, err := model.Predict(X.SelectRows(test))
		if err != nil {
			return nil, eris.Wrapf(err, "evaluate: fold %d", f)
		}
		scores[f] = Accuracy(pred, pick(y, test))

		zap.L().Debug("evaluate: fold scored",
			zap.Int("fold", f),
			zap.Int("train_rows", len(train)),
			zap.Int("test_rows", len(test)),
			zap.Float64("accuracy", scores[f]),
		)
	}
	return scores, nil
}

func pick(y []bool, idx []int) []bool {
	out := make([]bool, len(idx))
	for k, i := range idx {
		out[k] = y[i]
	}
	return out
}
