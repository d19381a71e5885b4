// Package evaluate splits feature matrices, cross-validates forests and
// scores their predictions.
package evaluate

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/clickbait-cli/internal/features"
	"github.com/sells-group/clickbait-cli/internal/model"
)

// Split is a train prefix and test suffix of one matrix. IDs travel with
// their rows so test predictions can be traced back to records.
type Split struct {
	TrainX   *features.Matrix
	TrainY   []bool
	TrainIDs []model.ID
	TestX    *features.Matrix
	TestY    []bool
	TestIDs  []model.ID
}

// SplitAt cuts rows [0, offset) into the training set and [offset, rows)
// into the test set. offset must leave both sides non-empty.
func SplitAt(X *features.Matrix, y []bool, ids []model.ID, offset int) (Split, error) {
	rows, _ := X.Dims()
	if len(y) != rows || len(ids) != rows {
		return Split{}, eris.Errorf("evaluate: %d rows, %d labels, %d ids", rows, len(y), len(ids))
	}
	if offset <= 0 || offset >= rows {
		return Split{}, eris.Errorf("evaluate: split offset %d out of range (0, %d)", offset, rows)
	}
	return Split{
		TrainX:   X.Slice(0, offset),
		TrainY:   y[:offset:offset],
		TrainIDs: ids[:offset:offset],
		TestX:    X.Slice(offset, rows),
		TestY:    y[offset:],
		TestIDs:  ids[offset:],
	}, nil
}
