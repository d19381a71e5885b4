package features

import (
	"slices"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
)

// Fixed category bounds for the temporal blocks.
const (
	HourColumns    = 24
	WeekdayColumns = 7
)

// OneHot encodes each value as a row with a single 1 at column value.
// Width is the fixed category count so that batches vectorized separately
// always agree on the block width.
func OneHot(values []int, width int) (*mat.Dense, error) {
	if len(values) == 0 {
		return nil, eris.New("one-hot: no values")
	}
	if width <= 0 {
		return nil, eris.Errorf("one-hot: invalid width %d", width)
	}
	m := mat.NewDense(len(values), width, nil)
	for i, v := range values {
		if v < 0 || v >= width {
			return nil, eris.Errorf("one-hot: row %d value %d outside [0,%d)", i, v, width)
		}
		m.Set(i, v, 1)
	}
	return m, nil
}

// OneHotInferred encodes values with the width taken from the batch itself
// (max+1). Only safe when the batch spans the full category range.
func OneHotInferred(values []int) (*mat.Dense, error) {
	if len(values) == 0 {
		return nil, eris.New("one-hot: no values")
	}
	return OneHot(values, slices.Max(values)+1)
}
