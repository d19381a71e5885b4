package features

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a row-major compressed sparse (CSR) matrix. Row i holds the
// column indices indices[indptr[i]:indptr[i+1]] in ascending order with
// matching values in data. Matrix satisfies gonum's mat.Matrix.
type Matrix struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

var _ mat.Matrix = (*Matrix)(nil)

// NewMatrix returns a rows×0 placeholder that blocks are stacked onto.
func NewMatrix(rows int) *Matrix {
	return &Matrix{rows: rows, indptr: make([]int, rows+1)}
}

// Dims returns the matrix dimensions.
func (m *Matrix) Dims() (r, c int) { return m.rows, m.cols }

// At returns the value at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	k := sort.SearchInts(m.indices[lo:hi], j)
	if k < hi-lo && m.indices[lo+k] == j {
		return m.data[lo+k]
	}
	return 0
}

// T returns the implicit transpose.
func (m *Matrix) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// NNZ returns the number of stored non-zero values.
func (m *Matrix) NNZ() int { return len(m.data) }

// RowNonZero returns the column indices and values stored for row i. The
// returned slices alias the matrix and must not be modified.
func (m *Matrix) RowNonZero(i int) ([]int, []float64) {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.indices[lo:hi], m.data[lo:hi]
}

// SelectRows returns a new matrix holding the given rows in order.
// Indices may repeat.
func (m *Matrix) SelectRows(idx []int) *Matrix {
	b := newBuilder(len(idx), m.cols)
	for _, i := range idx {
		cols, vals := m.RowNonZero(i)
		b.appendRow(cols, vals, 0)
		b.endRow()
	}
	return b.build()
}

// Slice returns rows [from, to) as a new matrix.
func (m *Matrix) Slice(from, to int) *Matrix {
	if from < 0 || to > m.rows || from > to {
		panic(mat.ErrRowAccess)
	}
	idx := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		idx = append(idx, i)
	}
	return m.SelectRows(idx)
}

// HStack concatenates blocks column-wise. Every block must have the same
// number of rows; a mismatch is a programming error and panics. Blocks of
// type *Matrix are copied row by row, any other mat.Matrix is scanned densely.
func HStack(blocks ...mat.Matrix) *Matrix {
	if len(blocks) == 0 {
		return NewMatrix(0)
	}
	rows, _ := blocks[0].Dims()
	width := 0
	for n, blk := range blocks {
		r, c := blk.Dims()
		if r != rows {
			panic(fmt.Sprintf("features: hstack block %d has %d rows, want %d", n, r, rows))
		}
		width += c
	}

	b := newBuilder(rows, width)
	for i := 0; i < rows; i++ {
		offset := 0
		for _, blk := range blocks {
			_, c := blk.Dims()
			if sp, ok := blk.(*Matrix); ok {
				cols, vals := sp.RowNonZero(i)
				b.appendRow(cols, vals, offset)
			} else {
				for j := 0; j < c; j++ {
					if v := blk.At(i, j); v != 0 {
						b.append(offset+j, v)
					}
				}
			}
			offset += c
		}
		b.endRow()
	}
	return b.build()
}

// builder accumulates CSR rows in order.
type builder struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

func newBuilder(rows, cols int) *builder {
	return &builder{rows: rows, cols: cols, indptr: make([]int, 1, rows+1)}
}

func (b *builder) append(col int, v float64) {
	b.indices = append(b.indices, col)
	b.data = append(b.data, v)
}

func (b *builder) appendRow(cols []int, vals []float64, offset int) {
	for k, c := range cols {
		b.indices = append(b.indices, c+offset)
		b.data = append(b.data, vals[k])
	}
}

func (b *builder) endRow() {
	b.indptr = append(b.indptr, len(b.indices))
}

func (b *builder) build() *Matrix {
	if len(b.indptr) != b.rows+1 {
		panic(fmt.Sprintf("features: built %d rows, want %d", len(b.indptr)-1, b.rows))
	}
	return &Matrix{
		rows:    b.rows,
		cols:    b.cols,
		indptr:  b.indptr,
		indices: b.indices,
		data:    b.data,
	}
}

// indicatorRows builds a binary matrix from per-row sorted column sets.
func indicatorRows(sets [][]int, cols int) *Matrix {
	b := newBuilder(len(sets), cols)
	for _, set := range sets {
		for _, c := range set {
			b.append(c, 1)
		}
		b.endRow()
	}
	return b.build()
}
