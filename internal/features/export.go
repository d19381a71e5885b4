package features

import (
	"bufio"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// WriteMatrixMarket writes m in Matrix Market coordinate format with
// 1-based indices, readable by scipy.io.mmread and most sparse tooling.
func WriteMatrixMarket(w io.Writer, m *Matrix) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("%%MatrixMarket matrix coordinate real general\n")
	bw.WriteString(strconv.Itoa(m.rows) + " " + strconv.Itoa(m.cols) + " " + strconv.Itoa(m.NNZ()) + "\n")
	for i := 0; i < m.rows; i++ {
		cols, vals := m.RowNonZero(i)
		for k, j := range cols {
			bw.WriteString(strconv.Itoa(i+1))
			bw.WriteByte(' ')
			bw.WriteString(strconv.Itoa(j + 1))
			bw.WriteByte(' ')
			bw.WriteString(strconv.FormatFloat(vals[k], 'g', -1, 64))
			bw.WriteByte('\n')
		}
	}
	return eris.Wrap(bw.Flush(), "features: write matrix market")
}
