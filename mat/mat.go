package mat

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrColMismatch = errors.New("column size mismatch")
	ErrEmptyArray  = errors.New("empty array")
)

// NewDenseFromArray builds a row major dense matrix from a slice of rows. All rows must have the
// same length.
func NewDenseFromArray(x [][]float64) (*mat.Dense, error) {
	m := len(x)
	if m == 0 {
		return nil, ErrEmptyArray
	}

	n := len(x[0])
	for i, row := range x {
		if len(row) != n {
			return nil, fmt.Errorf("at row %d, %w", i, ErrColMismatch)
		}
	}
	if n == 0 {
		return nil, ErrEmptyArray
	}

	// flatten to row order
	data := make([]float64, 0, m*n)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(m, n, data), nil
}

// NewColumn wraps y as an m x 1 matrix
func NewColumn(y []float64) (*mat.Dense, error) {
	if len(y) == 0 {
		return nil, ErrEmptyArray
	}
	data := make([]float64, len(y))
	copy(data, y)
	return mat.NewDense(len(y), 1, data), nil
}

// Rows copies every row of x into its own slice
func Rows(x mat.Matrix) [][]float64 {
	m, _ := x.Dims()
	res := make([][]float64, m)
	for i := 0; i < m; i++ {
		res[i] = mat.Row(nil, i, x)
	}
	return res
}
