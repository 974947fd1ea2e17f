package mat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewDenseFromArray(t *testing.T) {
	testData := map[string]struct {
		x        [][]float64
		expected *mat.Dense
		err      error
	}{
		"empty": {
			x:   nil,
			err: ErrEmptyArray,
		},
		"empty rows": {
			x:   [][]float64{{}, {}},
			err: ErrEmptyArray,
		},
		"mismatched columns": {
			x:   [][]float64{{1, 2}, {3}},
			err: ErrColMismatch,
		},
		"windows": {
			x:        [][]float64{{0.1, 0.2}, {0.2, 0.3}, {0.3, 0.4}},
			expected: mat.NewDense(3, 2, []float64{0.1, 0.2, 0.2, 0.3, 0.3, 0.4}),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := NewDenseFromArray(td.x)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, mat.Equal(td.expected, res))
		})
	}
}

func TestNewColumnAndRows(t *testing.T) {
	_, err := NewColumn(nil)
	assert.ErrorIs(t, err, ErrEmptyArray)

	y := []float64{1, 2, 3}
	col, err := NewColumn(y)
	require.NoError(t, err)
	r, c := col.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)

	y[0] = 10
	assert.Equal(t, 1.0, col.At(0, 0))

	x, err := NewDenseFromArray([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, Rows(x))
}
