// Package sequence turns a scaled univariate series into supervised lookback windows and splits
// them in temporal order.
package sequence

import (
	"errors"
	"fmt"

	mat_ "github.com/aouyang1/go-salesforecast/mat"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidLookback  = errors.New("lookback must be at least 1")
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidSplit     = errors.New("split fractions must be in (0, 1) and sum to less than 1")
)

// MinSamples is the smallest number of windows that can be split into train and test.
const MinSamples = 2

// Dataset pairs each lookback window with the value that follows it
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of samples
func (d Dataset) Len() int {
	return len(d.Y)
}

// Lookback returns the window length, 0 for an empty dataset
func (d Dataset) Lookback() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Matrix returns the windows as an m x lookback matrix and the targets as an m x 1 matrix
func (d Dataset) Matrix() (*mat.Dense, *mat.Dense, error) {
	if d.Len() == 0 {
		return nil, nil, ErrInsufficientData
	}
	x, err := mat_.NewDenseFromArray(d.X)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to build window matrix, %w", err)
	}
	y, err := mat_.NewColumn(d.Y)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to build target matrix, %w", err)
	}
	return x, y, nil
}

func (d Dataset) slice(start, end int) Dataset {
	return Dataset{X: d.X[start:end], Y: d.Y[start:end]}
}

// Windows slides a window of length lookback over series with stride 1. A series of length
// n <= lookback produces an empty dataset.
func Windows(series []float64, lookback int) (Dataset, error) {
	if lookback < 1 {
		return Dataset{}, ErrInvalidLookback
	}
	n := len(series) - lookback
	if n <= 0 {
		return Dataset{X: [][]float64{}, Y: []float64{}}, nil
	}

	ds := Dataset{
		X: make([][]float64, n),
		Y: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		window := make([]float64, lookback)
		copy(window, series[i:i+lookback])
		ds.X[i] = window
		ds.Y[i] = series[i+lookback]
	}
	return ds, nil
}

// Last returns a copy of the final lookback values of series, the window that seeds a rollout
func Last(series []float64, lookback int) ([]float64, error) {
	if lookback < 1 {
		return nil, ErrInvalidLookback
	}
	if len(series) < lookback {
		return nil, fmt.Errorf("need %d values for a window but have %d, %w", lookback, len(series), ErrInsufficientData)
	}
	window := make([]float64, lookback)
	copy(window, series[len(series)-lookback:])
	return window, nil
}

// Roll shifts the window left by one and appends next as the newest element in place
func Roll(window []float64, next float64) []float64 {
	if len(window) == 0 {
		return window
	}
	copy(window, window[1:])
	window[len(window)-1] = next
	return window
}

// MinDays returns the number of daily points needed to window and split with the lookback
func MinDays(lookback int) int {
	return lookback + MinSamples
}
