package timedataset

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const oneDay = 24 * time.Hour

var (
	ErrNoTrainingData     = errors.New("no training data")
	ErrNonMontonic        = errors.New("time feature is not monotonic")
	ErrDatasetLenMismatch = errors.New("time feature has a different length than observations")
	ErrCannotInferFreq    = errors.New("cannot infer frequency from time slice")
	ErrNonPositiveFreq    = errors.New("frequency must be positive")
	ErrUnalignedTime      = errors.New("time point is not aligned to the reindex frequency")
)

// TimeDataset represents a time series storing a slice of time points and values.
// Both must be of the same length.
type TimeDataset struct {
	T []time.Time
	Y []float64
}

// NewUnivariateDataset returns an instance of a TimeDataset given a time and value slice. Time must
// be strictly increasing.
func NewUnivariateDataset(t []time.Time, y []float64) (*TimeDataset, error) {
	if len(y) == 0 {
		return nil, ErrNoTrainingData
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time feature has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrDatasetLenMismatch,
		)
	}

	for i := 1; i < len(t); i++ {
		if !t[i].After(t[i-1]) {
			return nil, fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMontonic)
		}
	}

	td := &TimeDataset{
		T: make([]time.Time, len(t)),
		Y: make([]float64, len(y)),
	}
	copy(td.T, t)
	copy(td.Y, y)
	return td, nil
}

// Len returns the number of points in the dataset
func (td *TimeDataset) Len() int {
	if td == nil {
		return 0
	}
	return len(td.T)
}

func (td *TimeDataset) Copy() *TimeDataset {
	if td == nil {
		return nil
	}
	tSeries := make([]time.Time, len(td.T))
	ySeries := make([]float64, len(td.Y))
	copy(tSeries, td.T)
	copy(ySeries, td.Y)
	return &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}
}

// DropNan returns a new dataset without the points whose value is NaN
func (td *TimeDataset) DropNan() *TimeDataset {
	if td == nil {
		return nil
	}
	res := &TimeDataset{
		T: make([]time.Time, 0, len(td.T)),
		Y: make([]float64, 0, len(td.Y)),
	}
	for i, y := range td.Y {
		if math.IsNaN(y) {
			continue
		}
		res.T = append(res.T, td.T[i])
		res.Y = append(res.Y, y)
	}
	return res
}

// Reindex expands the dataset to every point between the first and last time spaced by freq.
// Points missing from the input are set to NaN. Every input time must fall on the grid. A freq of
// one day steps by calendar day in the location of the first point so local midnights stay aligned
// across DST changes.
func (td *TimeDataset) Reindex(freq time.Duration) (*TimeDataset, error) {
	if freq <= 0 {
		return nil, ErrNonPositiveFreq
	}
	if td.Len() == 0 {
		return nil, ErrNoTrainingData
	}
	if freq == oneDay {
		return td.reindexDays()
	}

	start := TimeSlice(td.T).StartTime()
	end := TimeSlice(td.T).EndTime()
	n := int(end.Sub(start)/freq) + 1

	res := newNaNDataset(n)
	for i := 0; i < n; i++ {
		res.T[i] = start.Add(time.Duration(i) * freq)
	}
	for i, tPnt := range td.T {
		offset := tPnt.Sub(start)
		if offset%freq != 0 {
			return nil, fmt.Errorf("%s is not a multiple of %s from %s, %w", tPnt, freq, start, ErrUnalignedTime)
		}
		res.Y[int(offset/freq)] = td.Y[i]
	}
	return res, nil
}

func (td *TimeDataset) reindexDays() (*TimeDataset, error) {
	start := TimeSlice(td.T).StartTime()
	n := DaysBetween(start, TimeSlice(td.T).EndTime()) + 1

	res := newNaNDataset(n)
	for i := 0; i < n; i++ {
		res.T[i] = start.AddDate(0, 0, i)
	}
	for i, tPnt := range td.T {
		idx := DaysBetween(start, tPnt)
		if !res.T[idx].Equal(tPnt) {
			return nil, fmt.Errorf("%s is not a whole number of days from %s, %w", tPnt, start, ErrUnalignedTime)
		}
		res.Y[idx] = td.Y[i]
	}
	return res, nil
}

func newNaNDataset(n int) *TimeDataset {
	res := &TimeDataset{
		T: make([]time.Time, n),
		Y: make([]float64, n),
	}
	for i := range res.Y {
		res.Y[i] = math.NaN()
	}
	return res
}

// DaysBetween counts the calendar days from start to t, with t read in the location of start
func DaysBetween(start, t time.Time) int {
	sy, sm, sd := start.Date()
	ty, tm, tDay := t.In(start.Location()).Date()
	a := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, tDay, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / oneDay)
}

// Interpolate fills NaN values in place by linear interpolation between the nearest valid
// neighbours. Leading and trailing NaNs take the closest valid value. A dataset with no valid
// values is left untouched.
func (td *TimeDataset) Interpolate() *TimeDataset {
	if td == nil {
		return nil
	}
	y := td.Y
	prev := -1
	for i := 0; i < len(y); i++ {
		if math.IsNaN(y[i]) {
			continue
		}
		switch {
		case prev < 0:
			for j := 0; j < i; j++ {
				y[j] = y[i]
			}
		case i-prev > 1:
			step := (y[i] - y[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				y[j] = y[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	if prev >= 0 {
		for j := prev + 1; j < len(y); j++ {
			y[j] = y[prev]
		}
	}
	return td
}
