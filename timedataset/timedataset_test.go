package timedataset

import (
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 10, d, 0, 0, 0, 0, time.UTC)
}

func TestNewUnivariateDataset(t *testing.T) {
	testData := map[string]struct {
		t        []time.Time
		y        []float64
		expected *TimeDataset
		err      error
	}{
		"no training data": {
			err: ErrNoTrainingData,
		},
		"length mismatch": {
			y:   []float64{1},
			err: ErrDatasetLenMismatch,
		},
		"non increasing time": {
			t:   []time.Time{day(2), day(1)},
			y:   []float64{1, 2},
			err: ErrNonMontonic,
		},
		"duplicate time": {
			t:   []time.Time{day(1), day(1)},
			y:   []float64{1, 2},
			err: ErrNonMontonic,
		},
		"valid": {
			t: []time.Time{day(1), day(2)},
			y: []float64{1, 2},
			expected: &TimeDataset{
				T: []time.Time{day(1), day(2)},
				Y: []float64{1, 2},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			ds, err := NewUnivariateDataset(td.t, td.y)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, ds)
		})
	}
}

func TestCopy(t *testing.T) {
	ds, err := NewUnivariateDataset([]time.Time{day(1), day(2)}, []float64{0, 1})
	require.NoError(t, err)

	nextDs := ds.Copy()
	require.Equal(t, ds, nextDs)

	ds.Y[0] = 10
	require.NotEqual(t, nextDs, ds)

	var nilDs *TimeDataset
	assert.Nil(t, nilDs.Copy())
}

func TestDropNan(t *testing.T) {
	testData := map[string]struct {
		tdset    *TimeDataset
		expected *TimeDataset
	}{
		"nil input for nan drop": {tdset: nil, expected: nil},
		"no data to drop": {
			tdset:    &TimeDataset{},
			expected: &TimeDataset{T: []time.Time{}, Y: []float64{}},
		},
		"data with NaNs": {
			tdset: &TimeDataset{
				T: []time.Time{day(1), day(2), day(3), day(4), day(5)},
				Y: []float64{math.NaN(), 2, 3, math.NaN(), 5},
			},
			expected: &TimeDataset{
				T: []time.Time{day(2), day(3), day(5)},
				Y: []float64{2, 3, 5},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, td.tdset.DropNan())
		})
	}
}

func TestReindex(t *testing.T) {
	testData := map[string]struct {
		tdset    *TimeDataset
		freq     time.Duration
		expected []float64
		expLen   int
		err      error
	}{
		"non positive frequency": {
			tdset: &TimeDataset{T: []time.Time{day(1)}, Y: []float64{1}},
			freq:  0,
			err:   ErrNonPositiveFreq,
		},
		"empty dataset": {
			tdset: &TimeDataset{},
			freq:  24 * time.Hour,
			err:   ErrNoTrainingData,
		},
		"unaligned time": {
			tdset: &TimeDataset{
				T: []time.Time{day(1), day(2).Add(time.Hour)},
				Y: []float64{1, 2},
			},
			freq: 24 * time.Hour,
			err:  ErrUnalignedTime,
		},
		"already contiguous": {
			tdset: &TimeDataset{
				T: []time.Time{day(1), day(2), day(3)},
				Y: []float64{1, 2, 3},
			},
			freq:     24 * time.Hour,
			expected: []float64{1, 2, 3},
			expLen:   3,
		},
		"missing days": {
			tdset: &TimeDataset{
				T: []time.Time{day(1), day(4)},
				Y: []float64{1, 4},
			},
			freq:     24 * time.Hour,
			expected: []float64{1, math.NaN(), math.NaN(), 4},
			expLen:   4,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := td.tdset.Reindex(td.freq)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			require.Len(t, res.T, td.expLen)
			for i := range td.expected {
				if math.IsNaN(td.expected[i]) {
					assert.True(t, math.IsNaN(res.Y[i]), "index %d", i)
					continue
				}
				assert.Equal(t, td.expected[i], res.Y[i], "index %d", i)
			}
			for i := 1; i < len(res.T); i++ {
				assert.Equal(t, td.freq, res.T[i].Sub(res.T[i-1]))
			}
		})
	}
}

func TestInterpolate(t *testing.T) {
	testData := map[string]struct {
		y        []float64
		expected []float64
	}{
		"no gaps": {
			y:        []float64{1, 2, 3},
			expected: []float64{1, 2, 3},
		},
		"inner gap": {
			y:        []float64{1, math.NaN(), math.NaN(), 4},
			expected: []float64{1, 2, 3, 4},
		},
		"edges": {
			y:        []float64{math.NaN(), 2, math.NaN(), 6, math.NaN()},
			expected: []float64{2, 2, 4, 6, 6},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			ds := &TimeDataset{T: make([]time.Time, len(td.y)), Y: td.y}
			res := ds.Interpolate()
			assert.InDeltaSlice(t, td.expected, res.Y, 1e-9)
		})
	}

	allNan := &TimeDataset{Y: []float64{math.NaN(), math.NaN()}}
	allNan.Interpolate()
	assert.True(t, math.IsNaN(allNan.Y[0]))
}

func TestReindexInterpolateKeepsMissingDays(t *testing.T) {
	ds := &TimeDataset{
		T: []time.Time{day(1), day(2), day(5)},
		Y: []float64{10, 20, 50},
	}
	res, err := ds.Reindex(24 * time.Hour)
	require.NoError(t, err)
	res.Interpolate()

	assert.Equal(t, []time.Time{day(1), day(2), day(3), day(4), day(5)}, res.T)
	assert.InDeltaSlice(t, []float64{10, 20, 30, 40, 50}, res.Y, 1e-9)
}

func TestReindexDaysAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, ny)
	var tSeries []time.Time
	var y []float64
	for i := 0; i < 20; i++ {
		// drop the spring forward day
		if i == 9 {
			continue
		}
		tSeries = append(tSeries, start.AddDate(0, 0, i))
		y = append(y, float64(i))
	}

	ds, err := NewUnivariateDataset(tSeries, y)
	require.NoError(t, err)
	res, err := ds.Reindex(24 * time.Hour)
	require.NoError(t, err)
	res.Interpolate()

	require.Len(t, res.T, 20)
	for i, tPnt := range res.T {
		assert.Equal(t, 0, tPnt.Hour(), "index %d", i)
		assert.Equal(t, start.AddDate(0, 0, i), tPnt)
	}
	assert.InDelta(t, 9.0, res.Y[9], 1e-9)

	_, err = (&TimeDataset{
		T: []time.Time{start, start.AddDate(0, 0, 1).Add(time.Hour)},
		Y: []float64{1, 2},
	}).Reindex(24 * time.Hour)
	assert.ErrorIs(t, err, ErrUnalignedTime)
}

func TestDaysBetween(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	start := time.Date(2024, 3, 9, 0, 0, 0, 0, ny)
	assert.Equal(t, 0, DaysBetween(start, start.Add(23*time.Hour)))
	assert.Equal(t, 2, DaysBetween(start, time.Date(2024, 3, 11, 0, 0, 0, 0, ny)))
	assert.Equal(t, 1, DaysBetween(day(1), day(2)))
}
