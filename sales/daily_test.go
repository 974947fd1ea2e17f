package sales

import (
	"bytes"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/aouyang1/go-salesforecast/timedataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jan(d, hour int) time.Time {
	return time.Date(2024, 1, d, hour, 0, 0, 0, time.UTC)
}

func TestDailyTotals(t *testing.T) {
	testData := map[string]struct {
		records   []Record
		expectedT []time.Time
		expectedY []float64
		err       error
	}{
		"no records": {
			err: ErrNoRecords,
		},
		"single day": {
			records:   []Record{{Time: jan(3, 9), Total: 5}, {Time: jan(3, 17), Total: 7}},
			expectedT: []time.Time{jan(3, 0)},
			expectedY: []float64{12},
		},
		"unordered with gap": {
			records: []Record{
				{Time: jan(4, 12), Total: 30},
				{Time: jan(1, 8), Total: 4},
				{Time: jan(1, 20), Total: 6.5},
				{Time: jan(2, 10), Total: 20},
			},
			expectedT: []time.Time{jan(1, 0), jan(2, 0), jan(3, 0), jan(4, 0)},
			expectedY: []float64{10.5, 20, 25, 30},
		},
		"multi day gap": {
			records:   []Record{{Time: jan(1, 1), Total: 10}, {Time: jan(5, 1), Total: 50}},
			expectedT: []time.Time{jan(1, 0), jan(2, 0), jan(3, 0), jan(4, 0), jan(5, 0)},
			expectedY: []float64{10, 20, 30, 40, 50},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := DailyTotals(td.records)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expectedT, res.T)
			assert.InDeltaSlice(t, td.expectedY, res.Y, 1e-9)
		})
	}
}

func TestDailyTotalsLocalDates(t *testing.T) {
	// 23:30 in UTC+5:30 is still the first of the month in that zone
	loc := time.FixedZone("IST", 5*3600+1800)
	records := []Record{
		{Time: time.Date(2024, 1, 1, 23, 30, 0, 0, loc), Total: 1},
		{Time: time.Date(2024, 1, 2, 0, 30, 0, 0, loc), Total: 2},
	}
	res, err := DailyTotals(records)
	require.Nil(t, err)
	assert.Equal(t, []time.Time{jan(1, 0), jan(2, 0)}, res.T)
	assert.Equal(t, []float64{1, 2}, res.Y)
}

func TestDailyStats(t *testing.T) {
	_, err := DailyStats(nil)
	assert.ErrorIs(t, err, ErrNoRecords)

	records := []Record{
		{Time: jan(1, 9), Total: 4},
		{Time: jan(1, 10), Total: 6},
		{Time: jan(2, 9), Total: 20},
		{Time: jan(4, 9), Total: 30},
	}
	days, err := DailyStats(records)
	require.Nil(t, err)
	require.Len(t, days, 3)

	// gaps are not filled, the window spans observed days
	assert.Equal(t, []time.Time{jan(1, 0), jan(2, 0), jan(4, 0)}, []time.Time{days[0].Date, days[1].Date, days[2].Date})
	assert.Equal(t, Day{Date: jan(1, 0), Sales: 10, Transactions: 2, Mean: 5, RollingMean: 10, RollingStd: 0}, days[0])
	assert.InDelta(t, 15, days[1].RollingMean, 1e-9)
	assert.InDelta(t, math.Sqrt(50), days[1].RollingStd, 1e-9)
	assert.InDelta(t, 20, days[2].RollingMean, 1e-9)
	assert.InDelta(t, 10, days[2].RollingStd, 1e-9)
}

func TestDailyStatsRollingWindow(t *testing.T) {
	var records []Record
	for d := 1; d <= 8; d++ {
		records = append(records, Record{Time: jan(d, 12), Total: float64(d)})
	}
	days, err := DailyStats(records)
	require.Nil(t, err)
	require.Len(t, days, 8)

	last := days[7]
	assert.InDelta(t, 5, last.RollingMean, 1e-9)
	assert.InDelta(t, math.Sqrt(28.0/6.0), last.RollingStd, 1e-9)
}

func TestWriteHistoryCSV(t *testing.T) {
	days := []Day{
		{Date: jan(1, 0), Sales: 10, Transactions: 2, RollingMean: 10, RollingStd: 0},
		{Date: jan(2, 0), Sales: 20.5, Transactions: 1, RollingMean: 15.25, RollingStd: math.Sqrt(52.5625)},
	}

	var buf bytes.Buffer
	require.Nil(t, WriteHistoryCSV(&buf, days))

	expected := "date,sales,transactions,rolling_avg_7d,rolling_std_7d\n" +
		"2024-01-01,10,2,10,0\n" +
		"2024-01-02,20.5,1,15.25," + strconv.FormatFloat(math.Sqrt(52.5625), 'f', -1, 64) + "\n"
	assert.Equal(t, expected, buf.String())
}

func TestDescribe(t *testing.T) {
	_, err := Describe(nil)
	assert.ErrorIs(t, err, ErrNoRecords)

	td, err := timedataset.NewUnivariateDataset(
		[]time.Time{jan(1, 0), jan(2, 0), jan(3, 0)},
		[]float64{10, 20, 30},
	)
	require.Nil(t, err)

	desc, err := Describe(td)
	require.Nil(t, err)
	assert.Equal(t, 3, desc.Days)
	assert.Equal(t, jan(1, 0), desc.Start)
	assert.Equal(t, jan(3, 0), desc.End)
	assert.InDelta(t, 20, desc.Mean, 1e-9)
	assert.InDelta(t, 60, desc.Sum, 1e-9)
	assert.Equal(t, 10.0, desc.Min)
	assert.Equal(t, 30.0, desc.Max)
	assert.InDelta(t, 10, desc.Std, 1e-9)

	attrs := desc.Attrs()
	assert.Len(t, attrs, 16)
	assert.Equal(t, "2024-01-01", attrs[3])
}
