package sales

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/aouyang1/go-salesforecast/timedataset"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	day = 24 * time.Hour

	// RollingWindow is the number of observed days in the rolling statistics
	RollingWindow = 7

	dateLayout = "2006-01-02"
)

// HistoryHeader lists the daily history CSV columns in order
var HistoryHeader = []string{"date", "sales", "transactions", "rolling_avg_7d", "rolling_std_7d"}

type dailyAgg struct {
	date  time.Time
	sum   float64
	count int
}

func groupByDay(records []Record) []dailyAgg {
	byDay := make(map[time.Time]*dailyAgg)
	for _, r := range records {
		d := r.Date()
		agg, exists := byDay[d]
		if !exists {
			agg = &dailyAgg{date: d}
			byDay[d] = agg
		}
		agg.sum += r.Total
		agg.count++
	}

	res := make([]dailyAgg, 0, len(byDay))
	for _, agg := range byDay {
		res = append(res, *agg)
	}
	slices.SortFunc(res, func(a, b dailyAgg) int {
		return a.date.Compare(b.date)
	})
	return res
}

// DailyTotals sums the records per calendar date and fills every missing day between the first
// and last date by linear interpolation. Dates are returned as UTC midnights.
func DailyTotals(records []Record) (*timedataset.TimeDataset, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	days := groupByDay(records)
	t := make([]time.Time, len(days))
	y := make([]float64, len(days))
	for i, d := range days {
		t[i] = d.date
		y[i] = d.sum
	}

	td, err := timedataset.NewUnivariateDataset(t, y)
	if err != nil {
		return nil, fmt.Errorf("unable to build daily totals, %w", err)
	}
	td, err = td.Reindex(day)
	if err != nil {
		return nil, fmt.Errorf("unable to fill missing days, %w", err)
	}
	return td.Interpolate(), nil
}

// Day holds the statistics of one observed day
type Day struct {
	Date         time.Time `json:"date"`
	Sales        float64   `json:"sales"`
	Transactions int       `json:"transactions"`
	Mean         float64   `json:"mean"`
	RollingMean  float64   `json:"rolling_avg_7d"`
	RollingStd   float64   `json:"rolling_std_7d"`
}

// DailyStats returns per day sums, counts and means over the observed days along with the rolling
// mean and sample standard deviation of the daily sums over the last RollingWindow observed days.
// The first day has no spread and reports a standard deviation of 0.
func DailyStats(records []Record) ([]Day, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	aggs := groupByDay(records)
	sums := make([]float64, len(aggs))
	for i, agg := range aggs {
		sums[i] = agg.sum
	}

	res := make([]Day, len(aggs))
	for i, agg := range aggs {
		window := sums[max(0, i-RollingWindow+1) : i+1]
		mean, std := stat.MeanStdDev(window, nil)
		if math.IsNaN(std) {
			std = 0
		}
		res[i] = Day{
			Date:         agg.date,
			Sales:        agg.sum,
			Transactions: agg.count,
			Mean:         agg.sum / float64(agg.count),
			RollingMean:  mean,
			RollingStd:   std,
		}
	}
	return res, nil
}

// WriteHistoryCSV writes the daily statistics with a header
func WriteHistoryCSV(w io.Writer, days []Day) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryHeader); err != nil {
		return fmt.Errorf("unable to write history header, %w", err)
	}
	for _, d := range days {
		rec := []string{
			d.Date.Format(dateLayout),
			strconv.FormatFloat(d.Sales, 'f', -1, 64),
			strconv.Itoa(d.Transactions),
			strconv.FormatFloat(d.RollingMean, 'f', -1, 64),
			strconv.FormatFloat(d.RollingStd, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("unable to write history row, %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Description summarizes a daily sales series
type Description struct {
	Days  int       `json:"days"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Mean  float64   `json:"mean"`
	Sum   float64   `json:"sum"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	Std   float64   `json:"std"`
}

// Describe returns the range and spread of a daily series
func Describe(td *timedataset.TimeDataset) (Description, error) {
	if td.Len() == 0 {
		return Description{}, ErrNoRecords
	}
	mean, std := stat.MeanStdDev(td.Y, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return Description{
		Days:  td.Len(),
		Start: td.T[0],
		End:   td.T[td.Len()-1],
		Mean:  mean,
		Sum:   floats.Sum(td.Y),
		Min:   floats.Min(td.Y),
		Max:   floats.Max(td.Y),
		Std:   std,
	}, nil
}

// Attrs returns the description as slog key value pairs
func (d Description) Attrs() []any {
	return []any{
		"days", d.Days,
		"start", d.Start.Format(dateLayout),
		"end", d.End.Format(dateLayout),
		"mean", d.Mean,
		"sum", d.Sum,
		"min", d.Min,
		"max", d.Max,
		"std", d.Std,
	}
}
