package forecaster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aouyang1/go-salesforecast/event"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DateLayout is the layout of dates in exported files
const DateLayout = "2006-01-02"

var ErrEmptyResults = errors.New("no forecast values")

// ForecastHeader lists the forecast CSV columns in order
var ForecastHeader = []string{
	"date",
	"lstm_forecast",
	"gbt_forecast",
	"ensemble_forecast",
	"confidence_lower",
	"confidence_upper",
	"day_of_week",
	"month",
	"year",
	"is_weekend",
	"is_holiday",
}

// Results holds a forecast per model along with the ensemble and its confidence band
type Results struct {
	T        []time.Time `json:"time"`
	LSTM     []float64   `json:"lstm_forecast"`
	GBT      []float64   `json:"gbt_forecast"`
	Ensemble []float64   `json:"ensemble_forecast"`
	Lower    []float64   `json:"confidence_lower"`
	Upper    []float64   `json:"confidence_upper"`
}

// Len returns the number of forecast days
func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.T)
}

// ForecastRow is one forecast day with its calendar attributes
type ForecastRow struct {
	Date     time.Time `json:"date"`
	LSTM     float64   `json:"lstm_forecast"`
	GBT      float64   `json:"gbt_forecast"`
	Ensemble float64   `json:"ensemble_forecast"`
	Lower    float64   `json:"confidence_lower"`
	Upper    float64   `json:"confidence_upper"`
	event.DayFeatures
}

// Rows returns a row per forecast day. Holidays are flagged with the US federal calendar when c is nil.
func (r *Results) Rows(c *event.Calendar) []ForecastRow {
	if c == nil {
		c = event.NewUSCalendar()
	}
	rows := make([]ForecastRow, r.Len())
	for i, t := range r.T {
		rows[i] = ForecastRow{
			Date:        t,
			LSTM:        r.LSTM[i],
			GBT:         r.GBT[i],
			Ensemble:    r.Ensemble[i],
			Lower:       r.Lower[i],
			Upper:       r.Upper[i],
			DayFeatures: c.Features(t),
		}
	}
	return rows
}

// Holidays lists the holidays falling within the forecast horizon. The US federal calendar is
// used when c is nil.
func (r *Results) Holidays(c *event.Calendar) []event.Event {
	if r.Len() == 0 {
		return []event.Event{}
	}
	if c == nil {
		c = event.NewUSCalendar()
	}
	return c.Holidays(r.T[0], r.T[r.Len()-1])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteCSV writes the forecast rows with a header
func (r *Results) WriteCSV(w io.Writer, c *event.Calendar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ForecastHeader); err != nil {
		return fmt.Errorf("unable to write forecast header, %w", err)
	}
	for _, row := range r.Rows(c) {
		rec := []string{
			row.Date.Format(DateLayout),
			formatFloat(row.LSTM),
			formatFloat(row.GBT),
			formatFloat(row.Ensemble),
			formatFloat(row.Lower),
			formatFloat(row.Upper),
			row.DayOfWeek,
			row.Month,
			strconv.Itoa(row.Year),
			formatBool(row.IsWeekend),
			formatBool(row.IsHoliday),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("unable to write forecast row, %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ForecastSummary describes one model's forecast over the horizon. Growth is the percent change
// from the first to the last forecast day.
type ForecastSummary struct {
	Model   string  `json:"model"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Growth  float64 `json:"growth_percent"`
}

func summarize(name string, y []float64) ForecastSummary {
	s := ForecastSummary{
		Model:   name,
		Average: stat.Mean(y, nil),
		Min:     floats.Min(y),
		Max:     floats.Max(y),
	}
	if first := y[0]; first != 0 {
		s.Growth = (y[len(y)-1] - first) / first * 100.0
	}
	return s
}

// Summary returns the average, range and growth of each model's forecast
func (r *Results) Summary() ([]ForecastSummary, error) {
	if r.Len() == 0 {
		return nil, ErrEmptyResults
	}
	return []ForecastSummary{
		summarize("lstm", r.LSTM),
		summarize("gbt", r.GBT),
		summarize("ensemble", r.Ensemble),
	}, nil
}
