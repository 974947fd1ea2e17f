// Package insight answers free text questions about a sales table by summarizing it into a prompt
// for a generative language model
package insight

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	forecaster "github.com/aouyang1/go-salesforecast"
	"github.com/aouyang1/go-salesforecast/sales"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// RecentDays is the number of trailing daily totals reported as the recent trend
	RecentDays = 7

	// TopCategories is the number of categories ranked by revenue
	TopCategories = 3
)

var ErrNoSales = errors.New("no sales to summarize")

// Amount is a named revenue total
type Amount struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Count is a named number of transactions
type Count struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Summary is the fixed shape description of a sales table handed to the language model
type Summary struct {
	TotalSales        float64   `json:"total_sales"`
	AverageDailySales float64   `json:"avg_daily_sales"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	PeakSales         float64   `json:"peak_sales"`
	PeakDate          time.Time `json:"peak_sales_date"`
	RecentTrend       []float64 `json:"recent_trend"`
	TopCategories     []Amount  `json:"top_categories"`
	CustomerTypes     []Count   `json:"customer_types"`
	PaymentMethods    []Count   `json:"payment_methods"`

	// Outlook is the per model forecast summary when a forecast is available
	Outlook []forecaster.ForecastSummary `json:"outlook,omitempty"`
}

// Summarize aggregates the records into daily totals and ranks categories, customer types and
// payment methods. Rankings are ordered by value then name and records without a label are left
// out of the ranking they would belong to.
func Summarize(records []sales.Record) (*Summary, error) {
	if len(records) == 0 {
		return nil, ErrNoSales
	}
	days, err := sales.DailyStats(records)
	if err != nil {
		return nil, fmt.Errorf("unable to compute daily totals, %w", err)
	}

	totals := make([]float64, len(days))
	for i, d := range days {
		totals[i] = d.Sales
	}
	peak := floats.MaxIdx(totals)

	categories := make(map[string]float64)
	customers := make(map[string]int)
	payments := make(map[string]int)
	for _, r := range records {
		if r.Category != "" {
			categories[r.Category] += r.Total
		}
		if r.CustomerType != "" {
			customers[r.CustomerType]++
		}
		if r.PaymentType != "" {
			payments[r.PaymentType]++
		}
	}

	topCategories := rankAmounts(categories)
	if len(topCategories) > TopCategories {
		topCategories = topCategories[:TopCategories]
	}

	return &Summary{
		TotalSales:        floats.Sum(totals),
		AverageDailySales: stat.Mean(totals, nil),
		Start:             days[0].Date,
		End:               days[len(days)-1].Date,
		PeakSales:         totals[peak],
		PeakDate:          days[peak].Date,
		RecentTrend:       append([]float64(nil), totals[max(0, len(totals)-RecentDays):]...),
		TopCategories:     topCategories,
		CustomerTypes:     rankCounts(customers),
		PaymentMethods:    rankCounts(payments),
	}, nil
}

func rankAmounts(m map[string]float64) []Amount {
	res := make([]Amount, 0, len(m))
	for name, v := range m {
		res = append(res, Amount{Name: name, Value: v})
	}
	slices.SortFunc(res, func(a, b Amount) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return res
}

func rankCounts(m map[string]int) []Count {
	res := make([]Count, 0, len(m))
	for name, v := range m {
		res = append(res, Count{Name: name, Value: v})
	}
	slices.SortFunc(res, func(a, b Count) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return res
}
