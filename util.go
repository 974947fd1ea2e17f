package forecaster

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// missing marks a point echarts leaves empty
const missing = "-"

func indentExpand(indent string, growth int) string {
	indentByte := []byte(indent)
	out := make([]byte, 0, len(indent)*growth)
	for i := 0; i < growth; i++ {
		out = append(out, indentByte...)
	}
	return string(out)
}

// paddedLineData places y at offset start within a series of length total. NaN values and
// positions outside y are left empty.
func paddedLineData(total, start int, y []float64) []opts.LineData {
	data := make([]opts.LineData, total)
	for i := range data {
		data[i] = opts.LineData{Value: missing}
	}
	for i, v := range y {
		if start+i >= total || math.IsNaN(v) {
			continue
		}
		data[start+i] = opts.LineData{Value: v}
	}
	return data
}

// LineSeries generates an echart multi-line chart over arbitrary x labels. Each series in y is
// aligned to the start of x.
func LineSeries(title string, seriesName []string, x []string, y [][]float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	line = line.SetXAxis(x)
	for i, series := range seriesName {
		if i >= len(y) {
			break
		}
		line = line.AddSeries(series, paddedLineData(len(x), 0, y[i]))
	}
	return line
}

func dateLabels(t ...[]time.Time) []string {
	var labels []string
	for _, ts := range t {
		for _, tPnt := range ts {
			labels = append(labels, tPnt.Format(DateLayout))
		}
	}
	return labels
}

// LineForecaster generates an echart line chart with the daily history, the ensemble predictions
// over the test split and the per model forecasts with the confidence band. history and test
// may be nil.
func LineForecaster(historyT []time.Time, historyY []float64, test *TestResults, res *Results) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title:    "Sales Forecast",
				Subtitle: fmt.Sprintf("%d day horizon", res.Len()),
			},
		),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	x := dateLabels(historyT, res.T)
	total := len(x)
	offset := len(historyT)

	line.SetXAxis(x).
		AddSeries("Actual", paddedLineData(total, 0, historyY))

	if test != nil && len(test.T) > 0 && offset > 0 {
		testStart := int(test.T[0].Sub(historyT[0]) / day)
		line.AddSeries("Ensemble Test", paddedLineData(total, testStart, test.Ensemble))
	}

	line.AddSeries("LSTM Forecast", paddedLineData(total, offset, res.LSTM)).
		AddSeries("GBT Forecast", paddedLineData(total, offset, res.GBT)).
		AddSeries("Ensemble Forecast", paddedLineData(total, offset, res.Ensemble)).
		AddSeries("Lower", paddedLineData(total, offset, res.Lower)).
		AddSeries("Upper", paddedLineData(total, offset, res.Upper))
	return line
}

func epochLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}
	return labels
}

// PlotFit uses the Apache Echarts library to render an html page with the history, the forecast
// and the training loss of both models. A nil res forecasts the configured horizon.
func (f *Forecaster) PlotFit(w io.Writer, res *Results) error {
	if res == nil {
		var err error
		res, err = f.Forecast(0)
		if err != nil {
			return fmt.Errorf("unable to forecast for plot, %w", err)
		}
	}

	var historyT []time.Time
	var historyY []float64
	if td := f.TrainingData(); td != nil {
		historyT, historyY = td.T, td.Y
	}

	lstmLoss := f.LSTMHistory()
	gbtLoss := f.GBTHistory()

	page := components.NewPage()
	page.SetPageTitle("Sales Forecast")
	page.AddCharts(
		LineForecaster(historyT, historyY, f.TestResults(), res),
		LineSeries(
			"LSTM Loss",
			[]string{"Train", "Validation"},
			epochLabels(len(lstmLoss.Loss)),
			[][]float64{lstmLoss.Loss, lstmLoss.ValLoss},
		),
		LineSeries(
			"Boosted Trees Loss",
			[]string{"Train", "Validation"},
			epochLabels(len(gbtLoss.Loss)),
			[][]float64{gbtLoss.Loss, gbtLoss.ValLoss},
		),
	)
	return page.Render(w)
}
