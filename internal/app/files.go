package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aouyang1/go-salesforecast/sales"
)

const (
	ForecastFile = "sales_forecast.csv"
	HistoryFile  = "sales_history.csv"
	ModelFile    = "model.json"
	PlotFile     = "forecast.html"
)

// WriteFiles writes the forecast, the daily history, the trained model and the plot into dir
func (r *Report) WriteFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create output directory, %w", err)
	}

	writers := []struct {
		name  string
		write func(f *os.File) error
	}{
		{ForecastFile, func(f *os.File) error { return r.Results.WriteCSV(f, nil) }},
		{HistoryFile, func(f *os.File) error { return sales.WriteHistoryCSV(f, r.History) }},
		{ModelFile, func(f *os.File) error { return r.forecaster.SaveModel(f) }},
		{PlotFile, func(f *os.File) error { return r.forecaster.PlotFit(f, r.Results) }},
	}
	for _, w := range writers {
		if err := writeFile(filepath.Join(dir, w.name), w.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s, %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("unable to write %s, %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close %s, %w", path, err)
	}
	return nil
}
