package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aouyang1/go-salesforecast/sales"
)

// Loader returns the sales records a report is built from
type Loader interface {
	Load(ctx context.Context) ([]sales.Record, error)
}

// CSVLoader reads records from a file on every load
type CSVLoader struct {
	Path    string
	Options *sales.ReadOptions
}

func (l CSVLoader) Load(_ context.Context) ([]sales.Record, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sales file, %w", err)
	}
	defer f.Close()

	records, err := sales.ReadCSV(f, l.Options)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s, %w", l.Path, err)
	}
	return records, nil
}

// PGLoader reads the trailing Days of sales from Postgres
type PGLoader struct {
	Source *sales.PGSource
	Days   int

	// Now defaults to time.Now
	Now func() time.Time
}

func (l PGLoader) Load(ctx context.Context) ([]sales.Record, error) {
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	end := now()
	return l.Source.Records(ctx, end.AddDate(0, 0, -l.Days), end)
}
