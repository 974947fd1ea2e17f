// Package app runs the load, fit and forecast pipeline and caches the latest report for the
// command line and the HTTP API
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	forecaster "github.com/aouyang1/go-salesforecast"
	"github.com/aouyang1/go-salesforecast/insight"
	"github.com/aouyang1/go-salesforecast/internal/metrics"
	"github.com/aouyang1/go-salesforecast/sales"

	"github.com/google/uuid"
)

var (
	ErrNoReport      = errors.New("no forecast report has been generated")
	ErrQueryDisabled = errors.New("natural language queries are not configured")
	ErrRefreshBusy   = errors.New("a forecast refresh is already running")
)

// Report is the outcome of one pipeline run
type Report struct {
	RunID       string                       `json:"run_id"`
	CreatedAt   time.Time                    `json:"created_at"`
	Duration    time.Duration                `json:"duration"`
	Description sales.Description            `json:"description"`
	Scores      *forecaster.ModelScores      `json:"scores"`
	Results     *forecaster.Results          `json:"forecast"`
	Summary     []forecaster.ForecastSummary `json:"summary"`
	History     []sales.Day                  `json:"-"`

	records    []sales.Record
	forecaster *forecaster.Forecaster
}

// Forecaster returns the trained forecaster of the run
func (r *Report) Forecaster() *forecaster.Forecaster {
	return r.forecaster
}

// Service serializes pipeline runs and serves the latest report
type Service struct {
	loader  Loader
	opt     *forecaster.Options
	metrics *metrics.Manager
	gen     insight.Generator
	timeout time.Duration

	refreshMu sync.Mutex

	mu     sync.RWMutex
	report *Report
}

// Option applies a configuration option to the Service
type Option func(*Service)

// WithMetrics records fits, forecasts and queries
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGenerator enables natural language queries
func WithGenerator(gen insight.Generator) Option {
	return func(s *Service) {
		s.gen = gen
	}
}

// WithQueryTimeout bounds each language model call
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a service. Default forecaster options are used when opt is nil.
func New(loader Loader, opt *forecaster.Options, opts ...Option) (*Service, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, fmt.Errorf("unable to validate forecaster options, %w", err)
	}
	s := &Service{
		loader:  loader,
		opt:     opt,
		timeout: insight.DefaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Refresh loads the sales, fits a new forecaster and replaces the cached report. Concurrent
// refreshes fail fast with ErrRefreshBusy.
func (s *Service) Refresh(ctx context.Context) (*Report, error) {
	if !s.refreshMu.TryLock() {
		return nil, ErrRefreshBusy
	}
	defer s.refreshMu.Unlock()

	start := time.Now()
	report, days, err := s.run(ctx)
	if s.metrics != nil {
		var scores *forecaster.ModelScores
		if report != nil {
			scores = report.Scores
		}
		s.metrics.ObserveFit(time.Since(start), days, scores, err)
	}
	if err != nil {
		return nil, err
	}
	report.Duration = time.Since(start)

	s.mu.Lock()
	s.report = report
	s.mu.Unlock()

	slog.Info("forecast report ready",
		"run_id", report.RunID,
		"days", days,
		"horizon", report.Results.Len(),
		"duration", report.Duration,
	)
	return report, nil
}

func (s *Service) run(ctx context.Context) (*Report, int, error) {
	records, err := s.loader.Load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to load sales, %w", err)
	}

	daily, err := sales.DailyTotals(records)
	if err != nil {
		return nil, 0, fmt.Errorf("unable to aggregate daily sales, %w", err)
	}
	desc, err := sales.Describe(daily)
	if err != nil {
		return nil, 0, err
	}
	slog.Info("daily sales", desc.Attrs()...)

	history, err := sales.DailyStats(records)
	if err != nil {
		return nil, 0, err
	}

	f, err := forecaster.New(s.opt)
	if err != nil {
		return nil, 0, err
	}
	if err := f.Fit(ctx, daily.T, daily.Y); err != nil {
		return nil, daily.Len(), fmt.Errorf("unable to fit forecaster, %w", err)
	}

	res, err := f.Forecast(0)
	if err != nil {
		return nil, daily.Len(), fmt.Errorf("unable to forecast, %w", err)
	}
	if s.metrics != nil {
		s.metrics.ObserveForecast()
	}
	summary, err := res.Summary()
	if err != nil {
		return nil, daily.Len(), err
	}

	return &Report{
		RunID:       uuid.NewString(),
		CreatedAt:   time.Now(),
		Description: desc,
		Scores:      f.Scores(),
		Results:     res,
		Summary:     summary,
		History:     history,
		records:     records,
		forecaster:  f,
	}, daily.Len(), nil
}

// Report returns the latest report
func (s *Service) Report() (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		return nil, ErrNoReport
	}
	return s.report, nil
}

// Query answers a question over the sales of the latest report, loading them when no report
// exists yet. The forecast summary is included when available.
func (s *Service) Query(ctx context.Context, question string) (string, error) {
	if s.gen == nil {
		return "", ErrQueryDisabled
	}

	var records []sales.Record
	var outlook []forecaster.ForecastSummary
	if report, err := s.Report(); err == nil {
		records, outlook = report.records, report.Summary
	} else {
		records, err = s.loader.Load(ctx)
		if err != nil {
			slog.Warn("unable to load sales for query", "error", err.Error())
		}
	}

	opts := []insight.ChatbotOption{
		insight.WithTimeout(s.timeout),
		insight.WithOutlook(outlook),
	}
	if s.metrics != nil {
		opts = append(opts, insight.WithObserver(s.metrics.ObserveQuery))
	}
	return insight.NewChatbot(s.gen, opts...).Query(ctx, records, question), nil
}
