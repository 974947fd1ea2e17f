// Package config defines the settings shared by the forecast, chat and serve commands
package config

import (
	"fmt"
	"log/slog"
	"time"

	forecaster "github.com/aouyang1/go-salesforecast"
	"github.com/aouyang1/go-salesforecast/models"
	"github.com/aouyang1/go-salesforecast/sales"
)

// Config contains process configuration
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address of the serve command
	Addr string `koanf:"addr"`

	// JWTSecret enables HS256 bearer authentication on the API when set
	JWTSecret string `koanf:"jwt_secret"`

	// DataPath is the sales CSV read when no database is configured
	DataPath    string `koanf:"data_path"`
	TimeLayout  string `koanf:"time_layout"`
	ValueColumn string `koanf:"value_column"`

	// DatabaseURL switches the sales source to Postgres
	DatabaseURL   string `koanf:"database_url"`
	DatabaseQuery string `koanf:"database_query"`

	// HistoryDays bounds the sales loaded from Postgres
	HistoryDays int `koanf:"history_days"`

	// OutputDir receives the forecast, history, model and plot files
	OutputDir string `koanf:"output_dir"`

	Lookback           int     `koanf:"lookback"`
	TrainFraction      float64 `koanf:"train_fraction"`
	ValidationFraction float64 `koanf:"validation_fraction"`
	Horizon            int     `koanf:"horizon"`
	ConfidenceBand     float64 `koanf:"confidence_band"`

	LSTMUnits        []int   `koanf:"lstm_units"`
	LSTMDropout      float64 `koanf:"lstm_dropout"`
	LSTMEpochs       int     `koanf:"lstm_epochs"`
	LSTMBatchSize    int     `koanf:"lstm_batch_size"`
	LSTMLearningRate float64 `koanf:"lstm_learning_rate"`
	Seed             uint64  `koanf:"seed"`

	GBTEstimators   int     `koanf:"gbt_estimators"`
	GBTLearningRate float64 `koanf:"gbt_learning_rate"`
	GBTMaxDepth     int     `koanf:"gbt_max_depth"`

	GeminiAPIKey  string        `koanf:"gemini_api_key"`
	GeminiModel   string        `koanf:"gemini_model"`
	GeminiTimeout time.Duration `koanf:"gemini_timeout"`
}

// New creates a Config with defaults matching the forecaster defaults
func New() *Config {
	opt := forecaster.NewDefaultOptions()
	return &Config{
		LogLevel:    "info",
		Addr:        ":8080",
		DataPath:    "sales.csv",
		ValueColumn: sales.DefaultValueColumn,
		HistoryDays: 365,
		OutputDir:   "output",

		Lookback:           opt.Lookback,
		TrainFraction:      opt.TrainFraction,
		ValidationFraction: opt.ValidationFraction,
		Horizon:            opt.Horizon,
		ConfidenceBand:     opt.ConfidenceBand,

		LSTMUnits:        opt.LSTMOptions.Units,
		LSTMDropout:      opt.LSTMOptions.Dropout,
		LSTMEpochs:       opt.LSTMOptions.Epochs,
		LSTMBatchSize:    opt.LSTMOptions.BatchSize,
		LSTMLearningRate: opt.LSTMOptions.LearningRate,
		Seed:             opt.LSTMOptions.Seed,

		GBTEstimators:   opt.GBTOptions.Estimators,
		GBTLearningRate: opt.GBTOptions.LearningRate,
		GBTMaxDepth:     opt.GBTOptions.MaxDepth,

		GeminiTimeout: 30 * time.Second,
	}
}

// Level parses LogLevel
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("log level %q, %w", c.LogLevel, ErrInvalidConfig)
	}
	return lvl, nil
}

// ForecastOptions maps the configuration onto validated forecaster options
func (c *Config) ForecastOptions() (*forecaster.Options, error) {
	lstm := models.NewDefaultLSTMOptions()
	lstm.Units = append([]int(nil), c.LSTMUnits...)
	lstm.Dropout = c.LSTMDropout
	lstm.Epochs = c.LSTMEpochs
	lstm.BatchSize = c.LSTMBatchSize
	lstm.LearningRate = c.LSTMLearningRate
	lstm.Seed = c.Seed

	gbt := models.NewDefaultGBTOptions()
	gbt.Estimators = c.GBTEstimators
	gbt.LearningRate = c.GBTLearningRate
	gbt.MaxDepth = c.GBTMaxDepth

	opt := &forecaster.Options{
		Lookback:           c.Lookback,
		TrainFraction:      c.TrainFraction,
		ValidationFraction: c.ValidationFraction,
		Horizon:            c.Horizon,
		ConfidenceBand:     c.ConfidenceBand,
		LSTMOptions:        lstm,
		GBTOptions:         gbt,
	}
	opt, err := opt.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w, %w", ErrInvalidConfig, err)
	}
	return opt, nil
}

// ReadOptions returns the sales CSV parsing options
func (c *Config) ReadOptions() *sales.ReadOptions {
	return &sales.ReadOptions{
		Layout:      c.TimeLayout,
		ValueColumn: c.ValueColumn,
	}
}

// Validate checks the fields every command depends on
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty, %w", ErrInvalidConfig)
	}
	if c.DataPath == "" && c.DatabaseURL == "" {
		return fmt.Errorf("one of data_path or database_url must be set, %w", ErrInvalidConfig)
	}
	if c.HistoryDays < 1 {
		return fmt.Errorf("history_days must be positive, %w", ErrInvalidConfig)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.ForecastOptions(); err != nil {
		return err
	}
	return nil
}
