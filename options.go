package forecaster

import (
	"errors"
	"fmt"
	"time"

	"github.com/aouyang1/go-salesforecast/models"
	"github.com/aouyang1/go-salesforecast/sequence"
)

const (
	DefaultLookback           = 2
	DefaultTrainFraction      = 0.5
	DefaultValidationFraction = 0.25
	DefaultHorizon            = 30
	DefaultConfidenceBand     = 0.1
)

var (
	ErrInvalidLookback       = errors.New("lookback must be at least 1")
	ErrNegativeHorizon       = errors.New("forecast horizon cannot be negative")
	ErrInvalidConfidenceBand = errors.New("confidence band must be in [0, 1)")
)

// Options configures windowing, splitting, both regressors and the forecast horizon
type Options struct {
	// Lookback is the number of previous days fed to each model
	Lookback int `json:"lookback"`

	TrainFraction      float64 `json:"train_fraction"`
	ValidationFraction float64 `json:"validation_fraction"`

	// Horizon is the number of days forecast when Forecast is called with 0
	Horizon int `json:"horizon"`

	// ConfidenceBand is the relative width of the band placed around the ensemble forecast
	ConfidenceBand float64 `json:"confidence_band"`

	// StartDate overrides the first forecast date. The day after the last history date is used
	// when unset.
	StartDate time.Time `json:"start_date"`

	LSTMOptions *models.LSTMOptions `json:"lstm_options"`
	GBTOptions  *models.GBTOptions  `json:"gbt_options"`
}

// NewDefaultOptions returns a lookback of 2 days, a 50/25/25 split and a 30 day horizon
func NewDefaultOptions() *Options {
	return &Options{
		Lookback:           DefaultLookback,
		TrainFraction:      DefaultTrainFraction,
		ValidationFraction: DefaultValidationFraction,
		Horizon:            DefaultHorizon,
		ConfidenceBand:     DefaultConfidenceBand,
		LSTMOptions:        models.NewDefaultLSTMOptions(),
		GBTOptions:         models.NewDefaultGBTOptions(),
	}
}

// Validate fills in defaults for unset model options and checks the remaining fields
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}

	if o.Lookback < 1 {
		return nil, ErrInvalidLookback
	}
	if o.TrainFraction <= 0 || o.ValidationFraction <= 0 || o.TrainFraction+o.ValidationFraction >= 1 {
		return nil, fmt.Errorf("train fraction %.3f and validation fraction %.3f, %w",
			o.TrainFraction, o.ValidationFraction, sequence.ErrInvalidSplit)
	}
	if o.Horizon < 0 {
		return nil, ErrNegativeHorizon
	}
	if o.ConfidenceBand < 0 || o.ConfidenceBand >= 1 {
		return nil, ErrInvalidConfidenceBand
	}

	lstmOpt, err := o.LSTMOptions.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid lstm options, %w", err)
	}
	o.LSTMOptions = lstmOpt

	gbtOpt, err := o.GBTOptions.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid gbt options, %w", err)
	}
	o.GBTOptions = gbtOpt
	return o, nil
}
