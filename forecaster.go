// Package forecaster trains an LSTM and a gradient boosted tree regressor on lookback windows of a
// daily sales series and rolls both forward to produce an averaged multi-day forecast
package forecaster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aouyang1/go-salesforecast/models"
	"github.com/aouyang1/go-salesforecast/scaler"
	"github.com/aouyang1/go-salesforecast/sequence"
	"github.com/aouyang1/go-salesforecast/timedataset"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNotFit           = errors.New("forecaster has not been fit")
	ErrNoOptionsInModel = errors.New("no options set in model")
	ErrModelWindow      = errors.New("model window does not match lookback")
	ErrSubDailySeries   = errors.New("series is sampled more often than daily")
)

const day = 24 * time.Hour

// TestResults are the test split predictions in the original units, aligned with the target dates
type TestResults struct {
	T        []time.Time `json:"time"`
	Actual   []float64   `json:"actual"`
	LSTM     []float64   `json:"lstm"`
	GBT      []float64   `json:"gbt"`
	Ensemble []float64   `json:"ensemble"`

	// AliasesValidation is set when the history was too short for a separate test split and the
	// validation windows were scored instead
	AliasesValidation bool `json:"aliases_validation"`
}

// Forecaster fits both regressors and can be used to generate forecasts
type Forecaster struct {
	opt *Options

	scaler *scaler.MinMax
	lstm   *models.LSTMRegression
	gbt    *models.GBTRegression

	fitTrainingData *timedataset.TimeDataset
	lastWindow      []float64
	lastDate        time.Time

	scores      *ModelScores
	testResults *TestResults
}

// New creates a new instance of a Forecaster using the provided options. If no options are provided
// a default is used.
func New(opt *Options) (*Forecaster, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, fmt.Errorf("unable to validate options, %w", err)
	}

	f := &Forecaster{
		opt: opt,
	}
	if f.lstm, err = models.NewLSTMRegression(opt.LSTMOptions); err != nil {
		return nil, fmt.Errorf("unable to initialize lstm, %w", err)
	}
	if f.gbt, err = models.NewGBTRegression(opt.GBTOptions); err != nil {
		return nil, fmt.Errorf("unable to initialize boosted trees, %w", err)
	}
	return f, nil
}

// NewFromModel creates a new instance of Forecaster from a pre-existing model. This should be generated
// from a previous forecaster call to Model().
func NewFromModel(model Model) (*Forecaster, error) {
	if model.Options == nil {
		return nil, ErrNoOptionsInModel
	}
	opt, err := model.Options.Validate()
	if err != nil {
		return nil, fmt.Errorf("unable to validate model options, %w", err)
	}
	if len(model.LastWindow) != opt.Lookback {
		return nil, fmt.Errorf("model has a window of %d values and a lookback of %d, %w", len(model.LastWindow), opt.Lookback, ErrModelWindow)
	}
	if !model.Scaler.Fitted {
		return nil, fmt.Errorf("unable to load model, %w", scaler.ErrUnfitScaler)
	}

	lstm, err := models.NewLSTMRegressionFromWeights(opt.LSTMOptions, model.LSTM)
	if err != nil {
		return nil, fmt.Errorf("unable to load lstm model, %w", err)
	}
	gbt, err := models.NewGBTRegressionFromEnsemble(opt.GBTOptions, model.GBT)
	if err != nil {
		return nil, fmt.Errorf("unable to load boosted trees model, %w", err)
	}

	s := model.Scaler
	f := &Forecaster{
		opt:        opt,
		scaler:     &s,
		lstm:       lstm,
		gbt:        gbt,
		lastWindow: append([]float64(nil), model.LastWindow...),
		lastDate:   model.TrainEndTime,
		scores:     model.Scores,
	}
	return f, nil
}

// Fit trains both models on a daily series. Missing days between the first and last date are
// linearly interpolated. The series is scaled to [0, 1], windowed, split in temporal order and the
// two models are trained concurrently; either failing cancels the other. Scores are computed on the
// test split in the original units.
func (f *Forecaster) Fit(ctx context.Context, t []time.Time, y []float64) error {
	td, err := dailySeries(t, y)
	if err != nil {
		return err
	}

	lookback := f.opt.Lookback
	if need := sequence.MinDays(lookback); td.Len() < need {
		return fmt.Errorf("need at least %d days of history for a lookback of %d but have %d, %w",
			need, lookback, td.Len(), sequence.ErrInsufficientData)
	}

	s := &scaler.MinMax{}
	scaled, err := s.FitTransform(td.Y)
	if err != nil {
		return fmt.Errorf("unable to scale daily series, %w", err)
	}

	ds, err := sequence.Windows(scaled, lookback)
	if err != nil {
		return fmt.Errorf("unable to window daily series, %w", err)
	}
	splits, err := sequence.Split(ds, f.opt.TrainFraction, f.opt.ValidationFraction)
	if err != nil {
		return fmt.Errorf("unable to split windowed series, %w", err)
	}

	xTrain, yTrain, err := splits.Train.Matrix()
	if err != nil {
		return fmt.Errorf("unable to build training matrices, %w", err)
	}
	xVal, yVal, err := splits.Validation.Matrix()
	if err != nil {
		return fmt.Errorf("unable to build validation matrices, %w", err)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := f.lstm.FitWithValidation(gctx, xTrain, yTrain, xVal, yVal); err != nil {
			return fmt.Errorf("unable to fit lstm, %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := f.gbt.FitWithValidation(gctx, xTrain, yTrain, xVal, yVal); err != nil {
			return fmt.Errorf("unable to fit boosted trees, %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("trained models",
		"days", td.Len(),
		"train", splits.Train.Len(),
		"validation", splits.Validation.Len(),
		"test", splits.Test.Len(),
		"duration", time.Since(start),
	)

	testRes, err := f.evaluate(s, splits, td.T, lookback)
	if err != nil {
		return err
	}
	scores, err := testRes.scores()
	if err != nil {
		return err
	}

	lastWindow, err := sequence.Last(scaled, lookback)
	if err != nil {
		return fmt.Errorf("unable to take last window, %w", err)
	}

	f.scaler = s
	f.fitTrainingData = td
	f.lastWindow = lastWindow
	f.lastDate = td.T[td.Len()-1]
	f.testResults = testRes
	f.scores = scores
	return nil
}

// dailySeries validates the input and fills missing days by linear interpolation. NaN values are
// treated as missing days.
func dailySeries(t []time.Time, y []float64) (*timedataset.TimeDataset, error) {
	td, err := timedataset.NewUnivariateDataset(t, y)
	if err != nil {
		return nil, fmt.Errorf("unable to create training dataset, %w", err)
	}
	td = td.DropNan()
	if td.Len() == 0 {
		return nil, fmt.Errorf("daily series has no valid values, %w", timedataset.ErrNoTrainingData)
	}
	if td.Len() == 1 {
		return td, nil
	}

	freq, err := timedataset.TimeSlice(td.T).EstimateFreq()
	if err != nil {
		return nil, err
	}
	if freq < day-time.Hour {
		return nil, fmt.Errorf("most points are %s apart, %w", freq, ErrSubDailySeries)
	}

	td, err = td.Reindex(day)
	if err != nil {
		return nil, fmt.Errorf("unable to align daily series, %w", err)
	}
	return td.Interpolate(), nil
}

func (f *Forecaster) evaluate(s *scaler.MinMax, splits sequence.Splits, t []time.Time, lookback int) (*TestResults, error) {
	xTest, yTest, err := splits.Test.Matrix()
	if err != nil {
		return nil, fmt.Errorf("unable to build test matrices, %w", err)
	}

	lstmPred, err := f.lstm.Predict(xTest)
	if err != nil {
		return nil, fmt.Errorf("unable to predict test split with lstm, %w", err)
	}
	gbtPred, err := f.gbt.Predict(xTest)
	if err != nil {
		return nil, fmt.Errorf("unable to predict test split with boosted trees, %w", err)
	}

	res := &TestResults{AliasesValidation: splits.TestAliasesValidation}
	if res.Actual, err = s.InverseTransform(mat.Col(nil, 0, yTest)); err != nil {
		return nil, err
	}
	if res.LSTM, err = s.InverseTransform(lstmPred); err != nil {
		return nil, err
	}
	if res.GBT, err = s.InverseTransform(gbtPred); err != nil {
		return nil, err
	}
	res.Ensemble = average(res.LSTM, res.GBT)

	// window i predicts day i+lookback
	offset := splits.Train.Len() + lookback
	if !splits.TestAliasesValidation {
		offset += splits.Validation.Len()
	}
	res.T = append([]time.Time(nil), t[offset:offset+splits.Test.Len()]...)
	return res, nil
}

func (r *TestResults) scores() (*ModelScores, error) {
	lstm, err := NewScores(r.LSTM, r.Actual)
	if err != nil {
		return nil, fmt.Errorf("unable to score lstm, %w", err)
	}
	gbt, err := NewScores(r.GBT, r.Actual)
	if err != nil {
		return nil, fmt.Errorf("unable to score boosted trees, %w", err)
	}
	ensemble, err := NewScores(r.Ensemble, r.Actual)
	if err != nil {
		return nil, fmt.Errorf("unable to score ensemble, %w", err)
	}
	return &ModelScores{
		LSTM:     lstm,
		GBT:      gbt,
		Ensemble: ensemble,
	}, nil
}

func average(a, b []float64) []float64 {
	res := make([]float64, len(a))
	for i := range a {
		res[i] = (a[i] + b[i]) / 2.0
	}
	return res
}

// rollout feeds each prediction back as the newest window value for horizon steps
func rollout(model models.Trainer, window []float64, horizon int) ([]float64, error) {
	w := append([]float64(nil), window...)
	res := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		p, err := model.PredictWindow(w)
		if err != nil {
			return nil, err
		}
		res[i] = p
		sequence.Roll(w, p)
	}
	return res, nil
}

// Forecast rolls each model forward independently from the last window of the history. A horizon
// of 0 uses the configured horizon. Values are in the original units and the ensemble is the
// pointwise mean of the two models.
func (f *Forecaster) Forecast(horizon int) (*Results, error) {
	if f.scaler == nil || f.lastWindow == nil {
		return nil, ErrNotFit
	}
	if horizon < 0 {
		return nil, ErrNegativeHorizon
	}
	if horizon == 0 {
		horizon = f.opt.Horizon
	}

	lstmScaled, err := rollout(f.lstm, f.lastWindow, horizon)
	if err != nil {
		return nil, fmt.Errorf("unable to roll out lstm, %w", err)
	}
	gbtScaled, err := rollout(f.gbt, f.lastWindow, horizon)
	if err != nil {
		return nil, fmt.Errorf("unable to roll out boosted trees, %w", err)
	}

	res := &Results{
		T: f.forecastDates(horizon),
	}
	if res.LSTM, err = f.scaler.InverseTransform(lstmScaled); err != nil {
		return nil, err
	}
	if res.GBT, err = f.scaler.InverseTransform(gbtScaled); err != nil {
		return nil, err
	}
	res.Ensemble = average(res.LSTM, res.GBT)

	res.Lower = make([]float64, horizon)
	res.Upper = make([]float64, horizon)
	for i, v := range res.Ensemble {
		band := math.Abs(v) * f.opt.ConfidenceBand
		res.Lower[i] = v - band
		res.Upper[i] = v + band
	}
	return res, nil
}

func (f *Forecaster) forecastDates(horizon int) []time.Time {
	if !f.opt.StartDate.IsZero() {
		return timedataset.Horizon(f.opt.StartDate.AddDate(0, 0, -1), horizon, day)
	}
	return timedataset.Horizon(f.lastDate, horizon, day)
}

// Model generates a serializeable representation of the options, scaler and both trained models.
// This can be used to initialize a new Forecaster for immediate forecasts skipping the training step.
func (f *Forecaster) Model() (Model, error) {
	if f.scaler == nil {
		return Model{}, ErrNotFit
	}
	lstm, err := f.lstm.Weights()
	if err != nil {
		return Model{}, fmt.Errorf("unable to fetch lstm weights, %w", err)
	}
	gbt, err := f.gbt.Ensemble()
	if err != nil {
		return Model{}, fmt.Errorf("unable to fetch boosted trees, %w", err)
	}
	m := Model{
		Options:      f.opt,
		TrainEndTime: f.lastDate,
		Scaler:       *f.scaler,
		LastWindow:   append([]float64(nil), f.lastWindow...),
		Scores:       f.scores,
		LSTM:         lstm,
		GBT:          gbt,
		LSTMLoss:     f.lstm.History(),
		GBTLoss:      f.gbt.History(),
	}
	return m, nil
}

// Options returns the validated options of the forecaster
func (f *Forecaster) Options() *Options {
	return f.opt
}

// Scores returns the test scores of the last fit
func (f *Forecaster) Scores() *ModelScores {
	return f.scores
}

// TestResults returns the test split predictions of the last fit
func (f *Forecaster) TestResults() *TestResults {
	return f.testResults
}

// TrainingData returns the interpolated daily series used to fit the current forecaster model
func (f *Forecaster) TrainingData() *timedataset.TimeDataset {
	return f.fitTrainingData.Copy()
}

// LastDate returns the last day of history the forecaster was trained on
func (f *Forecaster) LastDate() time.Time {
	return f.lastDate
}

// LSTMHistory returns the per epoch loss of the recurrent model
func (f *Forecaster) LSTMHistory() models.LossHistory {
	return f.lstm.History()
}

// GBTHistory returns the per round loss of the boosted trees
func (f *Forecaster) GBTHistory() models.LossHistory {
	return f.gbt.History()
}
