package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultGBTEstimators     = 50
	DefaultGBTLearningRate   = 0.1
	DefaultGBTMaxDepth       = 3
	DefaultGBTLambda         = 1.0
	DefaultGBTMinChildWeight = 1.0
)

var (
	ErrNonPositiveEstimators = errors.New("number of estimators must be positive")
	ErrNonPositiveMaxDepth   = errors.New("max depth must be positive")
	ErrNegativeRegularizer   = errors.New("negative regularization parameter")
	ErrNegativeChildWeight   = errors.New("negative min child weight")
)

// GBTOptions configures the gradient boosted trees with a squared error objective
type GBTOptions struct {
	Estimators   int     `json:"estimators"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth"`

	// Lambda is the L2 regularization on leaf weights
	Lambda float64 `json:"lambda"`

	// MinChildWeight is the minimum hessian sum required in each child of a split
	MinChildWeight float64 `json:"min_child_weight"`

	// Gamma is the minimum loss reduction required to make a split
	Gamma float64 `json:"gamma"`
}

// NewDefaultGBTOptions returns 50 depth 3 trees with a learning rate of 0.1
func NewDefaultGBTOptions() *GBTOptions {
	return &GBTOptions{
		Estimators:     DefaultGBTEstimators,
		LearningRate:   DefaultGBTLearningRate,
		MaxDepth:       DefaultGBTMaxDepth,
		Lambda:         DefaultGBTLambda,
		MinChildWeight: DefaultGBTMinChildWeight,
		Gamma:          0.0,
	}
}

// Validate runs basic validation on the boosting options
func (g *GBTOptions) Validate() (*GBTOptions, error) {
	if g == nil {
		g = NewDefaultGBTOptions()
	}

	if g.Estimators < 1 {
		return nil, ErrNonPositiveEstimators
	}
	if g.LearningRate <= 0 {
		return nil, ErrNonPositiveLearnRate
	}
	if g.MaxDepth < 1 {
		return nil, ErrNonPositiveMaxDepth
	}
	if g.Lambda < 0 || g.Gamma < 0 {
		return nil, ErrNegativeRegularizer
	}
	if g.MinChildWeight < 0 {
		return nil, ErrNegativeChildWeight
	}
	return g, nil
}

// GBTEnsemble is the serializable state of a trained GBTRegression
type GBTEnsemble struct {
	Features  int     `json:"features"`
	BaseScore float64 `json:"base_score"`
	Trees     []Tree  `json:"trees"`
}

// Copy returns a deep copy of the ensemble
func (e GBTEnsemble) Copy() GBTEnsemble {
	res := GBTEnsemble{
		Features:  e.Features,
		BaseScore: e.BaseScore,
		Trees:     make([]Tree, len(e.Trees)),
	}
	for i, t := range e.Trees {
		res.Trees[i] = Tree{Nodes: append([]TreeNode(nil), t.Nodes...)}
	}
	return res
}

// Validate checks that every tree references features and nodes that exist
func (e GBTEnsemble) Validate() error {
	if e.Features < 1 {
		return fmt.Errorf("ensemble has %d features, %w", e.Features, ErrInvalidWeights)
	}
	for i, t := range e.Trees {
		if !t.validate(e.Features) {
			return fmt.Errorf("tree %d is malformed, %w", i, ErrInvalidWeights)
		}
	}
	return nil
}

func (e *GBTEnsemble) predictRow(x []float64) float64 {
	res := e.BaseScore
	for _, t := range e.Trees {
		res += t.Predict(x)
	}
	return res
}

func (e *GBTEnsemble) predictRows(rows [][]float64) []float64 {
	res := make([]float64, len(rows))
	for i, row := range rows {
		res[i] = e.predictRow(row)
	}
	return res
}

// GBTRegression fits an additive ensemble of regression trees where each tree is fit to the
// gradient of the squared error of the current ensemble
type GBTRegression struct {
	opt      *GBTOptions
	ensemble *GBTEnsemble
	history  LossHistory
}

// NewGBTRegression initializes a boosted tree model ready for fitting
func NewGBTRegression(opt *GBTOptions) (*GBTRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &GBTRegression{
		opt: opt,
	}, nil
}

// NewGBTRegressionFromEnsemble rebuilds a trained model from a previously exported ensemble
func NewGBTRegressionFromEnsemble(opt *GBTOptions, e GBTEnsemble) (*GBTRegression, error) {
	g, err := NewGBTRegression(opt)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	ensemble := e.Copy()
	g.ensemble = &ensemble
	return g, nil
}

// Fit the ensemble to the training data
func (g *GBTRegression) Fit(x, y mat.Matrix) error {
	return g.FitWithValidation(context.Background(), x, y, nil, nil)
}

// FitWithValidation boosts Estimators trees, recording the training and, when xVal and yVal are
// provided, validation loss after each round. ctx is checked before every round.
func (g *GBTRegression) FitWithValidation(ctx context.Context, x, y, xVal, yVal mat.Matrix) error {
	if g.opt == nil {
		return ErrNoOptions
	}
	rows, targets, err := trainingData(x, y)
	if err != nil {
		return err
	}
	valRows, valTargets, err := validationData(xVal, yVal)
	if err != nil {
		return err
	}
	features := len(rows[0])
	if valRows != nil && len(valRows[0]) != features {
		return fmt.Errorf("validation data has %d features but training data has %d, %w", len(valRows[0]), features, ErrFeatureLenMismatch)
	}

	m := len(rows)
	ensemble := GBTEnsemble{
		Features:  features,
		BaseScore: stat.Mean(targets, nil),
		Trees:     make([]Tree, 0, g.opt.Estimators),
	}

	pred := make([]float64, m)
	floats.AddConst(ensemble.BaseScore, pred)

	var valPred []float64
	if valRows != nil {
		valPred = make([]float64, len(valRows))
		floats.AddConst(ensemble.BaseScore, valPred)
	}

	builder := &treeBuilder{
		x:    rows,
		grad: make([]float64, m),
		hess: make([]float64, m),
		opt:  g.opt,
	}
	idx := make([]int, m)
	for i := range idx {
		idx[i] = i
	}

	history := LossHistory{Loss: make([]float64, 0, g.opt.Estimators)}
	for round := 0; round < g.opt.Estimators; round++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("boosting stopped at round %d, %w", round, err)
		}

		// squared error: gradient is the residual and the hessian is constant
		for i := range targets {
			builder.grad[i] = pred[i] - targets[i]
			builder.hess[i] = 1.0
		}

		tree := builder.build(idx)
		ensemble.Trees = append(ensemble.Trees, tree)
		for i, row := range rows {
			pred[i] += tree.Predict(row)
		}
		history.Loss = append(history.Loss, meanSquaredError(pred, targets))

		if valRows != nil {
			for i, row := range valRows {
				valPred[i] += tree.Predict(row)
			}
			history.ValLoss = append(history.ValLoss, meanSquaredError(valPred, valTargets))
		}
	}
	slog.Debug("boosted trees fit", "trees", len(ensemble.Trees), "loss", history.Loss[len(history.Loss)-1])

	g.ensemble = &ensemble
	g.history = history
	return nil
}

// Predict returns the ensemble prediction for each row of x
func (g *GBTRegression) Predict(x mat.Matrix) ([]float64, error) {
	if g.opt == nil {
		return nil, ErrNoOptions
	}
	if g.ensemble == nil {
		return nil, ErrNotFitted
	}
	rows, err := designRows(x, g.ensemble.Features)
	if err != nil {
		return nil, err
	}
	return g.ensemble.predictRows(rows), nil
}

// PredictWindow returns the ensemble prediction for a single feature row
func (g *GBTRegression) PredictWindow(window []float64) (float64, error) {
	if g.ensemble == nil {
		return 0.0, ErrNotFitted
	}
	if len(window) != g.ensemble.Features {
		return 0.0, fmt.Errorf("got window of %d values, but expected %d, %w", len(window), g.ensemble.Features, ErrFeatureLenMismatch)
	}
	return g.ensemble.predictRow(window), nil
}

// Score computes the coefficient of determination of the prediction
func (g *GBTRegression) Score(x, y mat.Matrix) (float64, error) {
	if g.opt == nil {
		return 0.0, ErrNoOptions
	}
	return rSquared(g, x, y)
}

// History returns the per round training and validation loss of the last fit
func (g *GBTRegression) History() LossHistory {
	return g.history.Copy()
}

// Ensemble returns a copy of the trained trees
func (g *GBTRegression) Ensemble() (GBTEnsemble, error) {
	if g.ensemble == nil {
		return GBTEnsemble{}, ErrNotFitted
	}
	return g.ensemble.Copy(), nil
}

// Options returns the options the model was built with
func (g *GBTRegression) Options() *GBTOptions {
	return g.opt
}
