package models

import (
	"context"
	"testing"

	mat_ "github.com/aouyang1/go-salesforecast/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestGBTOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt      *GBTOptions
		err      error
		expected *GBTOptions
	}{
		"nil": {nil, nil, NewDefaultGBTOptions()},
		"valid": {
			&GBTOptions{Estimators: 100, LearningRate: 0.05, MaxDepth: 5, Lambda: 0.5},
			nil,
			&GBTOptions{Estimators: 100, LearningRate: 0.05, MaxDepth: 5, Lambda: 0.5},
		},
		"zero estimators": {
			&GBTOptions{LearningRate: 0.1, MaxDepth: 3},
			ErrNonPositiveEstimators, nil,
		},
		"zero learning rate": {
			&GBTOptions{Estimators: 1, MaxDepth: 3},
			ErrNonPositiveLearnRate, nil,
		},
		"zero depth": {
			&GBTOptions{Estimators: 1, LearningRate: 0.1},
			ErrNonPositiveMaxDepth, nil,
		},
		"negative lambda": {
			&GBTOptions{Estimators: 1, LearningRate: 0.1, MaxDepth: 3, Lambda: -1},
			ErrNegativeRegularizer, nil,
		},
		"negative gamma": {
			&GBTOptions{Estimators: 1, LearningRate: 0.1, MaxDepth: 3, Gamma: -1},
			ErrNegativeRegularizer, nil,
		},
		"negative child weight": {
			&GBTOptions{Estimators: 1, LearningRate: 0.1, MaxDepth: 3, MinChildWeight: -1},
			ErrNegativeChildWeight, nil,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt, err := td.opt.Validate()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, opt)
		})
	}
}

// stepData has a step of 10 at index 5 on feature 1 while feature 0 alternates
func stepData(t *testing.T) (*mat.Dense, *mat.Dense) {
	t.Helper()

	rows := make([][]float64, 10)
	targets := make([]float64, 10)
	for i := range rows {
		rows[i] = []float64{float64(i % 2), float64(i)}
		if i >= 5 {
			targets[i] = 10.0
		}
	}
	x, err := mat_.NewDenseFromArray(rows)
	require.Nil(t, err)
	y, err := mat_.NewColumn(targets)
	require.Nil(t, err)
	return x, y
}

func TestGBTRegressionStepFunction(t *testing.T) {
	x, y := stepData(t)

	model, err := NewGBTRegression(nil)
	require.Nil(t, err)
	require.Nil(t, model.Fit(x, y))

	e, err := model.Ensemble()
	require.Nil(t, err)
	assert.Equal(t, 2, e.Features)
	assert.InDelta(t, 5.0, e.BaseScore, 1e-9)
	require.Len(t, e.Trees, DefaultGBTEstimators)

	root := e.Trees[0].Nodes[0]
	assert.False(t, root.Leaf)
	assert.Equal(t, 1, root.Feature)
	assert.InDelta(t, 4.5, root.Threshold, 1e-9)

	pred, err := model.Predict(x)
	require.Nil(t, err)
	for i, p := range pred {
		assert.InDelta(t, y.At(i, 0), p, 0.1, "index %d", i)
	}

	r2, err := model.Score(x, y)
	require.Nil(t, err)
	assert.Greater(t, r2, 0.99)

	h := model.History()
	require.Len(t, h.Loss, DefaultGBTEstimators)
	assert.Less(t, h.Loss[len(h.Loss)-1], h.Loss[0])
	assert.Nil(t, h.ValLoss)
}

func TestGBTRegressionConstantTarget(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 3, 3, 3})

	model, err := NewGBTRegression(nil)
	require.Nil(t, err)
	require.Nil(t, model.Fit(x, y))

	pred, err := model.Predict(x)
	require.Nil(t, err)
	assert.InDeltaSlice(t, []float64{3, 3, 3, 3}, pred, 1e-9)

	r2, err := model.Score(x, y)
	require.Nil(t, err)
	assert.Equal(t, 1.0, r2)
}

func TestGBTRegressionMaxDepth(t *testing.T) {
	rows := make([][]float64, 64)
	targets := make([]float64, 64)
	for i := range rows {
		rows[i] = []float64{float64(i), float64((i * 7) % 13)}
		targets[i] = float64((i*i)%17) - float64(i%5)
	}
	x, err := mat_.NewDenseFromArray(rows)
	require.Nil(t, err)
	y, err := mat_.NewColumn(targets)
	require.Nil(t, err)

	for _, depth := range []int{1, 2, 3, 4} {
		opt := NewDefaultGBTOptions()
		opt.MaxDepth = depth
		opt.Estimators = 5

		model, err := NewGBTRegression(opt)
		require.Nil(t, err)
		require.Nil(t, model.Fit(x, y))

		e, err := model.Ensemble()
		require.Nil(t, err)
		for _, tree := range e.Trees {
			assert.LessOrEqual(t, tree.Depth(), depth)
			assert.LessOrEqual(t, len(tree.Nodes), (1<<(depth+1))-1)
		}
	}
}

func TestGBTRegressionValidationLoss(t *testing.T) {
	x, y := stepData(t)

	opt := NewDefaultGBTOptions()
	opt.Estimators = 10

	model, err := NewGBTRegression(opt)
	require.Nil(t, err)
	require.Nil(t, model.FitWithValidation(context.Background(), x, y, x, y))

	h := model.History()
	require.Len(t, h.ValLoss, 10)
	assert.InDeltaSlice(t, h.Loss, h.ValLoss, 1e-9)
}

func TestGBTRegressionEnsembleRoundTrip(t *testing.T) {
	x, y := stepData(t)

	model, err := NewGBTRegression(nil)
	require.Nil(t, err)

	_, err = model.Predict(x)
	assert.ErrorIs(t, err, ErrNotFitted)
	_, err = model.PredictWindow([]float64{0, 1})
	assert.ErrorIs(t, err, ErrNotFitted)

	require.Nil(t, model.Fit(x, y))

	e, err := model.Ensemble()
	require.Nil(t, err)
	restored, err := NewGBTRegressionFromEnsemble(nil, e)
	require.Nil(t, err)

	expected, err := model.Predict(x)
	require.Nil(t, err)
	res, err := restored.Predict(x)
	require.Nil(t, err)
	assert.Equal(t, expected, res)

	p, err := restored.PredictWindow([]float64{1, 8})
	require.Nil(t, err)
	assert.InDelta(t, 10.0, p, 0.1)

	_, err = restored.PredictWindow([]float64{1})
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)

	_, err = restored.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)
}

func TestGBTEnsembleValidate(t *testing.T) {
	testData := map[string]GBTEnsemble{
		"no features": {Features: 0},
		"empty tree":  {Features: 1, Trees: []Tree{{}}},
		"bad feature": {Features: 1, Trees: []Tree{{Nodes: []TreeNode{
			{Feature: 2, Threshold: 1, Left: 1, Right: 2},
			{Leaf: true},
			{Leaf: true},
		}}}},
		"cycle": {Features: 1, Trees: []Tree{{Nodes: []TreeNode{
			{Feature: 0, Threshold: 1, Left: 1, Right: 2},
			{Feature: 0, Threshold: 1, Left: 0, Right: 2},
			{Leaf: true},
		}}}},
	}

	for name, e := range testData {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, e.Validate(), ErrInvalidWeights)
		})
	}
}
