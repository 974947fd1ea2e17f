// Package models holds the regressors trained on lookback windows: a recurrent LSTM network and
// gradient boosted regression trees
package models

import (
	"context"
	"fmt"
	"math"

	mat_ "github.com/aouyang1/go-salesforecast/mat"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

type Model interface {
	Fit(x, y mat.Matrix) error
	Predict(x mat.Matrix) ([]float64, error)
	Score(x, y mat.Matrix) (float64, error)
}

// Trainer is a Model that reports a validation loss while fitting and can be stopped through
// the context between epochs or boosting rounds
type Trainer interface {
	Model
	FitWithValidation(ctx context.Context, x, y, xVal, yVal mat.Matrix) error
	PredictWindow(window []float64) (float64, error)
	History() LossHistory
}

// LossHistory tracks the mean squared error per epoch or boosting round. ValLoss is only
// populated when a validation set was provided.
type LossHistory struct {
	Loss    []float64 `json:"loss"`
	ValLoss []float64 `json:"val_loss,omitempty"`
}

// Copy returns a deep copy of the history
func (h LossHistory) Copy() LossHistory {
	res := LossHistory{
		Loss: append([]float64(nil), h.Loss...),
	}
	if h.ValLoss != nil {
		res.ValLoss = append([]float64(nil), h.ValLoss...)
	}
	return res
}

func trainingData(x, y mat.Matrix) ([][]float64, []float64, error) {
	if x == nil {
		return nil, nil, ErrNoTrainingMatrix
	}
	if y == nil {
		return nil, nil, ErrNoTargetMatrix
	}

	m, n := x.Dims()
	if m == 0 || n == 0 {
		return nil, nil, ErrEmptyTrainingData
	}
	ym, _ := y.Dims()
	if ym != m {
		return nil, nil, fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}
	return mat_.Rows(x), mat.Col(nil, 0, y), nil
}

// validationData returns nil slices when no validation set is given
func validationData(xVal, yVal mat.Matrix) ([][]float64, []float64, error) {
	if xVal == nil && yVal == nil {
		return nil, nil, nil
	}
	xRows, yCol, err := trainingData(xVal, yVal)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid validation data, %w", err)
	}
	return xRows, yCol, nil
}

func designRows(x mat.Matrix, features int) ([][]float64, error) {
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	_, n := x.Dims()
	if n != features {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, features, ErrFeatureLenMismatch)
	}
	return mat_.Rows(x), nil
}

func rSquared(model Model, x, y mat.Matrix) (float64, error) {
	if x == nil {
		return 0.0, ErrNoDesignMatrix
	}
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}

	m, _ := x.Dims()
	ym, _ := y.Dims()
	if m != ym {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}

	res, err := model.Predict(x)
	if err != nil {
		return 0.0, err
	}

	ySlice := mat.Col(nil, 0, y)

	score := stat.RSquaredFrom(res, ySlice, nil)
	if math.IsNaN(score) {
		score = 1.0
	}
	return score, nil
}

func meanSquaredError(pred, y []float64) float64 {
	if len(y) == 0 {
		return 0.0
	}
	var sum float64
	for i := range y {
		d := pred[i] - y[i]
		sum += d * d
	}
	return sum / float64(len(y))
}
