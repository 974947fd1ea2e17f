// Package scaler provides min-max normalization fitted once on a history and reused to map model
// outputs back to the original units.
package scaler

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrNoData      = errors.New("no data to fit scaler")
	ErrUnfitScaler = errors.New("scaler has not been fit")
	ErrNaNInput    = errors.New("cannot fit scaler on NaN values")
	ErrInfInput    = errors.New("cannot fit scaler on infinite values")
)

// MinMax maps values from [Min, Max] onto [0, 1]. A constant history maps to 0.
type MinMax struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Fitted bool    `json:"fitted"`
}

// Fit records the range of x. Fitting an already fitted scaler overwrites the range so callers
// that need a stable transform keep their own instance.
func (s *MinMax) Fit(x []float64) error {
	if len(x) == 0 {
		return ErrNoData
	}
	if floats.HasNaN(x) {
		return ErrNaNInput
	}
	for _, v := range x {
		if math.IsInf(v, 0) {
			return ErrInfInput
		}
	}
	s.Min = floats.Min(x)
	s.Max = floats.Max(x)
	s.Fitted = true
	return nil
}

func (s *MinMax) scale() float64 {
	r := s.Max - s.Min
	if r == 0 {
		return 1.0
	}
	return r
}

// Transform returns a new slice with x mapped through the fitted range
func (s *MinMax) Transform(x []float64) ([]float64, error) {
	if s == nil || !s.Fitted {
		return nil, ErrUnfitScaler
	}
	res := make([]float64, len(x))
	copy(res, x)
	floats.AddConst(-s.Min, res)
	floats.Scale(1.0/s.scale(), res)
	return res, nil
}

// InverseTransform maps scaled values back to the original units
func (s *MinMax) InverseTransform(x []float64) ([]float64, error) {
	if s == nil || !s.Fitted {
		return nil, ErrUnfitScaler
	}
	res := make([]float64, len(x))
	copy(res, x)
	floats.Scale(s.scale(), res)
	floats.AddConst(s.Min, res)
	return res, nil
}

// FitTransform fits the scaler on x and returns the scaled values
func (s *MinMax) FitTransform(x []float64) ([]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}
