package models

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// adam keeps first and second moment estimates for each parameter block
type adam struct {
	lr   float64
	step int
	m    [][]float64
	v    [][]float64
}

func newAdam(lr float64, params [][]float64) *adam {
	a := &adam{
		lr: lr,
		m:  make([][]float64, len(params)),
		v:  make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p))
		a.v[i] = make([]float64, len(p))
	}
	return a
}

// update applies one bias corrected Adam step to params in place
func (a *adam) update(params, grads [][]float64) {
	a.step++
	c1 := 1 - math.Pow(adamBeta1, float64(a.step))
	c2 := 1 - math.Pow(adamBeta2, float64(a.step))

	for k, p := range params {
		g := grads[k]
		m := a.m[k]
		v := a.v[k]
		for i := range p {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*g[i]
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*g[i]*g[i]
			p[i] -= a.lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}
	}
}

// clipGradients rescales grads so their global L2 norm does not exceed maxNorm. A non-positive
// maxNorm disables clipping. Returns the norm before clipping.
func clipGradients(grads [][]float64, maxNorm float64) float64 {
	var sq float64
	for _, g := range grads {
		sq += floats.Dot(g, g)
	}
	norm := math.Sqrt(sq)
	if maxNorm <= 0 || norm <= maxNorm {
		return norm
	}
	scale := maxNorm / norm
	for _, g := range grads {
		floats.Scale(scale, g)
	}
	return norm
}
