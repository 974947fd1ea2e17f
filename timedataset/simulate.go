package timedataset

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateDays returns n consecutive midnights in UTC ending the day before nowFunc.
func GenerateDays(n int, nowFunc func() time.Time) []time.Time {
	now := nowFunc().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	t := make([]time.Time, 0, n)
	for i := n; i > 0; i-- {
		t = append(t, end.AddDate(0, 0, -i))
	}
	return t
}

// Series is a helper for composing synthetic sales curves
type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

// DropDays sets the values at the given indexes to NaN to mimic days without transactions
func (s Series) DropDays(idxs ...int) Series {
	for _, idx := range idxs {
		if idx >= 0 && idx < len(s) {
			s[idx] = math.NaN()
		}
	}
	return s
}

func GenerateConstY(n int, val float64) Series {
	y := make(Series, n)
	for i := range y {
		y[i] = val
	}
	return y
}

// GenerateTrendY produces a line starting at 0 increasing by slope every point
func GenerateTrendY(n int, slope float64) Series {
	y := make(Series, n)
	for i := range y {
		y[i] = slope * float64(i)
	}
	return y
}

// GenerateWaveY produces a sine wave with the given period in days
func GenerateWaveY(t []time.Time, amp, periodDays, phaseDays float64) Series {
	y := make(Series, len(t))
	for i, tPnt := range t {
		days := float64(tPnt.Unix())/86400.0 + phaseDays
		y[i] = amp * math.Sin(2.0*math.Pi/periodDays*days)
	}
	return y
}

// GenerateNoise produces gaussian noise from a seeded source so tests stay reproducible
func GenerateNoise(n int, scale float64, seed uint64) Series {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	y := make(Series, n)
	for i := range y {
		y[i] = rng.NormFloat64() * scale
	}
	return y
}
