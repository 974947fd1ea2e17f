package timedataset

import (
	"math"
	"time"
)

type TimeSlice []time.Time

func (t TimeSlice) StartTime() time.Time {
	if len(t) < 1 {
		return time.Time{}
	}
	return t[0]
}

func (t TimeSlice) EndTime() time.Time {
	if len(t) < 1 {
		return time.Time{}
	}
	return t[len(t)-1]
}

// EstimateFreq returns the most common interval between consecutive points, preferring the
// smaller interval on ties.
func (t TimeSlice) EstimateFreq() (time.Duration, error) {
	if len(t) < 2 {
		return 0, ErrCannotInferFreq
	}

	frequencies := make(map[time.Duration]int)
	for i := 1; i < len(t); i++ {
		frequencies[t[i].Sub(t[i-1])] += 1
	}

	var maxCnt int
	maxDelta := time.Duration(math.MaxInt64)
	for delta, cnt := range frequencies {
		if cnt > maxCnt || (cnt == maxCnt && delta < maxDelta) {
			maxCnt = cnt
			maxDelta = delta
		}
	}
	return maxDelta, nil
}

// Horizon generates n points after start spaced by freq. Days are stepped with AddDate so
// midnight stays at midnight across DST changes.
func Horizon(start time.Time, n int, freq time.Duration) []time.Time {
	if n <= 0 {
		return nil
	}
	res := make([]time.Time, n)
	for i := 0; i < n; i++ {
		if freq == oneDay {
			res[i] = start.AddDate(0, 0, i+1)
			continue
		}
		res[i] = start.Add(time.Duration(i+1) * freq)
	}
	return res
}
