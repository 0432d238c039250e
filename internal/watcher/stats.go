package watcher

import "math"

// welford holds running attempt-latency statistics using Welford's online
// algorithm: incremental mean and standard deviation in O(1) time and
// space, no stored observations.
type welford struct {
	count int
	mean  float64
	m2    float64
}

// update adds one observation. Numerically stable.
func (w *welford) update(value float64) {
	w.count++
	delta := value - w.mean
	w.mean += delta / float64(w.count)
	delta2 := value - w.mean
	w.m2 += delta * delta2
}

// stddev returns the population standard deviation; 0 below two
// observations.
func (w *welford) stddev() float64 {
	if w.count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.count))
}
