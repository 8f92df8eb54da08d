package engine

import (
	"math"
	"time"
)

// The multiplier grows as growthBase^(elapsedMs/timeConstantMs): 1.00x at
// the start, 2.00x after ten seconds, doubling every ten seconds after
// that. The curve is analytically invertible, which the engine relies on
// to turn a target crash multiplier into a deadline.
const (
	growthBase     = 2.0
	timeConstantMs = 10000.0
)

// Curve maps elapsed round time to a display multiplier and back.
type Curve struct {
	Min float64
	Max float64
}

// MultiplierAt returns the multiplier after elapsed time, clamped to
// [Min, Max]. Degenerate input never escapes: NaN and infinities come
// back as Min.
func (c Curve) MultiplierAt(elapsed time.Duration) float64 {
	ms := elapsed.Seconds() * 1000
	if ms < 0 {
		ms = 0
	}
	return c.Clamp(math.Pow(growthBase, ms/timeConstantMs))
}

// TimeToReach is the inverse of MultiplierAt: the elapsed time at which
// the curve first reaches m.
func (c Curve) TimeToReach(m float64) time.Duration {
	m = c.Clamp(m)
	ms := timeConstantMs * math.Log(m) / math.Log(growthBase)
	return time.Duration(ms * float64(time.Millisecond))
}

// Clamp bounds m to [Min, Max], treating NaN/Inf as Min.
func (c Curve) Clamp(m float64) float64 {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return c.Min
	}
	if m < c.Min {
		return c.Min
	}
	if m > c.Max {
		return c.Max
	}
	return m
}
