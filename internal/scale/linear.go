// Package scale maps numeric data domains onto pixel ranges and formats
// axis values with SI prefixes.
package scale

import (
	"fmt"
	"math"
)

// Linear maps a continuous domain [D0, D1] onto a range [R0, R1].
// Values outside the domain are extrapolated unless Clamp is set.
type Linear struct {
	D0, D1 float64
	R0, R1 float64
	Clamp  bool
}

// NewLinear returns a linear scale for the given domain and range.
// The range may be inverted (R0 > R1), as is usual for screen y axes.
func NewLinear(d0, d1, r0, r1 float64) (Linear, error) {
	if d0 == d1 {
		return Linear{}, fmt.Errorf("scale: empty domain [%g, %g]", d0, d1)
	}
	if math.IsNaN(d0) || math.IsNaN(d1) || math.IsNaN(r0) || math.IsNaN(r1) {
		return Linear{}, fmt.Errorf("scale: NaN bound")
	}
	return Linear{D0: d0, D1: d1, R0: r0, R1: r1}, nil
}

// Map converts a domain value to its range position.
func (s Linear) Map(x float64) float64 {
	t := (x - s.D0) / (s.D1 - s.D0)
	if s.Clamp {
		t = math.Max(0, math.Min(1, t))
	}
	return s.R0 + t*(s.R1-s.R0)
}

// Invert converts a range position back into the domain.
func (s Linear) Invert(px float64) float64 {
	t := (px - s.R0) / (s.R1 - s.R0)
	if s.Clamp {
		t = math.Max(0, math.Min(1, t))
	}
	return s.D0 + t*(s.D1-s.D0)
}

// Ticks returns roughly count evenly spaced, human-friendly values inside
// the domain. Steps are 1, 2 or 5 times a power of ten.
func (s Linear) Ticks(count int) []float64 {
	lo, hi := s.D0, s.D1
	if lo > hi {
		lo, hi = hi, lo
	}
	step := TickStep(lo, hi, count)
	if step == 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil
	}

	start := math.Ceil(lo/step) * step
	stop := math.Floor(hi/step)*step + step*0.5

	var ticks []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v > stop {
			break
		}
		ticks = append(ticks, v)
	}
	return ticks
}

// TickStep picks the tick spacing for count ticks over [lo, hi].
func TickStep(lo, hi float64, count int) float64 {
	if count <= 0 {
		count = 10
	}
	span := hi - lo
	if span <= 0 {
		return 0
	}

	step := math.Pow(10, math.Floor(math.Log10(span/float64(count))))
	ratio := float64(count) / span * step

	switch {
	case ratio <= 0.15:
		step *= 10
	case ratio <= 0.35:
		step *= 5
	case ratio <= 0.75:
		step *= 2
	}
	return step
}
