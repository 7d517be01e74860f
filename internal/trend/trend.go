// Package trend fits ordinary-least-squares trend lines over (x, y) samples.
//
// The fit is a direct floating-point translation of the closed-form OLS
// formula. Inputs without variance in x (no samples, a single sample, or all
// x equal) produce a zero denominator; the resulting NaN/Inf slope and
// intercept are returned as-is and never clamped.
package trend

import (
	"fmt"
	"math"
)

// Sample is a single (x, y) observation.
type Sample struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sums holds the one-pass reductions over a sample sequence.
type Sums struct {
	N     int
	SumX  float64
	SumY  float64
	SumXY float64
	SumXX float64
	SumYY float64 // not used by the fit
}

// Accumulate reduces samples into their running sums.
func Accumulate(samples []Sample) Sums {
	s := Sums{N: len(samples)}
	for _, p := range samples {
		s.SumX += p.X
		s.SumY += p.Y
		s.SumXY += p.X * p.Y
		s.SumXX += p.X * p.X
		s.SumYY += p.Y * p.Y
	}
	return s
}

// Denominator returns n·Σx² − (Σx)², zero when x has no variance.
func (s Sums) Denominator() float64 {
	n := float64(s.N)
	return n*s.SumXX - s.SumX*s.SumX
}

// FittedLine is an immutable least-squares line y = Intercept + Slope*x.
type FittedLine struct {
	slope     float64
	intercept float64
	sums      Sums
}

// Fit computes the least-squares line for samples.
func Fit(samples []Sample) FittedLine {
	return FitSums(Accumulate(samples))
}

// FitSums computes the least-squares line from precomputed sums.
func FitSums(s Sums) FittedLine {
	n := float64(s.N)
	slope := (n*s.SumXY - s.SumX*s.SumY) / s.Denominator()
	intercept := (s.SumY - slope*s.SumX) / n
	return FittedLine{slope: slope, intercept: intercept, sums: s}
}

// Slope returns m.
func (l FittedLine) Slope() float64 { return l.slope }

// Intercept returns b.
func (l FittedLine) Intercept() float64 { return l.intercept }

// Sums returns the reductions the line was fitted from.
func (l FittedLine) Sums() Sums { return l.sums }

// At evaluates the line at x.
func (l FittedLine) At(x float64) float64 {
	return l.intercept + l.slope*x
}

// Func returns the line as a plain function of x.
func (l FittedLine) Func() func(float64) float64 {
	return l.At
}

// Degenerate reports whether the fit produced a non-finite slope or intercept.
func (l FittedLine) Degenerate() bool {
	return !isFinite(l.slope) || !isFinite(l.intercept)
}

// String formats the line as an equation.
func (l FittedLine) String() string {
	return fmt.Sprintf("y = %.6g + %.6g*x", l.intercept, l.slope)
}

// Mean returns the centroid (mean x, mean y) of the fitted samples.
func (l FittedLine) Mean() (x, y float64) {
	n := float64(l.sums.N)
	return l.sums.SumX / n, l.sums.SumY / n
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
