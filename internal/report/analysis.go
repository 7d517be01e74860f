// Package report produces offline reports of the benchmark dataset: the
// fitted trend per mode, its goodness of fit, and how far each framework
// sits above or below the line.
package report

import (
	"math"
	"sort"
	"time"

	"benchsite/internal/bench"
	"benchsite/internal/trend"

	"gonum.org/v1/gonum/stat"
)

// Residual is one framework's distance from the trend line.
type Residual struct {
	Name      string  `json:"name"`
	JVM       bool    `json:"jvm"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Predicted float64 `json:"predicted"`
	Residual  float64 `json:"residual"`
}

// ModeResult holds the fit for one mode. Residuals are sorted from the
// framework furthest above the line to the one furthest below.
type ModeResult struct {
	Mode       bench.Mode
	Line       trend.FittedLine
	RSquared   float64
	Degenerate bool
	Residuals  []Residual
}

// Results is everything a Reporter writes out.
type Results struct {
	Source      string
	GeneratedAt time.Time
	Frameworks  int
	JVMCount    int
	Modes       []ModeResult
}

// Analyze fits every mode of data.
func Analyze(data *bench.Dataset, source string, now time.Time) *Results {
	res := &Results{
		Source:      source,
		GeneratedAt: now,
		Frameworks:  data.Len(),
	}
	for _, f := range data.Frameworks {
		if f.JVM {
			res.JVMCount++
		}
	}
	for _, mode := range bench.Modes {
		res.Modes = append(res.Modes, analyzeMode(data, mode))
	}
	return res
}

func analyzeMode(data *bench.Dataset, mode bench.Mode) ModeResult {
	samples := data.Samples(mode)
	line := trend.Fit(samples)

	mr := ModeResult{
		Mode:       mode,
		Line:       line,
		Degenerate: line.Degenerate(),
		RSquared:   math.NaN(),
		Residuals:  make([]Residual, len(samples)),
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = s.X, s.Y
		f := data.Frameworks[i]
		predicted := line.At(s.X)
		mr.Residuals[i] = Residual{
			Name:      f.Name,
			JVM:       f.JVM,
			X:         s.X,
			Y:         s.Y,
			Predicted: predicted,
			Residual:  s.Y - predicted,
		}
	}
	if !mr.Degenerate {
		mr.RSquared = stat.RSquared(xs, ys, nil, line.Intercept(), line.Slope())
	}

	sort.SliceStable(mr.Residuals, func(i, j int) bool {
		return mr.Residuals[i].Residual > mr.Residuals[j].Residual
	})
	return mr
}

// Mode returns the result for mode.
func (r *Results) Mode(mode bench.Mode) (ModeResult, bool) {
	for _, mr := range r.Modes {
		if mr.Mode == mode {
			return mr, true
		}
	}
	return ModeResult{}, false
}
