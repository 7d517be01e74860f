// Package chart builds the EC2-versus-dedicated-hardware scatter chart of
// the benchmark article. A Chart is built once per dataset; UpdateView
// produces the declarative view for a plotting mode, which RenderSVG turns
// into an SVG document.
package chart

import (
	"fmt"

	"benchsite/internal/bench"
	"benchsite/internal/scale"
	"benchsite/internal/trend"
)

// Config holds the chart geometry.
type Config struct {
	Width, Height      float64
	XPadding, YPadding float64
	XDomainMax         float64
	YDomainMax         float64
	Ticks              int
	// LabelThreshold is the actual EC2 rate above which a point gets a name label.
	LabelThreshold float64
	// TrendX1 and TrendX2 bound the drawn trend segment, in data units.
	TrendX1, TrendX2 float64
	// Highlight names the framework drawn with the extra highlight class.
	Highlight string
	XTitle    string
	YTitle    string
}

// DefaultConfig returns the geometry used on the article page.
func DefaultConfig() Config {
	return Config{
		Width:          680,
		Height:         400,
		XPadding:       30,
		YPadding:       20,
		XDomainMax:     240000,
		YDomainMax:     50000,
		Ticks:          10,
		LabelThreshold: 13000,
		TrendX1:        50000,
		TrendX2:        230000,
		Highlight:      "spray",
		XTitle:         "peak requests/sec (dedicated hardware)",
		YTitle:         "peak requests/sec (EC2 m1.large)",
	}
}

// Validate checks the geometry is drawable.
func (c Config) Validate() error {
	if c.Width <= 2*c.XPadding || c.Height <= 2*c.YPadding {
		return fmt.Errorf("chart %gx%g too small for padding %g/%g", c.Width, c.Height, c.XPadding, c.YPadding)
	}
	if c.XDomainMax <= 0 || c.YDomainMax <= 0 {
		return fmt.Errorf("chart domains must be positive, got x=%g y=%g", c.XDomainMax, c.YDomainMax)
	}
	if c.TrendX1 >= c.TrendX2 {
		return fmt.Errorf("trend segment [%g, %g] is empty", c.TrendX1, c.TrendX2)
	}
	if c.Ticks <= 0 {
		return fmt.Errorf("tick count must be positive, got %d", c.Ticks)
	}
	return nil
}

// Chart is immutable after New and safe for concurrent use.
type Chart struct {
	cfg    Config
	data   *bench.Dataset
	x, y   scale.Linear
	trends map[bench.Mode]trend.FittedLine
	xTicks []Tick
	yTicks []Tick
}

// New fits the trend line of every mode and prepares the axes.
func New(data *bench.Dataset, cfg Config) (*Chart, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("chart: empty dataset")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}

	x, err := scale.NewLinear(0, cfg.XDomainMax, cfg.XPadding, cfg.Width-cfg.XPadding)
	if err != nil {
		return nil, err
	}
	y, err := scale.NewLinear(0, cfg.YDomainMax, cfg.Height-cfg.YPadding, cfg.YPadding)
	if err != nil {
		return nil, err
	}

	c := &Chart{
		cfg:    cfg,
		data:   data,
		x:      x,
		y:      y,
		trends: make(map[bench.Mode]trend.FittedLine, len(bench.Modes)),
	}
	for _, m := range bench.Modes {
		c.trends[m] = data.Trend(m)
	}
	c.xTicks = makeTicks(x, cfg.Ticks)
	c.yTicks = makeTicks(y, cfg.Ticks)
	return c, nil
}

// Config returns the chart geometry.
func (c *Chart) Config() Config { return c.cfg }

// Dataset returns the dataset the chart was built from.
func (c *Chart) Dataset() *bench.Dataset { return c.data }

// Trend returns the fitted line for mode.
func (c *Chart) Trend(mode bench.Mode) (trend.FittedLine, error) {
	line, ok := c.trends[mode]
	if !ok {
		return trend.FittedLine{}, fmt.Errorf("%w: %d", bench.ErrUnknownMode, int(mode))
	}
	return line, nil
}

// Position maps a framework to pixel coordinates for mode.
func (c *Chart) Position(f bench.Framework, mode bench.Mode) (px, py float64) {
	return c.x.Map(f.Dedicated.Rate(mode)), c.y.Map(f.EC2.Rate(mode))
}

// UpdateView computes the complete view for mode: point positions, trend
// segment, axes. Labels and classes do not depend on mode; only positions,
// tooltips and the trend segment do.
func (c *Chart) UpdateView(mode bench.Mode) (View, error) {
	line, err := c.Trend(mode)
	if err != nil {
		return View{}, err
	}

	v := View{
		Mode:   mode,
		Width:  c.cfg.Width,
		Height: c.cfg.Height,
		Points: make([]Point, 0, c.data.Len()),
		XAxis: Axis{
			Title:  c.cfg.XTitle,
			Offset: c.cfg.Height - c.cfg.YPadding,
			Ticks:  c.xTicks,
		},
		YAxis: Axis{
			Title:  c.cfg.YTitle,
			Offset: c.cfg.XPadding,
			Ticks:  c.yTicks,
		},
		Trend: c.segment(line),
	}

	for _, f := range c.data.Frameworks {
		px, py := c.Position(f, mode)
		p := Point{
			Name:        f.Name,
			X:           px,
			Y:           py,
			Class:       "data-point actual",
			CircleClass: "no-jvm",
			Tooltip:     bench.TooltipFor(f, mode),
		}
		if f.Name == c.cfg.Highlight {
			p.Class = c.cfg.Highlight + " " + p.Class
		}
		if f.JVM {
			p.CircleClass = "jvm"
		}
		// labelling uses the measured rate in every mode
		if f.EC2.RPS > c.cfg.LabelThreshold {
			p.Label = f.Name
		}
		v.Points = append(v.Points, p)
	}
	return v, nil
}

func (c *Chart) segment(line trend.FittedLine) Segment {
	s := Segment{
		Slope:     Number(line.Slope()),
		Intercept: Number(line.Intercept()),
		X1:        Number(c.x.Map(c.cfg.TrendX1)),
		Y1:        Number(c.y.Map(line.At(c.cfg.TrendX1))),
		X2:        Number(c.x.Map(c.cfg.TrendX2)),
		Y2:        Number(c.y.Map(line.At(c.cfg.TrendX2))),
	}
	s.Degenerate = line.Degenerate() || !s.Y1.Finite() || !s.Y2.Finite()
	return s
}

func makeTicks(s scale.Linear, n int) []Tick {
	values := s.Ticks(n)
	ticks := make([]Tick, len(values))
	for i, v := range values {
		ticks[i] = Tick{Value: v, Pos: s.Map(v), Label: scale.AxisFormat(v)}
	}
	return ticks
}
