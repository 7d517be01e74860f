package chart

import (
	"math"
	"strconv"

	"benchsite/internal/bench"
)

// Number is a float64 that encodes non-finite values as JSON null.
type Number float64

// Finite reports whether n is neither NaN nor infinite.
func (n Number) Finite() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Finite() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(n), 'g', -1, 64), nil
}

// View is everything needed to draw the chart in one mode.
type View struct {
	Mode   bench.Mode `json:"mode"`
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Points []Point    `json:"points"`
	Trend  Segment    `json:"trend"`
	XAxis  Axis       `json:"xAxis"`
	YAxis  Axis       `json:"yAxis"`
}

// Point is one framework's marker.
type Point struct {
	Name        string        `json:"name"`
	X           float64       `json:"x"`
	Y           float64       `json:"y"`
	Class       string        `json:"class"`
	CircleClass string        `json:"circleClass"`
	Label       string        `json:"label,omitempty"`
	Tooltip     bench.Tooltip `json:"tooltip"`
}

// Segment is the drawn part of the trend line, in pixels.
type Segment struct {
	Slope      Number `json:"slope"`
	Intercept  Number `json:"intercept"`
	X1         Number `json:"x1"`
	Y1         Number `json:"y1"`
	X2         Number `json:"x2"`
	Y2         Number `json:"y2"`
	Degenerate bool   `json:"degenerate"`
}

// Axis is a chart axis. Offset is the y of the x axis or the x of the y axis.
type Axis struct {
	Title  string  `json:"title"`
	Offset float64 `json:"offset"`
	Ticks  []Tick  `json:"ticks"`
}

// Tick is an axis tick.
type Tick struct {
	Value float64 `json:"value"`
	Pos   float64 `json:"pos"`
	Label string  `json:"label"`
}

// Point returns the point for name, or false.
func (v View) Point(name string) (Point, bool) {
	for _, p := range v.Points {
		if p.Name == name {
			return p, true
		}
	}
	return Point{}, false
}
