package scale

import (
	"math"
	"strconv"
)

type siPrefix struct {
	exp    int
	symbol string
}

var siPrefixes = []siPrefix{
	{-24, "y"}, {-21, "z"}, {-18, "a"}, {-15, "f"}, {-12, "p"}, {-9, "n"}, {-6, "µ"}, {-3, "m"},
	{0, ""},
	{3, "k"}, {6, "M"}, {9, "G"}, {12, "T"}, {15, "P"}, {18, "E"}, {21, "Z"}, {24, "Y"},
}

// FormatSI formats v with an SI prefix. A precision of zero yields the
// shortest representation ("20k", "1.5M"); a positive precision rounds to
// that many significant digits and keeps trailing zeros ("33.8k", "1.00k").
func FormatSI(v float64, precision int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if math.IsInf(v, 1) {
		return "Infinity"
	}
	if math.IsInf(v, -1) {
		return "-Infinity"
	}
	if v == 0 {
		if precision > 0 {
			return strconv.FormatFloat(0, 'f', precision-1, 64)
		}
		return "0"
	}

	if precision > 0 {
		v = roundSignificant(v, precision)
	}
	p := prefixFor(v)
	scaled := v / math.Pow(10, float64(p.exp))

	var num string
	if precision > 0 {
		decimals := precision - 1 - int(math.Floor(math.Log10(math.Abs(scaled))))
		if decimals < 0 {
			decimals = 0
		}
		num = strconv.FormatFloat(scaled, 'f', decimals, 64)
	} else {
		num = strconv.FormatFloat(roundSignificant(scaled, 12), 'f', -1, 64)
	}
	return num + p.symbol
}

// AxisFormat is the tick label format: shortest SI representation.
func AxisFormat(v float64) string { return FormatSI(v, 0) }

// RateFormat formats request rates with three significant digits.
func RateFormat(v float64) string { return FormatSI(v, 3) }

func prefixFor(v float64) siPrefix {
	exp := int(math.Floor(1e-12 + math.Log10(math.Abs(v))))
	i := int(math.Floor(float64(exp)/3)) * 3
	if i < -24 {
		i = -24
	}
	if i > 24 {
		i = 24
	}
	return siPrefixes[8+i/3]
}

func roundSignificant(v float64, digits int) float64 {
	if v == 0 {
		return 0
	}
	s := strconv.FormatFloat(v, 'e', digits-1, 64)
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return v
	}
	return r
}
