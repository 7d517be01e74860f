package bench

import (
	"fmt"

	"benchsite/internal/scale"
)

// Tooltip is the hover text for one framework.
type Tooltip struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// TooltipFor describes f's rates for mode, e.g. "EC2: 33.8k rps at 256 conns".
func TooltipFor(f Framework, mode Mode) Tooltip {
	return Tooltip{
		Title: f.Name,
		Lines: []string{
			tierLine("EC2", f.EC2, mode),
			tierLine("i7", f.Dedicated, mode),
		},
	}
}

func tierLine(label string, t Tier, mode Mode) string {
	return fmt.Sprintf("%s: %s rps at %d conns", label, scale.RateFormat(t.Rate(mode)), t.Conc)
}
