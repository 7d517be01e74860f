// Package bench holds the web-framework benchmark dataset shown on the
// benchmarking article: per framework, the peak request rate measured on an
// EC2 instance and on dedicated hardware, both as measured and as projected
// from latency.
package bench

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"benchsite/internal/trend"

	"gopkg.in/yaml.v3"
)

//go:embed frameworks.yaml
var embeddedFrameworks []byte

var (
	// ErrUnknownFramework is returned by Lookup for names not in the dataset.
	ErrUnknownFramework = errors.New("unknown framework")
	// ErrUnknownMode is returned by ParseMode for unrecognised mode names.
	ErrUnknownMode = errors.New("unknown mode")
)

// Mode selects which rate of a tier is plotted.
type Mode int

const (
	// Actual plots the measured peak rates.
	Actual Mode = iota
	// Projected plots the rates projected from latency.
	Projected
)

// Modes lists every mode in display order.
var Modes = []Mode{Actual, Projected}

func (m Mode) String() string {
	switch m {
	case Actual:
		return "actual"
	case Projected:
		return "projected"
	default:
		return "unknown"
	}
}

// ParseMode accepts "actual" or "projected", case-insensitively.
// The empty string selects Actual.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "actual":
		return Actual, nil
	case "projected":
		return Projected, nil
	default:
		return Actual, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m != Actual && m != Projected {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Tier is one hardware setup's result for a framework.
type Tier struct {
	RPS       float64 `yaml:"rps" json:"rps"`
	Projected float64 `yaml:"projected" json:"projected"`
	Conc      int     `yaml:"conc" json:"conc"`
	Latency   float64 `yaml:"latency" json:"latency"`
}

// Rate returns the rate plotted for mode.
func (t Tier) Rate(mode Mode) float64 {
	if mode == Projected {
		return t.Projected
	}
	return t.RPS
}

// Framework is one row of the benchmark.
type Framework struct {
	Name      string `yaml:"name" json:"name"`
	JVM       bool   `yaml:"jvm" json:"jvm"`
	EC2       Tier   `yaml:"ec2" json:"ec2"`
	Dedicated Tier   `yaml:"dedicated" json:"dedicated"`
}

// Dataset is an ordered, validated list of frameworks.
type Dataset struct {
	Frameworks []Framework `yaml:"frameworks" json:"frameworks"`
	index      map[string]int
}

// Default returns the embedded benchmark dataset.
func Default() (*Dataset, error) {
	return Parse(embeddedFrameworks)
}

// Parse decodes and validates a YAML dataset.
func Parse(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if err := ds.validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}
	return &ds, nil
}

func (d *Dataset) validate() error {
	if len(d.Frameworks) == 0 {
		return errors.New("no frameworks")
	}

	d.index = make(map[string]int, len(d.Frameworks))
	for i, f := range d.Frameworks {
		if f.Name == "" {
			return fmt.Errorf("framework #%d: empty name", i)
		}
		if _, dup := d.index[f.Name]; dup {
			return fmt.Errorf("framework %s: duplicate name", f.Name)
		}
		for tierName, t := range map[string]Tier{"ec2": f.EC2, "dedicated": f.Dedicated} {
			if err := validateTier(t); err != nil {
				return fmt.Errorf("framework %s: %s: %w", f.Name, tierName, err)
			}
		}
		d.index[f.Name] = i
	}
	return nil
}

func validateTier(t Tier) error {
	for _, v := range []float64{t.RPS, t.Projected, t.Latency} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value %v out of range", v)
		}
	}
	if t.Conc < 0 {
		return fmt.Errorf("concurrency %d out of range", t.Conc)
	}
	return nil
}

// Len returns the number of frameworks.
func (d *Dataset) Len() int { return len(d.Frameworks) }

// Lookup returns the framework called name.
func (d *Dataset) Lookup(name string) (Framework, error) {
	i, ok := d.index[name]
	if !ok {
		return Framework{}, fmt.Errorf("%w: %s", ErrUnknownFramework, name)
	}
	return d.Frameworks[i], nil
}

// Names returns the framework names sorted alphabetically.
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.Frameworks))
	for _, f := range d.Frameworks {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Samples pairs each framework's dedicated-hardware rate (x) with its EC2
// rate (y) for mode, in dataset order.
func (d *Dataset) Samples(mode Mode) []trend.Sample {
	samples := make([]trend.Sample, len(d.Frameworks))
	for i, f := range d.Frameworks {
		samples[i] = trend.Sample{X: f.Dedicated.Rate(mode), Y: f.EC2.Rate(mode)}
	}
	return samples
}

// Trend fits the EC2-versus-dedicated trend line for mode.
func (d *Dataset) Trend(mode Mode) trend.FittedLine {
	return trend.Fit(d.Samples(mode))
}
