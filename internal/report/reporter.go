package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"benchsite/internal/scale"

	"github.com/rs/zerolog/log"
)

// Reporter generates dataset reports
type Reporter struct {
	results    *Results
	outputPath string
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
	}
}

// GenerateReport generates all report formats
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	for _, mr := range r.results.Modes {
		if err := r.generateResiduals(mr); err != nil {
			return err
		}
	}

	if err := r.generateJSONReport(); err != nil {
		return err
	}

	return nil
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "trend_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	r.WriteSummary(file)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// WriteSummary writes the human-readable summary to w.
func (r *Reporter) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "BENCHMARK TREND SUMMARY\n")
	fmt.Fprintf(w, "=======================\n\n")
	fmt.Fprintf(w, "Source: %s\n", r.results.Source)
	fmt.Fprintf(w, "Generated: %s\n", r.results.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Frameworks: %d (%d on the JVM)\n", r.results.Frameworks, r.results.JVMCount)

	for _, mr := range r.results.Modes {
		title := fmt.Sprintf("%s RATES", strings.ToUpper(mr.Mode.String()))
		fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
		fmt.Fprintf(w, "Trend: %s\n", mr.Line)
		if mr.Degenerate {
			fmt.Fprintf(w, "Trend is undefined: dedicated rates have no variance\n")
			continue
		}
		fmt.Fprintf(w, "R squared: %.4f\n", mr.RSquared)

		n := min(3, len(mr.Residuals))
		fmt.Fprintf(w, "Furthest above the trend:\n")
		for _, res := range mr.Residuals[:n] {
			fmt.Fprintf(w, "  %s: %s rps\n", res.Name, scale.RateFormat(res.Residual))
		}
		fmt.Fprintf(w, "Furthest below the trend:\n")
		for i := len(mr.Residuals) - 1; i >= len(mr.Residuals)-n; i-- {
			res := mr.Residuals[i]
			fmt.Fprintf(w, "  %s: %s rps\n", res.Name, scale.RateFormat(res.Residual))
		}
	}
}

// generateResiduals writes one CSV row per framework for mr.
func (r *Reporter) generateResiduals(mr ModeResult) error {
	csvPath := filepath.Join(r.outputPath, fmt.Sprintf("residuals_%s.csv", mr.Mode))
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create residuals file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"Framework", "JVM", "Dedicated", "EC2", "Predicted", "Residual"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, res := range mr.Residuals {
		record := []string{
			res.Name,
			strconv.FormatBool(res.JVM),
			fmt.Sprintf("%.0f", res.X),
			fmt.Sprintf("%.0f", res.Y),
			fmt.Sprintf("%.2f", res.Predicted),
			fmt.Sprintf("%.2f", res.Residual),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write residuals: %w", err)
	}

	log.Info().Str("file", csvPath).Str("mode", mr.Mode.String()).Msg("Residuals generated")
	return nil
}

type jsonMode struct {
	Mode       string     `json:"mode"`
	Slope      *float64   `json:"slope"`
	Intercept  *float64   `json:"intercept"`
	RSquared   *float64   `json:"r_squared"`
	Degenerate bool       `json:"degenerate"`
	Residuals  []Residual `json:"residuals,omitempty"`
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "trend_results.json")

	modes := make([]jsonMode, 0, len(r.results.Modes))
	for _, mr := range r.results.Modes {
		jm := jsonMode{
			Mode:       mr.Mode.String(),
			Slope:      finiteOrNil(mr.Line.Slope()),
			Intercept:  finiteOrNil(mr.Line.Intercept()),
			RSquared:   finiteOrNil(mr.RSquared),
			Degenerate: mr.Degenerate,
		}
		// Residuals of a degenerate fit are all NaN, which JSON cannot carry.
		if !mr.Degenerate {
			jm.Residuals = mr.Residuals
		}
		modes = append(modes, jm)
	}

	report := map[string]interface{}{
		"summary": map[string]interface{}{
			"source":     r.results.Source,
			"frameworks": r.results.Frameworks,
			"jvm":        r.results.JVMCount,
		},
		"modes":        modes,
		"generated_at": r.results.GeneratedAt,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// PrintSummary prints a summary to console
func (r *Reporter) PrintSummary() {
	fmt.Println()
	r.WriteSummary(os.Stdout)
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
