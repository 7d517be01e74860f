package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"benchsite/internal/bench"
	"benchsite/internal/cfg"
	"benchsite/internal/chart"
	"benchsite/internal/report"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		source     = flag.String("source", "", "Dataset source: embedded, a YAML file or an http(s) URL (overrides config)")
		outputPath = flag.String("output", "", "Output directory for reports (overrides config)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		withCharts = flag.Bool("charts", true, "Also write the chart as SVG for every mode")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *source != "" {
		config.DatasetSource = *source
	}
	if *outputPath == "" {
		*outputPath = filepath.Join(config.ReportDir, time.Now().Format("20060102_150405"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*config.RESTTimeout)
	defer cancel()

	data, err := bench.NewLoader(config.RESTTimeout).Load(ctx, config.DatasetSource)
	if err != nil {
		log.Fatal().Err(err).Str("source", config.DatasetSource).Msg("Failed to load dataset")
	}
	log.Info().Str("source", config.DatasetSource).Int("frameworks", data.Len()).Msg("Dataset loaded")

	results := report.Analyze(data, config.DatasetSource, time.Now())
	reporter := report.NewReporter(results, *outputPath)
	if err := reporter.GenerateReport(); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate report")
	}

	if *withCharts {
		if err := writeCharts(data, config.Chart, *outputPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to write charts")
		}
	}

	reporter.PrintSummary()
	fmt.Printf("\nReports written to %s\n", *outputPath)
}

func writeCharts(data *bench.Dataset, config chart.Config, dir string) error {
	c, err := chart.New(data, config)
	if err != nil {
		return err
	}

	for _, mode := range bench.Modes {
		view, err := c.UpdateView(mode)
		if err != nil {
			return err
		}

		path := filepath.Join(dir, fmt.Sprintf("chart_%s.svg", mode))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		err = chart.RenderSVG(f, view)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		log.Info().Str("file", path).Msg("Chart written")
	}
	return nil
}
