package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"benchsite/internal/chart"
	"benchsite/internal/common"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	Port            int
	DataPath        string
	DatasetSource   string
	DatasetRefresh  string // cron spec, empty disables refresh
	PurgeSchedule   string // cron spec for expired flag cleanup
	RESTTimeout     time.Duration
	ShutdownTimeout time.Duration
	NoticeName      string
	NoticeTTL       time.Duration
	NoticeStore     string
	LogLevel        string
	LogPretty       bool
	ReportDir       string
	Chart           chart.Config
}

// ChartFile fields are pointers so an explicit zero in the file is kept.
type ChartFile struct {
	Width          *float64 `yaml:"width"`
	Height         *float64 `yaml:"height"`
	XPadding       *float64 `yaml:"xPadding"`
	YPadding       *float64 `yaml:"yPadding"`
	XDomainMax     *float64 `yaml:"xDomainMax"`
	YDomainMax     *float64 `yaml:"yDomainMax"`
	Ticks          *int     `yaml:"ticks"`
	LabelThreshold *float64 `yaml:"labelThreshold"`
	TrendX1        *float64 `yaml:"trendX1"`
	TrendX2        *float64 `yaml:"trendX2"`
	Highlight      *string  `yaml:"highlight"`
}

type ConfigFile struct {
	Server struct {
		Port            int    `yaml:"port"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Dataset struct {
		Source      string `yaml:"source"`
		Refresh     string `yaml:"refresh"`
		RESTTimeout string `yaml:"restTimeout"`
	} `yaml:"dataset"`

	Chart ChartFile `yaml:"chart"`

	Notice struct {
		Name  string `yaml:"name"`
		TTL   string `yaml:"ttl"`
		Store string `yaml:"store"`
	} `yaml:"notice"`

	System struct {
		DataPath      string `yaml:"dataPath"`
		PurgeSchedule string `yaml:"purgeSchedule"`
		LogLevel      string `yaml:"logLevel"`
		LogPretty     bool   `yaml:"logPretty"`
		ReportDir     string `yaml:"reportDir"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		Port:            getIntFromEnvOrConfig(common.EnvPort, config.Server.Port, common.DefaultPort),
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		DatasetSource:   getEnvOrDefault(common.EnvDatasetSource, orDefault(config.Dataset.Source, common.DefaultDatasetSource)),
		DatasetRefresh:  getEnvOrDefault(common.EnvDatasetRefresh, config.Dataset.Refresh),
		PurgeSchedule:   getEnvOrDefault(common.EnvPurgeSchedule, orDefault(config.System.PurgeSchedule, common.DefaultPurgeSchedule)),
		RESTTimeout:     durationFromEnvOrConfig(common.EnvRESTTimeout, config.Dataset.RESTTimeout, common.DefaultRESTTimeout),
		ShutdownTimeout: durationFromEnvOrConfig(common.EnvShutdownTimeout, config.Server.ShutdownTimeout, common.DefaultShutdownTimeout),
		NoticeName:      getEnvOrDefault(common.EnvNoticeName, orDefault(config.Notice.Name, common.DefaultNoticeName)),
		NoticeTTL:       durationFromEnvOrConfig(common.EnvNoticeTTL, config.Notice.TTL, common.DefaultNoticeTTL),
		NoticeStore:     getEnvOrDefault(common.EnvNoticeStore, orDefault(config.Notice.Store, common.DefaultNoticeStore)),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		LogPretty:       getBoolFromEnvOrConfig(common.EnvLogPretty, config.System.LogPretty),
		ReportDir:       getEnvOrDefault(common.EnvReportDir, orDefault(config.System.ReportDir, common.DefaultReportDir)),
		Chart:           chartFromFile(config.Chart),
	}
	applyChartEnv(&settings.Chart)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Port:            getIntOrDefault(common.EnvPort, common.DefaultPort),
		DataPath:        os.Getenv(common.EnvDataPath), // optional
		DatasetSource:   getEnvOrDefault(common.EnvDatasetSource, common.DefaultDatasetSource),
		DatasetRefresh:  os.Getenv(common.EnvDatasetRefresh),
		PurgeSchedule:   getEnvOrDefault(common.EnvPurgeSchedule, common.DefaultPurgeSchedule),
		RESTTimeout:     durationFromEnvOrConfig(common.EnvRESTTimeout, "", common.DefaultRESTTimeout),
		ShutdownTimeout: durationFromEnvOrConfig(common.EnvShutdownTimeout, "", common.DefaultShutdownTimeout),
		NoticeName:      getEnvOrDefault(common.EnvNoticeName, common.DefaultNoticeName),
		NoticeTTL:       durationFromEnvOrConfig(common.EnvNoticeTTL, "", common.DefaultNoticeTTL),
		NoticeStore:     getEnvOrDefault(common.EnvNoticeStore, common.DefaultNoticeStore),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogPretty:       getBoolOrDefault(common.EnvLogPretty, false),
		ReportDir:       getEnvOrDefault(common.EnvReportDir, common.DefaultReportDir),
		Chart:           chart.DefaultConfig(),
	}
	applyChartEnv(&settings.Chart)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// chartFromFile overlays the values present in the file on the default geometry.
func chartFromFile(f ChartFile) chart.Config {
	c := chart.DefaultConfig()
	setFloat(&c.Width, f.Width)
	setFloat(&c.Height, f.Height)
	setFloat(&c.XPadding, f.XPadding)
	setFloat(&c.YPadding, f.YPadding)
	setFloat(&c.XDomainMax, f.XDomainMax)
	setFloat(&c.YDomainMax, f.YDomainMax)
	setFloat(&c.LabelThreshold, f.LabelThreshold)
	setFloat(&c.TrendX1, f.TrendX1)
	setFloat(&c.TrendX2, f.TrendX2)
	if f.Ticks != nil {
		c.Ticks = *f.Ticks
	}
	if f.Highlight != nil {
		c.Highlight = *f.Highlight
	}
	return c
}

func applyChartEnv(c *chart.Config) {
	c.Highlight = getEnvOrDefault(common.EnvHighlight, c.Highlight)
	c.LabelThreshold = getFloatOrDefault(common.EnvLabelThreshold, c.LabelThreshold)
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// durationFromEnvOrConfig parses the env value, then the config value, then
// the default; unparsable values fall through to the next source.
func durationFromEnvOrConfig(key, configValue, defaultValue string) time.Duration {
	for _, v := range []string{os.Getenv(key), configValue, defaultValue} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 0
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}

	if settings.DatasetSource == "" {
		return fmt.Errorf("dataset source cannot be empty")
	}
	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if settings.DatasetRefresh != "" {
		if _, err := parser.Parse(settings.DatasetRefresh); err != nil {
			return fmt.Errorf("invalid dataset refresh schedule %q: %w", settings.DatasetRefresh, err)
		}
	}
	if settings.PurgeSchedule != "" {
		if _, err := parser.Parse(settings.PurgeSchedule); err != nil {
			return fmt.Errorf("invalid purge schedule %q: %w", settings.PurgeSchedule, err)
		}
	}

	if settings.NoticeName == "" || strings.ContainsAny(settings.NoticeName, "=;, \t") {
		return fmt.Errorf("notice name %q is not a valid cookie name", settings.NoticeName)
	}
	if settings.NoticeTTL < time.Minute || settings.NoticeTTL > 365*24*time.Hour {
		return fmt.Errorf("notice TTL must be between 1m and 365d, got %v", settings.NoticeTTL)
	}
	switch settings.NoticeStore {
	case common.NoticeStoreCookie:
	case common.NoticeStoreBolt:
		if settings.DataPath == "" {
			return fmt.Errorf("notice store %q requires a data path", common.NoticeStoreBolt)
		}
	default:
		return fmt.Errorf("notice store must be %q or %q, got %q", common.NoticeStoreCookie, common.NoticeStoreBolt, settings.NoticeStore)
	}

	switch settings.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error; got %q", settings.LogLevel)
	}

	if err := settings.Chart.Validate(); err != nil {
		return err
	}

	return nil
}
