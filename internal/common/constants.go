package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvPort            = "PORT"
	EnvDataPath        = "DATA_PATH"
	EnvDatasetSource   = "DATASET_SOURCE"
	EnvDatasetRefresh  = "DATASET_REFRESH"
	EnvPurgeSchedule   = "PURGE_SCHEDULE"
	EnvRESTTimeout     = "REST_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvNoticeName      = "NOTICE_NAME"
	EnvNoticeTTL       = "NOTICE_TTL"
	EnvNoticeStore     = "NOTICE_STORE"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogPretty       = "LOG_PRETTY"
	EnvReportDir       = "REPORT_DIR"
	EnvHighlight       = "CHART_HIGHLIGHT"
	EnvLabelThreshold  = "CHART_LABEL_THRESHOLD"
)

// Notice store kinds
const (
	NoticeStoreCookie = "cookie"
	NoticeStoreBolt   = "bolt"
)

// Configuration defaults
const (
	DefaultPort            = 8080
	DefaultDatasetSource   = "embedded"
	DefaultRESTTimeout     = "5s"
	DefaultShutdownTimeout = "10s"
	DefaultNoticeName      = "ack-spray-deprecation-note"
	DefaultNoticeTTL       = "24h"
	DefaultNoticeStore     = NoticeStoreCookie
	DefaultLogLevel        = "info"
	DefaultPurgeSchedule   = "@every 1h"
	DefaultReportDir       = "reports"
)

// Cookie names
const (
	VisitorCookie = "benchsite-visitor"
)

// Validation constants
const (
	MinPort = 1024
	MaxPort = 65535
)
