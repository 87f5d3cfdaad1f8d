package config

import (
	"time"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts"
)

// Application constants
const (
	// Application Info
	AppName    = "flipr-analysis"
	AppVersion = contracts.Version

	// Server
	DefaultPort           = 8080
	DefaultMaxUploadBytes = 32 << 20

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// WebSocket
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultReportsDir = "data/reports"
	DefaultLayoutsDir = "data/layouts"
	DefaultLogsDir    = "logs"
	DefaultWebDir     = "web"
	DefaultLogFile    = "flipr.log"

	// Well-known file names
	DiagnosisConfigFileName = "diagnosis_config.json"
	WorkbookFileName        = "flipr_results.xlsx"
	MetricsCSVFileName      = "well_metrics.csv"
)
