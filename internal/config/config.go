package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// EnvPrefix namespaces every environment variable, e.g. FLIPR_SERVER_PORT.
const EnvPrefix = "FLIPR"

// ConfigFileEnv names the variable that points at an explicit YAML file.
const ConfigFileEnv = "FLIPR_CONFIG_FILE"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Diagnosis DiagnosisConfig `yaml:"diagnosis" envconfig:"DIAGNOSIS"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// MaxUploadBytes caps raw data and metadata uploads.
	MaxUploadBytes int64    `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// AnalysisConfig seeds the pipeline parameters and bounds fitting work.
type AnalysisConfig struct {
	ArtifactStartFrame int  `yaml:"artifact_start_frame" envconfig:"ARTIFACT_START_FRAME"`
	ArtifactEndFrame   int  `yaml:"artifact_end_frame" envconfig:"ARTIFACT_END_FRAME"`
	BaselineFrameCount int  `yaml:"baseline_frame_count" envconfig:"BASELINE_FRAME_COUNT"`
	PeakStartFrame     int  `yaml:"peak_start_frame" envconfig:"PEAK_START_FRAME"`
	RemoveArtifact     bool `yaml:"remove_artifact" envconfig:"REMOVE_ARTIFACT"`
	FitPeaks           bool `yaml:"fit_peaks" envconfig:"FIT_PEAKS"`
	// Workers limits concurrent per-well fits; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers" envconfig:"WORKERS"`
}

// Parameters converts the configured defaults into pipeline parameters.
func (a AnalysisConfig) Parameters() domain.AnalysisParameters {
	return domain.AnalysisParameters{
		ArtifactStartFrame: a.ArtifactStartFrame,
		ArtifactEndFrame:   a.ArtifactEndFrame,
		BaselineFrameCount: a.BaselineFrameCount,
		PeakStartFrame:     a.PeakStartFrame,
		RemoveArtifact:     a.RemoveArtifact,
		FitPeaks:           a.FitPeaks,
	}
}

// DiagnosisConfig points at a persisted test configuration. An empty
// ConfigFile means the built-in defaults.
type DiagnosisConfig struct {
	ConfigFile string `yaml:"config_file" envconfig:"CONFIG_FILE"`
}

// PathsConfig contains file system paths configuration. Relative entries are
// resolved against BaseDir, which defaults to the executable directory.
type PathsConfig struct {
	BaseDir    string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LayoutsDir string `yaml:"layouts_dir" envconfig:"LAYOUTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	WebDir     string `yaml:"web_dir" envconfig:"WEB_DIR"`
}

// TelemetryConfig controls tracing and metrics export.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	ServiceVersion string `yaml:"service_version" envconfig:"SERVICE_VERSION"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	EnableTracing  bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics  bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	// TraceExporter is "stdout" or "none".
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
	WriteWait       time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT"`
	MaxMessageSize  int64         `yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE"`
}

// Load builds the configuration from defaults, an optional YAML file and
// FLIPR_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit YAML path. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg. Keys absent from the file keep
// their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolvePaths fills BaseDir from the executable location when unset.
func (c *Config) resolvePaths() error {
	if c.Paths.BaseDir != "" {
		abs, err := filepath.Abs(c.Paths.BaseDir)
		if err != nil {
			return err
		}
		c.Paths.BaseDir = abs
		return nil
	}
	dir, err := executableDir()
	if err != nil {
		return err
	}
	c.Paths.BaseDir = dir
	return nil
}

// ResolvedPaths returns the absolute directory layout for this config.
func (c *Config) ResolvedPaths() *Paths {
	return NewPaths(c.Paths)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive rps and burst")
	}

	a := c.Analysis
	if a.ArtifactStartFrame < 0 || a.ArtifactEndFrame > domain.ReferenceProtocolFrames {
		return fmt.Errorf("artifact window must lie within 0..%d", domain.ReferenceProtocolFrames)
	}
	if a.BaselineFrameCount < 1 {
		return fmt.Errorf("baseline frame count must be at least 1")
	}
	if a.PeakStartFrame < 0 {
		return fmt.Errorf("peak start frame must not be negative")
	}
	if a.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	switch strings.ToLower(c.Telemetry.TraceExporter) {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}

	// Logs are always structured JSON.
	c.Logging.Format = "json"

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(DefaultLogsDir, DefaultLogFile)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		return explicit
	}

	// Check for config file in common locations
	locations := []string{
		"flipr.yaml",
		"configs/flipr.yaml",
		"../configs/flipr.yaml",
	}

	for _, location := range locations {
		if FileExists(location) {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	params := domain.DefaultAnalysisParameters()
	return &Config{
		Server: ServerConfig{
			Host:            "",
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  DefaultMaxUploadBytes,
			AllowedOrigins:  []string{"http://localhost:8080"},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: filepath.Join(DefaultLogsDir, DefaultLogFile),
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     DefaultRateLimit,
			Burst:   DefaultBurstSize,
		},
		Analysis: AnalysisConfig{
			ArtifactStartFrame: params.ArtifactStartFrame,
			ArtifactEndFrame:   params.ArtifactEndFrame,
			BaselineFrameCount: params.BaselineFrameCount,
			PeakStartFrame:     params.PeakStartFrame,
			RemoveArtifact:     params.RemoveArtifact,
			FitPeaks:           params.FitPeaks,
		},
		Paths: PathsConfig{
			DataDir:    DefaultDataDir,
			ReportsDir: DefaultReportsDir,
			LayoutsDir: DefaultLayoutsDir,
			LogsDir:    DefaultLogsDir,
			WebDir:     DefaultWebDir,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			ServiceVersion: AppVersion,
			Environment:    "development",
			EnableTracing:  false,
			EnableMetrics:  true,
			TraceExporter:  "none",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
			WriteWait:       10 * time.Second,
			MaxMessageSize:  512,
		},
	}
}
