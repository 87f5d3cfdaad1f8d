package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flipr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		yaml        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without file",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 18, cfg.Analysis.ArtifactStartFrame)
				assert.Equal(t, 30, cfg.Analysis.ArtifactEndFrame)
				assert.Equal(t, 15, cfg.Analysis.BaselineFrameCount)
				assert.Equal(t, 20, cfg.Analysis.PeakStartFrame)
				assert.False(t, cfg.Analysis.FitPeaks)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.NotEmpty(t, cfg.Paths.BaseDir)
			},
		},
		{
			name: "file overrides defaults",
			yaml: "analysis:\n  fit_peaks: true\n  baseline_frame_count: 10\nserver:\n  read_timeout: 5s\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Analysis.FitPeaks)
				assert.Equal(t, 10, cfg.Analysis.BaselineFrameCount)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 20, cfg.Analysis.PeakStartFrame, "keys absent from the file keep defaults")
			},
		},
		{
			name: "env overrides file",
			yaml: "analysis:\n  workers: 2\n",
			env:  map[string]string{"FLIPR_ANALYSIS_WORKERS": "6", "FLIPR_ANALYSIS_REMOVE_ARTIFACT": "true"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 6, cfg.Analysis.Workers)
				assert.True(t, cfg.Analysis.RemoveArtifact)
			},
		},
		{
			name: "explicit base dir is made absolute",
			env:  map[string]string{"FLIPR_PATHS_BASE_DIR": "."},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.True(t, filepath.IsAbs(cfg.Paths.BaseDir))
			},
		},
		{
			name:    "invalid baseline count",
			env:     map[string]string{"FLIPR_ANALYSIS_BASELINE_FRAME_COUNT": "0"},
			wantErr: true,
		},
		{
			name:    "unknown trace exporter",
			yaml:    "telemetry:\n  trace_exporter: jaeger\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "server: [",
			wantErr: true,
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"FLIPR_ANALYSIS_WORKERS": "many"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeYAML(t, tt.yaml)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "port zero", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "no upload budget", mutate: func(c *Config) { c.Server.MaxUploadBytes = 0 }, wantErr: true},
		{name: "rate limit without burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }, wantErr: true},
		{name: "disabled rate limit ignores burst", mutate: func(c *Config) { c.RateLimit.Enabled = false; c.RateLimit.Burst = 0 }},
		{name: "artifact end beyond protocol", mutate: func(c *Config) { c.Analysis.ArtifactEndFrame = 221 }, wantErr: true},
		{name: "negative workers", mutate: func(c *Config) { c.Analysis.Workers = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_NormalizesLogging(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "syslog"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.validate())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, filepath.Join(DefaultLogsDir, DefaultLogFile), cfg.Logging.FilePath)
}

func TestAnalysisConfig_Parameters(t *testing.T) {
	cfg := Default()
	cfg.Analysis.FitPeaks = true
	cfg.Analysis.PeakStartFrame = 25

	params := cfg.Analysis.Parameters()
	assert.True(t, params.FitPeaks)
	assert.Equal(t, 25, params.PeakStartFrame)
	assert.Equal(t, 18, params.ArtifactStartFrame)
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:9000", ServerConfig{Host: "127.0.0.1", Port: 9000}.Addr())
	assert.Equal(t, ":8080", ServerConfig{Port: 8080}.Addr())
}
