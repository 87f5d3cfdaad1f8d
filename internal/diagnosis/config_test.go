package diagnosis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

func TestValidate(t *testing.T) {
	warnings, err := Validate(domain.DefaultDiagnosisConfig())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	overlapping := domain.DefaultDiagnosisConfig()
	overlapping.NegativeControl = domain.ColumnRange{From: 2, To: 4}
	warnings, err = Validate(overlapping)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "column_overlap", warnings[0].Code)
}

func TestValidate_StructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *domain.DiagnosisConfig)
	}{
		{name: "column below 1", mutate: func(c *domain.DiagnosisConfig) { c.PositiveControl.From = 0 }},
		{name: "column above 12", mutate: func(c *domain.DiagnosisConfig) { c.Samples.To = 13 }},
		{name: "inverted range", mutate: func(c *domain.DiagnosisConfig) { c.NegativeControl = domain.ColumnRange{From: 4, To: 3} }},
		{name: "negative threshold", mutate: func(c *domain.DiagnosisConfig) { c.AutismRiskThreshold = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultDiagnosisConfig()
			tt.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, apierrors.IsType(err, apierrors.ErrTypeConfig))
		})
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	cfg := domain.DefaultDiagnosisConfig()
	cfg.BufferEnabled = false
	cfg.AutismRiskThreshold = 35
	cfg.Metadata["operator"] = "jd"
	tc := cfg.Tests[domain.TestAUCRange]
	tc.Enabled = true
	tc.Param2 = fptr(12.5)
	cfg.Tests[domain.TestAUCRange] = tc
	cv := cfg.Tests[domain.TestReplicateCV]
	cv.Param1 = nil
	cfg.Tests[domain.TestReplicateCV] = cv

	path := filepath.Join(t.TempDir(), "nested", "diagnosis.json")
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestUnmarshalConfig_Defaults(t *testing.T) {
	cfg, err := UnmarshalConfig([]byte(`{"autism_risk_threshold": 25, "unknown": true, "tests": {"replicate_cv": {"enabled": false}}}`))
	require.NoError(t, err)

	def := domain.DefaultDiagnosisConfig()
	assert.Equal(t, 25.0, cfg.AutismRiskThreshold)
	assert.Equal(t, def.Samples, cfg.Samples)
	assert.False(t, cfg.Tests[domain.TestReplicateCV].Enabled)
	assert.Equal(t, def.Tests[domain.TestReplicateCV].Param1, cfg.Tests[domain.TestReplicateCV].Param1)
	assert.Equal(t, def.Tests[domain.TestRawBaselineMin], cfg.Tests[domain.TestRawBaselineMin])
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeStorage))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err = LoadConfig(path)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeConfig))
}
