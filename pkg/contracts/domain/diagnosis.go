package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// QC test identifiers.
const (
	TestInjectionArtifact       = "injection_artifact"
	TestRawBaselineMin          = "raw_baseline_min"
	TestRawBaselineMax          = "raw_baseline_max"
	TestRawBaselineMeanRange    = "raw_baseline_mean_range"
	TestRawBaselineSD           = "raw_baseline_sd"
	TestDFFBaselineZero         = "dff_baseline_zero"
	TestDFFReturnToBaseline     = "dff_return_to_baseline"
	TestPeakHeightRange         = "peak_height_range"
	TestPeakWidthRange          = "peak_width_range"
	TestAUCRange                = "auc_range"
	TestPositiveControlResponse = "positive_control_response"
	TestNegativeControlResponse = "negative_control_response"
	TestIonomycinAdequacy       = "ionomycin_adequacy"
	TestATPAdequacy             = "atp_adequacy"
	TestReplicateCV             = "replicate_cv"
)

// ColumnRange is a closed interval of 1-based plate columns.
type ColumnRange struct {
	From int `json:"from" validate:"min=1,max=12"`
	To   int `json:"to" validate:"min=1,max=12,gtefield=From"`
}

// Contains reports whether the 0-based column col falls in the range.
func (r ColumnRange) Contains(col int) bool {
	return col >= r.From-1 && col < r.To
}

// Overlaps reports whether the two ranges share a column.
func (r ColumnRange) Overlaps(o ColumnRange) bool {
	return r.From <= o.To && o.From <= r.To
}

func (r ColumnRange) String() string {
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// TestConfig enables a QC test and sets its thresholds. A nil parameter is absent.
type TestConfig struct {
	Enabled bool     `json:"enabled"`
	Param1  *float64 `json:"param1"`
	Param2  *float64 `json:"param2"`
}

// DiagnosisConfig describes plate columns, QC thresholds and the risk cut-off.
type DiagnosisConfig struct {
	PositiveControl     ColumnRange           `json:"positive_control"`
	NegativeControl     ColumnRange           `json:"negative_control"`
	BufferControl       ColumnRange           `json:"buffer_control"`
	BufferEnabled       bool                  `json:"buffer_enabled"`
	Samples             ColumnRange           `json:"samples"`
	Tests               map[string]TestConfig `json:"tests"`
	AutismRiskThreshold float64               `json:"autism_risk_threshold" validate:"min=0"`
	Metadata            map[string]string     `json:"metadata"`
	Parameters          AnalysisParameters    `json:"analysis_parameters"`
}

func ptr(v float64) *float64 { return &v }

// DefaultTestConfigs returns the factory QC thresholds.
func DefaultTestConfigs() map[string]TestConfig {
	return map[string]TestConfig{
		TestInjectionArtifact:       {Enabled: true},
		TestRawBaselineMin:          {Enabled: true, Param1: ptr(500)},
		TestRawBaselineMax:          {Enabled: true, Param1: ptr(50000)},
		TestRawBaselineMeanRange:    {Enabled: true, Param1: ptr(1000), Param2: ptr(40000)},
		TestRawBaselineSD:           {Enabled: true, Param1: ptr(5000)},
		TestDFFBaselineZero:         {Enabled: true, Param1: ptr(0.05)},
		TestDFFReturnToBaseline:     {Enabled: true, Param1: ptr(0.1), Param2: ptr(10)},
		TestPeakHeightRange:         {Enabled: true, Param1: ptr(0.5), Param2: ptr(10)},
		TestPeakWidthRange:          {Enabled: false},
		TestAUCRange:                {Enabled: false, Param1: ptr(0)},
		TestPositiveControlResponse: {Enabled: true, Param1: ptr(50), Param2: ptr(150)},
		TestNegativeControlResponse: {Enabled: true, Param1: ptr(0), Param2: ptr(20)},
		TestIonomycinAdequacy:       {Enabled: false},
		TestATPAdequacy:             {Enabled: false},
		TestReplicateCV:             {Enabled: true, Param1: ptr(30)},
	}
}

// DefaultDiagnosisConfig returns the standard plate map: positive controls in
// columns 1-2, negative 3-4, buffer 5 and samples 6-12.
func DefaultDiagnosisConfig() DiagnosisConfig {
	return DiagnosisConfig{
		PositiveControl:     ColumnRange{From: 1, To: 2},
		NegativeControl:     ColumnRange{From: 3, To: 4},
		BufferControl:       ColumnRange{From: 5, To: 5},
		BufferEnabled:       true,
		Samples:             ColumnRange{From: 6, To: 12},
		Tests:               DefaultTestConfigs(),
		AutismRiskThreshold: 20,
		Metadata:            map[string]string{},
		Parameters:          DefaultAnalysisParameters(),
	}
}

// Test returns the configuration for id, falling back to disabled.
func (c DiagnosisConfig) Test(id string) TestConfig {
	if tc, ok := c.Tests[id]; ok {
		return tc
	}
	return TestConfig{}
}

// Warning is a non-fatal configuration finding.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OverlapWarnings lists every pair of active column ranges that share a column.
func (c DiagnosisConfig) OverlapWarnings() []Warning {
	type named struct {
		name string
		r    ColumnRange
	}
	ranges := []named{
		{"positive control", c.PositiveControl},
		{"negative control", c.NegativeControl},
	}
	if c.BufferEnabled {
		ranges = append(ranges, named{"buffer control", c.BufferControl})
	}
	ranges = append(ranges, named{"samples", c.Samples})

	var warnings []Warning
	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].r.Overlaps(ranges[j].r) {
				warnings = append(warnings, Warning{
					Code: "column_overlap",
					Message: fmt.Sprintf("%s columns %s overlap %s columns %s",
						ranges[i].name, ranges[i].r, ranges[j].name, ranges[j].r),
				})
			}
		}
	}
	return warnings
}

// UnmarshalJSON layers the document over the defaults. Each test entry is
// merged field by field; unknown keys and unknown tests are ignored.
func (c *DiagnosisConfig) UnmarshalJSON(data []byte) error {
	type alias DiagnosisConfig
	aux := struct {
		*alias
		Tests map[string]json.RawMessage `json:"tests"`
	}{}

	def := DefaultDiagnosisConfig()
	a := alias(def)
	aux.alias = &a
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	a.Tests = DefaultTestConfigs()
	for id, raw := range aux.Tests {
		base, known := a.Tests[id]
		if !known {
			continue
		}
		if err := json.Unmarshal(raw, &base); err != nil {
			return fmt.Errorf("test %s: %w", id, err)
		}
		a.Tests[id] = base
	}
	if a.Metadata == nil {
		a.Metadata = map[string]string{}
	}

	*c = DiagnosisConfig(a)
	return nil
}

// Diagnosis statuses.
const (
	StatusPositive = "POSITIVE"
	StatusNegative = "NEGATIVE"
	StatusInvalid  = "INVALID"
	StatusMissing  = "missing"
)

// Group analysis statuses.
const (
	GroupOK      = "ok"
	GroupMissing = "missing"
	GroupError   = "error"
)

// GroupAnalysis is the per-group statistics computed before QC.
type GroupAnalysis struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	WellIDs     []string `json:"well_ids"`
	RawBaseline Stat     `json:"raw_baseline"`
	DFFBaseline Stat     `json:"dff_baseline"`
	Peak        Stat     `json:"peak"`
	TimeToPeak  Stat     `json:"time_to_peak"`
	AUC         Stat     `json:"auc"`
	Normalized  Stat     `json:"normalized"`
	EndLevel    Stat     `json:"end_level"`
}

// Usable reports whether the group can take part in QC evaluation.
func (g *GroupAnalysis) Usable() bool {
	return g != nil && g.Status == GroupOK
}

// TestResult is the outcome of one QC test.
type TestResult struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Passed      bool   `json:"passed"`
	Message     string `json:"message"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// SampleDiagnosis is the final call for one sample.
type SampleDiagnosis struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Value   *float64 `json:"value,omitempty"`
}

// Controls holds the control group analyses. Buffer is nil when disabled.
type Controls struct {
	Positive *GroupAnalysis `json:"positive"`
	Negative *GroupAnalysis `json:"negative"`
	Buffer   *GroupAnalysis `json:"buffer,omitempty"`
}

// DiagnosisResult is the immutable snapshot of one diagnostic run.
type DiagnosisResult struct {
	RunID     string                     `json:"run_id"`
	CreatedAt time.Time                  `json:"created_at"`
	Controls  Controls                   `json:"controls"`
	Samples   map[string]*GroupAnalysis  `json:"samples"`
	SampleIDs []string                   `json:"sample_ids"`
	Tests     map[string]TestResult      `json:"tests"`
	TestOrder []string                   `json:"test_order"`
	Diagnosis map[string]SampleDiagnosis `json:"diagnosis"`
	QCPassed  bool                       `json:"qc_passed"`
	Warnings  []Warning                  `json:"warnings,omitempty"`
	Stages    []string                   `json:"stages"`
	Threshold float64                    `json:"autism_risk_threshold"`
}
