package domain

import (
	"encoding/json"
)

// ReferenceProtocolFrames is the frame count artifact windows are expressed against.
const ReferenceProtocolFrames = 220

// AnalysisParameters drives artifact removal, baseline and peak detection.
type AnalysisParameters struct {
	ArtifactStartFrame int  `json:"artifact_start_frame" yaml:"artifact_start_frame" validate:"min=0,max=220"`
	ArtifactEndFrame   int  `json:"artifact_end_frame" yaml:"artifact_end_frame" validate:"min=0,max=220"`
	BaselineFrameCount int  `json:"baseline_frame_count" yaml:"baseline_frame_count" validate:"min=1"`
	PeakStartFrame     int  `json:"peak_start_frame" yaml:"peak_start_frame" validate:"min=0"`
	RemoveArtifact     bool `json:"remove_artifact" yaml:"remove_artifact"`
	FitPeaks           bool `json:"fit_peaks" yaml:"fit_peaks"`
}

// DefaultAnalysisParameters matches the standard 220-frame ATP protocol.
func DefaultAnalysisParameters() AnalysisParameters {
	return AnalysisParameters{
		ArtifactStartFrame: 18,
		ArtifactEndFrame:   30,
		BaselineFrameCount: 15,
		PeakStartFrame:     20,
	}
}

// UnmarshalJSON starts from the defaults so partial documents are accepted.
func (p *AnalysisParameters) UnmarshalJSON(data []byte) error {
	type alias AnalysisParameters
	a := alias(DefaultAnalysisParameters())
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = AnalysisParameters(a)
	return nil
}

// PeakFit is the result of a converged peak-shape fit.
type PeakFit struct {
	Amplitude   float64   `json:"amplitude"`
	Center      float64   `json:"center"`
	Sigma       float64   `json:"sigma"`
	TauRise     float64   `json:"tau_rise"`
	TauDecay    float64   `json:"tau_decay"`
	RiseTime    float64   `json:"rise_time"`
	FWHM        *float64  `json:"fwhm"`
	AUC         float64   `json:"auc"`
	FittedCurve []float64 `json:"-"`
}

// MetricSet holds the per-well kinetics. Fit is nil when fitting was
// disabled or did not converge.
type MetricSet struct {
	WellID       string   `json:"well_id"`
	Peak         float64  `json:"peak"`
	TimeToPeak   float64  `json:"time_to_peak"`
	AUC          float64  `json:"auc"`
	BaselineMean float64  `json:"baseline_mean"`
	RawBaseline  float64  `json:"raw_baseline"`
	Fit          *PeakFit `json:"fit,omitempty"`
	FitError     string   `json:"fit_error,omitempty"`
}

// MarshalJSON encodes non-finite metrics as null.
func (m MetricSet) MarshalJSON() ([]byte, error) {
	out := struct {
		WellID       string      `json:"well_id"`
		Peak         *float64    `json:"peak"`
		TimeToPeak   *float64    `json:"time_to_peak"`
		AUC          *float64    `json:"auc"`
		BaselineMean *float64    `json:"baseline_mean"`
		RawBaseline  *float64    `json:"raw_baseline"`
		Fit          interface{} `json:"fit,omitempty"`
		FitError     string      `json:"fit_error,omitempty"`
	}{
		WellID:       m.WellID,
		Peak:         Nullable(m.Peak),
		TimeToPeak:   Nullable(m.TimeToPeak),
		AUC:          Nullable(m.AUC),
		BaselineMean: Nullable(m.BaselineMean),
		RawBaseline:  Nullable(m.RawBaseline),
		FitError:     m.FitError,
	}
	if m.Fit != nil {
		out.Fit = m.Fit
	}
	return json.Marshal(out)
}

// Stat summarizes one metric over a set of wells. SD and SEM are NaN for
// fewer than two values; NaN inputs propagate.
type Stat struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	SEM  float64 `json:"sem"`
	CV   float64 `json:"cv"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// MarshalJSON encodes non-finite fields as null.
func (s Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		N    int      `json:"n"`
		Mean *float64 `json:"mean"`
		SD   *float64 `json:"sd"`
		SEM  *float64 `json:"sem"`
		CV   *float64 `json:"cv"`
		Min  *float64 `json:"min"`
		Max  *float64 `json:"max"`
	}{s.N, Nullable(s.Mean), Nullable(s.SD), Nullable(s.SEM), Nullable(s.CV), Nullable(s.Min), Nullable(s.Max)})
}

// Group is a derived set of wells sharing one metadata key.
type Group struct {
	Name    string   `json:"name"`
	WellIDs []string `json:"well_ids"`
}

// GroupSummary carries the per-metric statistics and mean traces for a group.
type GroupSummary struct {
	Group
	Peak         Stat      `json:"peak"`
	TimeToPeak   Stat      `json:"time_to_peak"`
	AUC          Stat      `json:"auc"`
	BaselineMean Stat      `json:"baseline_mean"`
	Normalized   *Stat     `json:"normalized,omitempty"`
	MeanTrace    []float64 `json:"-"`
	SEMTrace     []float64 `json:"-"`
}

// NormalizedWell is a well's peak expressed as percent of its sample's ionomycin response.
type NormalizedWell struct {
	WellID     string  `json:"well_id"`
	SampleID   string  `json:"sample_id"`
	Peak       float64 `json:"peak"`
	Reference  float64 `json:"reference"`
	Normalized float64 `json:"normalized"`
}

// MarshalJSON encodes non-finite values as null.
func (n NormalizedWell) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		WellID     string   `json:"well_id"`
		SampleID   string   `json:"sample_id"`
		Peak       *float64 `json:"peak"`
		Reference  *float64 `json:"reference"`
		Normalized *float64 `json:"normalized"`
	}{n.WellID, n.SampleID, Nullable(n.Peak), Nullable(n.Reference), Nullable(n.Normalized)})
}
