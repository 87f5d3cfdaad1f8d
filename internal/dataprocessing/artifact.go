package dataprocessing

import (
	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
	"github.com/gddickinson/flipr-calcium-response-analysis-sub000/pkg/contracts/domain"
)

// ArtifactWindow rescales a window given on the 220-frame reference protocol
// to a table of n frames. end is clamped to n.
func ArtifactWindow(n, startFrame, endFrame int) (int, int) {
	start := n * startFrame / domain.ReferenceProtocolFrames
	end := n * endFrame / domain.ReferenceProtocolFrames
	if end > n {
		end = n
	}
	return start, end
}

// ExciseArtifact drops frames [start, end) from the time axis and every well.
// When disabled the input table is returned unchanged.
func ExciseArtifact(t *domain.TraceTable, startFrame, endFrame int, enabled bool) (*domain.TraceTable, error) {
	if !enabled {
		return t, nil
	}

	start, end := ArtifactWindow(t.Frames(), startFrame, endFrame)
	if start < 0 || start >= end {
		return nil, apierrors.NewInvalidRangeError(start, end).
			WithContext("artifact_start_frame", startFrame).
			WithContext("artifact_end_frame", endFrame).
			WithContext("frames", t.Frames())
	}

	times := cutWindow(t.Times(), start, end)
	return t.Map(times, func(_ string, row []float64) []float64 {
		return cutWindow(row, start, end)
	})
}

func cutWindow(s []float64, start, end int) []float64 {
	out := make([]float64, 0, len(s)-(end-start))
	out = append(out, s[:start]...)
	return append(out, s[end:]...)
}
