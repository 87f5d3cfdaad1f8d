package kinetics

import (
	"math"
)

// Peak is a local maximum with its topographic prominence.
type Peak struct {
	Index      int
	Value      float64
	Prominence float64
}

// FindPeaks returns local maxima whose prominence is at least minProminence.
// Flat tops report their middle sample. Endpoints are never peaks.
func FindPeaks(y []float64, minProminence float64) []Peak {
	var peaks []Peak
	for _, i := range localMaxima(y) {
		prom := prominence(y, i)
		if prom >= minProminence {
			peaks = append(peaks, Peak{Index: i, Value: y[i], Prominence: prom})
		}
	}
	return peaks
}

func localMaxima(y []float64) []int {
	var out []int
	n := len(y)
	i := 1
	for i < n-1 {
		if y[i-1] < y[i] {
			ahead := i + 1
			for ahead < n-1 && y[ahead] == y[i] {
				ahead++
			}
			if y[ahead] < y[i] {
				left, right := i, ahead-1
				out = append(out, (left+right)/2)
				i = ahead
			}
		}
		i++
	}
	return out
}

// prominence is the height of the peak above the higher of the two lowest
// points reachable on either side before climbing above the peak.
func prominence(y []float64, p int) float64 {
	leftMin := y[p]
	for j := p - 1; j >= 0 && y[j] <= y[p]; j-- {
		leftMin = math.Min(leftMin, y[j])
	}
	rightMin := y[p]
	for j := p + 1; j < len(y) && y[j] <= y[p]; j++ {
		rightMin = math.Min(rightMin, y[j])
	}
	return y[p] - math.Max(leftMin, rightMin)
}

// MostProminent returns the highest of the detected peaks.
func MostProminent(peaks []Peak) (Peak, bool) {
	if len(peaks) == 0 {
		return Peak{}, false
	}
	best := peaks[0]
	for _, p := range peaks[1:] {
		if p.Value > best.Value {
			best = p
		}
	}
	return best, true
}

// RiseTime is the 10-90% rise time before the sample nearest to peakTime.
// It is undefined when the peak is the first sample.
func RiseTime(t, v []float64, peakTime float64) (float64, bool) {
	if len(t) == 0 || len(t) != len(v) {
		return 0, false
	}
	peakIdx := nearest(t, peakTime)
	if peakIdx == 0 {
		return 0, false
	}
	maxVal := v[peakIdx]
	rising := v[:peakIdx]
	t10 := nearest(rising, 0.1*maxVal)
	t90 := nearest(rising, 0.9*maxVal)
	return t[t90] - t[t10], true
}

// FWHM is the distance between the first upward crossing of half maximum
// and the first downward crossing after it.
func FWHM(t, v []float64) (float64, bool) {
	if len(v) < 2 || len(t) != len(v) {
		return 0, false
	}
	maxVal := math.Inf(-1)
	for _, x := range v {
		if x > maxVal {
			maxVal = x
		}
	}
	half := maxVal / 2

	rise := -1
	for i := 0; i < len(v)-1; i++ {
		above, next := v[i] >= half, v[i+1] >= half
		if rise < 0 {
			if !above && next {
				rise = i
			}
			continue
		}
		if above && !next {
			return t[i] - t[rise], true
		}
	}
	return 0, false
}

// nearest returns the first index minimizing |s[i]-target|.
func nearest(s []float64, target float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, x := range s {
		if d := math.Abs(x - target); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
