package kinetics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

// Trapz integrates y over x with the trapezoid rule. A nil x means unit
// spacing. Series of fewer than two points integrate to 0. Pairs with a
// non-finite coordinate are dropped and unsorted x is sorted before
// integrating.
func Trapz(y, x []float64) (float64, error) {
	if len(y) <= 1 {
		return 0, nil
	}

	if x == nil {
		x = make([]float64, len(y))
		for i := range x {
			x[i] = float64(i)
		}
	} else if len(x) != len(y) {
		return 0, apierrors.NewLengthMismatchError(len(x), len(y))
	}

	fx := make([]float64, 0, len(x))
	fy := make([]float64, 0, len(y))
	for i := range x {
		if isFinite(x[i]) && isFinite(y[i]) {
			fx = append(fx, x[i])
			fy = append(fy, y[i])
		}
	}
	if len(fx) <= 1 {
		return 0, nil
	}

	if !sort.Float64sAreSorted(fx) {
		fx, fy = sortPairs(fx, fy)
	}
	return integrate.Trapezoidal(fx, fy), nil
}

// sortPairs orders finite (x, y) pairs by x ascending.
func sortPairs(x, y []float64) ([]float64, []float64) {
	idx := make([]int, len(x))
	xs := append([]float64(nil), x...)
	floats.Argsort(xs, idx)

	ys := make([]float64, len(y))
	for i, j := range idx {
		ys[i] = y[j]
	}
	return xs, ys
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
