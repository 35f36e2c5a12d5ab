// Package calibrate estimates the systematic ppm offset of fragment matches
// and the tolerance around it that separates true matches from noise.
package calibrate

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ChrisMcGann/DIAKey/pkg/match"
)

// DefaultBins is the histogram resolution used when none is configured.
const DefaultBins = 200

// ErrNoData is returned when there are no ppm values to estimate from.
var ErrNoData = errors.New("no matched peaks to calibrate from")

// Estimate is a ppm offset with a symmetric tolerance around it.
type Estimate struct {
	Offset    float64
	Tolerance float64
}

// Contains reports whether ppm lies in [Offset-Tolerance, Offset+Tolerance].
func (e Estimate) Contains(ppm float64) bool {
	return ppm >= e.Offset-e.Tolerance && ppm <= e.Offset+e.Tolerance
}

// StdDev returns the mean as offset and k population standard deviations
// as tolerance.
func StdDev(ppms []float64, k float64) (Estimate, error) {
	if len(ppms) == 0 {
		return Estimate{}, ErrNoData
	}
	mean, std := stat.PopMeanStdDev(ppms, nil)
	return Estimate{Offset: mean, Tolerance: k * std}, nil
}

// Histogram bins the ppm values and takes the center of the tallest bin as
// offset. The tolerance reaches from there to the farther of the first bins
// on either side that fall to the noise floor, the median bin height.
func Histogram(ppms []float64, bins int) (Estimate, error) {
	if len(ppms) == 0 {
		return Estimate{}, ErrNoData
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	x := make([]float64, len(ppms))
	copy(x, ppms)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		return Estimate{Offset: lo}, nil
	}

	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	// stat.Histogram bins are half open; nudge the top edge so max is counted.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	heights := stat.Histogram(nil, dividers, x, nil)

	center := func(i int) float64 { return (dividers[i] + dividers[i+1]) / 2 }

	tallest := floats.MaxIdx(heights)
	idx := noiseBoundary(heights, tallest)
	return Estimate{
		Offset:    center(tallest),
		Tolerance: math.Abs(center(tallest) - center(idx)),
	}, nil
}

// noiseBoundary walks out from the tallest bin in both directions to the
// first bin at or below the median height, returning whichever is farther.
// Ties go left. Without a crossing the walk ends at the edge.
func noiseBoundary(heights []float64, tallest int) int {
	sorted := make([]float64, len(heights))
	copy(sorted, heights)
	sort.Float64s(sorted)
	floor := median(sorted)

	left := 0
	for i := tallest - 1; i >= 0; i-- {
		if heights[i] <= floor {
			left = i
			break
		}
	}
	right := len(heights) - 1
	for i := tallest + 1; i < len(heights); i++ {
		if heights[i] <= floor {
			right = i
			break
		}
	}
	if right-tallest > tallest-left {
		return right
	}
	return left
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Filter keeps the matches whose ppm lies within the estimate.
func Filter(matches []match.Match, est Estimate) []match.Match {
	out := make([]match.Match, 0, len(matches))
	for _, m := range matches {
		if est.Contains(m.PPM) {
			out = append(out, m)
		}
	}
	return out
}
