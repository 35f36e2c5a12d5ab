package calibrate

import (
	"errors"
	"math"
	"testing"

	"github.com/ChrisMcGann/DIAKey/pkg/match"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestStdDev(t *testing.T) {
	ppms := []float64{7, 8, 9, 10, 11, 12, 13}
	tests := []struct {
		k    float64
		want Estimate
	}{
		{1, Estimate{Offset: 10, Tolerance: 2}},
		{2, Estimate{Offset: 10, Tolerance: 4}},
	}
	for _, tt := range tests {
		got, err := StdDev(ppms, tt.k)
		if err != nil {
			t.Fatalf("StdDev(k=%v) error = %v", tt.k, err)
		}
		if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("StdDev(k=%v) mismatch (-want +got):\n%s", tt.k, diff)
		}
	}
}

func TestNoData(t *testing.T) {
	if _, err := StdDev(nil, 1); !errors.Is(err, ErrNoData) {
		t.Errorf("StdDev(nil) error = %v, want ErrNoData", err)
	}
	if _, err := Histogram(nil, 0); !errors.Is(err, ErrNoData) {
		t.Errorf("Histogram(nil) error = %v, want ErrNoData", err)
	}
}

func TestNoiseBoundary(t *testing.T) {
	var heights []float64
	add := func(v float64, n int) {
		for i := 0; i < n; i++ {
			heights = append(heights, v)
		}
	}
	add(1, 11)
	add(50, 3)
	add(100, 1)
	add(50, 2)
	add(1, 11)

	if got := noiseBoundary(heights, 14); got != 10 {
		t.Errorf("noiseBoundary() = %d, want 10", got)
	}
}

func TestNoiseBoundaryEdge(t *testing.T) {
	heights := []float64{7, 6, 9, 1, 1, 1}
	// the left walk never crosses the floor, so it stops at the edge
	if got := noiseBoundary(heights, 2); got != 0 {
		t.Errorf("noiseBoundary() = %d, want 0", got)
	}
}

func TestHistogram(t *testing.T) {
	var ppms []float64
	for v := -100; v < 100; v++ {
		ppms = append(ppms, float64(v))
	}
	for i := 0; i < 99; i++ {
		ppms = append(ppms, 50)
	}
	for i := 0; i < 49; i++ {
		ppms = append(ppms, 49, 51)
	}

	got, err := Histogram(ppms, DefaultBins)
	if err != nil {
		t.Fatalf("Histogram() error = %v", err)
	}
	if math.Abs(got.Offset-50) > 0.5 {
		t.Errorf("offset = %v, want about 50", got.Offset)
	}
	if math.Abs(got.Tolerance-2) > 0.5 {
		t.Errorf("tolerance = %v, want about 2", got.Tolerance)
	}
}

func TestHistogramSingleValue(t *testing.T) {
	got, err := Histogram([]float64{3.5, 3.5, 3.5}, 10)
	if err != nil {
		t.Fatalf("Histogram() error = %v", err)
	}
	if got != (Estimate{Offset: 3.5}) {
		t.Errorf("Histogram() = %+v, want offset 3.5 tolerance 0", got)
	}
}

func TestFilter(t *testing.T) {
	var ms []match.Match
	for i := -5; i <= 5; i++ {
		ms = append(ms, match.Match{PPM: float64(5*i + 6)})
	}
	got := Filter(ms, Estimate{Offset: 0, Tolerance: 11})

	var ppms []float64
	for _, m := range got {
		ppms = append(ppms, m.PPM)
	}
	want := []float64{-9, -4, 1, 6, 11}
	if diff := cmp.Diff(want, ppms); diff != "" {
		t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
	}
}
