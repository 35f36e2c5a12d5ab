package filter

import (
	"testing"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/google/go-cmp/cmp"
)

func TestTopN(t *testing.T) {
	peaks := []core.Peak{
		{MZ: 100, Intensity: 5},
		{MZ: 200, Intensity: 50},
		{MZ: 300, Intensity: 20},
		{MZ: 400, Intensity: 20},
		{MZ: 500, Intensity: 1},
	}

	tests := []struct {
		name string
		n    int
		want []core.Peak
	}{
		{
			name: "keeps most intense",
			n:    2,
			want: []core.Peak{{MZ: 200, Intensity: 50}, {MZ: 300, Intensity: 20}},
		},
		{
			name: "ties keep input order",
			n:    3,
			want: []core.Peak{{MZ: 200, Intensity: 50}, {MZ: 300, Intensity: 20}, {MZ: 400, Intensity: 20}},
		},
		{
			name: "n larger than input",
			n:    10,
			want: peaks,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopN(peaks, tt.n)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("TopN() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if peaks[0].MZ != 100 {
		t.Error("TopN modified its input")
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		peaks  []core.Peak
		want   []core.Peak
	}{
		{
			name:   "top n result sorted by m/z",
			config: Config{TopN: 2},
			peaks: []core.Peak{
				{MZ: 300, Intensity: 10},
				{MZ: 100, Intensity: 30},
				{MZ: 200, Intensity: 1},
			},
			want: []core.Peak{{MZ: 100, Intensity: 30}, {MZ: 300, Intensity: 10}},
		},
		{
			name:   "zero intensity dropped",
			config: Config{},
			peaks:  []core.Peak{{MZ: 100, Intensity: 0}, {MZ: 200, Intensity: 3}},
			want:   []core.Peak{{MZ: 200, Intensity: 3}},
		},
		{
			name:   "intensity cutoff",
			config: Config{IntensityCutoff: 10},
			peaks:  []core.Peak{{MZ: 100, Intensity: 5}, {MZ: 200, Intensity: 100}, {MZ: 300, Intensity: 10}},
			want:   []core.Peak{{MZ: 200, Intensity: 100}, {MZ: 300, Intensity: 10}},
		},
		{
			name:   "ion types",
			config: Config{IonTypes: []string{"y"}},
			peaks: []core.Peak{
				{MZ: 100, Intensity: 5, Annotation: "b2"},
				{MZ: 200, Intensity: 100, Annotation: "y3"},
				{MZ: 300, Intensity: 10},
			},
			want: []core.Peak{{MZ: 200, Intensity: 100, Annotation: "y3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := &core.Spectrum{Peaks: tt.peaks}
			tt.config.Apply(spec)
			if diff := cmp.Diff(tt.want, spec.Peaks); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
