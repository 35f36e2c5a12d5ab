package quant

import (
	"math"
	"testing"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type group struct {
	label string
	ions  []float64
}

func proteinRows(groups ...group) []*core.Identification {
	var out []*core.Identification
	n := 0
	for _, g := range groups {
		for _, ion := range g.ions {
			n++
			out = append(out, &core.Identification{
				Peptide:        string(rune('A' + n)),
				LeadingProtein: g.label,
				IonCount:       ion,
			})
		}
	}
	return out
}

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{[]float64{100, 200, 300}, 200},
		{[]float64{500, 400}, 450},
		{[]float64{7}, 7},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := median(tt.in); got != tt.want {
			t.Errorf("median(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestProteinIonCounts(t *testing.T) {
	rows := proteinRows(
		group{"1/protein1", []float64{100, 200, 300}},
		group{"2/protein2/protein3", []float64{400, 500}},
	)
	got, err := ProteinIonCounts(rows)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]float64{"protein1": 200, "protein2": 450, "protein3": 450}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProteinIonCounts() mismatch (-want +got):\n%s", diff)
	}
}

func TestProteinIonCountsBadGroup(t *testing.T) {
	rows := []*core.Identification{{Peptide: "A", Protein: "protein1", IonCount: 1}}
	if _, err := ProteinIonCounts(rows); err == nil {
		t.Error("ProteinIonCounts() should reject a protein without a group count")
	}
}

func TestPeptideIonCounts(t *testing.T) {
	rows := []*core.Identification{
		{Peptide: "PEPA", IonCount: 10},
		{Peptide: "PEPB", IonCount: 20},
		{Peptide: "PEPA", IonCount: 99},
	}
	want := map[string]float64{"PEPA": 10, "PEPB": 20}
	if diff := cmp.Diff(want, PeptideIonCounts(rows)); diff != "" {
		t.Errorf("PeptideIonCounts() mismatch (-want +got):\n%s", diff)
	}
}

func TestProteinPeptides(t *testing.T) {
	rows := []*core.Identification{
		{Peptide: "PEPB", LeadingProtein: "2/P1/P2"},
		{Peptide: "PEPA", LeadingProtein: "2/P1/P2"},
		{Peptide: "PEPA", LeadingProtein: "1/P3"},
		{Peptide: "PEPA", LeadingProtein: "1/P3"},
	}
	got, err := ProteinPeptides(rows)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"P1": {"PEPA", "PEPB"},
		"P2": {"PEPA", "PEPB"},
		"P3": {"PEPA"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProteinPeptides() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewMatrix(t *testing.T) {
	got := NewMatrix([]string{"df1", "df2", "df3"}, []map[string]float64{
		{"p1": 100, "p2": 200, "p3": 300},
		{"p3": 400, "p4": 500, "p5": 600},
		{"p2": 700, "p3": 800, "p4": 900, "p6": 1000},
	})
	want := &Matrix{
		Runs: []string{"df1", "df2", "df3"},
		Keys: []string{"p1", "p2", "p3", "p4", "p5", "p6"},
		Values: [][]float64{
			{100, 200, 300, 0, 0, 0},
			{0, 0, 400, 500, 600, 0},
			{0, 700, 800, 900, 0, 1000},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewMatrix() mismatch (-want +got):\n%s", diff)
	}

	cols := got.Columns([]string{"p4", "missing", "p1"})
	wantCols := [][]float64{{0, 0, 100}, {500, 0, 0}, {900, 0, 0}}
	if diff := cmp.Diff(wantCols, cols); diff != "" {
		t.Errorf("Columns() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{"average": MethodAverage, "MaxLFQ": MethodMaxLFQ, "": MethodAverage} {
		got, err := ParseMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseMethod(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMethod("sum"); err == nil {
		t.Error("ParseMethod(sum) should fail")
	}
}

func TestProteinQuantities(t *testing.T) {
	runs := []string{"test1", "test2"}
	rows := proteinRows(
		group{"1/protein1", []float64{100, 200, 300}},
		group{"2/protein2/protein3", []float64{400, 500}},
	)
	got, err := ProteinQuantities(runs, [][]*core.Identification{rows, rows}, MethodAverage, 1)
	if err != nil {
		t.Fatal(err)
	}
	want := &Matrix{
		Runs:   runs,
		Keys:   []string{"protein1", "protein2", "protein3"},
		Values: [][]float64{{200, 450, 450}, {200, 450, 450}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ProteinQuantities(average) mismatch (-want +got):\n%s", diff)
	}
}

func TestProteinQuantitiesMaxLFQ(t *testing.T) {
	runs := []string{"a", "b", "c"}
	run := func(scale float64, withB bool) []*core.Identification {
		rows := []*core.Identification{
			{Peptide: "PEPA", LeadingProtein: "1/P1", IonCount: 10 * scale},
			{Peptide: "PEPC", LeadingProtein: "1/P2", IonCount: 7 * scale},
		}
		if withB {
			rows = append(rows, &core.Identification{Peptide: "PEPB", LeadingProtein: "1/P1", IonCount: 30 * scale})
		}
		return rows
	}
	got, err := ProteinQuantities(runs, [][]*core.Identification{run(1, true), run(2, true), run(4, false)}, MethodMaxLFQ, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"P1", "P2"}, got.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	for p := range got.Keys {
		a, b, c := got.Values[0][p], got.Values[1][p], got.Values[2][p]
		if a == 0 || b == 0 || c == 0 {
			t.Fatalf("%s: unexpected unquantified run: %v %v %v", got.Keys[p], a, b, c)
		}
		if math.Abs(b/a-2) > 1e-9 || math.Abs(c/a-4) > 1e-9 {
			t.Errorf("%s: ratios b/a=%v c/a=%v, want 2 and 4", got.Keys[p], b/a, c/a)
		}
	}
}

func assertDifferences(t *testing.T, logs []float64, ok []bool, want []float64) {
	t.Helper()
	for i := range want {
		for j := range want {
			if !ok[i] || !ok[j] {
				continue
			}
			got := logs[i] - logs[j]
			if math.Abs(got-(want[i]-want[j])) > 1e-6 {
				t.Errorf("log(%d) - log(%d) = %v, want %v", i, j, got, want[i]-want[j])
			}
		}
	}
}

func TestMaxLFQRatios(t *testing.T) {
	base := []float64{10, 200, 3000, 45}
	scale := []float64{1, 2, 5, 0.5}
	intensities := make([][]float64, len(scale))
	for r, k := range scale {
		for _, v := range base {
			intensities[r] = append(intensities[r], k*v)
		}
	}
	intensities[1][0] = 0
	intensities[3][2] = 0

	logs, ok := MaxLFQ(intensities, 1)
	if diff := cmp.Diff([]bool{true, true, true, true}, ok); diff != "" {
		t.Fatalf("ok mismatch (-want +got):\n%s", diff)
	}
	want := make([]float64, len(scale))
	for i, k := range scale {
		want[i] = math.Log(k)
	}
	assertDifferences(t, logs, ok, want)
}

func TestMaxLFQAnchor(t *testing.T) {
	logs, ok := MaxLFQ([][]float64{{1, math.E}, {math.E, math.E * math.E}}, 1)
	if !ok[0] || !ok[1] {
		t.Fatalf("ok = %v", ok)
	}
	// observed logs 0, 1, 1, 2 have mean 1; the solution keeps that mean
	want := []float64{0.5, 1.5}
	if diff := cmp.Diff(want, logs, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("MaxLFQ() mismatch (-want +got):\n%s", diff)
	}
}

func TestMaxLFQIsolatedRun(t *testing.T) {
	intensities := [][]float64{
		{100, 200, 0, 0},
		{200, 400, 0, 0},
		{0, 0, 50, 60},
	}
	logs, ok := MaxLFQ(intensities, 1)
	if diff := cmp.Diff([]bool{true, true, false}, ok); diff != "" {
		t.Fatalf("ok mismatch (-want +got):\n%s", diff)
	}
	if logs[2] != 0 {
		t.Errorf("isolated run log = %v, want 0", logs[2])
	}
	assertDifferences(t, logs, ok, []float64{0, math.Log(2), 0})
}

func TestMaxLFQMinShared(t *testing.T) {
	intensities := [][]float64{
		{100, 200, 300},
		{200, 0, 0},
	}
	_, ok := MaxLFQ(intensities, 2)
	if diff := cmp.Diff([]bool{false, false}, ok); diff != "" {
		t.Errorf("ok mismatch (-want +got):\n%s", diff)
	}
}

func TestMaxLFQSeparateComponents(t *testing.T) {
	intensities := [][]float64{
		{10, 0},
		{30, 0},
		{0, 5},
		{0, 20},
	}
	logs, ok := MaxLFQ(intensities, 1)
	if diff := cmp.Diff([]bool{true, true, true, true}, ok); diff != "" {
		t.Fatalf("ok mismatch (-want +got):\n%s", diff)
	}
	if d := logs[1] - logs[0]; math.Abs(d-math.Log(3)) > 1e-9 {
		t.Errorf("first component difference = %v, want ln 3", d)
	}
	if d := logs[3] - logs[2]; math.Abs(d-math.Log(4)) > 1e-9 {
		t.Errorf("second component difference = %v, want ln 4", d)
	}
}

// Figure 2 of the MaxLFQ paper: six samples scaled 6:5:4:3:2:1 with a
// sparse peptide pattern.
func TestMaxLFQPaper(t *testing.T) {
	present := [][]bool{
		{false, true, false, false, false, true, false},
		{false, true, true, false, false, true, false},
		{true, true, true, true, false, true, true},
		{true, true, false, true, false, true, true},
		{false, true, false, true, false, false, true},
		{false, true, false, false, true, false, false},
	}
	intensities := make([][]float64, len(present))
	for s, row := range present {
		sample := float64(6 - s)
		for p, ok := range row {
			v := 0.0
			if ok {
				v = sample * math.Pow(10, float64(p-3))
			}
			intensities[s] = append(intensities[s], v)
		}
	}

	logs, ok := MaxLFQ(intensities, 1)
	for i, v := range ok {
		if !v {
			t.Errorf("sample %d not quantified", i)
		}
	}
	want := make([]float64, 6)
	for s := range want {
		want[s] = math.Log(float64(6 - s))
	}
	assertDifferences(t, logs, ok, want)
	if math.Abs(logs[0]-logs[1]-math.Log(6.0/5.0)) > 1e-6 {
		t.Errorf("A - B = %v, want ln(6/5)", logs[0]-logs[1])
	}
}
