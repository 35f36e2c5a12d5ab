package msp

import (
	"math"
	"strings"
	"testing"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/google/go-cmp/cmp"
)

const sampleMSP = `Name: AAAC[160]K/2
MW: 580.3
Comment: Parent=300.5 Protein="1/sp|P1|X human" Mods=1/3,C,Carbamidomethyl
Num peaks: 3
100.1	200	"y1/0.0ppm"
200.2	500	"b2"
300.3	50

Name: PEPTIDE/3_0
Comment: Protein=DECOY_p2
Num peaks: 2
150	10
250	20
`

func TestReader(t *testing.T) {
	r := NewReader(strings.NewReader(sampleMSP), nil)

	var got []*core.Spectrum
	for r.Next() {
		got = append(got, r.Spectrum())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d spectra, want 2", len(got))
	}

	first := got[0]
	if first.Peptide != "AAAC[160]K" || first.Charge != 2 || first.PrecursorMZ != 300.5 {
		t.Errorf("first spectrum = %s mz %v", first.Name(), first.PrecursorMZ)
	}
	if first.Sequence != "AAACK" {
		t.Errorf("Sequence = %q, want AAACK", first.Sequence)
	}
	if first.ProteinName != "1/sp|P1|X human" {
		t.Errorf("ProteinName = %q", first.ProteinName)
	}
	wantMods := []core.Modification{{Mass: 57.021464, Position: 3, Name: "Carbamidomethyl"}}
	if diff := cmp.Diff(wantMods, first.Modifications); diff != "" {
		t.Errorf("Modifications mismatch (-want +got):\n%s", diff)
	}
	wantPeaks := []core.Peak{
		{MZ: 100.1, Intensity: 200, Annotation: "y1"},
		{MZ: 200.2, Intensity: 500, Annotation: "b2"},
		{MZ: 300.3, Intensity: 50},
	}
	if diff := cmp.Diff(wantPeaks, first.Peaks); diff != "" {
		t.Errorf("Peaks mismatch (-want +got):\n%s", diff)
	}
	if first.IsDecoy() {
		t.Error("first spectrum flagged as decoy")
	}

	second := got[1]
	if second.Peptide != "PEPTIDE" || second.Charge != 3 {
		t.Errorf("second spectrum = %s", second.Name())
	}
	if !second.IsDecoy() {
		t.Error("second spectrum should be a decoy")
	}
	wantMZ := core.CalculatePeptideMass("PEPTIDE", 3, nil)
	if math.Abs(second.PrecursorMZ-wantMZ) > 1e-9 {
		t.Errorf("computed PrecursorMZ = %v, want %v", second.PrecursorMZ, wantMZ)
	}
	if second.Identifier != "PEPTIDE/3" {
		t.Errorf("Identifier = %q", second.Identifier)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad charge", "Name: PEPTIDE/x\nNum peaks: 1\n100 1\n"},
		{"bad peak", "Name: PEPTIDE/2\nNum peaks: 1\n100\n"},
		{"bad num peaks", "Name: PEPTIDE/2\nNum peaks: many\n"},
		{"missing peak list", "Name: PEPTIDE/2\nComment: Parent=300\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input), nil)
			for r.Next() {
			}
			if r.Err() == nil {
				t.Error("expected an error")
			}
		})
	}
}
