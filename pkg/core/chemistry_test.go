package core

import (
	"math"
	"strings"
	"testing"
)

func TestCalculatePeptideMass(t *testing.T) {
	tests := []struct {
		name          string
		sequence      string
		charge        int
		modifications []Modification
		wantMZ        float64
		tolerance     float64
	}{
		{
			name:      "simple peptide charge 1",
			sequence:  "AAA",
			charge:    1,
			wantMZ:    232.129, // Approximate
			tolerance: 0.1,
		},
		{
			name:      "simple peptide charge 2",
			sequence:  "AAA",
			charge:    2,
			wantMZ:    116.569, // Approximate
			tolerance: 0.1,
		},
		{
			name:     "peptide with modification",
			sequence: "PEPTIDE",
			charge:   2,
			modifications: []Modification{
				{Mass: 57.021464, Position: 0},
			},
			wantMZ:    429.2, // Approximate
			tolerance: 1.0,
		},
		{
			name:      "zero charge",
			sequence:  "AAA",
			charge:    0,
			wantMZ:    0,
			tolerance: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePeptideMass(tt.sequence, tt.charge, tt.modifications)
			if math.Abs(got-tt.wantMZ) > tt.tolerance {
				t.Errorf("CalculatePeptideMass() = %.3f, want %.3f (within %.3f)", got, tt.wantMZ, tt.tolerance)
			}
		})
	}
}

func TestCalculateNeutralMass(t *testing.T) {
	tests := []struct {
		name          string
		sequence      string
		modifications []Modification
		wantMass      float64
		tolerance     float64
	}{
		{
			name:      "simple tripeptide",
			sequence:  "AAA",
			wantMass:  231.121, // Approximate neutral mass
			tolerance: 0.1,
		},
		{
			name:     "with modification",
			sequence: "AAA",
			modifications: []Modification{
				{Mass: 57.021464, Position: 0},
			},
			wantMass:  288.143, // Approximate
			tolerance: 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateNeutralMass(tt.sequence, tt.modifications)
			if math.Abs(got-tt.wantMass) > tt.tolerance {
				t.Errorf("CalculateNeutralMass() = %.3f, want %.3f (within %.3f)", got, tt.wantMass, tt.tolerance)
			}
		})
	}
}

func TestStripSequence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PEPTIDE", "PEPTIDE"},
		{"n[305]AAAAC[160]LR", "AAAACLR"},
		{"_M(UniMod:35)PEPTIDEK_", "MPEPTIDEK"},
		{"C[+57.021]PEK", "CPEK"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := StripSequence(tt.in); got != tt.want {
				t.Errorf("StripSequence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestModDatabaseLoadFromCSV(t *testing.T) {
	db := NewModDatabase()
	input := "mod,massshift,aa\nCustom,12.5,K\nOther, -1.25 ,\n"
	if err := db.LoadFromCSV(strings.NewReader(input)); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}
	if mass, ok := db.GetMass("Custom"); !ok || mass != 12.5 {
		t.Errorf("GetMass(Custom) = %v, %v; want 12.5, true", mass, ok)
	}
	if mass, ok := db.GetMass("Other"); !ok || mass != -1.25 {
		t.Errorf("GetMass(Other) = %v, %v; want -1.25, true", mass, ok)
	}

	if err := db.LoadFromCSV(strings.NewReader("mod,mass\nBad,abc\n")); err == nil {
		t.Error("LoadFromCSV() expected error for invalid mass")
	}
}

func TestDefaultModDatabase(t *testing.T) {
	db := DefaultModDatabase()
	if mass, ok := db.GetMass("Carbamidomethyl"); !ok || math.Abs(mass-57.021464) > 1e-9 {
		t.Errorf("GetMass(Carbamidomethyl) = %v, %v", mass, ok)
	}
	if _, ok := db.GetMass("NotAMod"); ok {
		t.Error("GetMass(NotAMod) should be absent")
	}
}
