package table

import (
	"errors"
	"strings"
	"testing"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/google/go-cmp/cmp"
)

func TestReadSpectraST(t *testing.T) {
	input := strings.Join([]string{
		"PrecursorMz,FullUniModPeptideName,ProductMz,LibraryIntensity,PrecursorCharge,transition_group_id,ProteinName,Decoy",
		"500.5,PEPTIDEK,300.1,100,2,1_PEPTIDEK_2,1/protA,0",
		"500.5,PEPTIDEK,200.2,50,2,1_PEPTIDEK_2,1/protA,0",
		"400.2,DECOYPEP,250.0,10,2,2_DECOYPEP_2,1/DECOY_protA,1",
	}, "\n")

	specs, err := Read(strings.NewReader(input), ',')
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	want := []*core.Spectrum{
		{
			Peptide:      "DECOYPEP",
			Sequence:     "DECOYPEP",
			Charge:       2,
			PrecursorMZ:  400.2,
			Identifier:   "2_DECOYPEP_2",
			ProteinName:  "1/DECOY_protA",
			Peaks:        []core.Peak{{MZ: 250, Intensity: 10}},
			SourceFormat: "table",
		},
		{
			Peptide:      "PEPTIDEK",
			Sequence:     "PEPTIDEK",
			Charge:       2,
			PrecursorMZ:  500.5,
			Identifier:   "1_PEPTIDEK_2",
			ProteinName:  "1/protA",
			Peaks:        []core.Peak{{MZ: 300.1, Intensity: 100}, {MZ: 200.2, Intensity: 50}},
			SourceFormat: "table",
		},
	}
	if diff := cmp.Diff(want, specs); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFragPipeTSV(t *testing.T) {
	input := "PrecursorMz\tModifiedPeptideSequence\tProductMz\tLibraryIntensity\tPrecursorCharge\tPeptideSequence\tProteinId\n" +
		"600.3\tM[147]PEK\t100.0\t5000\t3\tMPEK\tsp|Q1|Y\n"

	specs, err := Read(strings.NewReader(input), '\t')
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("got %d spectra, want 1", len(specs))
	}
	if specs[0].Peptide != "M[147]PEK" || specs[0].Sequence != "MPEK" || specs[0].Charge != 3 || specs[0].ProteinName != "sp|Q1|Y" {
		t.Errorf("unexpected spectrum %+v", specs[0])
	}
}

func TestReadMissingColumns(t *testing.T) {
	input := "PrecursorMz,transition_group_id,ProductMz,PrecursorCharge\n500,a,100,2\n"

	_, err := Read(strings.NewReader(input), ',')
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Read() error = %v, want *core.ValidationError", err)
	}
	want := "Missing values: [FullUniModPeptideName, LibraryIntensity, ProteinName]"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not contain %q", err, want)
	}
}

func TestDetectSource(t *testing.T) {
	tests := []struct {
		header  []string
		want    Source
		wantErr error
	}{
		{[]string{"PrecursorMz", "transition_group_id"}, SpectraST, nil},
		{[]string{"PrecursorMz", "ProteinId"}, FragPipe, nil},
		{[]string{"PrecursorMz", "RelativeIntensity"}, Prosit, nil},
		{[]string{"mz", "intensity"}, "", ErrUnknownSource},
	}
	for _, tt := range tests {
		got, err := DetectSource(tt.header)
		if got != tt.want || !errors.Is(err, tt.wantErr) {
			t.Errorf("DetectSource(%v) = %q, %v; want %q, %v", tt.header, got, err, tt.want, tt.wantErr)
		}
	}
}
