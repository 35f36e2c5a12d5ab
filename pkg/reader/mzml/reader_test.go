package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func encode64(values []float64, compress bool) string {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	if compress {
		var b bytes.Buffer
		z := zlib.NewWriter(&b)
		z.Write(buf)
		z.Close()
		buf = b.Bytes()
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func encode32(values []float64) string {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func spectrumXML(id string, level int, precursor string, arrays string) string {
	return fmt.Sprintf(`<spectrum index="0" id="%s" defaultArrayLength="3">
  <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="%d"/>
  <scanList count="1"><scan><cvParam cvRef="MS" accession="MS:1001581" name="FAIMS compensation voltage" value="-40"/></scan></scanList>
  %s
  <binaryDataArrayList count="2">%s</binaryDataArrayList>
</spectrum>`, id, level, precursor, arrays)
}

const precursorXML = `<precursorList count="1"><precursor>
  <isolationWindow>
    <cvParam cvRef="MS" accession="MS:1000827" name="isolation window target m/z" value="500"/>
    <cvParam cvRef="MS" accession="MS:1000828" name="isolation window lower offset" value="12.5"/>
    <cvParam cvRef="MS" accession="MS:1000829" name="isolation window upper offset" value="12.5"/>
  </isolationWindow>
  <selectedIonList count="1"><selectedIon>
    <cvParam cvRef="MS" accession="MS:1000744" name="selected ion m/z" value="500.25"/>
    <cvParam cvRef="MS" accession="MS:1000041" name="charge state" value="2"/>
  </selectedIon></selectedIonList>
</precursor></precursorList>`

func arraysXML(mzs, intensities []float64) string {
	return fmt.Sprintf(`<binaryDataArray>
  <cvParam cvRef="MS" accession="MS:1000523" name="64-bit float"/>
  <cvParam cvRef="MS" accession="MS:1000574" name="zlib compression"/>
  <cvParam cvRef="MS" accession="MS:1000514" name="m/z array"/>
  <binary>%s</binary>
</binaryDataArray>
<binaryDataArray>
  <cvParam cvRef="MS" accession="MS:1000521" name="32-bit float"/>
  <cvParam cvRef="MS" accession="MS:1000576" name="no compression"/>
  <cvParam cvRef="MS" accession="MS:1000515" name="intensity array"/>
  <binary>%s</binary>
</binaryDataArray>`, encode64(mzs, true), encode32(intensities))
}

func document(spectra ...string) string {
	return `<?xml version="1.0" encoding="ISO-8859-1"?>
<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
<run id="run1"><spectrumList count="` + fmt.Sprint(len(spectra)) + `">` +
		strings.Join(spectra, "\n") +
		`</spectrumList></run></mzML></indexedmzML>`
}

func TestReader(t *testing.T) {
	doc := document(
		spectrumXML("controllerType=0 controllerNumber=1 scan=1", 1, "", arraysXML([]float64{100}, []float64{1})),
		spectrumXML("controllerType=0 controllerNumber=1 scan=2", 2, precursorXML,
			arraysXML([]float64{300.5, 150.25, 600.75}, []float64{10, 20, 30})),
	)

	r := NewReader(strings.NewReader(doc))
	var got []*core.QuerySpectrum
	for r.Next() {
		got = append(got, r.Spectrum())
	}
	if err := r.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	want := []*core.QuerySpectrum{{
		Scan:        "2",
		PrecursorMZ: 500.25,
		Charge:      2,
		Peaks: []core.Peak{
			{MZ: 150.25, Intensity: 20},
			{MZ: 300.5, Intensity: 10},
			{MZ: 600.75, Intensity: 30},
		},
		CompensationVoltage: -40,
		WindowWidth:         25,
	}}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("Reader mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderNumpress(t *testing.T) {
	arrays := `<binaryDataArray>
  <cvParam cvRef="MS" accession="MS:1002312" name="MS-Numpress linear prediction compression"/>
  <cvParam cvRef="MS" accession="MS:1000514" name="m/z array"/>
  <binary></binary>
</binaryDataArray>`
	r := NewReader(strings.NewReader(document(spectrumXML("scan=5", 2, precursorXML, arrays))))
	for r.Next() {
	}
	if !errors.Is(r.Err(), ErrUnsupportedCompression) {
		t.Errorf("Err() = %v, want ErrUnsupportedCompression", r.Err())
	}
}

func TestScanNumber(t *testing.T) {
	tests := map[string]string{
		"controllerType=0 controllerNumber=1 scan=42": "42",
		"index=7": "index=7",
		"scan=3":  "3",
	}
	for in, want := range tests {
		if got := scanNumber(in); got != want {
			t.Errorf("scanNumber(%q) = %q, want %q", in, got, want)
		}
	}
}
