// Package mzml provides a streaming reader for MS2 query spectra stored in mzML files.
package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"golang.org/x/net/html/charset"
)

// ErrUnsupportedCompression is returned for MS-Numpress encoded arrays.
var ErrUnsupportedCompression = errors.New("unsupported binary data compression")

// CV accessions read from spectra
const (
	accMSLevel         = "MS:1000511"
	accSelectedIonMZ   = "MS:1000744"
	accChargeState     = "MS:1000041"
	accFAIMSCV         = "MS:1001581"
	accLowerOffset     = "MS:1000828"
	accUpperOffset     = "MS:1000829"
	accZlib            = "MS:1000574"
	accMZArray         = "MS:1000514"
	accIntensityArray  = "MS:1000515"
	accFloat64         = "MS:1000523"
	accNumpressLinear  = "MS:1002312"
	accNumpressPic     = "MS:1002313"
	accNumpressSlof    = "MS:1002314"
	accNumpressLinearZ = "MS:1002746"
	accNumpressPicZ    = "MS:1002747"
	accNumpressSlofZ   = "MS:1002748"
)

type cvParam struct {
	Accession string `xml:"accession,attr"`
	Value     string `xml:"value,attr"`
}

type paramGroup struct {
	CvPar []cvParam `xml:"cvParam"`
}

type precursor struct {
	IsolationWindow paramGroup   `xml:"isolationWindow"`
	SelectedIon     []paramGroup `xml:"selectedIonList>selectedIon"`
}

type binaryDataArray struct {
	CvPar  []cvParam `xml:"cvParam"`
	Binary string    `xml:"binary"`
}

type spectrum struct {
	ID              string            `xml:"id,attr"`
	CvPar           []cvParam         `xml:"cvParam"`
	Scan            []paramGroup      `xml:"scanList>scan"`
	Precursor       []precursor       `xml:"precursorList>precursor"`
	BinaryDataArray []binaryDataArray `xml:"binaryDataArrayList>binaryDataArray"`
}

// Reader streams MS2 spectra from an mzML document. Spectra of other MS
// levels are skipped.
type Reader struct {
	decoder *xml.Decoder
	current *core.QuerySpectrum
	err     error
}

// NewReader creates a new mzML reader
func NewReader(r io.Reader) *Reader {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return &Reader{decoder: d}
}

// Next advances to the next MS2 spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	for {
		t, err := r.decoder.Token()
		if err != nil {
			if err != io.EOF {
				r.err = fmt.Errorf("failed to parse mzML: %w", err)
			}
			return false
		}
		start, ok := t.(xml.StartElement)
		if !ok || start.Name.Local != "spectrum" {
			continue
		}

		var s spectrum
		if err := r.decoder.DecodeElement(&s, &start); err != nil {
			r.err = fmt.Errorf("failed to decode spectrum: %w", err)
			return false
		}
		if level, _ := strconv.Atoi(findParam(s.CvPar, accMSLevel)); level != 2 {
			continue
		}

		q, err := convert(&s)
		if err != nil {
			r.err = fmt.Errorf("spectrum %s: %w", s.ID, err)
			return false
		}
		r.current = q
		return true
	}
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.QuerySpectrum {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func convert(s *spectrum) (*core.QuerySpectrum, error) {
	q := &core.QuerySpectrum{Scan: scanNumber(s.ID)}

	if len(s.Precursor) > 0 {
		p := s.Precursor[0]
		if len(p.SelectedIon) > 0 {
			q.PrecursorMZ = parseFloat(findParam(p.SelectedIon[0].CvPar, accSelectedIonMZ))
			q.Charge, _ = strconv.Atoi(findParam(p.SelectedIon[0].CvPar, accChargeState))
		}
		q.WindowWidth = parseFloat(findParam(p.IsolationWindow.CvPar, accLowerOffset)) +
			parseFloat(findParam(p.IsolationWindow.CvPar, accUpperOffset))
	}

	cv := findParam(s.CvPar, accFAIMSCV)
	for _, scan := range s.Scan {
		if cv != "" {
			break
		}
		cv = findParam(scan.CvPar, accFAIMSCV)
	}
	q.CompensationVoltage = parseFloat(cv)

	var mzs, intensities []float64
	for i := range s.BinaryDataArray {
		values, kind, err := decodeArray(&s.BinaryDataArray[i])
		if err != nil {
			return nil, err
		}
		switch kind {
		case accMZArray:
			mzs = values
		case accIntensityArray:
			intensities = values
		}
	}
	if len(mzs) != len(intensities) {
		return nil, fmt.Errorf("m/z array has %d values but intensity array has %d", len(mzs), len(intensities))
	}

	q.Peaks = make([]core.Peak, len(mzs))
	for i := range mzs {
		q.Peaks[i] = core.Peak{MZ: mzs[i], Intensity: intensities[i]}
	}
	if !core.PeaksSorted(q.Peaks) {
		core.SortPeaks(q.Peaks)
	}
	return q, nil
}

// decodeArray decodes one binaryDataArray. kind is the array type
// accession, or "" for arrays other than m/z and intensity.
func decodeArray(a *binaryDataArray) ([]float64, string, error) {
	zlibCompression := false
	bits64 := false
	kind := ""
	for _, p := range a.CvPar {
		switch p.Accession {
		case accZlib:
			zlibCompression = true
		case accFloat64:
			bits64 = true
		case accMZArray, accIntensityArray:
			kind = p.Accession
		case accNumpressLinear, accNumpressPic, accNumpressSlof,
			accNumpressLinearZ, accNumpressPicZ, accNumpressSlofZ:
			return nil, "", fmt.Errorf("%w (CV term %s)", ErrUnsupportedCompression, p.Accession)
		}
	}
	if kind == "" {
		return nil, "", nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(a.Binary))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 array: %w", err)
	}
	if zlibCompression && len(data) > 0 {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("failed to open zlib array: %w", err)
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return nil, "", fmt.Errorf("failed to inflate array: %w", err)
		}
	}

	var values []float64
	if bits64 {
		values = make([]float64, len(data)/8)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	} else {
		values = make([]float64, len(data)/4)
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return values, kind, nil
}

func findParam(params []cvParam, accession string) string {
	for _, p := range params {
		if p.Accession == accession {
			return p.Value
		}
	}
	return ""
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// scanNumber extracts N from native ids such as
// "controllerType=0 controllerNumber=1 scan=N". Other ids are returned as is.
func scanNumber(id string) string {
	for _, field := range strings.Fields(id) {
		if v, ok := strings.CutPrefix(field, "scan="); ok {
			return v
		}
	}
	return id
}
