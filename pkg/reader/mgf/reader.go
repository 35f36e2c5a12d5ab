// Package mgf provides a streaming reader for Mascot Generic Format files,
// used both for spectral libraries and for query spectra.
package mgf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
)

// Reader provides streaming access to MGF files. Each entry between
// BEGIN IONS and END IONS can be viewed as a library spectrum or as a
// query spectrum.
type Reader struct {
	scanner *bufio.Scanner
	lineNum int
	params  map[string]string
	peaks   []core.Peak
	err     error
}

// NewReader creates a new MGF reader
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{scanner: scanner}
}

// Next advances to the next entry. Returns false when no more entries or error.
func (r *Reader) Next() bool {
	r.params = nil
	r.peaks = nil
	if r.err != nil {
		return false
	}

	inIons := false
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case line == "BEGIN IONS":
			if inIons {
				r.err = fmt.Errorf("line %d: BEGIN IONS inside an open entry", r.lineNum)
				return false
			}
			inIons = true
			r.params = make(map[string]string)
		case line == "END IONS":
			if !inIons {
				r.err = fmt.Errorf("line %d: END IONS without BEGIN IONS", r.lineNum)
				return false
			}
			return true
		case !inIons:
			// global parameters are not used
		case strings.Contains(line, "="):
			key, value, _ := strings.Cut(line, "=")
			r.params[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
		default:
			peak, err := parsePeak(line)
			if err != nil {
				r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
				return false
			}
			r.peaks = append(r.peaks, peak)
		}
	}

	if err := r.scanner.Err(); err != nil {
		r.err = err
	} else if inIons {
		r.err = fmt.Errorf("line %d: unterminated entry", r.lineNum)
	}
	return false
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Param returns a raw parameter of the current entry.
func (r *Reader) Param(name string) string {
	return r.params[strings.ToUpper(name)]
}

// Spectrum returns the current entry as a library spectrum. The key is
// (PEPMASS, SEQ); entries whose TITLE contains "decoy" in any case are decoys.
func (r *Reader) Spectrum() *core.Spectrum {
	title := r.params["TITLE"]
	peptide := r.params["SEQ"]
	return &core.Spectrum{
		Peptide:      peptide,
		Sequence:     core.StripSequence(peptide),
		Charge:       parseCharge(r.params["CHARGE"]),
		PrecursorMZ:  parsePepMass(r.params["PEPMASS"]),
		Peaks:        append([]core.Peak(nil), r.peaks...),
		Identifier:   title,
		ProteinName:  r.params["PROTEIN"],
		Decoy:        core.IsDecoyName(title),
		SourceFormat: "mgf",
	}
}

// Query returns the current entry as a query spectrum. The scan identifier
// is SCANS when present and TITLE otherwise.
func (r *Reader) Query() *core.QuerySpectrum {
	scan := r.params["SCANS"]
	if scan == "" {
		scan = r.params["TITLE"]
	}
	peaks := append([]core.Peak(nil), r.peaks...)
	core.SortPeaks(peaks)

	q := &core.QuerySpectrum{
		Scan:        scan,
		PrecursorMZ: parsePepMass(r.params["PEPMASS"]),
		Charge:      parseCharge(r.params["CHARGE"]),
		Peaks:       peaks,
	}
	if v, err := strconv.ParseFloat(r.params["COMPENSATIONVOLTAGE"], 64); err == nil {
		q.CompensationVoltage = v
	}
	if v, err := strconv.ParseFloat(r.params["WINDOWWIDTH"], 64); err == nil {
		q.WindowWidth = v
	}
	return q
}

// parsePepMass reads the first value of "PEPMASS=mz [intensity]".
func parsePepMass(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return mz
}

// parseCharge reads charges written as "2+", "+2" or "2". Only the first
// of a list such as "2+ and 3+" is used.
func parseCharge(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	c, err := strconv.Atoi(strings.Trim(fields[0], "+-"))
	if err != nil {
		return 0
	}
	return c
}

func parsePeak(line string) (core.Peak, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return core.Peak{}, fmt.Errorf("invalid peak format, expected at least 2 fields")
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid m/z value: %w", err)
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return core.Peak{}, fmt.Errorf("invalid intensity value: %w", err)
	}
	return core.Peak{MZ: mz, Intensity: intensity}, nil
}
