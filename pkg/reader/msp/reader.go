// Package msp provides streaming readers for MSP (NIST/Prosit) format spectral libraries
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
)

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner     *bufio.Scanner
	modDB       *core.ModDatabase
	lineNum     int
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MSP reader
func NewReader(r io.Reader, modDB *core.ModDatabase) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Reader{
		scanner: scanner,
		modDB:   modDB,
	}
}

// Next advances to the next spectrum. Returns false when no more spectra or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil
	if r.err != nil {
		return false
	}

	spec, err := r.readSpectrum()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.currentSpec = spec
	return true
}

// Spectrum returns the current spectrum
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readSpectrum reads a single entry, from its Name line through its last peak.
func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{SourceFormat: "msp"}

	numPeaks := -1
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			if numPeaks >= 0 && spec.Peptide != "" {
				break
			}
			continue
		}

		if numPeaks >= 0 {
			peak, err := parsePeak(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			spec.Peaks = append(spec.Peaks, peak)
			if len(spec.Peaks) >= numPeaks {
				break
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: unexpected line before peak list: %q", r.lineNum, line)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(key) {
		case "name":
			if err := parseName(spec, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
		case "precursormz":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				spec.PrecursorMZ = mz
			}
		case "comment":
			r.parseComment(spec, value)
		case "num peaks", "numpeaks":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
			}
			numPeaks = n
			if numPeaks == 0 {
				return nil, fmt.Errorf("line %d: spectrum %s has no peaks", r.lineNum, spec.Name())
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if spec.Peptide == "" {
		return nil, io.EOF
	}
	if numPeaks < 0 {
		return nil, fmt.Errorf("line %d: spectrum %s has no peak list", r.lineNum, spec.Name())
	}

	finish(spec)
	return spec, nil
}

// finish fills fields derivable from the ones read.
func finish(spec *core.Spectrum) {
	if spec.Sequence == "" {
		spec.Sequence = core.StripSequence(spec.Peptide)
	}
	if spec.Identifier == "" {
		spec.Identifier = spec.Name()
	}
	if spec.PrecursorMZ == 0 && spec.Sequence != "" {
		spec.PrecursorMZ = core.CalculatePeptideMass(spec.Sequence, spec.Charge, spec.Modifications)
	}
}

// parseName extracts peptide and charge from the Name field ("PEPTIDE/2" or "PEPTIDE/2_1(0,C,CAM)").
func parseName(spec *core.Spectrum, name string) error {
	idx := strings.LastIndex(name, "/")
	if idx <= 0 {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	chargeStr := name[idx+1:]
	if cut := strings.IndexAny(chargeStr, "_ "); cut >= 0 {
		chargeStr = chargeStr[:cut]
	}
	charge, err := strconv.Atoi(chargeStr)
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}

	spec.Peptide = name[:idx]
	spec.Charge = charge
	return nil
}

// parseComment extracts metadata from the Comment field, a list of
// key=value pairs where values may be double quoted.
func (r *Reader) parseComment(spec *core.Spectrum, comment string) {
	for _, field := range splitComment(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "\"")

		switch key {
		case "Parent":
			if spec.PrecursorMZ == 0 {
				if mz, err := strconv.ParseFloat(value, 64); err == nil {
					spec.PrecursorMZ = mz
				}
			}
		case "Protein":
			spec.ProteinName = value
		case "Mods":
			spec.Modifications = parseMods(value, r.modDB)
		case "ModString":
			if mods := parseModString(value, r.modDB); len(mods) > 0 {
				spec.Modifications = mods
			}
		}
	}
}

// splitComment splits on spaces outside double quotes.
func splitComment(s string) []string {
	var fields []string
	var b strings.Builder
	quoted := false
	for _, c := range s {
		switch {
		case c == '"':
			quoted = !quoted
			b.WriteRune(c)
		case c == ' ' && !quoted:
			if b.Len() > 0 {
				fields = append(fields, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(c)
		}
	}
	if b.Len() > 0 {
		fields = append(fields, b.String())
	}
	return fields
}

// parseMods parses "count/pos,AA,Name/pos,AA,Name". Unknown names are skipped.
func parseMods(modsStr string, modDB *core.ModDatabase) []core.Modification {
	parts := strings.Split(modsStr, "/")
	if len(parts) < 2 {
		return nil
	}

	var mods []core.Modification
	for _, part := range parts[1:] {
		fields := strings.Split(part, ",")
		if len(fields) < 3 {
			continue
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		if mass, ok := modDB.GetMass(fields[2]); ok {
			mods = append(mods, core.Modification{Mass: mass, Position: pos, Name: fields[2]})
		}
	}
	return mods
}

// parseModString parses "SEQUENCE//Name@AApos;Name@AApos/charge".
func parseModString(modString string, modDB *core.ModDatabase) []core.Modification {
	_, modPart, ok := strings.Cut(modString, "//")
	if !ok {
		return nil
	}
	modPart, _, _ = strings.Cut(modPart, "/")

	var mods []core.Modification
	for _, modSpec := range strings.Split(modPart, ";") {
		name, posStr, ok := strings.Cut(strings.TrimSpace(modSpec), "@")
		if !ok {
			continue
		}
		pos, err := strconv.Atoi(strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTVWY"))
		if err != nil {
			continue
		}
		if mass, ok := modDB.GetMass(name); ok {
			mods = append(mods, core.Modification{Mass: mass, Position: pos, Name: name})
		}
	}
	return mods
}

// parsePeak parses a single peak line (format: "mz\tintensity\t\"annotation\"")
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

	peak := core.Peak{MZ: mz, Intensity: intensity}
	if len(fields) >= 3 {
		annotation := strings.Trim(fields[2], "\"")
		if idx := strings.Index(annotation, "/"); idx > 0 {
			annotation = annotation[:idx]
		}
		peak.Annotation = annotation
	}
	return peak, nil
}
