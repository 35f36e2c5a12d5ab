// Package sptxt provides streaming readers for SPTXT (SpectraST) format spectral libraries
package sptxt

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
)

// Reader provides streaming access to SPTXT format files
type Reader struct {
	scanner     *bufio.Scanner
	modDB       *core.ModDatabase
	lineNum     int
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new SPTXT reader
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

func (r *Reader) readSpectrum() (*core.Spectrum, error) {
	spec := &core.Spectrum{SourceFormat: "sptxt"}

	numPeaks := -1
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "###") {
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

		switch key {
		case "Name":
			if err := r.parseName(spec, value); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
		case "LibID":
			spec.Identifier = value
		case "PrecursorMZ":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				spec.PrecursorMZ = mz
			}
		case "Comment":
			r.parseComment(spec, value)
		case "NumPeaks":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
			}
			if n == 0 {
				return nil, fmt.Errorf("line %d: spectrum %s has no peaks", r.lineNum, spec.Name())
			}
			numPeaks = n
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

	if spec.Identifier == "" {
		spec.Identifier = spec.Name()
	}
	if spec.PrecursorMZ == 0 {
		spec.PrecursorMZ = core.CalculatePeptideMass(spec.Sequence, spec.Charge, spec.Modifications)
	}
	return spec, nil
}

// parseName extracts sequence, charge, and modifications from Name field
// Format: "n[305]AAAAQDEITGDGTTTVVC[160]LVGELLR/3"
func (r *Reader) parseName(spec *core.Spectrum, name string) error {
	idx := strings.LastIndex(name, "/")
	if idx <= 0 {
		return fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	charge, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return fmt.Errorf("invalid charge in name '%s': %w", name, err)
	}

	rawSeq := name[:idx]
	sequence, mods, err := parseInlineModifications(rawSeq)
	if err != nil {
		return fmt.Errorf("failed to parse modifications from sequence: %w", err)
	}

	spec.Peptide = rawSeq
	spec.Charge = charge
	spec.Sequence = sequence
	spec.Modifications = mods
	return nil
}

var inlineModPattern = regexp.MustCompile(`([a-zA-Z]?)\[(\d+(?:\.\d+)?)\]`)

// parseInlineModifications converts SpectraST nominal residue masses such as
// C[160] into modification mass shifts relative to the unmodified residue.
func parseInlineModifications(rawSeq string) (string, []core.Modification, error) {
	var sequence strings.Builder
	var mods []core.Modification
	var cTerm *core.Modification

	lastIdx := 0
	for _, match := range inlineModPattern.FindAllStringSubmatchIndex(rawSeq, -1) {
		sequence.WriteString(rawSeq[lastIdx:match[0]])

		aa := rawSeq[match[2]:match[3]]
		massStr := rawSeq[match[4]:match[5]]
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid modification mass '%s': %w", massStr, err)
		}

		switch aa {
		case "n", "":
			// n-terminal masses include the terminal hydrogen
			mods = append(mods, core.Modification{Mass: mass - core.MassH, Position: -1, Name: massStr})
		case "c":
			// c-terminal masses include the terminal hydroxyl
			cTerm = &core.Modification{Mass: mass - core.MassO - core.MassH, Name: massStr}
		default:
			residue := core.CalculateNeutralMass(aa, nil) - core.CalculateNeutralMass("", nil)
			mods = append(mods, core.Modification{Mass: mass - residue, Position: sequence.Len(), Name: massStr})
			sequence.WriteString(aa)
		}
		lastIdx = match[1]
	}
	sequence.WriteString(rawSeq[lastIdx:])

	if cTerm != nil {
		cTerm.Position = sequence.Len()
		mods = append(mods, *cTerm)
	}
	return sequence.String(), mods, nil
}

// parseComment extracts metadata from the Comment field
func (r *Reader) parseComment(spec *core.Spectrum, comment string) {
	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

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
			r.nameMods(spec, value)
		}
	}
}

// nameMods attaches unimod names from "count/pos,AA,Name/..." to the
// modifications already parsed from the inline sequence.
func (r *Reader) nameMods(spec *core.Spectrum, modsStr string) {
	parts := strings.Split(modsStr, "/")
	for _, part := range parts[1:] {
		fields := strings.Split(part, ",")
		if len(fields) < 3 {
			continue
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		for j := range spec.Modifications {
			if spec.Modifications[j].Position == pos {
				spec.Modifications[j].Name = fields[2]
				if mass, ok := r.modDB.GetMass(fields[2]); ok {
					spec.Modifications[j].Mass = mass
				}
			}
		}
	}
}

// parsePeak parses a single peak line ("mz\tintensity\tannotation\t...").
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
		annotation := fields[2]
		if idx := strings.Index(annotation, "/"); idx > 0 {
			annotation = annotation[:idx]
		}
		peak.Annotation = annotation
	}
	return peak, nil
}
